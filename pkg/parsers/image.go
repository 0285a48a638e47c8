package parsers

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
)

// maxPixels bounds the canvas a PNG header may ask for.
const maxPixels = 1 << 20

var errCanvasTooLarge = fmt.Errorf("png: canvas exceeds %d pixels", maxPixels)

// Picture is the result of the png parser: the decoded bounds and, when the
// least significant bits carry a length-prefixed payload, that payload.
type Picture struct {
	Bounds  image.Rectangle
	Payload []byte
}

func parsePNG(text string, _ registry.Options) (any, error) {
	data := octets(text)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, pngError(err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fault.Reject("png", errCanvasTooLarge)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, pngError(err)
	}
	return &Picture{Bounds: img.Bounds(), Payload: extractLSB(img)}, nil
}

// pngError tags the decoder's rejections. image/png passes errors from the
// zlib stream inside IDAT through unwrapped.
func pngError(err error) error {
	var (
		format      png.FormatError
		unsupported png.UnsupportedError
		corrupt     flate.CorruptInputError
	)
	switch {
	case errors.As(err, &format), errors.As(err, &unsupported), errors.As(err, &corrupt),
		errors.Is(err, zlib.ErrHeader), errors.Is(err, zlib.ErrDictionary), errors.Is(err, zlib.ErrChecksum):
		return fault.Reject("png", err)
	}
	return err
}

// extractLSB reads a 32-bit big-endian length followed by that many bytes
// from the low bit of each R, G and B channel in row order. It returns nil
// when the length prefix does not fit the image.
func extractLSB(img image.Image) []byte {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	capacity := width * height * 3

	bits := make([]byte, 0, capacity)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			bits = append(bits, c.R&1, c.G&1, c.B&1)
		}
	}
	if len(bits) < 32 {
		return nil
	}

	var n uint32
	for _, b := range bits[:32] {
		n = n<<1 | uint32(b)
	}
	if n == 0 || uint64(n)*8 > uint64(capacity-32) {
		return nil
	}

	payload := make([]byte, n)
	for i, b := range bits[32 : 32+int(n)*8] {
		payload[i/8] |= b << (7 - i%8)
	}
	return payload
}

// EmbedLSB hides payload in the low bits of carrier, length-prefixed, and
// returns the PNG encoding of the result.
func EmbedLSB(carrier image.Image, payload []byte) ([]byte, error) {
	bounds := carrier.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	full := binary.BigEndian.AppendUint32(nil, uint32(len(payload)))
	full = append(full, payload...)
	if need := len(full) * 8; need > width*height*3 {
		return nil, fmt.Errorf("payload needs %d bits, carrier holds %d", need, width*height*3)
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), carrier, bounds.Min, draw.Src)

	bit := 0
	next := func(v uint8) uint8 {
		if bit >= len(full)*8 {
			return v
		}
		b := (full[bit/8] >> (7 - bit%8)) & 1
		bit++
		return v&0xFE | b
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := out.NRGBAAt(x, y)
			c.R, c.G, c.B = next(c.R), next(c.G), next(c.B)
			out.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
