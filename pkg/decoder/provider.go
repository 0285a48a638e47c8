package decoder

import (
	"strings"
	"unicode/utf8"

	"fortio.org/safecast"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Provider hands out a fuzz buffer left to right. No method fails: when the
// buffer runs dry every method falls back to a fixed value.
type Provider struct {
	data []byte
	off  int
}

// NewProvider wraps data. The slice is not copied or modified.
func NewProvider(data []byte) *Provider {
	return &Provider{data: data}
}

// Remaining returns the number of unconsumed bytes.
func (p *Provider) Remaining() int { return len(p.data) - p.off }

// ConsumeBytes takes up to n bytes.
func (p *Provider) ConsumeBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n > p.Remaining() {
		n = p.Remaining()
	}
	b := p.data[p.off : p.off+n]
	p.off += n
	return b
}

// indexWidth is the number of bytes needed to address n entries.
func indexWidth(n int) int {
	w := 1
	for v := uint64(n-1) >> 8; v > 0; v >>= 8 {
		w++
	}
	return w
}

// PickIndex returns an index in [0, n) read from the leading bytes.
// A short read uses what is left; an empty one yields 0.
func (p *Provider) PickIndex(n int) int {
	if n <= 1 {
		p.ConsumeBytes(1)
		return 0
	}
	var v uint64
	for _, c := range p.ConsumeBytes(indexWidth(n)) {
		v = v<<8 | uint64(c)
	}
	un, err := safecast.Conv[uint64](n)
	if err != nil {
		return 0
	}
	idx, err := safecast.Conv[int](v % un)
	if err != nil {
		return 0
	}
	return idx
}

// ConsumeRemainingString decodes everything left as text in the given mode.
func (p *Provider) ConsumeRemainingString(mode TextMode) string {
	if mode == Mixed {
		return p.consumeMixed()
	}
	return decodeLossy(unicode.UTF8, p.ConsumeBytes(p.Remaining()))
}

// consumeMixed lets the first byte choose the encoding, so the fuzzer can
// reach non-ASCII code points without producing valid UTF-8 itself.
func (p *Provider) consumeMixed() string {
	sel := p.ConsumeBytes(1)
	if len(sel) == 0 {
		return ""
	}
	rest := p.ConsumeBytes(p.Remaining())
	switch {
	case sel[0]&1 == 0:
		ascii := make([]byte, len(rest))
		for i, c := range rest {
			ascii[i] = c & 0x7f
		}
		return string(ascii)
	case sel[0]&2 == 0:
		return decodeLossy(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), rest)
	default:
		return decodeLossy(utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), rest)
	}
}

func decodeLossy(enc encoding.Encoding, b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(out) {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}
