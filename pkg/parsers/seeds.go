package parsers

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/report"
	"github.com/fxamacker/cbor/v2"
	"github.com/tinylib/msgp/msgp"
	"github.com/vmihailenco/msgpack/v5"
)

var textSeeds = map[string]string{
	"csv":    "name,size\nalpha,1\nbeta,2\n",
	"json":   `{"a":[1,2.5,{"b":null}],"c":"d"}`,
	"mangle": "edge(1, 2).\nedge(2, 3).\npath(X, Y) :- edge(X, Y).\npath(X, Z) :- edge(X, Y), path(Y, Z).\n",
	"toml":   "title = \"seed\"\n\n[owner]\nname = \"fuzz\"\nids = [1, 2]\n",
	"xml":    `<?xml version="1.0"?><a><b x="1">text</b><c/></a>`,
	"yaml":   "a: [1, 2]\nb:\n  c: d\n",
}

// Seeds returns one well-formed document per parser in All, keyed by id.
// Binary documents are already mapped to the text that reaches the parser
// as those bytes.
func Seeds() (map[string]string, error) {
	seeds := make(map[string]string, len(textSeeds)+8)
	for id, doc := range textSeeds {
		seeds[id] = doc
	}
	seeds["mangle-eval"] = textSeeds["mangle"]

	doc := map[string]any{"a": []any{1, "two"}, "b": true}

	c, err := cbor.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("cbor seed: %w", err)
	}
	seeds["cbor"] = Latin1(c)
	seeds["cbor-diag"] = Latin1(c)

	m, err := msgpack.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("msgpack seed: %w", err)
	}
	seeds["msgpack"] = Latin1(m)

	p := msgp.AppendMapHeader(nil, 2)
	p = msgp.AppendString(p, "a")
	p = msgp.AppendInt(p, -7)
	p = msgp.AppendString(p, "b")
	p = msgp.AppendArrayHeader(p, 1)
	p = msgp.AppendFloat64(p, 1.5)
	seeds["msgp"] = Latin1(p)

	var z bytes.Buffer
	zw := gzip.NewWriter(&z)
	if _, err := zw.Write([]byte("compressed seed\n")); err != nil {
		return nil, fmt.Errorf("gzip seed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip seed: %w", err)
	}
	seeds["gzip"] = Latin1(z.Bytes())

	carrier := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(carrier, carrier.Bounds(), &image.Uniform{color.NRGBA{R: 100, G: 150, B: 200, A: 255}}, image.Point{}, draw.Src)
	img, err := EmbedLSB(carrier, []byte("hidden"))
	if err != nil {
		return nil, fmt.Errorf("png seed: %w", err)
	}
	seeds["png"] = Latin1(img)

	rs, err := EncodeShards([]byte("erasure coded seed"))
	if err != nil {
		return nil, fmt.Errorf("reedsolomon seed: %w", err)
	}
	seeds["reedsolomon"] = Latin1(rs)

	input := []byte("\x00a,b\n")
	var rep bytes.Buffer
	h := report.NewHeader("csv", fault.New(fault.KindOther, "seed"), classify.Defect, input)
	if err := report.NewWriter(&rep).Write(h, input); err != nil {
		return nil, fmt.Errorf("report seed: %w", err)
	}
	seeds["report"] = rep.String()

	return seeds, nil
}
