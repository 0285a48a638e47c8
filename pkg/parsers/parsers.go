// Package parsers is the default collection of format parsers exposed to
// the fuzz harness. Each adapter wraps the rejections its library documents
// as fault.ParseError and returns every other error untouched, so the
// classifier sees exactly what the library produced.
package parsers

import (
	"fmt"

	"github.com/Beastly713/parsefuzz/pkg/registry"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Unsafe lists the parsers that cannot be fuzzed in-process, with the reason.
var Unsafe = map[string]string{
	"mangle-eval": "recursive rules over arithmetic never reach a fixpoint; evaluation runs until killed",
}

// All returns the default collection in registration order.
func All() []registry.Parser {
	return []registry.Parser{
		{ID: "cbor", Parse: parseCBOR},
		{ID: "cbor-diag", Parse: parseCBORDiag},
		{ID: "csv", Parse: parseCSV},
		{ID: "gzip", Parse: parseGzip},
		{ID: "json", Parse: parseJSON},
		{ID: "mangle", Parse: parseMangle},
		{ID: "mangle-eval", Parse: parseMangleUnbounded},
		{ID: "msgp", Parse: parseMsgp},
		{ID: "msgpack", Parse: parseMsgpack},
		{ID: "png", Parse: parsePNG},
		{ID: "reedsolomon", Parse: parseReedSolomon},
		{ID: "report", Parse: parseReport},
		{ID: "toml", Parse: parseTOML},
		{ID: "xml", Parse: parseXML},
		{ID: "yaml", Parse: parseYAML},
	}
}

// NewRegistry builds the default registry with Unsafe already excluded.
func NewRegistry() (*registry.Registry, error) {
	reg, err := registry.New(All()...)
	if err != nil {
		return nil, err
	}
	if err := reg.ExcludeUnsafe(Unsafe); err != nil {
		return nil, fmt.Errorf("exclude unsafe parsers: %w", err)
	}
	return reg, nil
}

// Binary formats read the decoded text as Latin-1 so that every byte value
// stays reachable from a UTF-8 testcase. Runes above U+00FF become 0x1A.
var latin1 = charmap.ISO8859_1

func octets(text string) []byte {
	b, err := encoding.ReplaceUnsupported(latin1.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		// ReplaceUnsupported never reports unsupported runes.
		return []byte(text)
	}
	return b
}

// Latin1 is the inverse of the binary adapters' input mapping: the returned
// text reaches a binary parser as exactly b. Seed corpora use it.
func Latin1(b []byte) string {
	s, err := latin1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
