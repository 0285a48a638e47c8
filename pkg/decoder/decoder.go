// Package decoder turns a raw fuzz buffer into a reproducible testcase:
// one parser from the registry plus the text to feed it.
//
// The leading bytes index into the registry; whatever follows is decoded as
// text. Decoding never fails for a non-empty registry, and the same buffer
// always produces the same testcase, which is what makes a recorded crash
// replayable.
package decoder

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Beastly713/parsefuzz/pkg/registry"
)

// ErrEmptyRegistry means there is nothing to select from.
var ErrEmptyRegistry = errors.New("decoder: registry is empty")

// TextMode selects how the bytes after the index are turned into text.
type TextMode int

const (
	// UTF8 decodes the bytes as UTF-8, replacing invalid sequences.
	UTF8 TextMode = iota
	// Mixed spends one byte choosing between ASCII, UTF-16 and UTF-32.
	Mixed
)

func (m TextMode) String() string {
	switch m {
	case UTF8:
		return "utf8"
	case Mixed:
		return "mixed"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseTextMode resolves a mode name as used on the command line.
func ParseTextMode(s string) (TextMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf8", "utf-8":
		return UTF8, nil
	case "mixed":
		return Mixed, nil
	}
	return UTF8, fmt.Errorf("unknown text mode %q", s)
}

// Testcase is the decoded (parser, text) pair for one iteration.
type Testcase struct {
	Index    int
	ParserID string
	Text     string
}

// Decoder derives testcases from buffers against a fixed registry.
type Decoder struct {
	reg  *registry.Registry
	mode TextMode
}

// New returns a decoder over reg.
func New(reg *registry.Registry, mode TextMode) *Decoder {
	return &Decoder{reg: reg, mode: mode}
}

// Mode returns the text mode in use.
func (d *Decoder) Mode() TextMode { return d.mode }

// Decode picks a parser and derives the input text from data.
func (d *Decoder) Decode(data []byte) (Testcase, error) {
	if d.reg == nil || d.reg.Len() == 0 {
		return Testcase{}, ErrEmptyRegistry
	}
	p := NewProvider(data)
	idx := p.PickIndex(d.reg.Len())
	return Testcase{
		Index:    idx,
		ParserID: d.reg.At(idx).ID,
		Text:     p.ConsumeRemainingString(d.mode),
	}, nil
}

// Encode builds a UTF8-mode buffer that decodes to (id, text). It is used to
// seed corpora with well-formed documents.
func Encode(reg *registry.Registry, id, text string) ([]byte, error) {
	idx := reg.IndexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("decoder: parser %q is not selectable", id)
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("decoder: seed text for %q is not valid UTF-8", id)
	}
	width := indexWidth(reg.Len())
	buf := make([]byte, width, width+len(text))
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(idx)
		idx >>= 8
	}
	return append(buf, text...), nil
}
