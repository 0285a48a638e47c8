package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxPreambleLines bounds the scan for the report marker on garbage input.
const maxPreambleLines = 50

// Reader separates the metadata of a crash report from its input bytes.
type Reader struct {
	Header *Header
	Input  io.Reader
}

// NewReader parses a crash report. It consumes the text header and returns
// a Reader whose Input is positioned at the first byte of the fuzz buffer.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	found := false
	for i := 0; i < maxPreambleLines; i++ {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read stream while looking for report marker: %w", err)
		}
		if strings.TrimSpace(line) == ReportMarker {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("invalid format: could not find %q marker", ReportMarker)
	}

	var js bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read stream while reading report json: %w", err)
		}
		if strings.TrimSpace(line) == InputMarker {
			break
		}
		js.WriteString(line)
	}

	h := &Header{}
	if err := json.Unmarshal(js.Bytes(), h); err != nil {
		return nil, fmt.Errorf("failed to parse report json: %w", err)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("report validation failed: %w", err)
	}

	return &Reader{Header: h, Input: br}, nil
}

// ReadInput reads the fuzz buffer and checks it against the header.
func (r *Reader) ReadInput() ([]byte, error) {
	b, err := io.ReadAll(r.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read report input: %w", err)
	}
	if err := r.Header.Verify(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Sniff reports whether b looks like the start of a crash report.
func Sniff(b []byte) bool {
	first, _, _ := bytes.Cut(b, []byte("\n"))
	return bytes.Equal(first, []byte(strings.SplitN(Preamble, "\n", 2)[0]))
}
