package report

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/fault"
)

// Markers delimiting the sections of a crash report.
const (
	// Preamble is the human-readable introduction at the top of the file.
	Preamble = `# THIS FILE IS A PARSEFUZZ CRASH REPORT.
# PARSER %q FAILED WITH A %s FAULT.
# THE BYTES AFTER THE INPUT MARKER ARE THE ORIGINAL FUZZ BUFFER.
# REPLAY THEM WITH: parsefuzz replay <this file>
`
	// ReportMarker indicates the start of the JSON metadata.
	ReportMarker = "-- REPORT --"

	// InputMarker indicates the start of the raw fuzz buffer.
	InputMarker = "-- INPUT --"
)

// Header is the metadata describing one reproduced fault.
type Header struct {
	// Parser is the registry identifier the buffer decodes to.
	Parser string `json:"parser"`

	Kind    fault.Kind `json:"kind"`
	Verdict string     `json:"verdict"`
	Message string     `json:"message"`

	// Timestamp is the unix time the report was written.
	Timestamp int64 `json:"timestamp"`

	// Size and SHA256 describe the input so a report can be checked
	// against the buffer it carries.
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
}

// NewHeader describes f, classified as v, for the given fuzz buffer.
func NewHeader(parser string, f fault.Fault, v classify.Verdict, input []byte) *Header {
	sum := sha256.Sum256(input)
	return &Header{
		Parser:    parser,
		Kind:      f.Kind,
		Verdict:   v.String(),
		Message:   f.Message,
		Timestamp: time.Now().Unix(),
		Size:      len(input),
		SHA256:    hex.EncodeToString(sum[:]),
	}
}

// Validate checks that the header holds sane values.
func (h *Header) Validate() error {
	if h.Parser == "" {
		return errors.New("report is missing parser")
	}
	if h.Verdict != classify.Benign.String() && h.Verdict != classify.Defect.String() {
		return fmt.Errorf("invalid verdict %q", h.Verdict)
	}
	if h.Size < 0 {
		return fmt.Errorf("invalid size %d", h.Size)
	}
	if b, err := hex.DecodeString(h.SHA256); err != nil || len(b) != sha256.Size {
		return fmt.Errorf("invalid sha256 %q", h.SHA256)
	}
	return nil
}

// Verify checks that input is the buffer the header describes.
func (h *Header) Verify(input []byte) error {
	if len(input) != h.Size {
		return fmt.Errorf("input is %d bytes, report says %d", len(input), h.Size)
	}
	sum := sha256.Sum256(input)
	if got := hex.EncodeToString(sum[:]); got != h.SHA256 {
		return fmt.Errorf("input digest %s does not match report %s", got, h.SHA256)
	}
	return nil
}
