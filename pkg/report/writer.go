package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// Writer writes crash reports.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w (usually an os.File).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write serialises the header followed by the raw fuzz buffer.
func (rw *Writer) Write(h *Header, input []byte) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	if err := h.Verify(input); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}

	if _, err := fmt.Fprintf(rw.w, Preamble, h.Parser, h.Kind); err != nil {
		return fmt.Errorf("failed to write preamble: %w", err)
	}
	if _, err := fmt.Fprintln(rw.w, ReportMarker); err != nil {
		return fmt.Errorf("failed to write report marker: %w", err)
	}

	js, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if _, err := rw.w.Write(js); err != nil {
		return fmt.Errorf("failed to write report json: %w", err)
	}
	if _, err := fmt.Fprintln(rw.w); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(rw.w, InputMarker); err != nil {
		return fmt.Errorf("failed to write input marker: %w", err)
	}
	if _, err := rw.w.Write(input); err != nil {
		return fmt.Errorf("failed to write input: %w", err)
	}
	return nil
}
