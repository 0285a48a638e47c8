package fault

import "errors"

// ErrLibraryUnavailable is returned by the parse contract for identifiers
// that are unknown, excluded, or whose backing library cannot run here.
var ErrLibraryUnavailable = errors.New("parser library not available")

// ParseError marks a known, expected rejection of malformed input by a
// parser adapter. It is the Go counterpart of a parser collection's own
// "parse error" type.
type ParseError struct {
	Parser string
	Err    error
}

// Reject wraps err as an expected rejection by parser. A nil err stays nil.
func Reject(parser string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Parser: parser, Err: err}
}

func (e *ParseError) Error() string {
	return e.Parser + ": " + e.Err.Error()
}

// Unwrap returns the library error.
func (e *ParseError) Unwrap() error { return e.Err }
