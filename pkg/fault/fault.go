package fault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
)

// Kind is the coarse category of a failed parse.
type Kind int

const (
	KindOther Kind = iota
	KindIndexOutOfRange
	KindAttributeMissing
	KindKeyMissing
	KindNumericOverflow
	KindRuntime
	KindMalformedInput
	KindTypeMismatch
	KindValueRejected
)

var kindNames = [...]string{
	KindOther:            "other",
	KindIndexOutOfRange:  "index-out-of-range",
	KindAttributeMissing: "attribute-missing",
	KindKeyMissing:       "key-missing",
	KindNumericOverflow:  "numeric-overflow",
	KindRuntime:          "runtime-fault",
	KindMalformedInput:   "library-unavailable-or-malformed-input",
	KindTypeMismatch:     "type-mismatch",
	KindValueRejected:    "value-rejected",
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind resolves a kind from its configuration name.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return KindOther, fmt.Errorf("unknown fault kind %q", s)
}

// MarshalText implements encoding.TextMarshaler so kinds read naturally
// in reports and rule files.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Fault is a captured parse failure: either an error returned by the parser
// or a value it panicked with.
type Fault struct {
	Kind    Kind
	Message string

	// Err is the returned error, or the panic value when it was an error.
	Err error
	// Value is the raw panic value; nil for returned errors.
	Value any
	// Panicked reports whether the parser panicked.
	Panicked bool
	// Stack is the goroutine stack captured at the panic site.
	Stack []byte
}

// New builds a synthetic fault with no underlying error.
func New(kind Kind, message string) Fault {
	return Fault{Kind: kind, Message: message}
}

func (f Fault) Error() string {
	return f.Kind.String() + ": " + f.Message
}

// FromError tags an error returned by a parser.
func FromError(err error) Fault {
	return Fault{Kind: KindOfError(err), Message: err.Error(), Err: err}
}

// FromPanic tags a recovered panic value.
func FromPanic(v any, stack []byte) Fault {
	f := Fault{Value: v, Panicked: true, Stack: stack}
	switch x := v.(type) {
	case runtime.Error:
		f.Err = x
		f.Kind = kindOfRuntimeError(x)
		f.Message = x.Error()
	case error:
		f.Err = x
		f.Kind = KindOfError(x)
		f.Message = x.Error()
	default:
		f.Kind = KindOther
		f.Message = fmt.Sprint(v)
	}
	return f
}

// Raise propagates the fault with its original value, untransformed.
func (f Fault) Raise() {
	if f.Panicked {
		panic(f.Value)
	}
	if f.Err != nil {
		panic(f.Err)
	}
	panic(f)
}

// KindOfError maps a returned error onto the fault taxonomy.
func KindOfError(err error) Kind {
	var (
		perr      *ParseError
		typeErr   *json.UnmarshalTypeError
		assertErr *runtime.TypeAssertionError
		rtErr     runtime.Error
	)
	switch {
	case err == nil:
		return KindOther
	case errors.As(err, &perr), errors.Is(err, ErrLibraryUnavailable):
		return KindMalformedInput
	case errors.Is(err, strconv.ErrRange):
		return KindNumericOverflow
	case errors.Is(err, strconv.ErrSyntax),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return KindValueRejected
	case errors.As(err, &typeErr), errors.As(err, &assertErr):
		return KindTypeMismatch
	case errors.As(err, &rtErr):
		return kindOfRuntimeError(rtErr)
	}
	return KindOther
}

func kindOfRuntimeError(err runtime.Error) Kind {
	if _, ok := err.(*runtime.TypeAssertionError); ok {
		return KindTypeMismatch
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "index out of range"),
		strings.Contains(msg, "slice bounds out of range"):
		return KindIndexOutOfRange
	case strings.Contains(msg, "nil pointer dereference"),
		strings.Contains(msg, "invalid memory address"):
		return KindAttributeMissing
	case strings.Contains(msg, "assignment to entry in nil map"):
		return KindKeyMissing
	case strings.Contains(msg, "integer divide by zero"),
		strings.Contains(msg, "integer overflow"),
		strings.Contains(msg, "len out of range"),
		strings.Contains(msg, "cap out of range"):
		return KindNumericOverflow
	case strings.Contains(msg, "interface conversion"):
		return KindTypeMismatch
	}
	return KindRuntime
}
