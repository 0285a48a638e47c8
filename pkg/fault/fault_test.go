package fault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime/debug"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(fn func()) (f Fault) {
	defer func() {
		if r := recover(); r != nil {
			f = FromPanic(r, debug.Stack())
		}
	}()
	fn()
	return Fault{}
}

func TestKindNamesRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("segfault")
	assert.Error(t, err)
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestKindOfError(t *testing.T) {
	_, rangeErr := strconv.ParseInt("99999999999999999999", 10, 64)
	_, syntaxErr := strconv.Atoi("x")
	var typeErr error = &json.UnmarshalTypeError{Value: "string", Type: reflect.TypeOf(0)}

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"rejection", Reject("json", errors.New("bad")), KindMalformedInput},
		{"wrapped rejection", fmt.Errorf("outer: %w", Reject("csv", io.EOF)), KindMalformedInput},
		{"unavailable", fmt.Errorf("lookup: %w", ErrLibraryUnavailable), KindMalformedInput},
		{"range", rangeErr, KindNumericOverflow},
		{"syntax", syntaxErr, KindValueRejected},
		{"unexpected eof", io.ErrUnexpectedEOF, KindValueRejected},
		{"type", typeErr, KindTypeMismatch},
		{"plain", errors.New("boom"), KindOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOfError(tc.err))
		})
	}
}

func TestFromPanicRuntimeErrors(t *testing.T) {
	var (
		nilMap map[string]int
		nilPtr *struct{ X int }
		empty  []int
		iface  any = "text"
		zero       = 0
	)

	cases := []struct {
		name string
		fn   func()
		want Kind
	}{
		{"index", func() { _ = empty[len(empty)+zero] }, KindIndexOutOfRange},
		{"slice", func() { _ = empty[:zero+1] }, KindIndexOutOfRange},
		{"nil pointer", func() { _ = nilPtr.X }, KindAttributeMissing},
		{"nil map", func() { nilMap["k"] = 1 }, KindKeyMissing},
		{"divide", func() { _ = 1 / zero }, KindNumericOverflow},
		{"assertion", func() { _ = iface.(int) }, KindTypeMismatch},
		{"makeslice", func() { _ = make([]byte, zero-1) }, KindNumericOverflow},
		{"string", func() { panic("invariant broken") }, KindOther},
		{"error", func() { panic(io.ErrUnexpectedEOF) }, KindValueRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := capture(tc.fn)
			require.True(t, f.Panicked)
			assert.Equal(t, tc.want, f.Kind, f.Message)
			assert.NotEmpty(t, f.Message)
			assert.NotEmpty(t, f.Stack)
		})
	}
}

func TestRaisePreservesOriginalValue(t *testing.T) {
	orig := errors.New("original")
	assert.PanicsWithError(t, "original", func() { FromError(orig).Raise() })

	f := capture(func() { panic("raw value") })
	assert.PanicsWithValue(t, "raw value", f.Raise)
}
