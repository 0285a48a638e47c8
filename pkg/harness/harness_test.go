package harness

import (
	"errors"
	"runtime/debug"
	"testing"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/decoder"
	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/invoker"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type crash struct{ reason string }

func crashParser(text string) {
	panic(&crash{reason: text})
}

var errNovel = errors.New("NullPointerDereferenceXYZ")

func stubRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(
		registry.Parser{ID: "csv", Parse: func(text string, _ registry.Options) (any, error) {
			return [][]string{{text}}, nil
		}},
		registry.Parser{ID: "hang", Parse: func(string, registry.Options) (any, error) {
			select {}
		}},
		registry.Parser{ID: "json", Parse: func(text string, _ registry.Options) (any, error) {
			switch text {
			case "{":
				return nil, fault.Reject("json", errors.New("unexpected end of JSON input"))
			case "eof":
				return nil, errors.New("Unexpected end of input")
			case "novel":
				return nil, errNovel
			case "crash":
				crashParser(text)
			}
			return map[string]any{}, nil
		}},
	)
	require.NoError(t, err)
	require.NoError(t, reg.ExcludeUnsafe(map[string]string{"hang": "never returns"}))
	return reg
}

func TestEmptyTextSelectsFirstParser(t *testing.T) {
	h, err := New(stubRegistry(t))
	require.NoError(t, err)

	out, err := h.Evaluate([]byte{0x00})
	require.NoError(t, err)
	assert.Equal(t, "csv", out.Testcase.ParserID)
	assert.Equal(t, "", out.Testcase.Text)
	assert.Nil(t, out.Fault)
	assert.Equal(t, Accepted, h.Process([]byte{0x00}))
}

func TestExcludedSlotResolvesToNext(t *testing.T) {
	h, err := New(stubRegistry(t))
	require.NoError(t, err)

	out, err := h.Evaluate([]byte{0x01, '{'})
	require.NoError(t, err)
	assert.Equal(t, "json", out.Testcase.ParserID)
	require.NotNil(t, out.Fault)
	assert.Equal(t, fault.KindMalformedInput, out.Fault.Kind)
	assert.Equal(t, classify.Benign, out.Verdict)
	assert.Equal(t, Rejected, h.Process([]byte{0x01, '{'}))
}

func TestAllowlistedFaultIsRejected(t *testing.T) {
	rules := classify.NewRuleset(nil, classify.Rule{Kind: fault.KindOther, Predicate: classify.Contains("Unexpected")})
	h, err := New(stubRegistry(t), WithRules(rules))
	require.NoError(t, err)

	assert.Equal(t, Rejected, h.Process([]byte("\x01eof")))
	assert.Same(t, rules, h.Rules())
}

func TestDefectsRaiseOriginalValue(t *testing.T) {
	h, err := New(stubRegistry(t))
	require.NoError(t, err)

	assert.PanicsWithValue(t, errNovel, func() { h.Process([]byte("\x01novel")) })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		c, ok := r.(*crash)
		require.True(t, ok, "panic value was transformed: %T", r)
		assert.Equal(t, "crash", c.reason)
	}()
	h.Process([]byte("\x01crash"))
}

func TestDefectKeepsParserFrames(t *testing.T) {
	h, err := New(stubRegistry(t))
	require.NoError(t, err)

	var stack string
	func() {
		defer func() {
			require.NotNil(t, recover())
			stack = string(debug.Stack())
		}()
		h.Process([]byte("\x01crash"))
	}()
	assert.Contains(t, stack, "harness.crashParser")
	assert.NotContains(t, stack, "fault.Fault.Raise")
}

func TestEvaluateDoesNotRaise(t *testing.T) {
	h, err := New(stubRegistry(t))
	require.NoError(t, err)

	out, err := h.Evaluate([]byte("\x01crash"))
	require.NoError(t, err)
	assert.True(t, out.Defect())
	assert.True(t, out.Fault.Panicked)
	assert.NotEmpty(t, out.Fault.Stack)
}

func TestNewRejectsEmptyRegistry(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestOptions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	inv := invoker.New(invoker.WithoutSilence())
	h, err := New(stubRegistry(t),
		WithLogger(zap.New(core)),
		WithTextMode(decoder.Mixed),
		WithInvoker(inv),
	)
	require.NoError(t, err)

	// 0x00 selects csv, the next 0x00 selects ASCII.
	tc, err := h.Decode([]byte{0x00, 0x00, 'a' | 0x80, 'b'})
	require.NoError(t, err)
	assert.Equal(t, "ab", tc.Text)

	assert.Equal(t, Rejected, h.Process([]byte{0x01, 0x00, '{'}))
	entries := logs.FilterMessage("benign fault").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "json", entries[0].ContextMap()["parser"])
}

func TestNewDefault(t *testing.T) {
	h, err := NewDefault()
	require.NoError(t, err)
	assert.Equal(t, -1, h.Registry().IndexOf("mangle-eval"))
}
