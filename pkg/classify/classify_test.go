package classify

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleScenarios(t *testing.T) {
	rs := Default()

	assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindTypeMismatch, "Unexpected end of input")))
	assert.Equal(t, Defect, rs.Classify(fault.New(fault.KindTypeMismatch, "NullPointerDereferenceXYZ")))
}

func TestUnconditionalKinds(t *testing.T) {
	rs := Default()
	for _, msg := range []string{"", "anything at all", "NullPointerDereferenceXYZ"} {
		assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindMalformedInput, msg)), msg)
	}
}

// TestAllowlistSoundness builds a synthetic fault for every configured entry
// and expects it to be absorbed.
func TestAllowlistSoundness(t *testing.T) {
	rs := Default("mangle-eval")
	for _, rule := range rs.Rules() {
		switch p := rule.Predicate.(type) {
		case Substrings:
			for _, sub := range p {
				f := fault.New(rule.Kind, "prefix "+sub+" suffix")
				assert.Equal(t, Benign, rs.Classify(f), "%s / %q", rule.Kind, sub)
			}
		case ErrorIs:
			f := fault.FromError(fmt.Errorf("decode: %w", p.Target))
			f.Kind = rule.Kind
			assert.Equal(t, Benign, rs.Classify(f), "%s / %v", rule.Kind, p.Target)
		case Pattern:
			// covered by TestPatterns
		default:
			t.Fatalf("unexpected predicate %T", p)
		}
	}
}

func TestPatterns(t *testing.T) {
	rs := Default()
	assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindNumericOverflow, "cbor: 300 overflows uint8")))
	assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindOther, "mangle: evaluation: created fact limit reached")))
	assert.Equal(t, Defect, rs.Classify(fault.New(fault.KindOther, "wrapped mangle: evaluation: limit")))
}

func TestNovelFaultsAreDefects(t *testing.T) {
	rs := Default("mangle-eval")
	for _, rule := range rs.Rules() {
		f := fault.New(rule.Kind, "zzz novel failure zzz")
		assert.Equal(t, Defect, rs.Classify(f), rule.Kind.String())
	}

	for _, k := range []fault.Kind{fault.KindIndexOutOfRange, fault.KindAttributeMissing} {
		f := fault.New(k, "runtime error: index out of range [3] with length 3")
		assert.Equal(t, Defect, rs.Classify(f), k.String())
	}
}

func TestRuntimeFaultGuard(t *testing.T) {
	plain := Default()
	guarded := Default("mangle-eval")

	f := fault.New(fault.KindRuntime, "stuck in mangle-eval fixpoint")
	assert.Equal(t, Defect, plain.Classify(f))
	assert.Equal(t, Benign, guarded.Classify(f))
	assert.Equal(t, Defect, guarded.Classify(fault.New(fault.KindRuntime, "stuck in mangle fixpoint")))
}

func TestErrorIsIgnoresText(t *testing.T) {
	rs := Default()

	f := fault.FromError(fmt.Errorf("gzip body: %w", io.ErrUnexpectedEOF))
	require.Equal(t, fault.KindValueRejected, f.Kind)
	assert.Equal(t, Benign, rs.Classify(f))

	lookalike := fault.New(fault.KindValueRejected, "unexpected EOF")
	assert.Equal(t, Defect, rs.Classify(lookalike), "same text, no structured error")
}

type panicky struct{}

func (panicky) Match(fault.Fault) bool { panic("broken rule") }
func (panicky) String() string         { return "panicky" }

func TestClassifyIsTotal(t *testing.T) {
	rs := NewRuleset(nil, Rule{Kind: fault.KindOther, Predicate: panicky{}})
	assert.NotPanics(t, func() {
		assert.Equal(t, Defect, rs.Classify(fault.New(fault.KindOther, "x")))
	})
}

func TestExtendLeavesBaseUntouched(t *testing.T) {
	base := Default()
	extended := base.Extend([]fault.Kind{fault.KindIndexOutOfRange}, Rule{Kind: fault.KindRuntime, Predicate: Contains("cgo")})

	f := fault.New(fault.KindIndexOutOfRange, "index out of range")
	assert.Equal(t, Defect, base.Classify(f))
	assert.Equal(t, Benign, extended.Classify(f))
	assert.Equal(t, Benign, extended.Classify(fault.New(fault.KindRuntime, "cgo callback")))
	assert.Len(t, extended.Rules(), len(base.Rules())+1)
}

func TestLoad(t *testing.T) {
	doc := `
unconditional: [attribute-missing]
rules:
  - kind: type-mismatch
    contains: ["NullPointer"]
  - kind: runtime-fault
    pattern: ["^goroutine \\d+ stuck$"]
`
	rs, err := Load(strings.NewReader(doc), Default())
	require.NoError(t, err)

	assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindTypeMismatch, "NullPointerDereferenceXYZ")))
	assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindAttributeMissing, "nil pointer")))
	assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindRuntime, "goroutine 7 stuck")))
	assert.Equal(t, Benign, rs.Classify(fault.New(fault.KindTypeMismatch, "Unexpected token")), "defaults kept")
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"unknown kind":      "rules:\n  - kind: segfault\n    contains: [x]\n",
		"empty rule":        "rules:\n  - kind: other\n",
		"bad pattern":       "rules:\n  - kind: other\n    pattern: ['(']\n",
		"unknown field":     "allow: [x]\n",
		"bad unconditional": "unconditional: [nope]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc), nil)
			assert.Error(t, err)
		})
	}

	rs, err := Load(strings.NewReader(""), Default())
	require.NoError(t, err)
	assert.NotNil(t, rs)
}

// FuzzClassify checks totality over arbitrary faults.
func FuzzClassify(f *testing.F) {
	f.Add(0, "")
	f.Add(int(fault.KindTypeMismatch), "Unexpected end of input")
	f.Add(-3, "\xff")
	f.Add(99, "mangle-eval")

	rs := Default("mangle-eval")
	f.Fuzz(func(t *testing.T, kind int, msg string) {
		flt := fault.New(fault.Kind(kind), msg)
		flt.Err = errors.New(msg)
		v := rs.Classify(flt)
		if v != Benign && v != Defect {
			t.Fatalf("verdict %d out of range", v)
		}
		if v != rs.Classify(flt) {
			t.Fatal("classification is not deterministic")
		}
	})
}
