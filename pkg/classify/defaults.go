package classify

import (
	"io"

	"github.com/Beastly713/parsefuzz/pkg/fault"
)

// defaultRules is the triaged allowlist for the parsers in pkg/parsers.
// index-out-of-range and attribute-missing are deliberately absent: in Go
// those are memory-safety bugs and always surface.
var defaultRules = []Rule{
	{fault.KindTypeMismatch, Contains("Unexpected", "cannot unmarshal", "unexpected type", "Unknown")},

	{fault.KindNumericOverflow, Contains("too big", "value out of range", "too large")},
	{fault.KindNumericOverflow, MustRegexp(`overflows u?int(8|16|32|64)?\b`)},

	// xml, cbor, msgpack and gzip hand back bare io errors for empty or
	// truncated input.
	{fault.KindValueRejected, ErrorIs{Target: io.ErrUnexpectedEOF}},
	{fault.KindValueRejected, ErrorIs{Target: io.EOF}},
	{fault.KindValueRejected, Contains("invalid syntax", "Invalid", "Missing", "Unterminated", "Malformed", "trailing")},

	{fault.KindKeyMissing, Contains("duplicate key", "key not found")},

	{fault.KindOther, Contains("Unexpected", "Unterminated", "Malformed", "Invalid", "Missing", "extraneous data", "exceeded max")},
	{fault.KindOther, MustRegexp(`^mangle: evaluation: .*(limit|exceeded)`)},
}

// Default returns the allowlist for the default parser collection.
// excluded names parsers removed from the registry for not terminating; a
// runtime fault naming one of them was reached through another path and is
// not a new defect.
func Default(excluded ...string) *Ruleset {
	rules := append([]Rule(nil), defaultRules...)
	if len(excluded) > 0 {
		rules = append(rules, Rule{fault.KindRuntime, Contains(excluded...)})
	}
	return NewRuleset([]fault.Kind{fault.KindMalformedInput}, rules...)
}
