// Package classify separates expected parser rejections from defects.
//
// A fault is benign when its kind is unconditionally benign, or when one of
// the predicates registered for its kind matches. Everything else is a
// defect and must reach the fuzzing engine as a crash. The rule table is an
// allowlist of faults that were already triaged; it is expected to grow as
// new benign causes turn up, and anything not on it is treated as new.
package classify

import (
	"github.com/Beastly713/parsefuzz/pkg/fault"
)

// Verdict is the outcome of classifying a fault. The zero value is Defect.
type Verdict int

const (
	Defect Verdict = iota
	Benign
)

func (v Verdict) String() string {
	if v == Benign {
		return "benign"
	}
	return "defect"
}

// Rule allowlists faults of Kind that satisfy Predicate.
type Rule struct {
	Kind      fault.Kind
	Predicate Predicate
}

// Ruleset is an immutable allowlist.
type Ruleset struct {
	unconditional map[fault.Kind]struct{}
	rules         map[fault.Kind][]Predicate
	order         []Rule
}

// NewRuleset builds a ruleset. Kinds in unconditional are benign regardless
// of the message.
func NewRuleset(unconditional []fault.Kind, rules ...Rule) *Ruleset {
	rs := &Ruleset{
		unconditional: make(map[fault.Kind]struct{}, len(unconditional)),
		rules:         make(map[fault.Kind][]Predicate),
	}
	for _, k := range unconditional {
		rs.unconditional[k] = struct{}{}
	}
	for _, r := range rules {
		if r.Predicate == nil {
			continue
		}
		rs.rules[r.Kind] = append(rs.rules[r.Kind], r.Predicate)
		rs.order = append(rs.order, r)
	}
	return rs
}

// Extend returns a new ruleset with the extra entries added. rs is unchanged.
func (rs *Ruleset) Extend(unconditional []fault.Kind, rules ...Rule) *Ruleset {
	return NewRuleset(append(rs.Unconditional(), unconditional...), append(rs.Rules(), rules...)...)
}

// Unconditional returns the unconditionally benign kinds in kind order.
func (rs *Ruleset) Unconditional() []fault.Kind {
	var out []fault.Kind
	for _, k := range fault.Kinds() {
		if _, ok := rs.unconditional[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Rules returns the predicate rules in insertion order.
func (rs *Ruleset) Rules() []Rule {
	return append([]Rule(nil), rs.order...)
}

// Classify decides the verdict for f. It is a pure function of f and the
// ruleset and never panics: a predicate that panics counts as no match.
func (rs *Ruleset) Classify(f fault.Fault) Verdict {
	if _, ok := rs.unconditional[f.Kind]; ok {
		return Benign
	}
	for _, p := range rs.rules[f.Kind] {
		if safeMatch(p, f) {
			return Benign
		}
	}
	return Defect
}

func safeMatch(p Predicate, f fault.Fault) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return p.Match(f)
}
