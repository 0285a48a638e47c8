package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/fault"
)

// Predicate decides whether a fault matches an allowlist entry.
type Predicate interface {
	Match(f fault.Fault) bool
	String() string
}

// Substrings matches when the message contains any of the strings.
type Substrings []string

// Contains is the default predicate: plain substring containment.
func Contains(subs ...string) Substrings { return Substrings(subs) }

func (s Substrings) Match(f fault.Fault) bool {
	for _, sub := range s {
		if sub != "" && strings.Contains(f.Message, sub) {
			return true
		}
	}
	return false
}

func (s Substrings) String() string {
	return fmt.Sprintf("contains%q", []string(s))
}

// Pattern matches the message against a regular expression.
type Pattern struct {
	re *regexp.Regexp
}

// Regexp compiles expr into a predicate.
func Regexp(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

// MustRegexp is Regexp for static rule tables.
func MustRegexp(expr string) Pattern {
	p, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Match(f fault.Fault) bool {
	return p.re != nil && p.re.MatchString(f.Message)
}

func (p Pattern) String() string {
	if p.re == nil {
		return "pattern()"
	}
	return "pattern(" + p.re.String() + ")"
}

// ErrorIs matches structured errors by identity rather than by text.
type ErrorIs struct {
	Target error
}

func (e ErrorIs) Match(f fault.Fault) bool {
	return f.Err != nil && errors.Is(f.Err, e.Target)
}

func (e ErrorIs) String() string {
	return fmt.Sprintf("is(%v)", e.Target)
}
