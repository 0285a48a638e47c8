package classify

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of an allowlist extension.
type ruleFile struct {
	Unconditional []string `yaml:"unconditional"`
	Rules         []struct {
		Kind     string   `yaml:"kind"`
		Contains []string `yaml:"contains"`
		Pattern  []string `yaml:"pattern"`
	} `yaml:"rules"`
}

// Load reads YAML rules from r and returns base extended with them.
// An empty document returns base unchanged.
func Load(r io.Reader, base *Ruleset) (*Ruleset, error) {
	var rf ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	var unconditional []fault.Kind
	for _, name := range rf.Unconditional {
		k, err := fault.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("unconditional: %w", err)
		}
		unconditional = append(unconditional, k)
	}

	var rules []Rule
	for i, entry := range rf.Rules {
		k, err := fault.ParseKind(entry.Kind)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if len(entry.Contains) == 0 && len(entry.Pattern) == 0 {
			return nil, fmt.Errorf("rule %d (%s): needs contains or pattern", i, k)
		}
		if len(entry.Contains) > 0 {
			rules = append(rules, Rule{Kind: k, Predicate: Contains(entry.Contains...)})
		}
		for _, expr := range entry.Pattern {
			p, err := Regexp(expr)
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): %w", i, k, err)
			}
			rules = append(rules, Rule{Kind: k, Predicate: p})
		}
	}

	if base == nil {
		return NewRuleset(unconditional, rules...), nil
	}
	return base.Extend(unconditional, rules...), nil
}

// LoadFile is Load for a path.
func LoadFile(path string, base *Ruleset) (*Ruleset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return Load(f, base)
}
