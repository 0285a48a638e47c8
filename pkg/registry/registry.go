package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/fault"
)

var (
	// ErrSealed is returned when exclusions are applied a second time.
	ErrSealed = errors.New("registry: exclusions already applied")

	// ErrEmpty is returned when exclusion would leave nothing to fuzz.
	ErrEmpty = errors.New("registry: no parsers left after exclusion")
)

// Options are passed through to every parse function.
type Options struct {
	// Quiet asks the parser not to print its own diagnostics.
	Quiet bool
}

// ParseFunc parses text and returns whatever the parser produces.
type ParseFunc func(text string, opts Options) (any, error)

// Parser pairs an identifier with its parse function.
type Parser struct {
	ID    string
	Parse ParseFunc
}

// Exclusion records a parser removed from fuzzing and why.
type Exclusion struct {
	ID     string
	Reason string
}

// Registry is the ordered set of parsers eligible for fuzzing.
// It is built once at startup and is immutable after ExcludeUnsafe.
type Registry struct {
	parsers  []Parser
	index    map[string]int
	excluded map[string]string
	sealed   bool
}

// New builds a registry from parsers in the given order.
func New(parsers ...Parser) (*Registry, error) {
	r := &Registry{
		parsers:  make([]Parser, 0, len(parsers)),
		index:    make(map[string]int, len(parsers)),
		excluded: make(map[string]string),
	}
	for _, p := range parsers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, errors.New("registry: parser with empty id")
		}
		if p.Parse == nil {
			return nil, fmt.Errorf("registry: parser %q has no parse function", id)
		}
		if _, dup := r.index[id]; dup {
			return nil, fmt.Errorf("registry: duplicate parser %q", id)
		}
		p.ID = id
		r.index[id] = len(r.parsers)
		r.parsers = append(r.parsers, p)
	}
	return r, nil
}

// ExcludeUnsafe permanently removes parsers that hang or otherwise cannot be
// fuzzed. Every exclusion needs a reason. It may be called once; the
// remaining set must not be empty.
func (r *Registry) ExcludeUnsafe(reasons map[string]string) error {
	if r.sealed {
		return ErrSealed
	}
	for id, reason := range reasons {
		if _, ok := r.index[id]; !ok {
			return fmt.Errorf("registry: cannot exclude unknown parser %q", id)
		}
		if strings.TrimSpace(reason) == "" {
			return fmt.Errorf("registry: exclusion of %q needs a reason", id)
		}
	}

	kept := make([]Parser, 0, len(r.parsers))
	for _, p := range r.parsers {
		if _, drop := reasons[p.ID]; !drop {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ErrEmpty
	}

	for id, reason := range reasons {
		r.excluded[id] = reason
	}
	r.parsers = kept
	r.index = make(map[string]int, len(kept))
	for i, p := range kept {
		r.index[p.ID] = i
	}
	r.sealed = true
	return nil
}

// Sealed reports whether exclusions have been applied.
func (r *Registry) Sealed() bool { return r.sealed }

// Len returns the number of selectable parsers.
func (r *Registry) Len() int { return len(r.parsers) }

// At returns the i-th selectable parser.
func (r *Registry) At(i int) Parser { return r.parsers[i] }

// IDs returns the selectable identifiers in registry order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		ids[i] = p.ID
	}
	return ids
}

// Lookup finds a selectable parser by identifier.
func (r *Registry) Lookup(id string) (Parser, bool) {
	i, ok := r.index[id]
	if !ok {
		return Parser{}, false
	}
	return r.parsers[i], true
}

// IndexOf returns the position of id, or -1.
func (r *Registry) IndexOf(id string) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// Excluded lists removed parsers sorted by identifier.
func (r *Registry) Excluded() []Exclusion {
	out := make([]Exclusion, 0, len(r.excluded))
	for id, reason := range r.excluded {
		out = append(out, Exclusion{ID: id, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExcludedIDs returns the identifiers of removed parsers, sorted.
func (r *Registry) ExcludedIDs() []string {
	ex := r.Excluded()
	ids := make([]string, len(ex))
	for i, e := range ex {
		ids[i] = e.ID
	}
	return ids
}

// Parse is the outbound parse contract: it runs the parser named id.
// Unknown and excluded identifiers yield fault.ErrLibraryUnavailable.
func (r *Registry) Parse(id, text string, opts Options) (any, error) {
	p, ok := r.Lookup(id)
	if !ok {
		if reason, excluded := r.excluded[id]; excluded {
			return nil, fmt.Errorf("%w: %s excluded (%s)", fault.ErrLibraryUnavailable, id, reason)
		}
		return nil, fmt.Errorf("%w: %s", fault.ErrLibraryUnavailable, id)
	}
	return p.Parse(text, opts)
}
