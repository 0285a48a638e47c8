// Package harness wires the fuzz pipeline together: decode the buffer,
// invoke the selected parser in isolation, classify any fault.
package harness

import (
	"errors"
	"fmt"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/decoder"
	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/invoker"
	"github.com/Beastly713/parsefuzz/pkg/parsers"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"go.uber.org/zap"
)

// ErrEmptyRegistry is a fatal configuration error: nothing can be fuzzed.
var ErrEmptyRegistry = errors.New("harness: registry has no parsers")

// Signal is what Process reports back to the fuzzing engine. Both values
// mean "continue"; a defect never returns.
type Signal int

const (
	// Accepted means the parser returned without a fault.
	Accepted Signal = iota
	// Rejected means the parser faulted in a known, benign way.
	Rejected
)

func (s Signal) String() string {
	if s == Rejected {
		return "rejected"
	}
	return "accepted"
}

// Outcome is the full record of one iteration.
type Outcome struct {
	Testcase decoder.Testcase
	Result   any
	Fault    *fault.Fault
	Verdict  classify.Verdict
}

// Defect reports whether the outcome must surface as a crash.
func (o Outcome) Defect() bool {
	return o.Fault != nil && o.Verdict == classify.Defect
}

// Signal maps a non-defect outcome to its engine signal.
func (o Outcome) Signal() Signal {
	if o.Fault != nil {
		return Rejected
	}
	return Accepted
}

// Harness runs the pipeline for one buffer at a time.
type Harness struct {
	reg    *registry.Registry
	dec    *decoder.Decoder
	inv    *invoker.Invoker
	rules  *classify.Ruleset
	logger *zap.Logger
	mode   decoder.TextMode
}

// Option configures a Harness.
type Option func(*Harness)

// WithRules replaces the default allowlist.
func WithRules(rs *classify.Ruleset) Option {
	return func(h *Harness) { h.rules = rs }
}

// WithLogger sets the logger. Benign faults are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTextMode selects how input text is decoded.
func WithTextMode(m decoder.TextMode) Option {
	return func(h *Harness) { h.mode = m }
}

// WithInvoker replaces the default isolated invoker.
func WithInvoker(inv *invoker.Invoker) Option {
	return func(h *Harness) { h.inv = inv }
}

// New builds a harness over reg. Unless overridden, the ruleset is
// classify.Default guarded by the registry's exclusions.
func New(reg *registry.Registry, opts ...Option) (*Harness, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, ErrEmptyRegistry
	}
	h := &Harness{reg: reg, logger: zap.NewNop(), mode: decoder.UTF8}
	for _, opt := range opts {
		opt(h)
	}
	if h.rules == nil {
		h.rules = classify.Default(reg.ExcludedIDs()...)
	}
	if h.inv == nil {
		h.inv = invoker.New(invoker.WithLogger(h.logger))
	}
	h.dec = decoder.New(reg, h.mode)
	return h, nil
}

// NewDefault builds a harness over the default parser collection.
func NewDefault(opts ...Option) (*Harness, error) {
	reg, err := parsers.NewRegistry()
	if err != nil {
		return nil, err
	}
	return New(reg, opts...)
}

// Registry returns the registry the harness selects from.
func (h *Harness) Registry() *registry.Registry { return h.reg }

// Rules returns the allowlist in use.
func (h *Harness) Rules() *classify.Ruleset { return h.rules }

// Decode exposes the decoder, for replay tooling.
func (h *Harness) Decode(data []byte) (decoder.Testcase, error) {
	tc, err := h.dec.Decode(data)
	if err != nil {
		return tc, fmt.Errorf("decode: %w", err)
	}
	return tc, nil
}

// Evaluate runs one iteration and reports what happened without raising.
func (h *Harness) Evaluate(data []byte) (Outcome, error) {
	return h.run(data, nil)
}

func (h *Harness) run(data []byte, defect func(fault.Fault) bool) (Outcome, error) {
	tc, err := h.Decode(data)
	if err != nil {
		return Outcome{}, err
	}

	res, flt := h.inv.InvokeOrRaise(h.reg, tc, defect)
	out := Outcome{Testcase: tc, Result: res, Fault: flt}
	if flt == nil {
		return out, nil
	}

	out.Verdict = h.rules.Classify(*flt)
	if out.Verdict == classify.Benign {
		h.logger.Debug("benign fault",
			zap.String("parser", tc.ParserID),
			zap.Stringer("kind", flt.Kind),
			zap.String("message", flt.Message))
	}
	return out, nil
}

// Process is the entry point for the fuzzing engine. A defect is re-raised
// with its original value, from the frame that recovered it, so the engine
// records the crash with the parser's stack.
func (h *Harness) Process(data []byte) Signal {
	out, err := h.run(data, h.isDefect)
	if err != nil {
		// The registry was checked in New; this cannot be fuzz input.
		panic(err)
	}
	return out.Signal()
}

func (h *Harness) isDefect(f fault.Fault) bool {
	return h.rules.Classify(f) == classify.Defect
}
