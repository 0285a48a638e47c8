// Package invoker runs one testcase against the parse contract with the
// process output silenced, turning returned errors and panics into faults.
package invoker

import (
	"runtime/debug"

	"github.com/Beastly713/parsefuzz/pkg/decoder"
	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"go.uber.org/zap"
)

// Caller is the outbound parse contract. *registry.Registry implements it.
type Caller interface {
	Parse(id, text string, opts registry.Options) (any, error)
}

// Invoker calls parsers in isolation.
type Invoker struct {
	silence bool
	quiet   bool
	logger  *zap.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithoutSilence leaves the process output streams alone, so a replay can
// show what the parser printed.
func WithoutSilence() Option {
	return func(inv *Invoker) { inv.silence = false }
}

// WithQuiet sets the quiet flag passed to parsers. It defaults to true.
func WithQuiet(quiet bool) Option {
	return func(inv *Invoker) { inv.quiet = quiet }
}

// WithLogger sets the logger used for harness-side problems.
func WithLogger(l *zap.Logger) Option {
	return func(inv *Invoker) {
		if l != nil {
			inv.logger = l
		}
	}
}

// New returns an invoker that silences output and asks parsers to be quiet.
func New(opts ...Option) *Invoker {
	inv := &Invoker{silence: true, quiet: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs tc through c. A fault is returned, never propagated; the
// output streams are restored on every exit path.
func (inv *Invoker) Invoke(c Caller, tc decoder.Testcase) (any, *fault.Fault) {
	return inv.invoke(c, tc, nil)
}

// InvokeOrRaise is Invoke for a fuzzing entry point. A fault for which
// defect returns true propagates with its original value. A panic is
// re-raised from the recovering frame, so the goroutine trace still runs
// through the parser that panicked.
func (inv *Invoker) InvokeOrRaise(c Caller, tc decoder.Testcase, defect func(fault.Fault) bool) (any, *fault.Fault) {
	res, flt := inv.invoke(c, tc, defect)
	if flt != nil && !flt.Panicked && defect != nil && defect(*flt) {
		flt.Raise()
	}
	return res, flt
}

func (inv *Invoker) invoke(c Caller, tc decoder.Testcase, defect func(fault.Fault) bool) (result any, flt *fault.Fault) {
	if inv.silence {
		g, err := Silence()
		if err != nil {
			inv.logger.Warn("running parser without output suppression", zap.Error(err))
		} else {
			defer g.Release()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			f := fault.FromPanic(r, debug.Stack())
			if defect != nil && defect(f) {
				panic(r)
			}
			result, flt = nil, &f
		}
	}()

	res, err := c.Parse(tc.ParserID, tc.Text, registry.Options{Quiet: inv.quiet})
	if err != nil {
		f := fault.FromError(err)
		return nil, &f
	}
	return res, nil
}
