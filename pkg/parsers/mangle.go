package parsers

import (
	"fmt"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/google/mangle/analysis"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// createdFactLimit stops evaluation of programs that derive facts without
// bound.
const createdFactLimit = 10000

// Datalog holds the outcome of evaluating a Mangle program.
type Datalog struct {
	Decls   int
	Clauses int
}

func parseMangle(text string, _ registry.Options) (any, error) {
	return evalMangle(text, true)
}

func parseMangleUnbounded(text string, _ registry.Options) (any, error) {
	return evalMangle(text, false)
}

// evalMangle parses, analyses and evaluates a program. Syntax and analysis
// failures are rejections; evaluation errors are returned as is.
func evalMangle(text string, bounded bool) (*Datalog, error) {
	unit, err := parse.Unit(strings.NewReader(text))
	if err != nil {
		return nil, fault.Reject("mangle", err)
	}

	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fault.Reject("mangle", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	if bounded {
		_, err = engine.EvalProgramWithStats(info, store, engine.WithCreatedFactLimit(createdFactLimit))
	} else {
		_, err = engine.EvalProgramWithStats(info, store)
	}
	if err != nil {
		return nil, fmt.Errorf("mangle: evaluation: %w", err)
	}
	return &Datalog{Decls: len(unit.Decls), Clauses: len(unit.Clauses)}, nil
}
