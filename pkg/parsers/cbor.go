package parsers

import (
	"errors"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/fxamacker/cbor/v2"
)

// cborLimits keeps a fuzz buffer from requesting unbounded nesting or
// allocation.
var cborLimits = cbor.DecOptions{
	MaxNestedLevels:  32,
	MaxArrayElements: 4096,
	MaxMapPairs:      4096,
}

var (
	cborMode cbor.DecMode
	diagMode cbor.DiagMode
)

func init() {
	var err error
	if cborMode, err = cborLimits.DecMode(); err != nil {
		panic(err)
	}
	if diagMode, err = (cbor.DiagOptions{MaxNestedLevels: 32, MaxArrayElements: 4096, MaxMapPairs: 4096}).DiagMode(); err != nil {
		panic(err)
	}
}

// cborRejection reports whether err is one of the decoder's documented
// rejections. Extraneous data and bare io errors are left to the allowlist.
func cborRejection(err error) bool {
	var (
		syntax   *cbor.SyntaxError
		semantic *cbor.SemanticError
		nested   *cbor.MaxNestedLevelError
		elements *cbor.MaxArrayElementsError
		pairs    *cbor.MaxMapPairsError
	)
	return errors.As(err, &syntax) || errors.As(err, &semantic) ||
		errors.As(err, &nested) || errors.As(err, &elements) || errors.As(err, &pairs)
}

func parseCBOR(text string, _ registry.Options) (any, error) {
	var v any
	if err := cborMode.Unmarshal(octets(text), &v); err != nil {
		if cborRejection(err) {
			return nil, fault.Reject("cbor", err)
		}
		return nil, err
	}
	return v, nil
}

func parseCBORDiag(text string, _ registry.Options) (any, error) {
	s, err := diagMode.Diagnose(octets(text))
	if err != nil {
		if cborRejection(err) {
			return nil, fault.Reject("cbor-diag", err)
		}
		return nil, err
	}
	return s, nil
}
