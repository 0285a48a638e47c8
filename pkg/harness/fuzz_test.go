package harness

import (
	"path/filepath"
	"testing"

	"github.com/Beastly713/parsefuzz/pkg/corpus"
	"github.com/Beastly713/parsefuzz/pkg/decoder"
	"github.com/Beastly713/parsefuzz/pkg/parsers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FuzzProcess drives the default collection. Each registered parser is
// seeded with one well-formed document; testdata/fuzz/FuzzProcess holds
// regression inputs.
func FuzzProcess(f *testing.F) {
	h, err := NewDefault()
	if err != nil {
		f.Fatal(err)
	}
	seeds, err := parsers.Seeds()
	if err != nil {
		f.Fatal(err)
	}
	for _, id := range h.Registry().IDs() {
		data, err := decoder.Encode(h.Registry(), id, seeds[id])
		if err != nil {
			f.Fatal(err)
		}
		f.Add(data)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		h.Process(data)
	})
}

// TestSeedsAreAccepted checks that every seed reaches its own parser and
// parses cleanly, so the fuzzer starts from valid documents.
func TestSeedsAreAccepted(t *testing.T) {
	h, err := NewDefault()
	require.NoError(t, err)
	seeds, err := parsers.Seeds()
	require.NoError(t, err)

	for _, id := range h.Registry().IDs() {
		data, err := decoder.Encode(h.Registry(), id, seeds[id])
		require.NoError(t, err, id)

		out, err := h.Evaluate(data)
		require.NoError(t, err)
		assert.Equal(t, id, out.Testcase.ParserID)
		assert.Nil(t, out.Fault, "%s: %v", id, out.Fault)
	}
}

// TestRegressionCorpus replays the checked-in corpus through the same
// loader the CLI uses; none of it may reproduce a defect.
func TestRegressionCorpus(t *testing.T) {
	h, err := NewDefault()
	require.NoError(t, err)

	paths, err := corpus.Walk(filepath.Join("testdata", "fuzz", "FuzzProcess"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		a, err := corpus.Load(path)
		require.NoError(t, err)
		assert.Equal(t, corpus.GoFuzz, a.Format, path)

		out, err := h.Evaluate(a.Data)
		require.NoError(t, err)
		assert.False(t, out.Defect(), "%s: %v", path, out.Fault)
	}
}
