// Package corpus loads crash artifacts left behind by fuzzing engines.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/report"
)

// goFuzzHeader opens every file in a Go native fuzzing corpus.
const goFuzzHeader = "go test fuzz v1"

// Format identifies how an artifact stores its buffer.
type Format int

const (
	Raw Format = iota
	GoFuzz
	Report
)

func (f Format) String() string {
	switch f {
	case GoFuzz:
		return "go-fuzz-v1"
	case Report:
		return "report"
	}
	return "raw"
}

// Artifact is one loaded fuzz buffer.
type Artifact struct {
	Path   string
	Format Format
	Data   []byte
	// Header is set for crash reports.
	Header *report.Header
}

// Load reads path and extracts the fuzz buffer it holds.
func Load(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	a, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.Path = path
	return a, nil
}

// Decode extracts the fuzz buffer from artifact contents. Anything that is
// neither a Go corpus file nor a crash report is taken as raw bytes.
func Decode(b []byte) (*Artifact, error) {
	switch {
	case bytes.HasPrefix(b, []byte(goFuzzHeader+"\n")):
		data, err := decodeGoFuzz(b)
		if err != nil {
			return nil, err
		}
		return &Artifact{Format: GoFuzz, Data: data}, nil
	case report.Sniff(b):
		r, err := report.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		data, err := r.ReadInput()
		if err != nil {
			return nil, err
		}
		return &Artifact{Format: Report, Data: data, Header: r.Header}, nil
	}
	return &Artifact{Format: Raw, Data: b}, nil
}

// decodeGoFuzz reads a corpus file holding a single []byte or string value.
func decodeGoFuzz(b []byte) ([]byte, error) {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")[1:]
	var values []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values = append(values, line)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("go fuzz corpus file has %d values, want 1", len(values))
	}

	v := values[0]
	var lit string
	switch {
	case strings.HasPrefix(v, "[]byte(") && strings.HasSuffix(v, ")"):
		lit = v[len("[]byte(") : len(v)-1]
	case strings.HasPrefix(v, "string(") && strings.HasSuffix(v, ")"):
		lit = v[len("string(") : len(v)-1]
	default:
		return nil, fmt.Errorf("unsupported go fuzz value %q", v)
	}
	s, err := strconv.Unquote(lit)
	if err != nil {
		return nil, fmt.Errorf("unquote go fuzz value: %w", err)
	}
	return []byte(s), nil
}

// Walk returns the regular, non-hidden files under root, sorted. A file
// path is returned as is.
func Walk(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ErrNoArtifacts is returned by Collect when nothing was found.
var ErrNoArtifacts = errors.New("no artifacts found")

// Collect walks each root and concatenates the results.
func Collect(roots ...string) ([]string, error) {
	var all []string
	for _, root := range roots {
		paths, err := Walk(root)
		if err != nil {
			return nil, err
		}
		all = append(all, paths...)
	}
	if len(all) == 0 {
		return nil, ErrNoArtifacts
	}
	return all, nil
}
