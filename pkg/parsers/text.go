package parsers

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/Beastly713/parsefuzz/pkg/report"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func parseJSON(text string, _ registry.Options) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		var serr *json.SyntaxError
		if errors.As(err, &serr) {
			return nil, fault.Reject("json", err)
		}
		return nil, err
	}
	return v, nil
}

func parseCSV(text string, _ registry.Options) (any, error) {
	r := csv.NewReader(strings.NewReader(text))
	records, err := r.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, fault.Reject("csv", err)
		}
		return nil, err
	}
	return records, nil
}

// parseXML walks every token of a document and returns the element count.
func parseXML(text string, _ registry.Options) (any, error) {
	d := xml.NewDecoder(strings.NewReader(text))
	elements := 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return elements, nil
		}
		if err != nil {
			var serr *xml.SyntaxError
			if errors.As(err, &serr) {
				return nil, fault.Reject("xml", err)
			}
			return nil, err
		}
		if _, ok := tok.(xml.StartElement); ok {
			elements++
		}
	}
}

func parseTOML(text string, _ registry.Options) (any, error) {
	v := make(map[string]any)
	if _, err := toml.Decode(text, &v); err != nil {
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return nil, fault.Reject("toml", err)
		}
		return nil, err
	}
	return v, nil
}

// yamlRejections are the scanner and parser failures yaml.v3 reports as
// plain errors. A problem found past the first line carries a line prefix.
var yamlRejections = []string{
	"yaml: line ",
	"yaml: found ",
	"yaml: did not find ",
	"yaml: could not find ",
	"yaml: mapping values are not allowed",
	"yaml: block sequence entries are not allowed",
	"yaml: control characters are not allowed",
	"yaml: invalid ",
	"yaml: incomplete UTF-8",
	"yaml: unknown anchor",
	"yaml: anchor ",
	"yaml: document contains excessive aliasing",
	"yaml: map merge requires",
}

func parseYAML(text string, _ registry.Options) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		var terr *yaml.TypeError
		if errors.As(err, &terr) || hasPrefix(err, yamlRejections) {
			return nil, fault.Reject("yaml", err)
		}
		return nil, err
	}
	return v, nil
}

// parseReport reads a crash report. Every error it returns is a rejection.
func parseReport(text string, _ registry.Options) (any, error) {
	r, err := report.NewReader(strings.NewReader(text))
	if err != nil {
		return nil, fault.Reject("report", err)
	}
	if _, err := r.ReadInput(); err != nil {
		return nil, fault.Reject("report", err)
	}
	return r.Header, nil
}
