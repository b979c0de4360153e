package toolchain

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// Report is a parsed synthesis report. Found is false when the build did
// not produce one, e.g. emulation and library builds.
type Report struct {
	Path  string
	Found bool
	Data  map[string]any
}

// Entry is one flattened report value.
type Entry struct {
	Key   string
	Value string
}

// Entries flattens nested report sections into dotted keys, sorted.
func (r *Report) Entries() []Entry {
	var out []Entry
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch val := v.(type) {
		case map[string]any:
			for k, child := range val {
				key := k
				if prefix != "" {
					key = prefix + "." + k
				}
				walk(key, child)
			}
		default:
			out = append(out, Entry{Key: prefix, Value: fmt.Sprint(val)})
		}
	}
	walk("", r.Data)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ReportParser reads the report of a finished build.
type ReportParser interface {
	Parse(outDir, project string) (*Report, error)
}

// JSONReportParser reads the JSON resource summary written by the oneAPI
// report build.
type JSONReportParser struct {
	fs afero.Fs
}

// NewJSONReportParser creates a parser reading from fs.
func NewJSONReportParser(fs afero.Fs) *JSONReportParser {
	return &JSONReportParser{fs: fs}
}

// ReportPath is where the report build leaves its resource summary.
func ReportPath(outDir, project string) string {
	return filepath.Join(outDir, "build", project+".report.prj", "reports", "resources", "json", "summary.json")
}

// Parse implements ReportParser.
func (p *JSONReportParser) Parse(outDir, project string) (*Report, error) {
	path := ReportPath(outDir, project)
	exists, err := afero.Exists(p.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat report %s", path)
	}
	if !exists {
		return &Report{Path: path}, nil
	}
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read report %s", path)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse report %s", path)
	}
	return &Report{Path: path, Found: true, Data: doc}, nil
}
