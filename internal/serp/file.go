package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileSource serves previously captured results from a JSON or YAML file
// mapping keyword -> list of {rank, url, title}.
type FileSource struct {
	path    string
	results map[string][]Result
}

// LoadFileSource reads a fixture file. The format follows the extension
// (.json, .yaml, .yml).
func LoadFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}

	results := make(map[string][]Result)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &results)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &results)
	default:
		return nil, fmt.Errorf("unsupported results file format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse results file %s: %w", path, err)
	}

	normalized := make(map[string][]Result, len(results))
	for kw, rows := range results {
		key := strings.ToLower(strings.TrimSpace(kw))
		normalized[key] = append(normalized[key], rows...)
	}

	return &FileSource{path: path, results: normalized}, nil
}

// NewMemorySource wraps in-memory results as a Source.
func NewMemorySource(results map[string][]Result) *FileSource {
	return &FileSource{path: "memory", results: results}
}

// Name identifies the source in logs.
func (f *FileSource) Name() string {
	return "file:" + f.path
}

// Fetch returns the stored rows for keyword with rank <= depth, in rank order.
func (f *FileSource) Fetch(ctx context.Context, keyword string, depth int) ([]Result, error) {
	rows, ok := f.results[keyword]
	if !ok {
		return nil, fmt.Errorf("no stored results for keyword %q", keyword)
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		if r.Rank <= depth {
			r.Keyword = keyword
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })

	return out, nil
}
