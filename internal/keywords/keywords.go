// Package keywords loads and validates keyword batches for analysis.
package keywords

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ramonehamilton/competitor-discovery/internal/logger"
)

const (
	// MinLength and MaxLength bound a single keyword, in bytes after trimming.
	MinLength = 2
	MaxLength = 100

	// SoftLimit is the batch size above which a warning is logged.
	SoftLimit = 15
)

// ErrNoKeywords is returned when a batch has no valid keywords.
var ErrNoKeywords = errors.New("no valid keywords")

// csvHeaders are first-row values treated as a header rather than a keyword.
var csvHeaders = map[string]bool{
	"keyword":  true,
	"keywords": true,
	"term":     true,
	"query":    true,
}

// FromString splits a comma-separated list.
func FromString(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FromFile reads keywords from a .txt (one per line, # comments), .csv (first
// column, optional header) or .yaml/.yml (a list, or a map with a keywords key).
func FromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var kws []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		kws, err = readCSV(f)
	case ".yaml", ".yml":
		kws, err = readYAML(f)
	case ".txt", "":
		kws, err = readLines(f)
	default:
		return nil, fmt.Errorf("unsupported keyword file format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read keyword file %s: %w", path, err)
	}
	return kws, nil
}

func readLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var kws []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kws = append(kws, line)
	}
	return kws, nil
}

func readCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var kws []string
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		cell := strings.TrimSpace(rec[0])
		if i == 0 && csvHeaders[strings.ToLower(cell)] {
			continue
		}
		if cell != "" {
			kws = append(kws, cell)
		}
	}
	return kws, nil
}

func readYAML(r io.Reader) ([]string, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	node := doc.Content[0]
	var kws []string
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&kws); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var wrapped struct {
			Keywords []string `yaml:"keywords"`
		}
		if err := node.Decode(&wrapped); err != nil {
			return nil, err
		}
		kws = wrapped.Keywords
	default:
		return nil, fmt.Errorf("expected a list of keywords")
	}
	return kws, nil
}

// Canonical lowercases kw and collapses runs of whitespace.
func Canonical(kw string) string {
	return strings.ToLower(strings.Join(strings.Fields(kw), " "))
}

// Validate trims and lowercases keywords, drops those outside
// [MinLength, MaxLength] and duplicates, and keeps first-seen order.
// It returns ErrNoKeywords when nothing survives.
func Validate(ctx context.Context, raw []string) ([]string, error) {
	log := logger.FromContext(ctx)

	seen := make(map[string]bool, len(raw))
	valid := make([]string, 0, len(raw))
	for _, kw := range raw {
		kw = Canonical(kw)
		switch {
		case len(kw) < MinLength:
			if kw != "" {
				log.Debug("Skipping short keyword", zap.String("keyword", kw))
			}
			continue
		case len(kw) > MaxLength:
			log.Debug("Skipping long keyword", zap.Int("length", len(kw)))
			continue
		case seen[kw]:
			continue
		}
		seen[kw] = true
		valid = append(valid, kw)
	}

	if len(valid) == 0 {
		return nil, ErrNoKeywords
	}
	if len(valid) > SoftLimit {
		log.Warn("Large keyword batch; fetching may be slow or rate limited",
			zap.Int("keywords", len(valid)),
			zap.Int("soft_limit", SoftLimit),
		)
	}
	return valid, nil
}
