package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ramonehamilton/competitor-discovery/internal/ranking"
	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// Table is an ordered set of columns with one row per record. Cells are
// strings or ints.
type Table struct {
	Header []string
	Rows   [][]any
}

type tableConfig struct {
	rank bool
}

// TableOption adjusts RowsFromRun.
type TableOption func(*tableConfig)

// WithRank prepends a 1-based rank column.
func WithRank() TableOption {
	return func(c *tableConfig) { c.rank = true }
}

// KeywordColumn names the flag column of a keyword: "kw_" plus the keyword
// with spaces replaced by underscores.
func KeywordColumn(keyword string) string {
	return "kw_" + strings.ReplaceAll(keyword, " ", "_")
}

// RowsFromRun lays out a run as domain, appearances, weighted_score and one
// flag column per keyword in the run's keyword order. Rows follow the stored
// ranking.
func RowsFromRun(run *models.AnalysisRun, opts ...TableOption) *Table {
	var cfg tableConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	header := make([]string, 0, 4+len(run.Keywords))
	if cfg.rank {
		header = append(header, "rank")
	}
	header = append(header, "domain", "appearances", "weighted_score")
	for _, kw := range run.Keywords {
		header = append(header, KeywordColumn(kw))
	}

	rows := make([][]any, 0, len(run.DomainScores))
	for i, s := range run.DomainScores {
		row := make([]any, 0, len(header))
		if cfg.rank {
			row = append(row, i+1)
		}
		row = append(row, s.Domain, s.Appearances, s.WeightedScore)
		for _, kw := range run.Keywords {
			row = append(row, s.Flag(kw))
		}
		rows = append(rows, row)
	}

	return &Table{Header: header, Rows: rows}
}

// SummaryRows is a one-row table describing the run as a whole.
func SummaryRows(run *models.AnalysisRun) *Table {
	summary := ranking.Summarize(run.DomainScores)
	top := summary.TopCompetitor
	if top == "" {
		top = "N/A"
	}

	return &Table{
		Header: []string{
			"run_id", "analysis_date", "keywords_analyzed", "total_keywords",
			"total_competitors", "top_competitor", "avg_weighted_score", "dropped_rows",
		},
		Rows: [][]any{{
			int(run.ID),
			run.CreatedAt.Format(time.DateTime),
			strings.Join(run.Keywords, ", "),
			len(run.Keywords),
			summary.TotalCompetitors,
			top,
			fmt.Sprintf("%.2f", summary.AvgWeightedScore),
			run.DroppedRows,
		}},
	}
}

// WriteCSV writes the header then every row.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(t.Header))
	for i, row := range t.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = fmt.Sprint(row[j])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes the rows as an array of objects whose keys keep the
// table's column order.
func WriteJSON(w io.Writer, t *Table, pretty bool) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range t.Header {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(col)
			var cell any
			if j < len(row) {
				cell = row[j]
			}
			val, err := json.Marshal(cell)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", col, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	out := buf.Bytes()
	if pretty {
		var indented bytes.Buffer
		if err := json.Indent(&indented, out, "", "  "); err != nil {
			return fmt.Errorf("failed to indent JSON: %w", err)
		}
		out = indented.Bytes()
	}
	out = append(out, '\n')

	_, err := w.Write(out)
	return err
}
