// Package charts renders analysis runs as interactive HTML charts.
package charts

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ramonehamilton/competitor-discovery/internal/storage/models"
)

// DefaultTopN is how many competitors a chart shows when TopN is unset.
const DefaultTopN = 15

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title      string   // Chart title; derived from the run when empty
	Subtitle   string   // Chart subtitle
	Width      string   // Chart width (e.g., "900px")
	Height     string   // Chart height (e.g., "500px")
	Theme      string   // Chart theme
	ShowLegend bool     // Show legend
	Smooth     bool     // Smooth line (for line charts)
	TopN       int      // Competitors to plot
	Colors     []string // Custom colors
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Smooth:     true,
		TopN:       DefaultTopN,
		Colors:     []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452", "#9A60B4", "#EA7CCC"},
	}
}

func (c ChartConfig) globalOptions(title, subtitle string) []charts.GlobalOpts {
	if c.Title != "" {
		title = c.Title
	}
	if c.Subtitle != "" {
		subtitle = c.Subtitle
	}
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  c.Width,
			Height: c.Height,
			Theme:  c.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(c.ShowLegend),
		}),
		charts.WithColorsOpts(opts.Colors(c.Colors)),
	}
}

// CompetitorChart builds a bar chart of the run's top competitors with their
// weighted score and keyword appearances side by side.
func CompetitorChart(run *models.AnalysisRun, config ChartConfig) (*charts.Bar, error) {
	if len(run.DomainScores) == 0 {
		return nil, fmt.Errorf("run %d has no competitors to chart", run.ID)
	}

	top := config.TopN
	if top <= 0 {
		top = DefaultTopN
	}
	scores := run.DomainScores
	if len(scores) > top {
		scores = scores[:top]
	}

	domains := make([]string, len(scores))
	weighted := make([]opts.BarData, len(scores))
	appearances := make([]opts.BarData, len(scores))
	for i, s := range scores {
		domains[i] = s.Domain
		weighted[i] = opts.BarData{Value: s.WeightedScore}
		appearances[i] = opts.BarData{Value: s.Appearances}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(config.globalOptions(
		fmt.Sprintf("Top competitors, run %d", run.ID),
		strings.Join(run.Keywords, ", "),
	)...)

	bar.SetXAxis(domains).
		AddSeries("Weighted score", weighted).
		AddSeries("Appearances", appearances).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	return bar, nil
}

// RenderCompetitorChart writes CompetitorChart as an HTML file.
func RenderCompetitorChart(run *models.AnalysisRun, config ChartConfig, outputPath string) error {
	bar, err := CompetitorChart(run, config)
	if err != nil {
		return err
	}
	return renderFile(outputPath, bar)
}

// DomainHistoryChart plots a domain's weighted score and rank across runs,
// oldest first.
func DomainHistoryChart(domain string, history []*models.DomainHistoryEntry, config ChartConfig) (*charts.Line, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("no history for %s", domain)
	}

	labels := make([]string, len(history))
	scores := make([]opts.LineData, len(history))
	ranks := make([]opts.LineData, len(history))
	for i := range history {
		// History is stored newest first.
		h := history[len(history)-1-i]
		labels[i] = fmt.Sprintf("#%d %s", h.RunID, h.CreatedAt.Format("2006-01-02"))
		scores[i] = opts.LineData{Value: h.WeightedScore}
		ranks[i] = opts.LineData{Value: h.RankPosition}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(config.globalOptions(domain+" across runs", "")...)
	line.SetXAxis(labels).
		AddSeries("Weighted score", scores).
		AddSeries("Rank", ranks).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{
				Smooth: opts.Bool(config.Smooth),
			}),
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	return line, nil
}

// RenderDomainHistoryChart writes DomainHistoryChart as an HTML file.
func RenderDomainHistoryChart(domain string, history []*models.DomainHistoryEntry, config ChartConfig, outputPath string) error {
	line, err := DomainHistoryChart(domain, history, config)
	if err != nil {
		return err
	}
	return renderFile(outputPath, line)
}

type renderer interface {
	Render(w io.Writer) error
}

func renderFile(outputPath string, chart renderer) (err error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := chart.Render(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
