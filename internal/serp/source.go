package serp

import (
	"fmt"
	"time"
)

// Provider names accepted by NewSource.
const (
	ProviderAuto    = "auto"
	ProviderSerpAPI = "serpapi"
	ProviderScrape  = "scrape"
	ProviderFile    = "file"
)

// SourceOptions selects and configures a Source.
type SourceOptions struct {
	Provider    string
	APIKey      string
	Engine      string
	ResultsFile string
	Interval    time.Duration
}

// NewSource builds the Source named by opts.Provider. "auto" picks SerpApi
// when an API key is configured and the Google scraper otherwise.
func NewSource(opts SourceOptions) (Source, error) {
	provider := opts.Provider
	if provider == "" || provider == ProviderAuto {
		switch {
		case opts.ResultsFile != "":
			provider = ProviderFile
		case opts.APIKey != "":
			provider = ProviderSerpAPI
		default:
			provider = ProviderScrape
		}
	}

	switch provider {
	case ProviderSerpAPI:
		return NewSerpAPIClient(SerpAPIConfig{
			APIKey:   opts.APIKey,
			Engine:   opts.Engine,
			Interval: opts.Interval,
		})
	case ProviderScrape:
		if opts.Engine != "" && opts.Engine != "google" {
			return nil, fmt.Errorf("scraping only supports google, got %q", opts.Engine)
		}
		return NewGoogleScraper(ScraperConfig{Interval: opts.Interval}), nil
	case ProviderFile:
		if opts.ResultsFile == "" {
			return nil, fmt.Errorf("provider %q requires a results file", ProviderFile)
		}
		return LoadFileSource(opts.ResultsFile)
	default:
		return nil, fmt.Errorf("unknown serp provider %q", provider)
	}
}
