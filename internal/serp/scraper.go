package serp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const defaultGoogleURL = "https://www.google.com/search"

// ScraperConfig configures a GoogleScraper.
type ScraperConfig struct {
	BaseURL   string
	UserAgent string
	Interval  time.Duration
	Client    *http.Client
}

// GoogleScraper reads organic results from the Google results page HTML.
// Links are returned as found, including /url?q= wrappers.
type GoogleScraper struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	userAgent   string
}

// NewGoogleScraper creates a rate-limited HTML scraper.
func NewGoogleScraper(cfg ScraperConfig) *GoogleScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGoogleURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * defaultInterval
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: requestTimeout}
	}

	return &GoogleScraper{
		httpClient:  cfg.Client,
		rateLimiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
	}
}

// Name identifies the source in logs.
func (s *GoogleScraper) Name() string {
	return "scraper:google"
}

// Fetch downloads and parses one results page.
func (s *GoogleScraper) Fetch(ctx context.Context, keyword string, depth int) ([]Result, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", keyword)
	params.Set("num", strconv.Itoa(depth))
	params.Set("pws", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("results page request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	return parseGoogleHTML(doc, keyword, depth), nil
}

// parseGoogleHTML walks div.g result containers. Each container consumes a
// rank even when it has no usable link, matching its position on the page.
func parseGoogleHTML(doc *goquery.Document, keyword string, depth int) []Result {
	var results []Result

	doc.Find("div.g").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		rank := i + 1
		if rank > depth {
			return false
		}

		title := strings.TrimSpace(sel.Find("h3").First().Text())
		href, ok := sel.Find("a[href]").First().Attr("href")
		if !ok || title == "" || href == "" || strings.HasPrefix(href, "#") {
			return true
		}

		results = append(results, Result{
			Keyword: keyword,
			Rank:    rank,
			URL:     href,
			Title:   title,
		})
		return true
	})

	return results
}
