package serp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	defaultSerpAPIURL = "https://serpapi.com/search.json"
	defaultInterval   = time.Second
	requestTimeout    = 30 * time.Second
	maxResponseBytes  = 10 << 20
)

// ErrMissingAPIKey is returned when a SerpApi client is built without a key.
var ErrMissingAPIKey = errors.New("serpapi: api key is required")

// SerpAPIConfig configures a SerpAPIClient.
type SerpAPIConfig struct {
	APIKey   string
	Engine   string        // google or bing
	BaseURL  string        // defaults to the public SerpApi endpoint
	Interval time.Duration // minimum gap between requests
	Client   *http.Client
}

// SerpAPIClient fetches organic results through the SerpApi JSON API.
type SerpAPIClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	engine      string
}

// NewSerpAPIClient creates a rate-limited SerpApi client.
func NewSerpAPIClient(cfg SerpAPIConfig) (*SerpAPIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSerpAPIURL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: requestTimeout}
	}

	return &SerpAPIClient{
		httpClient:  cfg.Client,
		rateLimiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		engine:      cfg.Engine,
	}, nil
}

// Name identifies the source in logs.
func (c *SerpAPIClient) Name() string {
	return "serpapi:" + c.engine
}

// Fetch returns up to depth organic results for keyword.
func (c *SerpAPIClient) Fetch(ctx context.Context, keyword string, depth int) ([]Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", keyword)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(depth))
	if c.engine == "google" {
		params.Set("pws", "0")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read serpapi response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("serpapi returned status %d: %s", resp.StatusCode, msg)
	}

	return parseSerpAPI(body, keyword, depth)
}

// parseSerpAPI extracts organic_results from a SerpApi response body.
func parseSerpAPI(body []byte, keyword string, depth int) ([]Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("serpapi: invalid JSON response")
	}

	doc := gjson.ParseBytes(body)
	if msg := doc.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("serpapi: %s", msg.String())
	}

	var results []Result
	for i, item := range doc.Get("organic_results").Array() {
		link := item.Get("link").String()
		if link == "" {
			continue
		}

		rank := int(item.Get("position").Int())
		if rank <= 0 {
			rank = i + 1
		}
		if rank > depth {
			continue
		}

		results = append(results, Result{
			Keyword: keyword,
			Rank:    rank,
			URL:     link,
			Title:   item.Get("title").String(),
		})
	}

	return results, nil
}
