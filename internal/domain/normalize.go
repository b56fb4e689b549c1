// Package domain turns search result URLs into canonical root domains.
package domain

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// ErrNormalization is the sentinel wrapped by every NormalizationError.
var ErrNormalization = errors.New("domain normalization failed")

// NormalizationError reports why a URL could not be reduced to a root domain.
type NormalizationError struct {
	URL    string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %q: %s", e.URL, e.Reason)
}

// Unwrap lets errors.Is match ErrNormalization.
func (e *NormalizationError) Unwrap() error {
	return ErrNormalization
}

// schemePrefix matches an RFC 3986 scheme. "nike.com:8080" also matches, so a
// digit after the colon is read as a port instead.
var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// maxRedirectHops bounds how many search-engine wrappers are peeled off one URL.
const maxRedirectHops = 3

// searchEngines are registrable-domain labels whose redirect endpoints are unwrapped.
var searchEngines = map[string]bool{
	"google":     true,
	"bing":       true,
	"yahoo":      true,
	"duckduckgo": true,
}

// adNetworks are root domains that only ever serve click tracking.
var adNetworks = map[string]bool{
	"googleadservices.com":  true,
	"doubleclick.net":       true,
	"googlesyndication.com": true,
}

// Normalizer reduces URLs to their registrable (root) domain.
// It is safe for concurrent use.
type Normalizer struct {
	suffixes SuffixList
}

// NewNormalizer creates a Normalizer using the given suffix lookup.
// A nil list falls back to PublicSuffixList.
func NewNormalizer(suffixes SuffixList) *Normalizer {
	if suffixes == nil {
		suffixes = PublicSuffixList{}
	}
	return &Normalizer{suffixes: suffixes}
}

// Normalize returns the lowercase root domain of rawURL, e.g.
// "https://store.nike.com/a" -> "nike.com" and "shop.example.co.uk" -> "example.co.uk".
// Search-engine redirect wrappers are followed to their destination; ad-tracking
// links and redirects without a destination fail with a NormalizationError.
func (n *Normalizer) Normalize(rawURL string) (string, error) {
	return n.normalize(rawURL, 0)
}

func (n *Normalizer) normalize(rawURL string, hops int) (string, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return "", &NormalizationError{URL: rawURL, Reason: err.Error()}
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return "", &NormalizationError{URL: rawURL, Reason: err.Error()}
	}
	if net.ParseIP(host) != nil {
		return "", &NormalizationError{URL: rawURL, Reason: "ip address host"}
	}

	root, err := n.root(host)
	if err != nil {
		return "", &NormalizationError{URL: rawURL, Reason: err.Error()}
	}

	if adNetworks[root] {
		return "", &NormalizationError{URL: rawURL, Reason: "ad-tracking redirect"}
	}

	if searchEngines[label(root)] {
		dest, isRedirect := redirectTarget(u)
		if isRedirect {
			if dest == "" {
				return "", &NormalizationError{URL: rawURL, Reason: "search-engine redirect without destination"}
			}
			if hops >= maxRedirectHops {
				return "", &NormalizationError{URL: rawURL, Reason: "too many nested redirects"}
			}
			return n.normalize(dest, hops+1)
		}
	}

	return root, nil
}

// canonicalHost lowercases host, drops the trailing dot and a leading "www."
// label, and converts internationalized names to their punycode form.
func canonicalHost(host string) (string, error) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", errors.New("no host")
	}
	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("invalid internationalized host: %w", err)
		}
		host = ascii
	}
	return strings.TrimPrefix(host, "www."), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// root returns the registrable domain of host: one label above its public suffix.
func (n *Normalizer) root(host string) (string, error) {
	if !strings.Contains(host, ".") {
		return "", errors.New("host has no public suffix")
	}
	if strings.Contains(host, "..") || strings.HasPrefix(host, ".") {
		return "", errors.New("host has empty labels")
	}

	suffix := n.suffixes.PublicSuffix(host)
	if suffix == "" {
		return "", errors.New("unknown public suffix")
	}
	if host == suffix {
		return "", errors.New("host is a public suffix")
	}

	rest := strings.TrimSuffix(host, "."+suffix)
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		rest = rest[i+1:]
	}
	return rest + "." + suffix, nil
}

// parseURL parses scheme-less and protocol-relative inputs as https. Relative
// "/url?..." paths are resolved against google.com, which is how scraped
// result pages link out.
func parseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
	case strings.HasPrefix(raw, "//"):
		raw = "https:" + raw
	case strings.HasPrefix(raw, "/url?"):
		raw = "https://www.google.com" + raw
	case strings.Contains(raw, "://"):
		return nil, fmt.Errorf("unsupported scheme in %q", raw)
	default:
		if m := schemePrefix.FindString(raw); m != "" && !startsWithDigit(raw[len(m):]) {
			return nil, fmt.Errorf("unsupported scheme %q", strings.TrimSuffix(m, ":"))
		}
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	return u, nil
}

// redirectTarget reports whether u is a search-engine internal link and, if so,
// the destination it forwards to ("" when it has none).
func redirectTarget(u *url.URL) (string, bool) {
	path := strings.ToLower(u.Path)
	q := u.Query()

	switch {
	case path == "/url" || path == "/link" || strings.HasPrefix(path, "/r/"):
		for _, key := range []string{"q", "url", "u", "uddg"} {
			if v := q.Get(key); isAbsoluteHTTP(v) {
				return v, true
			}
		}
		return "", true
	case strings.HasPrefix(path, "/aclk"), strings.HasPrefix(path, "/pagead"), strings.HasPrefix(path, "/ck/"):
		return "", true
	case path == "/search" || path == "/imgres" || path == "/sorry/index":
		return "", true
	}
	return "", false
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func isAbsoluteHTTP(v string) bool {
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// label returns the first label of a root domain ("nike" for "nike.com").
func label(root string) string {
	if i := strings.IndexByte(root, '.'); i >= 0 {
		return root[:i]
	}
	return root
}
