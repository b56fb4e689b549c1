package domain

import "strings"

// DefaultExcluded lists platforms that rank for nearly every query and are
// never useful as competitors.
var DefaultExcluded = []string{
	"google.com", "youtube.com", "facebook.com", "twitter.com",
	"linkedin.com", "instagram.com", "pinterest.com", "reddit.com",
	"wikipedia.org", "amazon.com", "ebay.com", "etsy.com",
	"shopify.com", "wordpress.com", "medium.com", "quora.com",
	// bare labels match every suffix, e.g. google.co.uk or amazon.de
	"google", "youtube", "facebook", "amazon",
}

// ExcludeList holds root domains (or bare labels) removed from competitor ranking.
// A nil ExcludeList excludes nothing.
type ExcludeList map[string]struct{}

// NewExcludeList builds an ExcludeList. Entries without a dot match any suffix.
func NewExcludeList(entries ...string) ExcludeList {
	list := make(ExcludeList, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			list[e] = struct{}{}
		}
	}
	return list
}

// Contains reports whether root is excluded.
func (l ExcludeList) Contains(root string) bool {
	if len(l) == 0 {
		return false
	}
	if _, ok := l[root]; ok {
		return true
	}
	_, ok := l[label(root)]
	return ok
}
