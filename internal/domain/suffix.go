package domain

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SuffixList looks up the public suffix of a host name.
// It returns an empty string when the host has no known suffix.
type SuffixList interface {
	PublicSuffix(host string) string
}

// PublicSuffixList is a SuffixList backed by the Mozilla public suffix list
// compiled into golang.org/x/net/publicsuffix.
type PublicSuffixList struct{}

// PublicSuffix returns the ICANN or private suffix of host. Hosts that only
// match the implicit "*" rule (unknown TLDs) yield an empty string.
func (PublicSuffixList) PublicSuffix(host string) string {
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann && !strings.Contains(suffix, ".") {
		return ""
	}
	return suffix
}

// StaticSuffixList is a SuffixList over a fixed set of suffixes.
// The longest matching suffix wins.
type StaticSuffixList map[string]struct{}

// NewStaticSuffixList creates a StaticSuffixList from the given suffixes.
func NewStaticSuffixList(suffixes ...string) StaticSuffixList {
	list := make(StaticSuffixList, len(suffixes))
	for _, s := range suffixes {
		s = strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".")
		if s != "" {
			list[s] = struct{}{}
		}
	}
	return list
}

// PublicSuffix returns the longest suffix in the list that host ends with.
func (l StaticSuffixList) PublicSuffix(host string) string {
	candidate := host
	for {
		if _, ok := l[candidate]; ok {
			return candidate
		}
		i := strings.IndexByte(candidate, '.')
		if i < 0 {
			return ""
		}
		candidate = candidate[i+1:]
	}
}
