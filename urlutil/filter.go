package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// IsSameDomain checks if targetURL belongs to the same domain as baseHost.
// Subdomains are considered same-domain (e.g., blog.example.com matches example.com).
func IsSameDomain(targetURL string, baseHost string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	host := parsed.Hostname()
	baseHost = strings.ToLower(baseHost)
	host = strings.ToLower(host)

	return host == baseHost || strings.HasSuffix(host, "."+baseHost)
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// ResolveReference resolves a possibly-relative ref URL against a base URL.
// If ref is absolute, it is returned as-is. Otherwise it is resolved
// relative to base using net/url.URL.ResolveReference.
func ResolveReference(base string, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	resolved := baseURL.ResolveReference(refURL)
	return resolved.String(), nil
}

// DefaultExcludePatterns is the default regex deny list applied when a
// crawler.Config does not override it: common binary/asset extensions and
// non-fetchable URI schemes.
var DefaultExcludePatterns = []string{
	`\.jpg$`, `\.png$`, `\.gif$`, `\.svg$`, `\.pdf$`,
	`\.zip$`, `\.css$`, `\.js$`,
	`^mailto:`, `^tel:`, `^javascript:`,
}

// URLFilter gates URLs through an include whitelist and an exclude
// blacklist, both expressed as caller-anchored regular expressions.
// Patterns that fail to compile are dropped silently at construction time
// so one bad pattern never disables the whole filter.
type URLFilter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewURLFilter compiles the given include/exclude regex sources. Sources
// that fail to compile are dropped; the rest remain active.
func NewURLFilter(excludePatterns, includePatterns []string) *URLFilter {
	return &URLFilter{
		include: compilePatterns(includePatterns),
		exclude: compilePatterns(excludePatterns),
	}
}

func compilePatterns(sources []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// ShouldCrawl reports whether a URL is admitted by the filter: it must
// match at least one include pattern (when any are configured), and must
// not match any exclude pattern.
func (f *URLFilter) ShouldCrawl(rawURL string) bool {
	if len(f.include) > 0 {
		matched := false
		for _, re := range f.include {
			if re.MatchString(rawURL) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, re := range f.exclude {
		if re.MatchString(rawURL) {
			return false
		}
	}

	return true
}
