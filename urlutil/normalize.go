// Package urlutil provides URL normalization, scope matching and regex
// filtering for the admission pipeline.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a raw URL so that string equality doubles as URL
// identity for the visited set: the scheme and host are lowercased, the
// fragment is dropped, and a trailing slash is trimmed from any path except
// the bare root. Query parameters are kept as-is. Inputs without both a
// scheme and a host are rejected.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("cannot normalize empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("URL must have both scheme and host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}
