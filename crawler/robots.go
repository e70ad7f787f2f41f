package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches and caches robots.txt rules per host for the
// duration of a single crawl. Cache entries never expire mid-crawl; a new
// RobotsChecker is constructed per run.
type RobotsChecker struct {
	client *http.Client
	cache  sync.Map // host string -> *robotstxt.RobotsData (nil = allow-all)
}

// NewRobotsChecker creates a RobotsChecker with the given HTTP client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{client: client}
}

// Allowed checks if the given URL is allowed to be crawled by the user agent.
// Returns true if allowed, false if disallowed by robots.txt. Any failure to
// resolve the URL or fetch/parse robots.txt admits by default (fail open);
// the error is still returned so callers can log it.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}

	host := parsedURL.Host
	if host == "" {
		return true, nil
	}

	if cached, ok := r.cache.Load(host); ok {
		data, _ := cached.(*robotstxt.RobotsData)
		if data == nil {
			return true, nil
		}
		return data.TestAgent(parsedURL.Path, userAgent), nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsedURL.Scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		r.cacheNilEntry(host)
		return true, fmt.Errorf("create robots.txt request for host %s: %w", host, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.cacheNilEntry(host)
		return true, fmt.Errorf("fetch robots.txt for host %s: %w", host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		r.cacheNilEntry(host)
		return true, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.cacheNilEntry(host)
		return true, fmt.Errorf("read robots.txt body for host %s: %w", host, err)
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		r.cacheNilEntry(host)
		return true, fmt.Errorf("parse robots.txt for host %s: %w", host, err)
	}

	r.cache.Store(host, robots)
	return robots.TestAgent(parsedURL.Path, userAgent), nil
}

func (r *RobotsChecker) cacheNilEntry(host string) {
	r.cache.Store(host, (*robotstxt.RobotsData)(nil))
}

// ClearCache removes all cached robots.txt entries. Useful for testing.
func (r *RobotsChecker) ClearCache() {
	r.cache.Range(func(key, _ any) bool {
		r.cache.Delete(key)
		return true
	})
}
