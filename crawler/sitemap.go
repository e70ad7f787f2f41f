package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	sitemap "github.com/oxffaa/gopher-parse-sitemap"
	"go.uber.org/zap"
)

// sitemapCandidates are the well-known sitemap locations tried in order
// under https://<domain>.
var sitemapCandidates = []string{"/sitemap.xml", "/sitemap_index.xml", "/wp-sitemap.xml"}

// maxSubSitemaps bounds sitemap index expansion so an adversarial index
// cannot fan out without limit.
const maxSubSitemaps = 10

// SitemapSeeder discovers seed URLs from a site's sitemap tree before the
// engine falls back to the bare base URL.
type SitemapSeeder struct {
	client    *http.Client
	userAgent string
	maxURLs   int
	logger    *zap.Logger
}

// NewSitemapSeeder builds a seeder that fetches with the given client and
// user agent and truncates its result to maxURLs entries.
func NewSitemapSeeder(client *http.Client, userAgent string, maxURLs int, logger *zap.Logger) *SitemapSeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SitemapSeeder{
		client:    client,
		userAgent: userAgent,
		maxURLs:   maxURLs,
		logger:    logger,
	}
}

// Discover tries each well-known sitemap location under https://<domain>
// and returns the first non-empty URL set, deduplicated and truncated to
// the configured cap. A failure of any single candidate falls through to
// the next; an empty return means the caller should seed from the base URL.
func (s *SitemapSeeder) Discover(ctx context.Context, domain string) []string {
	for _, path := range sitemapCandidates {
		candidate := fmt.Sprintf("https://%s%s", domain, path)
		urls, err := s.collect(ctx, candidate)
		if err != nil {
			s.logger.Debug("sitemap candidate failed",
				zap.String("url", candidate), zap.Error(err))
			continue
		}
		if len(urls) == 0 {
			continue
		}

		deduped := dedupe(urls)
		if len(deduped) > s.maxURLs {
			deduped = deduped[:s.maxURLs]
		}
		s.logger.Info("seeding from sitemap",
			zap.String("sitemap", candidate), zap.Int("urls", len(deduped)))
		return deduped
	}
	return nil
}

// collect parses one sitemap document, expanding it as an index when it
// contains sub-sitemaps and as a flat urlset otherwise.
func (s *SitemapSeeder) collect(ctx context.Context, sitemapURL string) ([]string, error) {
	body, err := s.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var subSitemaps []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(body), func(e sitemap.IndexEntry) error {
		subSitemaps = append(subSitemaps, e.GetLocation())
		return nil
	})

	if indexErr == nil && len(subSitemaps) > 0 {
		if len(subSitemaps) > maxSubSitemaps {
			s.logger.Warn("sitemap index truncated",
				zap.String("index", sitemapURL),
				zap.Int("total", len(subSitemaps)), zap.Int("kept", maxSubSitemaps))
			subSitemaps = subSitemaps[:maxSubSitemaps]
		}
		var urls []string
		for _, sub := range subSitemaps {
			subBody, fetchErr := s.fetch(ctx, sub)
			if fetchErr != nil {
				s.logger.Warn("sub-sitemap fetch failed",
					zap.String("url", sub), zap.Error(fetchErr))
				continue
			}
			subURLs, parseErr := parseURLSet(subBody)
			if parseErr != nil {
				s.logger.Warn("sub-sitemap parse failed",
					zap.String("url", sub), zap.Error(parseErr))
				continue
			}
			urls = append(urls, subURLs...)
		}
		return urls, nil
	}

	return parseURLSet(body)
}

func parseURLSet(body []byte) ([]string, error) {
	var urls []string
	err := sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse urlset: %w", err)
	}
	return urls, nil
}

func (s *SitemapSeeder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// dedupe removes duplicates while keeping the first occurrence of each URL.
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
