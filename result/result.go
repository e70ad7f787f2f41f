// Package result provides the crawl's output data model and the writers
// that render it to the artifact formats consumed downstream (JSON,
// Markdown, HTML, CSV, link lists, plain text).
package result

import "time"

// PageResult is the immutable record of a single successfully fetched page.
// Once appended to a CrawlResults.Results slice it is never mutated.
type PageResult struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	StatusCode  int       `json:"status_code"`
	Depth       int       `json:"depth"`
	Links       []string  `json:"links"`
	Error       string    `json:"error,omitempty"`
	CrawledAt   time.Time `json:"crawled_at"`
	ContentType string    `json:"content_type"`
}

// CrawlStats holds the aggregate counters and timing for one crawl run.
// Every field here is updated only through the mutex-protected crawler.StatsTracker.
type CrawlStats struct {
	PagesFound    int       `json:"pages_found"`
	PagesCrawled  int       `json:"pages_crawled"`
	ExternalLinks int       `json:"external_links"`
	ExcludedLinks int       `json:"excluded_links"`
	Errors        int       `json:"errors"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DurationMS    int64     `json:"duration_ms"`
}

// CrawlResults is the complete output of an Engine.Crawl() run.
type CrawlResults struct {
	Stats   CrawlStats   `json:"stats"`
	Results []PageResult `json:"results"`
}
