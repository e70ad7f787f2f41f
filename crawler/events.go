package crawler

import "github.com/corvidwing/webreach/result"

// CrawlEvent reports progress for a single processed URL. Events are
// emitted best-effort: a slow consumer drops events rather than stalling
// a worker.
type CrawlEvent struct {
	URL          string
	StatusCode   int
	Depth        int
	Error        string
	Category     result.ErrorCategory
	PagesFound   int
	PagesCrawled int
	Errors       int
}
