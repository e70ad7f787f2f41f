package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/corvidwing/webreach/result"
	"github.com/corvidwing/webreach/urlutil"
)

// dequeueWait bounds how long a worker blocks on an empty queue before
// re-checking the shutdown flag.
const dequeueWait = 100 * time.Millisecond

// worker drains the shared queue until the shutdown flag is set. The
// active-jobs counter is decremented immediately on dequeue, never after
// processing: combined with the increment-before-enqueue rule in
// admitChildren, this makes activeJobs == 0 a sound quiescence signal.
func (e *Engine) worker(ctx context.Context) {
	for {
		if e.shutdown.Load() || ctx.Err() != nil {
			return
		}

		job, ok := e.queue.Dequeue(dequeueWait)
		if !ok {
			continue
		}
		e.activeJobs.Dec()

		e.process(ctx, job)
	}
}

// process runs one job through the fetch/parse/admit pipeline.
func (e *Engine) process(ctx context.Context, job CrawlJob) {
	if !e.visited.VisitIfNew(job.URL) {
		return
	}
	e.prefilter.Add(job.URL)
	e.stats.AddFound()

	if e.cfg.AllowedDomain != "" && !urlutil.IsSameDomain(job.URL, e.cfg.AllowedDomain) {
		e.stats.AddExternal()
		return
	}

	if err := e.limiter.Wait(ctx); err != nil {
		// Cancelled mid-wait; the shutdown check at the top of the worker
		// loop handles the exit.
		return
	}

	fetched, err := FetchWithRetry(ctx, e.client, job.URL, e.cfg.UserAgent, e.cfg.RetryPolicy)
	if err != nil || fetched.StatusCode < 200 || fetched.StatusCode >= 300 {
		e.stats.AddError()
		category := result.ClassifyError(err, fetched.StatusCode)
		e.logger.Debug("fetch failed",
			zap.String("url", job.URL),
			zap.Int("status", fetched.StatusCode),
			zap.String("category", string(category)),
			zap.Error(err))
		snapshot := e.stats.Snapshot()
		evt := CrawlEvent{
			URL:          job.URL,
			StatusCode:   fetched.StatusCode,
			Depth:        job.Depth,
			Category:     category,
			PagesFound:   snapshot.PagesFound,
			PagesCrawled: snapshot.PagesCrawled,
			Errors:       snapshot.Errors,
		}
		if err != nil {
			evt.Error = err.Error()
		} else {
			evt.Error = fmt.Sprintf("http status %d", fetched.StatusCode)
		}
		e.emit(evt)
		return
	}

	title := defaultTitle
	var links []string
	if !isBinaryContentType(fetched.ContentType) {
		title = ParseTitle(bytes.NewReader(fetched.Body))
		if base, parseErr := url.Parse(job.URL); parseErr == nil {
			links = ParseLinks(bytes.NewReader(fetched.Body), base)
		}
	}

	page := result.PageResult{
		URL:         job.URL,
		Title:       title,
		StatusCode:  fetched.StatusCode,
		Depth:       job.Depth,
		Links:       links,
		CrawledAt:   time.Now(),
		ContentType: fetched.ContentType,
	}
	e.appendResult(page)
	e.stats.AddCrawled()

	snapshot := e.stats.Snapshot()
	e.emit(CrawlEvent{
		URL:          job.URL,
		StatusCode:   fetched.StatusCode,
		Depth:        job.Depth,
		PagesFound:   snapshot.PagesFound,
		PagesCrawled: snapshot.PagesCrawled,
		Errors:       snapshot.Errors,
	})

	if job.Depth < e.cfg.MaxDepth {
		e.admitChildren(ctx, job, links)
	}
}

// admitChildren runs each discovered link through the admission pipeline
// (visited, regex filter, robots) and enqueues survivors at depth+1. The
// counter is incremented before the enqueue so there is no window where
// activeJobs reads zero while a child is pending; a failed enqueue
// restores the balance.
func (e *Engine) admitChildren(ctx context.Context, job CrawlJob, links []string) {
	for _, link := range links {
		normalized, err := urlutil.Normalize(link)
		if err != nil || !urlutil.IsHTTPScheme(normalized) {
			continue
		}
		if e.prefilter.MightContain(normalized) && e.visited.Contains(normalized) {
			continue
		}
		if !e.filter.ShouldCrawl(normalized) {
			e.stats.AddExcluded()
			continue
		}
		if e.cfg.RespectRobotsTXT {
			allowed, robotsErr := e.robots.Allowed(ctx, normalized, e.cfg.UserAgent)
			if robotsErr != nil {
				e.logger.Debug("robots check recovered",
					zap.String("url", normalized), zap.Error(robotsErr))
			}
			if !allowed {
				e.stats.AddExcluded()
				continue
			}
		}

		e.activeJobs.Inc()
		if !e.queue.Enqueue(CrawlJob{URL: normalized, Depth: job.Depth + 1}) {
			e.activeJobs.Dec()
		}
	}
}

// isBinaryContentType reports whether the content type marks a body that
// should not be parsed for title or links (images, media, archives, fonts).
func isBinaryContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}

	for _, prefix := range []string{"image/", "video/", "audio/", "font/"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}

	switch contentType {
	case "application/pdf",
		"application/zip",
		"application/x-zip-compressed",
		"application/gzip",
		"application/vnd.rar",
		"application/x-7z-compressed",
		"application/octet-stream":
		return true
	}
	return false
}
