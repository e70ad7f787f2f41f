package result

import (
	"fmt"
	"io"
)

// PrintResults writes a human-readable crawl summary to w.
func PrintResults(w io.Writer, res *CrawlResults) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	writef("Crawl complete: %d pages crawled (%d found, %d external, %d excluded, %d errors)\n",
		res.Stats.PagesCrawled, res.Stats.PagesFound, res.Stats.ExternalLinks,
		res.Stats.ExcludedLinks, res.Stats.Errors)
	writef("Duration: %dms\n", res.Stats.DurationMS)

	for _, page := range res.Results {
		if page.Error != "" {
			writef("  %s — error: %s\n", page.URL, page.Error)
		} else {
			writef("  %s [%d] %q (%d links)\n", page.URL, page.StatusCode, page.Title, len(page.Links))
		}
	}
}
