package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corvidwing/webreach/crawler"
	"github.com/corvidwing/webreach/result"
)

// testConfig returns a config tuned for fast in-process crawls against an
// httptest server.
func testConfig(t *testing.T, baseURL string) crawler.Config {
	t.Helper()
	cfg := crawler.DefaultConfig(baseURL)
	cfg.MaxDepth = 1
	cfg.MaxWorkers = 2
	cfg.RateLimit = 100
	cfg.Timeout = 5 * time.Second
	cfg.UseSitemap = false
	cfg.RespectRobotsTXT = false
	cfg.OutputDir = t.TempDir()
	cfg.RetryPolicy = crawler.RetryPolicy{MaxRetries: 0, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}
	return cfg
}

func runCrawl(t *testing.T, cfg crawler.Config) *result.CrawlResults {
	t.Helper()

	e, err := crawler.New(cfg, crawler.WithQuiescence(50*time.Millisecond, 200*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := e.Crawl(ctx)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	return res
}

func findResult(res *result.CrawlResults, url string) *result.PageResult {
	for i := range res.Results {
		if res.Results[i].URL == url {
			return &res.Results[i]
		}
	}
	return nil
}

func assertInvariants(t *testing.T, res *result.CrawlResults, maxDepth int) {
	t.Helper()

	stats := res.Stats
	if stats.PagesCrawled > stats.PagesFound {
		t.Errorf("pages_crawled (%d) > pages_found (%d)", stats.PagesCrawled, stats.PagesFound)
	}
	if stats.PagesCrawled+stats.Errors > stats.PagesFound {
		t.Errorf("pages_crawled (%d) + errors (%d) > pages_found (%d)",
			stats.PagesCrawled, stats.Errors, stats.PagesFound)
	}
	if stats.EndTime.Before(stats.StartTime) {
		t.Errorf("end_time %v before start_time %v", stats.EndTime, stats.StartTime)
	}
	if stats.DurationMS < 0 {
		t.Errorf("negative duration_ms %d", stats.DurationMS)
	}

	seen := make(map[string]bool)
	for _, page := range res.Results {
		if seen[page.URL] {
			t.Errorf("duplicate result for %s", page.URL)
		}
		seen[page.URL] = true
		if page.Depth > maxDepth {
			t.Errorf("result %s at depth %d exceeds max depth %d", page.URL, page.Depth, maxDepth)
		}
	}
}

func TestCrawlTrivialTwoPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>T</title><a href="/a">a</a></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>A</title></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(res.Results))
	}
	if res.Stats.PagesCrawled != 2 {
		t.Errorf("pages_crawled = %d, want 2", res.Stats.PagesCrawled)
	}
	if res.Stats.Errors != 0 {
		t.Errorf("errors = %d, want 0", res.Stats.Errors)
	}

	root := findResult(res, server.URL+"/")
	if root == nil {
		t.Fatal("no result for root page")
	}
	if root.Title != "T" {
		t.Errorf("root title = %q, want %q", root.Title, "T")
	}
	if len(root.Links) != 1 || root.Links[0] != server.URL+"/a" {
		t.Errorf("root links = %v, want [%s/a]", root.Links, server.URL)
	}
}

func TestCrawlDepthCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/a">a</a></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>a</title><a href="/b">b</a></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>b</title></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2 (/ and /a)", len(res.Results))
	}
	if findResult(res, server.URL+"/b") != nil {
		t.Error("/b was crawled despite the depth cap")
	}
	if res.Stats.PagesFound != 2 {
		t.Errorf("pages_found = %d, want 2", res.Stats.PagesFound)
	}
}

func TestCrawlDepthZeroFetchesOnlySeed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/a">a</a></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.MaxDepth = 0
	res := runCrawl(t, cfg)
	assertInvariants(t, res, 0)

	if len(res.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(res.Results))
	}
	if res.Stats.PagesFound != 1 {
		t.Errorf("pages_found = %d, want 1", res.Stats.PagesFound)
	}
}

func TestCrawlDomainScope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="http://other.invalid/x">x</a></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if res.Stats.ExternalLinks != 1 {
		t.Errorf("external_links = %d, want 1", res.Stats.ExternalLinks)
	}
	if findResult(res, "http://other.invalid/x") != nil {
		t.Error("external URL has a result")
	}
}

func TestCrawlExcludeRegex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/pic.jpg">pic</a></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if res.Stats.ExcludedLinks != 1 {
		t.Errorf("excluded_links = %d, want 1", res.Stats.ExcludedLinks)
	}
	if res.Stats.PagesFound != 1 {
		t.Errorf("pages_found = %d, want 1 (the excluded URL must not count)", res.Stats.PagesFound)
	}
}

func TestCrawlRespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/private/x">x</a><a href="/public/y">y</a></html>`)
	})
	mux.HandleFunc("/public/y", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>y</title></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.RespectRobotsTXT = true
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if findResult(res, server.URL+"/private/x") != nil {
		t.Error("/private/x was crawled despite robots.txt")
	}
	if findResult(res, server.URL+"/public/y") == nil {
		t.Error("/public/y was not crawled")
	}
}

func TestCrawlCycleTerminates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/a">a</a></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>a</title><a href="/">root</a></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.MaxDepth = 2
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if len(res.Results) != 2 {
		t.Fatalf("got %d results for the A↔B cycle, want exactly 2", len(res.Results))
	}
}

func TestCrawlCountsFetchErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/missing">m</a></html>`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if res.Stats.Errors != 1 {
		t.Errorf("errors = %d, want 1", res.Stats.Errors)
	}
	if findResult(res, server.URL+"/missing") != nil {
		t.Error("a PageResult was recorded for a failed fetch")
	}
	if res.Stats.PagesFound != 2 {
		t.Errorf("pages_found = %d, want 2", res.Stats.PagesFound)
	}
}

func TestCrawlSingleWorker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/a">a</a><a href="/b">b</a></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>a</title></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>b</title></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.MaxWorkers = 1
	res := runCrawl(t, cfg)
	assertInvariants(t, res, cfg.MaxDepth)

	if len(res.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(res.Results))
	}
	// With a single worker the seed is processed first.
	if res.Results[0].URL != server.URL+"/" {
		t.Errorf("first result = %s, want the seed URL", res.Results[0].URL)
	}
}

func TestCrawlResumeFromCheckpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title><a href="/a">a</a></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>a</title></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	first := runCrawl(t, cfg)
	if first.Stats.PagesCrawled != 2 {
		t.Fatalf("first crawl crawled %d pages, want 2", first.Stats.PagesCrawled)
	}

	cfg.Resume = true
	second := runCrawl(t, cfg)

	if len(second.Results) != len(first.Results) {
		t.Errorf("resumed crawl has %d results, want %d carried over", len(second.Results), len(first.Results))
	}
	if second.Stats.PagesCrawled != first.Stats.PagesCrawled {
		t.Errorf("resumed pages_crawled = %d, want %d (no re-fetch of visited URLs)",
			second.Stats.PagesCrawled, first.Stats.PagesCrawled)
	}
}

func TestCrawlSitemapUnreachableFallsBackToSeed(t *testing.T) {
	// Sitemap discovery fetches https://<domain>/..., which an httptest
	// HTTP server cannot serve, so this exercises the fallback path: with
	// UseSitemap on and no reachable sitemap, the base URL still seeds.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>root</title></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.UseSitemap = true
	res := runCrawl(t, cfg)

	if res.Stats.PagesFound < 1 {
		t.Errorf("pages_found = %d, want at least the seed", res.Stats.PagesFound)
	}
}
