package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// WriteJSON writes the complete crawl results as formatted JSON. A nil
// result slice is emitted as an empty array so consumers always see a list.
func WriteJSON(w io.Writer, results *CrawlResults) error {
	if results.Results == nil {
		clone := *results
		clone.Results = []PageResult{}
		results = &clone
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes one row per crawled page. Always includes a header row.
// Column order: url, title, status_code, depth, content_type, error.
func WriteCSV(w io.Writer, results *CrawlResults) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "title", "status_code", "depth", "content_type", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, page := range results.Results {
		record := []string{
			page.URL,
			page.Title,
			strconv.Itoa(page.StatusCode),
			strconv.Itoa(page.Depth),
			page.ContentType,
			page.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", page.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// WriteLinks writes every discovered link, one per line, in the order
// pages were appended to the result set. Duplicate targets across pages
// are not deduplicated here; this is a raw link dump, not a sitemap.
func WriteLinks(w io.Writer, results *CrawlResults) error {
	for _, page := range results.Results {
		for _, link := range page.Links {
			if _, err := fmt.Fprintln(w, link); err != nil {
				return fmt.Errorf("write link %s: %w", link, err)
			}
		}
	}
	return nil
}

// WriteText writes a plain-text summary: one line per page, then totals.
func WriteText(w io.Writer, results *CrawlResults) error {
	writef := func(format string, a ...any) error {
		_, err := fmt.Fprintf(w, format, a...)
		return err
	}

	for _, page := range results.Results {
		if err := writef("%s [%d] %s\n", page.URL, page.StatusCode, page.Title); err != nil {
			return fmt.Errorf("write text line: %w", err)
		}
	}

	return writef(
		"\nCrawled %d pages (%d found, %d external, %d excluded, %d errors) in %dms\n",
		results.Stats.PagesCrawled, results.Stats.PagesFound, results.Stats.ExternalLinks,
		results.Stats.ExcludedLinks, results.Stats.Errors, results.Stats.DurationMS,
	)
}

// WriteMarkdown renders an LLM-friendly structured report over page
// metadata (title, URL, status, outgoing links) grouped by crawl depth.
// This is not an HTML-body-to-Markdown conversion — no page body is
// retained anywhere in the result set to convert.
func WriteMarkdown(w io.Writer, results *CrawlResults) error {
	writef := func(format string, a ...any) error {
		_, err := fmt.Fprintf(w, format, a...)
		return err
	}

	if err := writef("# Crawl Report\n\n"); err != nil {
		return err
	}
	if err := writef(
		"Pages crawled: %d | Found: %d | External: %d | Excluded: %d | Errors: %d | Duration: %dms\n\n",
		results.Stats.PagesCrawled, results.Stats.PagesFound, results.Stats.ExternalLinks,
		results.Stats.ExcludedLinks, results.Stats.Errors, results.Stats.DurationMS,
	); err != nil {
		return err
	}

	byDepth := groupByDepth(results.Results)
	depths := make([]int, 0, len(byDepth))
	for d := range byDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	for _, depth := range depths {
		if err := writef("## Depth %d\n\n", depth); err != nil {
			return err
		}
		for _, page := range byDepth[depth] {
			title := page.Title
			if title == "" {
				title = "No title"
			}
			if err := writef("- [%s](%s) — status %d, %d links\n", title, page.URL, page.StatusCode, len(page.Links)); err != nil {
				return fmt.Errorf("write markdown entry for %s: %w", page.URL, err)
			}
		}
		if err := writef("\n"); err != nil {
			return err
		}
	}

	return nil
}

func groupByDepth(pages []PageResult) map[int][]PageResult {
	grouped := make(map[int][]PageResult)
	for _, p := range pages {
		grouped[p.Depth] = append(grouped[p.Depth], p)
	}
	return grouped
}

// pageDegree tracks the in/out link counts used for the HTML report's
// static page graph table — an analogue of the original crawler's
// GraphNode visualization without pulling in a force-graph JS dependency.
type pageDegree struct {
	URL       string
	Title     string
	Status    int
	InDegree  int
	OutDegree int
}

func computeDegrees(pages []PageResult) []pageDegree {
	inDegree := make(map[string]int)
	index := make(map[string]int, len(pages))
	for i, p := range pages {
		index[p.URL] = i
		for _, link := range p.Links {
			inDegree[link]++
		}
	}

	degrees := make([]pageDegree, len(pages))
	for i, p := range pages {
		degrees[i] = pageDegree{
			URL:       p.URL,
			Title:     p.Title,
			Status:    p.StatusCode,
			InDegree:  inDegree[p.URL],
			OutDegree: len(p.Links),
		}
	}
	return degrees
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Crawl Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f0f0f0; }
.status-err { color: #b00020; }
</style>
</head>
<body>
<h1>Crawl Report</h1>
<p>
Pages crawled: {{.Stats.PagesCrawled}} | Found: {{.Stats.PagesFound}} |
External: {{.Stats.ExternalLinks}} | Excluded: {{.Stats.ExcludedLinks}} |
Errors: {{.Stats.Errors}} | Duration: {{.Stats.DurationMS}}ms
</p>
<h2>Pages</h2>
<table>
<tr><th>URL</th><th>Title</th><th>Status</th><th>In-links</th><th>Out-links</th></tr>
{{range .Degrees}}<tr>
<td><a href="{{.URL}}">{{.URL}}</a></td>
<td>{{.Title}}</td>
<td{{if ge .Status 400}} class="status-err"{{end}}>{{.Status}}</td>
<td>{{.InDegree}}</td>
<td>{{.OutDegree}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

// WriteHTML renders a static, dependency-free HTML report: summary stats
// plus a degree-annotated page table standing in for the original
// crawler's force-graph visualization (no such JS graphing library exists
// anywhere in the reference corpus, so a static table is used instead).
func WriteHTML(w io.Writer, results *CrawlResults) error {
	data := struct {
		Stats   CrawlStats
		Degrees []pageDegree
	}{
		Stats:   results.Stats,
		Degrees: computeDegrees(results.Results),
	}
	if err := htmlReportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// artifactFiles maps each format name to its writer and on-disk filename.
var artifactFiles = map[string]struct {
	filename string
	write    func(io.Writer, *CrawlResults) error
}{
	"json":     {"results.json", WriteJSON},
	"csv":      {"results.csv", WriteCSV},
	"markdown": {"results.md", WriteMarkdown},
	"html":     {"report.html", WriteHTML},
	"links":    {"links.txt", WriteLinks},
	"text":     {"results.txt", WriteText},
}

// WriteArtifacts renders the requested formats into dir, creating it if
// needed. Unknown format names are an error; a failure writing one format
// stops the run so the caller can surface it.
func WriteArtifacts(dir string, formats []string, res *CrawlResults) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, format := range formats {
		spec, ok := artifactFiles[format]
		if !ok {
			return fmt.Errorf("unknown output format %q", format)
		}

		path := filepath.Join(dir, spec.filename)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := spec.write(f, res); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	return nil
}

// ParseFormats splits a comma-separated format list (as accepted by the
// --formats CLI flag) into canonical lowercase format names, ignoring
// blank entries.
func ParseFormats(raw string) []string {
	parts := strings.Split(raw, ",")
	formats := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			formats = append(formats, p)
		}
	}
	return formats
}
