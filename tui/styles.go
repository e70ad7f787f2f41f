package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/corvidwing/webreach/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder defines the display order for error categories (most to
// least actionable).
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryUnknown,
}

// summaryPageLimit caps how many pages the summary table shows.
const summaryPageLimit = 25

// RenderSummary produces a Lip Gloss styled summary of crawl results.
// categories carries the per-category error tallies collected from
// progress events (failed fetches record no PageResult).
func RenderSummary(res *result.CrawlResults, categories map[result.ErrorCategory]int) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	stats := res.Stats
	headline := fmt.Sprintf("Crawled %d pages (%d found, %d external, %d excluded) in %dms",
		stats.PagesCrawled, stats.PagesFound, stats.ExternalLinks, stats.ExcludedLinks, stats.DurationMS)
	if stats.Errors == 0 {
		builder.WriteString(successStyle.Render(headline))
	} else {
		builder.WriteString(titleStyle.Render(headline))
	}
	builder.WriteString("\n")

	if stats.Errors > 0 {
		builder.WriteString(errorStyle.Render(fmt.Sprintf("%d fetch errors", stats.Errors)))
		builder.WriteString("\n")
		for _, cat := range categoryOrder {
			count := categories[cat]
			if count == 0 {
				continue
			}
			builder.WriteString(categoryStyle.Render(fmt.Sprintf("  %s: %d", result.FormatCategory(cat), count)))
			builder.WriteString("\n")
		}
	}

	if len(res.Results) == 0 {
		return builder.String()
	}

	builder.WriteString("\n")

	rows := make([][]string, 0, min(len(res.Results), summaryPageLimit))
	for i, page := range res.Results {
		if i == summaryPageLimit {
			break
		}
		rows = append(rows, []string{
			page.URL,
			fmt.Sprintf("%d", page.StatusCode),
			page.Title,
			fmt.Sprintf("%d", len(page.Links)),
		})
	}

	pageTable := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("URL", "Status", "Title", "Links").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return statusErrorStyle
			}
			return urlStyle
		}).
		Rows(rows...)

	builder.WriteString(pageTable.Render())
	builder.WriteString("\n")

	if len(res.Results) > summaryPageLimit {
		builder.WriteString(dimStyle.Render(fmt.Sprintf("… and %d more pages in the written artifacts", len(res.Results)-summaryPageLimit)))
		builder.WriteString("\n")
	}

	return builder.String()
}
