package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/corvidwing/webreach/crawler"
	"github.com/corvidwing/webreach/result"
)

// CrawlProgressMsg wraps one engine progress event.
type CrawlProgressMsg struct {
	Event crawler.CrawlEvent
}

// CrawlDoneMsg signals the crawl has completed.
type CrawlDoneMsg struct {
	Results *result.CrawlResults
	Err     error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. When the channel closes, it returns a CrawlDoneMsg with nil
// Results (the actual results come from startCrawl).
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return CrawlDoneMsg{}
		}
		return CrawlProgressMsg{Event: evt}
	}
}
