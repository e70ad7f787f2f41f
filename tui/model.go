// Package tui provides the Bubble Tea terminal UI for webreach, displaying
// live crawl progress and a styled summary of results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/corvidwing/webreach/crawler"
	"github.com/corvidwing/webreach/result"
)

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	engine     *crawler.Engine
	spinner    spinner.Model
	progressCh <-chan crawler.CrawlEvent

	found      int
	crawled    int
	errors     int
	current    string
	categories map[result.ErrorCategory]int
	quitting   bool
	done       bool
	results    *result.CrawlResults
	err        error
	width      int
}

// NewModel creates a TUI model wired to the given engine and progress channel.
func NewModel(ctx context.Context, cancel context.CancelFunc, engine *crawler.Engine, progressCh <-chan crawler.CrawlEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		engine:     engine,
		spinner:    spin,
		progressCh: progressCh,
		categories: make(map[result.ErrorCategory]int),
	}
}

// Init starts the spinner, crawl, and progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForProgress(m.progressCh))
}

// startCrawl returns a tea.Cmd that runs the engine and sends CrawlDoneMsg.
func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		res, err := m.engine.Crawl(m.ctx)
		if err != nil {
			err = fmt.Errorf("crawl: %w", err)
		}
		return CrawlDoneMsg{Results: res, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.engine.Shutdown()
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CrawlProgressMsg:
		evt := msg.Event
		m.found = evt.PagesFound
		m.crawled = evt.PagesCrawled
		m.errors = evt.Errors
		m.current = evt.URL
		if evt.Category != "" {
			m.categories[evt.Category]++
		}
		return m, waitForProgress(m.progressCh)

	case CrawlDoneMsg:
		m.done = true
		if msg.Results != nil {
			m.results = msg.Results
		}
		if msg.Err != nil {
			m.err = msg.Err
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.results != nil {
		return RenderSummary(m.results, m.categories)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	return fmt.Sprintf("%s Crawling... crawled %d of %d found, %d errors\n%s\n",
		m.spinner.View(), m.crawled, m.found, m.errors,
		dimStyle.Render("  "+m.current))
}

// GetResults returns the crawl results for artifact writing.
func (m Model) GetResults() *result.CrawlResults {
	return m.results
}

// HasErrors reports whether the crawl recorded any fetch errors.
func (m Model) HasErrors() bool {
	return m.results != nil && m.results.Stats.Errors > 0
}
