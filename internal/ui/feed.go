package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/foodcom/morsel/internal/api"
)

// handleFeedKey processes keyboard input for the feed view.
func (m Model) handleFeedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	posts := m.snapshot.Feed.Posts

	switch msg.String() {
	case "j", "down":
		if m.selectedRow < len(posts)-1 {
			m.selectedRow++
		}
	case "k", "up":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "g", "home":
		m.selectedRow = 0
	case "G", "end":
		if len(posts) > 0 {
			m.selectedRow = len(posts) - 1
		}

	case "enter":
		if len(posts) == 0 {
			return m, nil
		}
		return m.openPost(posts[m.selectedRow].ID, ViewFeed)

	case "]", "pgdown":
		if m.snapshot.HasFeed && m.snapshot.Feed.Last {
			return m, nil
		}
		return m.gotoPage(m.feedPage() + 1)

	case "[", "pgup":
		if m.feedPage() <= 1 {
			return m, nil
		}
		return m.gotoPage(m.feedPage() - 1)

	case "r":
		m.setStatus("refreshing feed...", false)
		m.refreshing = true
		return m, refreshFeedCmd(m.ctx, m.api, m.feed)

	case "n":
		var cmd tea.Cmd
		var ok bool
		if m, cmd, ok = m.requireLogin(); !ok {
			return m, cmd
		}
		m.compose.startNew()
		m.currentView = ViewCompose
		return m, textinput.Blink
	}

	return m, nil
}

func (m Model) gotoPage(page int) (tea.Model, tea.Cmd) {
	m.feed.SetPage(page)
	m.selectedRow = 0
	m.refreshing = true
	m.setStatus(fmt.Sprintf("loading page %d...", page), false)
	return m, refreshFeedCmd(m.ctx, m.api, m.feed)
}

// feedPage is the 1-based page the poller tracks.
func (m Model) feedPage() int {
	return m.feed.Page()
}

func (m *Model) clampSelection() {
	n := len(m.snapshot.Feed.Posts)
	if m.selectedRow >= n {
		m.selectedRow = n - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

func (m Model) selectedPost() *api.PostSummary {
	posts := m.snapshot.Feed.Posts
	if m.selectedRow < 0 || m.selectedRow >= len(posts) {
		return nil
	}
	return &posts[m.selectedRow]
}

// renderFeed renders the feed as a table with the selected row highlighted.
func (m Model) renderFeed() string {
	styles := m.theme.Styles()
	height := m.contentHeight()

	if !m.snapshot.HasFeed {
		msg := "Loading feed..."
		if m.snapshot.LastError != nil {
			msg = "Feed unavailable: " + describeError(m.snapshot.LastError)
		}
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, styles.MutedText.Render(msg))
	}

	posts := m.snapshot.Feed.Posts
	if len(posts) == 0 {
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render("No posts yet. Press n to write the first one."))
	}

	cols := feedColumns(m.width)
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(cols.header()))
	b.WriteString("\n")

	now := time.Now()
	visible := height - 2
	start := 0
	if m.selectedRow >= visible {
		start = m.selectedRow - visible + 1
	}
	for i := start; i < len(posts) && i-start < visible; i++ {
		row := cols.row(posts[i], now)
		if i == m.selectedRow {
			row = styles.Selected.Width(m.width).Render(row)
		} else {
			row = styles.Text.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	b.WriteString(styles.MutedText.Render(pageSummary(m.snapshot.Feed)))
	return lipgloss.NewStyle().Height(height).MaxHeight(height).Render(b.String())
}

type columns struct {
	title  int
	writer int
}

func feedColumns(width int) columns {
	writer := 14
	// 3 gaps + comments + age
	title := width - writer - 8 - 6 - 6
	if title < 12 {
		title = 12
	}
	return columns{title: title, writer: writer}
}

func (c columns) header() string {
	return fmt.Sprintf("%-*s  %-*s  %6s  %4s", c.title, "TITLE", c.writer, "WRITER", "NOTES", "AGE")
}

func (c columns) row(p api.PostSummary, now time.Time) string {
	age := "-"
	if t := p.CreatedAt.Time(); !t.IsZero() {
		age = humanizeDuration(now.Sub(t))
	}
	return fmt.Sprintf("%-*s  %-*s  %6d  %4s",
		c.title, truncateEnd(p.Title, c.title),
		c.writer, truncateEnd(p.Writer, c.writer),
		p.CommentCount, age)
}

func pageSummary(p api.PostPage) string {
	total := p.TotalPages
	if total < 1 {
		total = 1
	}
	return fmt.Sprintf("page %d/%d · %d posts", p.Number+1, total, p.TotalElements)
}
