package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/authclient"
)

const maxCommentLength = 300

// detailState holds the open post and its comment box.
type detailState struct {
	postID        string
	post          *api.Post
	returnTo      View
	loading       bool
	viewport      viewport.Model
	comment       textinput.Model
	commenting    bool
	confirmDelete bool
}

func newDetailState(id string, returnTo View, width, height int) detailState {
	comment := textinput.New()
	comment.Prompt = "› "
	comment.Placeholder = "write a comment"
	comment.CharLimit = maxCommentLength

	d := detailState{
		postID:   id,
		returnTo: returnTo,
		loading:  true,
		viewport: viewport.New(width, height),
		comment:  comment,
	}
	d.resize(width, height)
	return d
}

func (d *detailState) resize(width, height int) {
	// The last two rows belong to the comment box.
	h := height - 2
	if h < 1 {
		h = 1
	}
	d.viewport.Width = width
	d.viewport.Height = h
	d.comment.Width = width - 4
}

func (m Model) openPost(id string, from View) (Model, tea.Cmd) {
	m.detail = newDetailState(id, from, m.width, m.contentHeight())
	m.currentView = ViewDetail
	m.clearStatus()
	return m, loadPostCmd(m.ctx, m.api, id)
}

func (m Model) handlePost(msg postMsg) (tea.Model, tea.Cmd) {
	m.detail.loading = false
	if msg.err != nil {
		if authclient.IsNotFound(msg.err) {
			m.currentView = m.detail.returnTo
			m.setStatus("post no longer exists", true)
			return m, refreshFeedCmd(m.ctx, m.api, m.feed)
		}
		return m.fail(msg.err)
	}
	if msg.post == nil || (m.detail.postID != "" && msg.post.UUID != "" && msg.post.UUID != m.detail.postID) {
		return m, nil
	}
	m.detail.post = msg.post
	m.detail.viewport.SetContent(m.renderPostBody(msg.post))
	return m, nil
}

// handleDetailKey processes keyboard input for the post detail view.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	confirming := m.detail.confirmDelete
	m.detail.confirmDelete = false

	switch msg.String() {
	case "r":
		m.detail.loading = true
		return m, loadPostCmd(m.ctx, m.api, m.detail.postID)

	case "c":
		var cmd tea.Cmd
		var ok bool
		if m, cmd, ok = m.requireLogin(); !ok {
			return m, cmd
		}
		m.detail.commenting = true
		m.detail.comment.Focus()
		return m, textinput.Blink

	case "e":
		if m.detail.post == nil {
			return m, nil
		}
		var cmd tea.Cmd
		var ok bool
		if m, cmd, ok = m.requireLogin(); !ok {
			return m, cmd
		}
		m.compose.startEdit(m.detail.postID, m.detail.post)
		m.currentView = ViewCompose
		return m, textinput.Blink

	case "D":
		if m.detail.post == nil || m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		var ok bool
		if m, cmd, ok = m.requireLogin(); !ok {
			return m, cmd
		}
		if !confirming {
			m.detail.confirmDelete = true
			m.setStatus("press D again to delete this post", true)
			return m, nil
		}
		m.busy = true
		m.setStatus("deleting post...", false)
		return m, deletePostCmd(m.ctx, m.api, m.detail.postID)
	}

	if confirming {
		m.clearStatus()
	}
	var cmd tea.Cmd
	m.detail.viewport, cmd = m.detail.viewport.Update(msg)
	return m, cmd
}

// handleCommentKey processes keyboard input while the comment box has focus.
func (m Model) handleCommentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.detail.commenting = false
		m.detail.comment.Blur()
		m.detail.comment.Reset()
		return m, nil

	case "enter":
		if m.busy {
			return m, nil
		}
		content := strings.TrimSpace(m.detail.comment.Value())
		if content == "" {
			m.setStatus("comment is empty", true)
			return m, nil
		}
		m.busy = true
		m.detail.commenting = false
		m.detail.comment.Blur()
		m.setStatus("posting comment...", false)
		return m, addCommentCmd(m.ctx, m.api, m.detail.postID, content)
	}

	var cmd tea.Cmd
	m.detail.comment, cmd = m.detail.comment.Update(msg)
	return m, cmd
}

func (m Model) renderPostBody(p *api.Post) string {
	styles := m.theme.Styles()
	width := m.detail.viewport.Width
	if width < 20 {
		width = 20
	}
	now := time.Now()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(p.Title))
	b.WriteString("\n")
	byline := "by " + p.UserName
	if t := p.CreatedAt.Time(); !t.IsZero() {
		byline += " · " + humanizeDuration(now.Sub(t)) + " ago"
	}
	b.WriteString(styles.MutedText.Render(byline))
	b.WriteString("\n\n")

	if strings.TrimSpace(p.Content) != "" {
		b.WriteString(lipgloss.NewStyle().Width(width).Render(p.Content))
		b.WriteString("\n\n")
	}

	if len(p.Images) > 0 || len(p.ImageURLs) > 0 {
		b.WriteString(styles.AccentText.Bold(true).Render("Images"))
		b.WriteString("\n")
		for _, line := range imageLines(p) {
			b.WriteString(styles.InfoText.Render(truncateMiddle(line, width)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.AccentText.Bold(true).Render(fmt.Sprintf("Comments (%d)", len(p.Comments))))
	b.WriteString("\n")
	if len(p.Comments) == 0 {
		b.WriteString(styles.FaintText.Render("no comments yet"))
		b.WriteString("\n")
	}
	for _, c := range p.Comments {
		head := c.Writer
		if t := c.CreatedAt.Time(); !t.IsZero() {
			head += " · " + humanizeDuration(now.Sub(t))
		}
		b.WriteString(styles.WarningText.Render(head))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).PaddingLeft(2).Render(c.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// imageLines lists attachments with their ids when the backend sends them,
// since the ids are what the edit form deletes by.
func imageLines(p *api.Post) []string {
	if len(p.Images) > 0 {
		lines := make([]string, 0, len(p.Images))
		for _, img := range p.Images {
			lines = append(lines, fmt.Sprintf("#%d %s", img.ID, img.URL))
		}
		return lines
	}
	return append([]string(nil), p.ImageURLs...)
}

// renderDetail renders the post viewport and the comment box beneath it.
func (m Model) renderDetail() string {
	styles := m.theme.Styles()
	if m.detail.post == nil {
		return lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render("Loading post..."))
	}

	var b strings.Builder
	b.WriteString(m.detail.viewport.View())
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", max(m.width, 1))))
	b.WriteString("\n")
	if m.detail.commenting {
		b.WriteString(m.detail.comment.View())
	} else {
		b.WriteString(styles.FaintText.Render("c: comment   e: edit   D: delete   esc: back"))
	}
	return b.String()
}
