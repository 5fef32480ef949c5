package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/foodcom/morsel/internal/api"
)

type myPageState struct {
	data     *api.MyPage
	page     int // 1-based
	selected int
	loading  bool
	renaming bool
	rename   textinput.Model
}

func newMyPageState() myPageState {
	rename := textinput.New()
	rename.Prompt = "New name  "
	rename.Placeholder = "display name"
	rename.CharLimit = 20
	return myPageState{page: 1, rename: rename}
}

func (m Model) openMyPage() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var ok bool
	if m, cmd, ok = m.requireLogin(); !ok {
		return m, cmd
	}
	m.currentView = ViewMyPage
	m.mypage.loading = true
	m.clearStatus()
	return m, loadMyPageCmd(m.ctx, m.api, m.mypage.page)
}

func (m Model) handleMyPage(msg myPageMsg) (tea.Model, tea.Cmd) {
	m.mypage.loading = false
	if msg.err != nil {
		return m.fail(msg.err)
	}
	m.mypage.data = msg.page
	if n := len(msg.page.Posts); m.mypage.selected >= n {
		m.mypage.selected = max(n-1, 0)
	}
	return m, nil
}

// handleMyPageKey processes keyboard input for the profile view.
func (m Model) handleMyPageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var posts []api.Post
	if m.mypage.data != nil {
		posts = m.mypage.data.Posts
	}

	switch msg.String() {
	case "j", "down":
		if m.mypage.selected < len(posts)-1 {
			m.mypage.selected++
		}
	case "k", "up":
		if m.mypage.selected > 0 {
			m.mypage.selected--
		}

	case "enter":
		if m.mypage.selected < len(posts) {
			return m.openPost(posts[m.mypage.selected].UUID, ViewMyPage)
		}

	case "]", "pgdown":
		if m.mypage.data != nil && m.mypage.page < m.mypage.data.TotalPages {
			m.mypage.page++
			m.mypage.selected = 0
			return m, loadMyPageCmd(m.ctx, m.api, m.mypage.page)
		}

	case "[", "pgup":
		if m.mypage.page > 1 {
			m.mypage.page--
			m.mypage.selected = 0
			return m, loadMyPageCmd(m.ctx, m.api, m.mypage.page)
		}

	case "r":
		m.mypage.loading = true
		return m, loadMyPageCmd(m.ctx, m.api, m.mypage.page)

	case "R":
		m.mypage.renaming = true
		if m.mypage.data != nil {
			m.mypage.rename.SetValue(m.mypage.data.Username)
			m.mypage.rename.CursorEnd()
		}
		m.mypage.rename.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

// handleRenameKey processes keyboard input for the rename box.
func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mypage.renaming = false
		m.mypage.rename.Blur()
		return m, nil

	case "enter":
		if m.busy {
			return m, nil
		}
		name := strings.TrimSpace(m.mypage.rename.Value())
		if name == "" {
			m.setStatus("name is empty", true)
			return m, nil
		}
		m.mypage.renaming = false
		m.mypage.rename.Blur()
		m.busy = true
		m.setStatus("updating profile...", false)
		return m, updateProfileCmd(m.ctx, m.api, api.ProfileUpdate{NewName: name})
	}

	var cmd tea.Cmd
	m.mypage.rename, cmd = m.mypage.rename.Update(msg)
	return m, cmd
}

// renderMyPage renders the profile card and the member's own posts.
func (m Model) renderMyPage() string {
	styles := m.theme.Styles()
	height := m.contentHeight()

	data := m.mypage.data
	if data == nil {
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render("Loading profile..."))
	}

	label := styles.MutedText.Width(10)
	var card strings.Builder
	card.WriteString(label.Render("Login id") + styles.Text.Render(data.LoginID) + "\n")
	card.WriteString(label.Render("Name") + styles.Text.Render(data.Username) + "\n")
	card.WriteString(label.Render("Gender") + styles.Text.Render(strings.ToLower(string(data.Gender))) + "\n")
	card.WriteString(label.Render("Age") + styles.Text.Render(fmt.Sprintf("%d", data.Age)))

	var b strings.Builder
	b.WriteString(styles.Panel.Render(card.String()))
	b.WriteString("\n")
	if m.mypage.renaming {
		b.WriteString(m.mypage.rename.View())
		b.WriteString("\n")
	}

	b.WriteString(styles.AccentText.Bold(true).Render(fmt.Sprintf("Your posts (%d)", data.TotalElements)))
	b.WriteString("\n")
	if len(data.Posts) == 0 {
		b.WriteString(styles.FaintText.Render("nothing posted yet"))
	}
	for i, p := range data.Posts {
		row := fmt.Sprintf("%-*s %3d comments", max(m.width-16, 10), truncateEnd(p.Title, max(m.width-16, 10)), len(p.Comments))
		if i == m.mypage.selected {
			b.WriteString(styles.Selected.Render(row))
		} else {
			b.WriteString(styles.Text.Render(row))
		}
		b.WriteString("\n")
	}
	if data.TotalPages > 1 {
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("page %d/%d", m.mypage.page, data.TotalPages)))
	}
	return lipgloss.NewStyle().MaxHeight(height).Render(b.String())
}
