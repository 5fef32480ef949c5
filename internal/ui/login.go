package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/foodcom/morsel/internal/authclient"
	"github.com/foodcom/morsel/internal/prefs"
)

const (
	loginFieldID = iota
	loginFieldPassword
)

type loginForm struct {
	inputs   [2]textinput.Model
	focusIdx int
}

func newLoginForm(lastLoginID string) loginForm {
	id := textinput.New()
	id.Prompt = "Login id  "
	id.Placeholder = "5 to 20 characters"
	id.CharLimit = 32
	id.SetValue(lastLoginID)

	pw := textinput.New()
	pw.Prompt = "Password  "
	pw.Placeholder = "password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = 64

	f := loginForm{inputs: [2]textinput.Model{id, pw}}
	f.reset()
	return f
}

// reset clears the password and focuses the first empty field.
func (f *loginForm) reset() {
	f.inputs[loginFieldPassword].Reset()
	if strings.TrimSpace(f.inputs[loginFieldID].Value()) == "" {
		f.setFocus(loginFieldID)
	} else {
		f.setFocus(loginFieldPassword)
	}
}

func (f *loginForm) setFocus(idx int) {
	f.focusIdx = idx
	for i := range f.inputs {
		if i == idx {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
}

func (f *loginForm) blur() {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f loginForm) update(msg tea.Msg) (loginForm, tea.Cmd) {
	var cmd tea.Cmd
	f.inputs[f.focusIdx], cmd = f.inputs[f.focusIdx].Update(msg)
	return f, cmd
}

func (f loginForm) values() (string, string) {
	return strings.TrimSpace(f.inputs[loginFieldID].Value()), f.inputs[loginFieldPassword].Value()
}

// handleLoginKey processes keyboard input for the login form.
func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		// Browse the public feed as a guest.
		m.login.blur()
		m.clearStatus()
		m.currentView = ViewFeed
		return m, nil

	case "tab", "shift+tab", "up", "down":
		m.login.setFocus((m.login.focusIdx + 1) % len(m.login.inputs))
		return m, textinput.Blink

	case "enter":
		loginID, password := m.login.values()
		if m.login.focusIdx == loginFieldID && password == "" {
			m.login.setFocus(loginFieldPassword)
			return m, textinput.Blink
		}
		if loginID == "" || password == "" {
			m.setStatus("login id and password are required", true)
			return m, nil
		}
		m.busy = true
		m.setStatus(fmt.Sprintf("logging in as %s...", loginID), false)
		return m, loginCmd(m.ctx, m.api, loginID, password)
	}

	var cmd tea.Cmd
	m.login, cmd = m.login.update(msg)
	return m, cmd
}

func (m Model) handleLogin(msg loginMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.login.reset()
		var upstream *authclient.UpstreamError
		if errors.As(msg.err, &upstream) && errors.Is(msg.err, authclient.ErrUnauthorized) {
			m.setStatus("invalid login id or password", true)
			return m, textinput.Blink
		}
		m.setStatus(describeError(msg.err), true)
		return m, textinput.Blink
	}

	m.login.inputs[loginFieldPassword].Reset()
	m.login.blur()
	if m.prefsPath != "" {
		loginID := msg.user.LoginID
		_ = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.LastLoginID = loginID })
	}
	m.currentView = ViewFeed
	m.setStatus(fmt.Sprintf("logged in as %s", msg.user.DisplayName), false)
	return m, refreshFeedCmd(m.ctx, m.api, m.feed)
}

// renderLogin renders the centered login panel.
func (m Model) renderLogin() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Logo.Render("foodcom"))
	b.WriteString(styles.MutedText.Render("  log in"))
	b.WriteString("\n\n")
	for i := range m.login.inputs {
		b.WriteString(m.login.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter: log in   tab: switch field   esc: browse as guest"))

	panel := styles.FocusedPanel.Width(52).Render(b.String())
	return lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, panel)
}
