package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/foodcom/morsel/internal/logtail"
)

// activityState shows the client's own log: requests, reissues, failures.
type activityState struct {
	entries  []logtail.Entry
	err      error
	follow   bool
	viewport viewport.Model
}

func newActivityState() activityState {
	return activityState{follow: true, viewport: viewport.New(0, 0)}
}

func (a *activityState) resize(width, height int) {
	a.viewport.Width = width
	a.viewport.Height = height
}

func (m *Model) handleActivity(msg activityMsg) {
	m.activity.err = msg.err
	if msg.err == nil {
		m.activity.entries = msg.entries
	}
	m.activity.viewport.SetContent(m.renderActivityLines())
	if m.activity.follow {
		m.activity.viewport.GotoBottom()
	}
}

// handleActivityKey processes keyboard input for the activity view.
func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		return m, loadActivityCmd(m.logPath)
	case " ":
		m.activity.follow = !m.activity.follow
		if m.activity.follow {
			m.activity.viewport.GotoBottom()
		}
		return m, nil
	case "G", "end":
		m.activity.follow = true
		m.activity.viewport.GotoBottom()
		return m, nil
	case "g", "home":
		m.activity.follow = false
		m.activity.viewport.GotoTop()
		return m, nil
	case "k", "up", "pgup", "ctrl+u":
		m.activity.follow = false
	}

	var cmd tea.Cmd
	m.activity.viewport, cmd = m.activity.viewport.Update(msg)
	return m, cmd
}

func (m Model) renderActivityLines() string {
	styles := m.theme.Styles()
	if m.activity.err != nil {
		return styles.DangerText.Render("cannot read " + m.logPath + ": " + m.activity.err.Error())
	}
	if len(m.activity.entries) == 0 {
		return styles.MutedText.Render("no activity logged yet")
	}

	lines := make([]string, 0, len(m.activity.entries))
	for _, e := range m.activity.entries {
		lines = append(lines, formatEntry(styles, e))
	}
	return strings.Join(lines, "\n")
}

// formatEntry renders "15:04:05 INFO  [authclient] message key=value".
func formatEntry(styles Styles, e logtail.Entry) string {
	if e.Time.IsZero() && e.Component == "" && len(e.Attrs) == 0 {
		return styles.MutedText.Render(e.Message)
	}

	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(styles.LevelStyle(e.Level).Render(padRight(e.Level.String(), 5)))
	b.WriteString(" ")
	if e.Component != "" {
		b.WriteString(styles.AccentText.Render("[" + e.Component + "]"))
		b.WriteString(" ")
	}
	b.WriteString(styles.Text.Render(e.Message))
	for _, a := range e.Attrs {
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(a.Key + "="))
		b.WriteString(styles.InfoText.Render(a.Value))
	}
	return b.String()
}

// renderActivity renders the activity viewport.
func (m Model) renderActivity() string {
	return m.activity.viewport.View()
}
