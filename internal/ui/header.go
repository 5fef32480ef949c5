package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the status bar: who is logged in, where we are and
// whether the backend is answering.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)

	parts := []string{bg.Render("morsel", styles.Logo)}

	if user := m.currentUser(); m.loggedIn() && user != nil {
		parts = append(parts,
			bg.Render("●", styles.SuccessText)+bg.Space()+
				bg.Render(user.DisplayName, styles.Text)+bg.Space()+
				bg.Render("("+user.LoginID+")", styles.MutedText))
	} else {
		parts = append(parts, bg.Render("○ guest", styles.MutedText))
	}

	parts = append(parts, bg.Render(m.currentView.String(), styles.AccentText))

	if m.currentView == ViewFeed && m.snapshot.HasFeed {
		parts = append(parts,
			bg.Render("Page:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", m.feedPage()), styles.Text))
	}

	switch {
	case m.snapshot.IsOffline():
		parts = append(parts,
			bg.Render(classifyConnectionError(m.snapshot.LastError), styles.DangerText),
			bg.Render("Retrying...", styles.WarningText.Bold(true)))
	case !m.snapshot.LastUpdated.IsZero():
		parts = append(parts, bg.Render("updated "+humanizeDuration(time.Since(m.snapshot.LastUpdated))+" ago", styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, sep))
}

// classifyConnectionError turns a poll failure into a short header badge.
func classifyConnectionError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	colon := bg.Sep(":")
	hints := m.keys.viewHints(m.currentView)
	segments := make([]string, 0, len(hints)+1)
	for _, h := range hints {
		help := h.Help()
		segments = append(segments,
			bg.Render(help.Key, styles.AccentText)+colon+bg.Render(help.Desc, styles.MutedText))
	}

	if m.currentView == ViewActivity {
		label := "Follow"
		if m.activity.follow {
			label = "Pause"
		}
		segments = append(segments,
			bg.Render("Space", styles.AccentText)+colon+bg.Render(label, styles.MutedText))
	}

	// Add theme indicator
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Footer.Width(m.width).Render(bg.Join(segments, "  "))
}

// renderStatusLine renders the outcome of the last action.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	switch {
	case m.status == "":
		return ""
	case m.statusError:
		return styles.DangerText.Render(truncateEnd(m.status, m.width))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Success)).Render(truncateEnd(m.status, m.width))
	}
}
