package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Back       key.Binding
	Logout     key.Binding

	// View switching
	ViewMyPage   key.Binding
	ViewActivity key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	Open     key.Binding
	Refresh  key.Binding

	// Post actions
	NewPost key.Binding
	Comment key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Rename  key.Binding

	// Forms
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		// Global
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Log out"),
		),

		// View switching
		ViewMyPage: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "My page"),
		),
		ViewActivity: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Activity log"),
		),

		// Navigation
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "pgup"),
			key.WithHelp("[", "Previous page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "pgdown"),
			key.WithHelp("]", "Next page"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open post"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),

		// Post actions
		NewPost: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New post"),
		),
		Comment: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Comment"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Edit post"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Delete post"),
		),
		Rename: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Rename"),
		),

		// Forms
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "Submit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.PrevPage, k.NextPage},
		{k.Open, k.Refresh, k.ViewMyPage, k.ViewActivity, k.Back},
		{k.NewPost, k.Comment, k.Edit, k.Delete, k.Rename},
		{k.NextField, k.PrevField, k.Submit},
		{k.CycleTheme, k.Logout, k.Help, k.Quit},
	}
}

// viewHints returns the bindings shown in the command bar for a view.
func (k keyMap) viewHints(v View) []key.Binding {
	switch v {
	case ViewLogin:
		return []key.Binding{k.NextField, withHelp(k.Open, "enter", "Log in"), withHelp(k.Back, "esc", "Browse")}
	case ViewFeed:
		return []key.Binding{k.Open, k.NewPost, k.PrevPage, k.NextPage, k.Refresh, k.ViewMyPage, k.ViewActivity, k.Help}
	case ViewDetail:
		return []key.Binding{k.Comment, k.Edit, k.Delete, k.Refresh, k.Back}
	case ViewCompose:
		return []key.Binding{k.NextField, k.Submit, withHelp(k.Back, "esc", "Cancel")}
	case ViewMyPage:
		return []key.Binding{k.Open, k.Rename, k.Refresh, k.Back}
	case ViewActivity:
		return []key.Binding{k.Up, k.Down, k.Refresh, k.Back}
	default:
		return k.ShortHelp()
	}
}

func withHelp(b key.Binding, keyLabel, desc string) key.Binding {
	b.SetHelp(keyLabel, desc)
	return b
}
