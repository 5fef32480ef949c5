package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/authclient"
	"github.com/foodcom/morsel/internal/prefs"
	"github.com/foodcom/morsel/internal/session"
	"github.com/foodcom/morsel/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewLogin View = iota
	ViewFeed
	ViewDetail
	ViewCompose
	ViewMyPage
	ViewActivity
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "Login"
	case ViewFeed:
		return "Feed"
	case ViewDetail:
		return "Post"
	case ViewCompose:
		return "Compose"
	case ViewMyPage:
		return "My page"
	case ViewActivity:
		return "Activity"
	default:
		return "?"
	}
}

// API is everything the UI asks of the backend. *api.Client implements it.
type API interface {
	api.Backend
	Login(ctx context.Context, loginID, password string) (session.User, error)
	Logout(ctx context.Context) error
	CreatePost(ctx context.Context, draft api.Draft) (string, error)
	UpdatePost(ctx context.Context, id string, draft api.Draft) error
	DeletePost(ctx context.Context, id string) error
	AddComment(ctx context.Context, postID, content string) error
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) error
}

var _ API = (*api.Client)(nil)

// Options configures the UI.
type Options struct {
	Context     context.Context
	API         API
	Session     *session.Store
	Feed        *state.Store
	AuthExpired <-chan error // fires when the transport gives up on the session
	PollTick    time.Duration
	ThemeName   string
	LastLoginID string
	PrefsPath   string
	LogPath     string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx         context.Context
	api         API
	session     *session.Store
	feed        *state.Store
	authExpired <-chan error
	prefsPath   string
	logPath     string
	pollTick    time.Duration

	// UI state
	keys        keyMap
	help        help.Model
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	busy        bool // an API call started by a key is in flight
	refreshing  bool // a manual feed refresh is in flight

	// Status line
	status      string
	statusError bool

	// Feed state
	snapshot    state.Snapshot
	lastUpdated time.Time
	selectedRow int

	login    loginForm
	detail   detailState
	compose  composeForm
	mypage   myPageState
	activity activityState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = time.Second
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	feed := opts.Feed
	if feed == nil {
		feed = &state.Store{}
	}

	m := Model{
		ctx:         ctx,
		api:         opts.API,
		session:     opts.Session,
		feed:        feed,
		authExpired: opts.AuthExpired,
		prefsPath:   prefsPath,
		logPath:     opts.LogPath,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(themeName),
		currentView: ViewFeed,
		login:       newLoginForm(opts.LastLoginID),
		compose:     newComposeForm(),
		mypage:      newMyPageState(),
		activity:    newActivityState(),
	}
	if !m.loggedIn() {
		m.currentView = ViewLogin
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
		fetchSnapshotCmd(m.feed),
		waitAuthExpiredCmd(m.authExpired),
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		m.clampSelection()
		if m.refreshing {
			m.refreshing = false
			m.clearStatus()
			if m.snapshot.LastError != nil {
				m.setStatus(describeError(m.snapshot.LastError), true)
			}
		}
		return m, nil

	case authExpiredMsg:
		m = m.expireSession()
		return m, tea.Batch(textinput.Blink, waitAuthExpiredCmd(m.authExpired))

	case loginMsg:
		return m.handleLogin(msg)

	case logoutMsg:
		m.busy = false
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m = m.toLogin()
		m.setStatus("logged out", false)
		return m, textinput.Blink

	case postMsg:
		return m.handlePost(msg)

	case postSavedMsg:
		return m.handlePostSaved(msg)

	case postDeletedMsg:
		m.busy = false
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.currentView = ViewFeed
		m.detail = detailState{}
		m.setStatus("post deleted", false)
		return m, refreshFeedCmd(m.ctx, m.api, m.feed)

	case commentAddedMsg:
		m.busy = false
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.detail.comment.Reset()
		m.setStatus("comment added", false)
		return m, loadPostCmd(m.ctx, m.api, msg.postID)

	case myPageMsg:
		return m.handleMyPage(msg)

	case profileUpdatedMsg:
		m.busy = false
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.setStatus("profile updated", false)
		return m, loadMyPageCmd(m.ctx, m.api, m.mypage.page)

	case activityMsg:
		m.handleActivity(msg)
		return m, nil
	}

	return m.updateInputs(msg)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	// Show help overlay if active
	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleKey routes keyboard input. Forms get first refusal on everything
// except ctrl+c so that typing is never swallowed by a shortcut.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Handle help overlay
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch m.currentView {
	case ViewLogin:
		return m.handleLoginKey(msg)
	case ViewCompose:
		return m.handleComposeKey(msg)
	case ViewDetail:
		if m.detail.commenting {
			return m.handleCommentKey(msg)
		}
	case ViewMyPage:
		if m.mypage.renaming {
			return m.handleRenameKey(msg)
		}
	}

	// Global keys
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "h", "?":
		m.showHelp = true
		return m, nil

	case "T":
		m.theme = GetTheme(NextTheme(m.theme.Name))
		name := m.theme.Name
		if m.prefsPath != "" {
			_ = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = name })
		}
		return m, nil

	case "L":
		if !m.loggedIn() {
			m = m.toLogin()
			return m, textinput.Blink
		}
		m.busy = true
		return m, logoutCmd(m.ctx, m.api)

	case "m":
		return m.openMyPage()

	case "a":
		m.currentView = ViewActivity
		return m, loadActivityCmd(m.logPath)

	case "esc":
		m.clearStatus()
		switch m.currentView {
		case ViewDetail:
			m.currentView = m.detail.returnTo
		default:
			m.currentView = ViewFeed
		}
		return m, nil
	}

	// View-specific keys
	switch m.currentView {
	case ViewFeed:
		return m.handleFeedKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewMyPage:
		return m.handleMyPageKey(msg)
	case ViewActivity:
		return m.handleActivityKey(msg)
	}

	return m, nil
}

// updateInputs forwards non-key messages (cursor blink and the like) to
// the focused input.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewLogin:
		m.login, cmd = m.login.update(msg)
	case ViewCompose:
		m.compose, cmd = m.compose.update(msg)
	case ViewDetail:
		if m.detail.commenting {
			m.detail.comment, cmd = m.detail.comment.Update(msg)
		}
	case ViewMyPage:
		if m.mypage.renaming {
			m.mypage.rename, cmd = m.mypage.rename.Update(msg)
		}
	}
	return m, cmd
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{fetchSnapshotCmd(m.feed)}

	if m.currentView == ViewActivity && m.activity.follow {
		cmds = append(cmds, loadActivityCmd(m.logPath))
	}

	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// fail routes an error from an API call. A terminal auth failure means the
// transport already cleared the session, so the only way on is to log in.
func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	m.busy = false
	var authErr *authclient.AuthError
	if errors.As(err, &authErr) {
		m = m.expireSession()
		return m, textinput.Blink
	}
	m.setStatus(describeError(err), true)
	return m, nil
}

func (m Model) expireSession() Model {
	m = m.toLogin()
	m.setStatus("session expired, please log in again", true)
	return m
}

func (m Model) toLogin() Model {
	m.currentView = ViewLogin
	m.detail = detailState{}
	m.mypage = newMyPageState()
	m.login.reset()
	return m
}

// requireLogin sends guests to the login form before a member-only action.
func (m Model) requireLogin() (Model, tea.Cmd, bool) {
	if m.loggedIn() {
		return m, nil, true
	}
	m = m.toLogin()
	m.setStatus("log in first", true)
	return m, textinput.Blink, false
}

func (m Model) loggedIn() bool {
	return m.session != nil && m.session.Read().IsAuthenticated
}

func (m Model) currentUser() *session.User {
	if m.session == nil {
		return nil
	}
	return m.session.Read().User
}

func (m *Model) setStatus(text string, isError bool) {
	m.status = text
	m.statusError = isError
}

func (m *Model) clearStatus() {
	m.status = ""
	m.statusError = false
}

// contentHeight is what remains below the header, command bar and status line.
func (m Model) contentHeight() int {
	h := m.height - 3
	if h < 3 {
		return 3
	}
	return h
}

func (m *Model) resize() {
	m.detail.resize(m.width, m.contentHeight())
	m.activity.resize(m.width, m.contentHeight())
	m.compose.resize(m.width, m.contentHeight())
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	// Header line 1: logo + status
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	// Header line 2: command bar
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	// Main content
	b.WriteString(m.renderContent())
	b.WriteString("\n")

	b.WriteString(m.renderStatusLine())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.renderLogin()
	case ViewFeed:
		return m.renderFeed()
	case ViewDetail:
		return m.renderDetail()
	case ViewCompose:
		return m.renderCompose()
	case ViewMyPage:
		return m.renderMyPage()
	case ViewActivity:
		return m.renderActivity()
	default:
		return ""
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	m := New(opts)
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
