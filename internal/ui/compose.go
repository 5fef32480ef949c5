package ui

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/foodcom/morsel/internal/api"
)

const maxTitleLength = 100

const (
	composeTitle = iota
	composeContent
	composeFiles
	composeRemove
)

// composeForm is the new/edit post form. editID is empty for a new post.
type composeForm struct {
	editID   string
	title    textinput.Model
	content  textarea.Model
	files    textinput.Model
	remove   textinput.Model
	focusIdx int
}

func newComposeForm() composeForm {
	title := textinput.New()
	title.Prompt = "Title     "
	title.Placeholder = "what did you eat?"
	title.CharLimit = maxTitleLength

	content := textarea.New()
	content.Placeholder = "Tell us about it"
	content.ShowLineNumbers = false
	content.CharLimit = 0

	files := textinput.New()
	files.Prompt = "Attach    "
	files.Placeholder = "image paths, comma separated"

	remove := textinput.New()
	remove.Prompt = "Remove    "
	remove.Placeholder = "image ids to delete, e.g. 3,4"

	return composeForm{title: title, content: content, files: files, remove: remove}
}

func (f *composeForm) startNew() {
	f.editID = ""
	f.title.Reset()
	f.content.Reset()
	f.files.Reset()
	f.remove.Reset()
	f.setFocus(composeTitle)
}

func (f *composeForm) startEdit(id string, p *api.Post) {
	f.startNew()
	f.editID = id
	f.title.SetValue(p.Title)
	f.title.CursorEnd()
	f.content.SetValue(p.Content)
}

func (f composeForm) editing() bool { return f.editID != "" }

func (f composeForm) fieldCount() int {
	if f.editing() {
		return 4
	}
	return 3
}

func (f *composeForm) setFocus(idx int) {
	f.focusIdx = idx
	f.title.Blur()
	f.content.Blur()
	f.files.Blur()
	f.remove.Blur()
	switch idx {
	case composeTitle:
		f.title.Focus()
	case composeContent:
		f.content.Focus()
	case composeFiles:
		f.files.Focus()
	case composeRemove:
		f.remove.Focus()
	}
}

func (f *composeForm) blur() {
	f.setFocus(-1)
}

func (f *composeForm) resize(width, height int) {
	w := width - 4
	if w < 20 {
		w = 20
	}
	f.title.Width = w - 10
	f.files.Width = w - 10
	f.remove.Width = w - 10
	h := height - 8
	if h < 3 {
		h = 3
	}
	f.content.SetWidth(w)
	f.content.SetHeight(h)
}

func (f composeForm) update(msg tea.Msg) (composeForm, tea.Cmd) {
	var cmd tea.Cmd
	switch f.focusIdx {
	case composeTitle:
		f.title, cmd = f.title.Update(msg)
	case composeContent:
		f.content, cmd = f.content.Update(msg)
	case composeFiles:
		f.files, cmd = f.files.Update(msg)
	case composeRemove:
		f.remove, cmd = f.remove.Update(msg)
	}
	return f, cmd
}

// draft collects the form into an api.Draft, reading attachments from disk.
func (f composeForm) draft() (api.Draft, error) {
	d := api.Draft{
		Title:   strings.TrimSpace(f.title.Value()),
		Content: strings.TrimSpace(f.content.Value()),
	}
	if !f.editing() && d.Title == "" {
		return api.Draft{}, errors.New("title is required")
	}
	files, err := loadAttachments(f.files.Value())
	if err != nil {
		return api.Draft{}, err
	}
	d.Files = files
	if f.editing() {
		ids, err := parseImageIDs(f.remove.Value())
		if err != nil {
			return api.Draft{}, err
		}
		d.DeleteImageIDs = ids
	}
	return d, nil
}

// handleComposeKey processes keyboard input for the compose form.
func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.compose.blur()
		m.clearStatus()
		if m.compose.editing() && m.detail.post != nil {
			m.currentView = ViewDetail
		} else {
			m.currentView = ViewFeed
		}
		return m, nil

	case "tab":
		m.compose.setFocus((m.compose.focusIdx + 1) % m.compose.fieldCount())
		return m, textinput.Blink

	case "shift+tab":
		n := m.compose.fieldCount()
		m.compose.setFocus((m.compose.focusIdx + n - 1) % n)
		return m, textinput.Blink

	case "ctrl+s":
		if m.busy {
			return m, nil
		}
		draft, err := m.compose.draft()
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.busy = true
		if m.compose.editing() {
			m.setStatus("saving post...", false)
			return m, updatePostCmd(m.ctx, m.api, m.compose.editID, draft)
		}
		m.setStatus("publishing post...", false)
		return m, createPostCmd(m.ctx, m.api, draft)

	case "enter":
		// Single-line fields advance; the content area takes newlines.
		if m.compose.focusIdx != composeContent {
			m.compose.setFocus((m.compose.focusIdx + 1) % m.compose.fieldCount())
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.compose, cmd = m.compose.update(msg)
	return m, cmd
}

func (m Model) handlePostSaved(msg postSavedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		return m.fail(msg.err)
	}
	note := "post published"
	if m.compose.editing() {
		note = "post updated"
	}
	m.compose.blur()
	if msg.id == "" {
		// Created but the backend did not say where; the feed will show it.
		m.currentView = ViewFeed
		m.setStatus(note, false)
		return m, refreshFeedCmd(m.ctx, m.api, m.feed)
	}
	returnTo := ViewFeed
	if m.compose.editing() && m.detail.postID == msg.id {
		returnTo = m.detail.returnTo
	}
	m, cmd := m.openPost(msg.id, returnTo)
	m.setStatus(note, false)
	return m, tea.Batch(cmd, refreshFeedCmd(m.ctx, m.api, m.feed))
}

// renderCompose renders the post form.
func (m Model) renderCompose() string {
	styles := m.theme.Styles()

	var b strings.Builder
	heading := "New post"
	if m.compose.editing() {
		heading = "Edit post"
	}
	b.WriteString(styles.AccentText.Bold(true).Render(heading))
	b.WriteString("\n\n")
	b.WriteString(m.compose.title.View())
	b.WriteString("\n\n")
	b.WriteString(m.compose.content.View())
	b.WriteString("\n\n")
	b.WriteString(m.compose.files.View())
	if m.compose.editing() {
		b.WriteString("\n")
		b.WriteString(m.compose.remove.View())
		if m.detail.post != nil && len(m.detail.post.Images) > 0 {
			b.WriteString("\n")
			b.WriteString(styles.FaintText.Render("attached: " + strings.Join(imageLines(m.detail.post), "  ")))
		}
	}
	return b.String()
}

// loadAttachments reads a comma separated list of image paths.
func loadAttachments(list string) ([]api.File, error) {
	var files []api.File
	for _, raw := range strings.Split(list, ",") {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		if strings.HasPrefix(path, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				path = filepath.Join(home, path[2:])
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", raw, err)
		}
		contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		if !strings.HasPrefix(contentType, "image/") {
			return nil, fmt.Errorf("attach %s: not an image (%s)", filepath.Base(path), contentType)
		}
		files = append(files, api.File{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Data:        data,
		})
	}
	return files, nil
}

// parseImageIDs parses "3, #4" into image ids.
func parseImageIDs(list string) ([]int64, error) {
	var ids []int64
	for _, raw := range strings.Split(list, ",") {
		value := strings.TrimPrefix(strings.TrimSpace(raw), "#")
		if value == "" {
			continue
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid image id %q", strings.TrimSpace(raw))
		}
		ids = append(ids, id)
	}
	return ids, nil
}
