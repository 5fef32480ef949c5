package ui

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/logtail"
	"github.com/foodcom/morsel/internal/session"
	"github.com/foodcom/morsel/internal/state"
)

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type authExpiredMsg struct{ err error }

type loginMsg struct {
	user session.User
	err  error
}

type logoutMsg struct{ err error }

type postMsg struct {
	post *api.Post
	err  error
}

type postSavedMsg struct {
	id  string
	err error
}

type postDeletedMsg struct{ err error }

type commentAddedMsg struct {
	postID string
	err    error
}

type myPageMsg struct {
	page *api.MyPage
	err  error
}

type profileUpdatedMsg struct{ err error }

type activityMsg struct {
	entries []logtail.Entry
	err     error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// refreshFeedCmd fetches the tracked page now rather than waiting for the
// poller, then hands back the resulting snapshot.
func refreshFeedCmd(ctx context.Context, client API, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		page, err := client.Feed(ctx, store.Page())
		if ctx.Err() == nil {
			store.Update(page, err)
		}
		return snapshotMsg(store.Snapshot())
	}
}

func waitAuthExpiredCmd(ch <-chan error) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return authExpiredMsg{err: <-ch}
	}
}

func loginCmd(ctx context.Context, client API, loginID, password string) tea.Cmd {
	return func() tea.Msg {
		user, err := client.Login(ctx, loginID, password)
		return loginMsg{user: user, err: err}
	}
}

func logoutCmd(ctx context.Context, client API) tea.Cmd {
	return func() tea.Msg {
		return logoutMsg{err: client.Logout(ctx)}
	}
}

func loadPostCmd(ctx context.Context, client API, id string) tea.Cmd {
	return func() tea.Msg {
		post, err := client.Post(ctx, id)
		return postMsg{post: post, err: err}
	}
}

func createPostCmd(ctx context.Context, client API, draft api.Draft) tea.Cmd {
	return func() tea.Msg {
		id, err := client.CreatePost(ctx, draft)
		return postSavedMsg{id: id, err: err}
	}
}

func updatePostCmd(ctx context.Context, client API, id string, draft api.Draft) tea.Cmd {
	return func() tea.Msg {
		return postSavedMsg{id: id, err: client.UpdatePost(ctx, id, draft)}
	}
}

func deletePostCmd(ctx context.Context, client API, id string) tea.Cmd {
	return func() tea.Msg {
		return postDeletedMsg{err: client.DeletePost(ctx, id)}
	}
}

func addCommentCmd(ctx context.Context, client API, postID, content string) tea.Cmd {
	return func() tea.Msg {
		return commentAddedMsg{postID: postID, err: client.AddComment(ctx, postID, content)}
	}
}

func loadMyPageCmd(ctx context.Context, client API, page int) tea.Cmd {
	return func() tea.Msg {
		mp, err := client.MyPage(ctx, page)
		return myPageMsg{page: mp, err: err}
	}
}

func updateProfileCmd(ctx context.Context, client API, update api.ProfileUpdate) tea.Cmd {
	return func() tea.Msg {
		return profileUpdatedMsg{err: client.UpdateProfile(ctx, update)}
	}
}

const activityLines = 500

func loadActivityCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, activityLines, slog.LevelDebug)
		return activityMsg{entries: entries, err: err}
	}
}
