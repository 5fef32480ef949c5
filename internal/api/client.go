package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/foodcom/morsel/internal/authclient"
	"github.com/foodcom/morsel/internal/logging"
	"github.com/foodcom/morsel/internal/session"
)

// Backend is the read side the feed poller and the UI depend on.
// *Client implements it; tests substitute fakes.
type Backend interface {
	Feed(ctx context.Context, page int) (*PostPage, error)
	Post(ctx context.Context, id string) (*Post, error)
	MyPage(ctx context.Context, page int) (*MyPage, error)
}

var _ Backend = (*Client)(nil)

// Sender dispatches a request. *authclient.Client implements it.
type Sender interface {
	Send(ctx context.Context, req authclient.Request) (*authclient.Response, error)
}

// Client wraps the authenticated transport with typed foodcom operations.
type Client struct {
	sender  Sender
	session *session.Store
	logger  *slog.Logger
}

// New returns a Client sending through sender and recording identity in
// store.
func New(sender Sender, store *session.Store, logger *slog.Logger) *Client {
	return &Client{sender: sender, session: store, logger: logging.For(logger, "api")}
}

// Session exposes the store backing this client.
func (c *Client) Session() *session.Store {
	return c.session
}

// Signup registers a member and returns the new member id.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (int64, error) {
	var out SignupResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/members", req, &out); err != nil {
		return 0, fmt.Errorf("signup: %w", err)
	}
	return out.ID, nil
}

// Login exchanges credentials for an access token, stores it, then loads
// the display identity from /mypage. When that lookup fails the login id
// stands in for the display name.
func (c *Client) Login(ctx context.Context, loginID, password string) (session.User, error) {
	var token authclient.TokenResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/login", LoginRequest{LoginID: loginID, Password: password}, &token); err != nil {
		return session.User{}, fmt.Errorf("login: %w", err)
	}
	if token.AccessToken == "" {
		return session.User{}, fmt.Errorf("login: response carried no access token")
	}
	if err := c.session.SetAccessToken(ctx, token.AccessToken); err != nil {
		return session.User{}, fmt.Errorf("login: %w", err)
	}

	user := session.User{LoginID: loginID, DisplayName: loginID}
	if me, err := c.MyPage(ctx, 0); err != nil {
		c.logger.Warn("profile lookup after login failed", "login_id", loginID, "error", err)
	} else {
		user = session.User{LoginID: me.LoginID, DisplayName: me.Username}
	}
	if err := c.session.SetUser(ctx, user); err != nil {
		return user, fmt.Errorf("login: %w", err)
	}
	c.logger.Info("logged in", "login_id", user.LoginID)
	return user, nil
}

// Logout forgets the local session. The backend has no logout endpoint;
// the refresh cookie dies with the process.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Feed returns one page of posts. Page 0 lets the backend pick its default.
func (c *Client) Feed(ctx context.Context, page int) (*PostPage, error) {
	var out PostPage
	if err := c.get(ctx, "/posts", pageQuery(page), &out); err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	return &out, nil
}

func (c *Client) Post(ctx context.Context, id string) (*Post, error) {
	p, err := postPath(id)
	if err != nil {
		return nil, err
	}
	var out Post
	if err := c.get(ctx, p, nil, &out); err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}
	return &out, nil
}

// CreatePost uploads a draft and returns the new post's id, taken from
// the Location header.
func (c *Client) CreatePost(ctx context.Context, draft Draft) (string, error) {
	req, err := draftRequest(http.MethodPost, "/posts", draft)
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	id := idFromLocation(resp.Header.Get("Location"))
	c.logger.Info("post created", "post_id", id, "files", len(draft.Files))
	return id, nil
}

func (c *Client) UpdatePost(ctx context.Context, id string, draft Draft) error {
	p, err := postPath(id)
	if err != nil {
		return err
	}
	req, err := draftRequest(http.MethodPatch, p, draft)
	if err != nil {
		return fmt.Errorf("update post %s: %w", id, err)
	}
	if _, err := c.sender.Send(ctx, req); err != nil {
		return fmt.Errorf("update post %s: %w", id, err)
	}
	return nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	p, err := postPath(id)
	if err != nil {
		return err
	}
	if _, err := c.sender.Send(ctx, authclient.Request{Method: http.MethodDelete, Path: p}); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}

// AddComment posts content under the post with the given id.
func (c *Client) AddComment(ctx context.Context, postID, content string) error {
	p, err := postPath(postID)
	if err != nil {
		return err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("comment is empty")
	}
	if err := c.sendJSON(ctx, http.MethodPost, p+"/comments", CommentRequest{Content: content}, nil); err != nil {
		return fmt.Errorf("comment on %s: %w", postID, err)
	}
	return nil
}

func (c *Client) MyPage(ctx context.Context, page int) (*MyPage, error) {
	var out MyPage
	if err := c.get(ctx, "/mypage", pageQuery(page), &out); err != nil {
		return nil, fmt.Errorf("mypage: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	if err := c.sendJSON(ctx, http.MethodPatch, "/mypage", update, nil); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if update.NewName != "" {
		if current := c.session.Read().User; current != nil {
			renamed := *current
			renamed.DisplayName = update.NewName
			if err := c.session.SetUser(ctx, renamed); err != nil {
				return fmt.Errorf("update profile: %w", err)
			}
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, p string, query url.Values, dest any) error {
	resp, err := c.sender.Send(ctx, authclient.Request{Method: http.MethodGet, Path: p, Query: query})
	if err != nil {
		return err
	}
	return resp.Decode(dest)
}

func (c *Client) sendJSON(ctx context.Context, method, p string, body, dest any) error {
	req, err := authclient.JSON(method, p, body)
	if err != nil {
		return err
	}
	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(dest)
}

func draftRequest(method, p string, draft Draft) (authclient.Request, error) {
	data, err := json.Marshal(draftPayload{
		Title:          strings.TrimSpace(draft.Title),
		Content:        draft.Content,
		DeleteImageIDs: draft.DeleteImageIDs,
	})
	if err != nil {
		return authclient.Request{}, fmt.Errorf("encode draft: %w", err)
	}
	parts := []authclient.Part{{Name: "data", ContentType: "application/json", Data: data}}
	for _, f := range draft.Files {
		parts = append(parts, authclient.Part{
			Name:        "files",
			Filename:    f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
	}
	return authclient.Multipart(method, p, parts...)
}

func pageQuery(page int) url.Values {
	if page <= 0 {
		return nil
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

func postPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("post id required")
	}
	return "/posts/" + url.PathEscape(id), nil
}

func idFromLocation(location string) string {
	if location == "" {
		return ""
	}
	if u, err := url.Parse(location); err == nil {
		location = u.Path
	}
	return path.Base(strings.TrimRight(location, "/"))
}
