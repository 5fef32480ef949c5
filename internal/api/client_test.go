package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodcom/morsel/internal/authclient"
	"github.com/foodcom/morsel/internal/session"
)

type reply struct {
	resp *authclient.Response
	err  error
}

// fakeSender answers by "METHOD path" and records what was sent.
type fakeSender struct {
	replies map[string]reply
	sent    []authclient.Request
}

func (f *fakeSender) Send(_ context.Context, req authclient.Request) (*authclient.Response, error) {
	f.sent = append(f.sent, req)
	r, ok := f.replies[req.Method+" "+req.Path]
	if !ok {
		return nil, &authclient.UpstreamError{StatusCode: http.StatusNotFound}
	}
	return r.resp, r.err
}

func jsonReply(body string) reply {
	return reply{resp: &authclient.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}}
}

func newTestClient(t *testing.T, replies map[string]reply) (*Client, *fakeSender) {
	t.Helper()
	store, err := session.Open(context.Background(), session.NewMemoryStorage(), nil)
	require.NoError(t, err)
	sender := &fakeSender{replies: replies}
	return New(sender, store, nil), sender
}

func TestLoginStoresTokenAndProfile(t *testing.T) {
	c, sender := newTestClient(t, map[string]reply{
		"POST /login": jsonReply(`{"grantType":"Bearer","accessToken":"T1"}`),
		"GET /mypage": jsonReply(`{"loginId":"alice01","username":"Alice","gender":"FEMALE","age":30,"posts":[]}`),
	})

	user, err := c.Login(context.Background(), "alice01", "password1")
	require.NoError(t, err)
	assert.Equal(t, session.User{LoginID: "alice01", DisplayName: "Alice"}, user)

	snap := c.Session().Read()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "T1", snap.AccessToken)
	require.NotNil(t, snap.User)
	assert.Equal(t, "Alice", snap.User.DisplayName)

	require.Len(t, sender.sent, 2)
	assert.JSONEq(t, `{"loginId":"alice01","password":"password1"}`, string(sender.sent[0].Body))
	assert.Nil(t, sender.sent[1].Query, "profile lookup uses the default page")
}

func TestLoginFallsBackToLoginID(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{
		"POST /login": jsonReply(`{"grantType":"Bearer","accessToken":"T1"}`),
	})

	user, err := c.Login(context.Background(), "alice01", "password1")
	require.NoError(t, err)
	assert.Equal(t, session.User{LoginID: "alice01", DisplayName: "alice01"}, user)
	assert.True(t, c.Session().Read().IsAuthenticated)
}

func TestLoginFailureLeavesSessionEmpty(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{
		"POST /login": {err: &authclient.UpstreamError{StatusCode: http.StatusUnauthorized, Message: "bad credentials"}},
	})

	_, err := c.Login(context.Background(), "alice01", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, authclient.ErrUnauthorized)
	assert.False(t, c.Session().Read().IsAuthenticated)
}

func TestLoginWithoutToken(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{
		"POST /login": jsonReply(`{"grantType":"Bearer"}`),
	})
	_, err := c.Login(context.Background(), "alice01", "password1")
	assert.Error(t, err)
	assert.False(t, c.Session().Read().IsAuthenticated)
}

func TestLogoutClearsSession(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{
		"POST /login": jsonReply(`{"accessToken":"T1"}`),
	})
	_, err := c.Login(context.Background(), "alice01", "password1")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	snap := c.Session().Read()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
}

func TestFeedPageQuery(t *testing.T) {
	c, sender := newTestClient(t, map[string]reply{
		"GET /posts": jsonReply(`{"postList":[{"id":"p1","title":"Kimchi","writer":"Alice","createdAt":"2026-03-01T12:30:00","commentCount":2}],"totalElements":1,"totalPages":1,"size":10,"number":0,"first":true,"last":true}`),
	})

	page, err := c.Feed(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Kimchi", page.Posts[0].Title)
	assert.Equal(t, 2, page.Posts[0].CommentCount)
	assert.Equal(t, "2", sender.sent[0].Query.Get("page"))

	_, err = c.Feed(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, sender.sent[1].Query)
}

func TestPostNotFound(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.Post(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, authclient.IsNotFound(err))

	_, err = c.Post(context.Background(), "  ")
	assert.Error(t, err)
}

func TestCreatePostSendsMultipart(t *testing.T) {
	c, sender := newTestClient(t, map[string]reply{
		"POST /posts": {resp: &authclient.Response{
			StatusCode: http.StatusCreated,
			Header:     http.Header{"Location": {"http://host/api/posts/abc-123"}},
		}},
	})

	id, err := c.CreatePost(context.Background(), Draft{
		Title:   "  Kimchi  ",
		Content: "fermented",
		Files:   []File{{Name: "a.png", ContentType: "image/png", Data: []byte("PNG")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	req := sender.sent[0]
	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	mr := multipart.NewReader(strings.NewReader(string(req.Body)), params["boundary"])
	parts := map[string]string{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts[part.FormName()] = string(data)
		if part.FormName() == "files" {
			assert.Equal(t, "a.png", part.FileName())
			assert.Equal(t, "image/png", part.Header.Get("Content-Type"))
		}
	}
	assert.JSONEq(t, `{"title":"Kimchi","content":"fermented"}`, parts["data"])
	assert.Equal(t, "PNG", parts["files"])
}

func TestAddCommentTrimsAndRejectsEmpty(t *testing.T) {
	c, sender := newTestClient(t, map[string]reply{
		"POST /posts/p1/comments": {resp: &authclient.Response{StatusCode: http.StatusCreated}},
	})

	require.NoError(t, c.AddComment(context.Background(), "p1", "  tasty  "))
	assert.JSONEq(t, `{"content":"tasty"}`, string(sender.sent[0].Body))

	assert.Error(t, c.AddComment(context.Background(), "p1", "   "))
	assert.Len(t, sender.sent, 1)
}

func TestUpdateProfileRenamesSessionUser(t *testing.T) {
	c, sender := newTestClient(t, map[string]reply{
		"POST /login":   jsonReply(`{"accessToken":"T1"}`),
		"PATCH /mypage": {resp: &authclient.Response{StatusCode: http.StatusNoContent}},
	})
	_, err := c.Login(context.Background(), "alice01", "password1")
	require.NoError(t, err)

	require.NoError(t, c.UpdateProfile(context.Background(), ProfileUpdate{NewName: "Alice"}))
	assert.Equal(t, "Alice", c.Session().Read().User.DisplayName)
	assert.JSONEq(t, `{"newName":"Alice"}`, string(sender.sent[len(sender.sent)-1].Body))
}

func TestDeletePostEscapesID(t *testing.T) {
	c, sender := newTestClient(t, map[string]reply{
		"DELETE /posts/a%2Fb": {resp: &authclient.Response{StatusCode: http.StatusNoContent}},
	})
	require.NoError(t, c.DeletePost(context.Background(), "a/b"))
	assert.Equal(t, http.MethodDelete, sender.sent[0].Method)
}

func TestIDFromLocation(t *testing.T) {
	cases := map[string]string{
		"":                             "",
		"/api/posts/abc":               "abc",
		"/api/posts/abc/":              "abc",
		"http://host:8080/api/posts/x": "x",
	}
	for in, want := range cases {
		assert.Equal(t, want, idFromLocation(in), in)
	}
}

func TestTimestampTime(t *testing.T) {
	local := Timestamp("2026-03-01T12:30:00").Time()
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local), local)

	withZone := Timestamp("2026-03-01T12:30:00Z").Time()
	assert.True(t, withZone.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)))

	frac := Timestamp("2026-03-01T12:30:00.123456").Time()
	assert.Equal(t, 123456000, frac.Nanosecond())

	assert.True(t, Timestamp("yesterday").Time().IsZero())
	assert.True(t, Timestamp("").Time().IsZero())
}

func TestParseGender(t *testing.T) {
	for in, want := range map[string]Gender{"m": GenderMale, "Female": GenderFemale, " F ": GenderFemale} {
		got, ok := ParseGender(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseGender("x")
	assert.False(t, ok)
}
