package api_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/authclient"
	"github.com/foodcom/morsel/internal/logging"
	"github.com/foodcom/morsel/internal/session"
	"github.com/foodcom/morsel/internal/stubserver"
)

type stack struct {
	stub    *stubserver.Server
	baseURL string
	storage session.Storage
	client  *api.Client
	hooked  atomic.Int32
}

func newStack(t *testing.T) *stack {
	t.Helper()
	stub, err := stubserver.New(stubserver.Options{
		Secret:     []byte("e2e-secret"),
		Logger:     logging.Discard(),
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	s := &stack{stub: stub, baseURL: ts.URL + "/api", storage: session.NewMemoryStorage()}
	s.client = s.connect(t, s.storage)

	_, err = s.client.Signup(context.Background(), api.SignupRequest{
		LoginID: "abcde", Password: "password1", Username: "Abc", Gender: api.GenderMale, Age: 28,
	})
	require.NoError(t, err)
	return s
}

// connect builds a client the way a fresh morsel process would: a new
// cookie jar over whatever storage already holds.
func (s *stack) connect(t *testing.T, storage session.Storage) *api.Client {
	t.Helper()
	store, err := session.Open(context.Background(), storage, nil)
	require.NoError(t, err)
	transport, err := authclient.New(s.baseURL, store,
		authclient.WithAuthFailureHook(func(error) { s.hooked.Add(1) }),
	)
	require.NoError(t, err)
	return api.New(transport, store, nil)
}

func (s *stack) storedToken(t *testing.T) string {
	t.Helper()
	tok, err := s.storage.Token(context.Background())
	require.NoError(t, err)
	return tok
}

func TestEndToEndReissueAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	user, err := s.client.Login(ctx, "abcde", "password1")
	require.NoError(t, err)
	assert.Equal(t, session.User{LoginID: "abcde", DisplayName: "Abc"}, user)
	t1 := s.storedToken(t)
	require.NotEmpty(t, t1)

	s.stub.ExpireAccessTokens()

	me, err := s.client.MyPage(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "abcde", me.LoginID)

	t2 := s.storedToken(t)
	assert.NotEmpty(t, t2)
	assert.NotEqual(t, t1, t2, "reissued token persisted")
	assert.Equal(t, t2, s.client.Session().Read().AccessToken)
	assert.Zero(t, s.hooked.Load())
}

func TestEndToEndPostFlow(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	_, err := s.client.Login(ctx, "abcde", "password1")
	require.NoError(t, err)

	// The upload hits a 401 first and is replayed after the reissue.
	s.stub.ExpireAccessTokens()
	id, err := s.client.CreatePost(ctx, api.Draft{
		Title:   "Bibimbap",
		Content: "rice and vegetables",
		Files:   []api.File{{Name: "bowl.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.client.AddComment(ctx, id, "looks good"))

	post, err := s.client.Post(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bibimbap", post.Title)
	assert.Equal(t, "Abc", post.UserName)
	require.Len(t, post.ImageURLs, 1)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "abcde", post.Comments[0].Writer)
	assert.False(t, post.CreatedAt.Time().IsZero())

	page, err := s.client.Feed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, 1, page.Posts[0].CommentCount)

	require.NoError(t, s.client.UpdatePost(ctx, id, api.Draft{Title: "Dolsot bibimbap", DeleteImageIDs: []int64{post.Images[0].ID}}))
	post, err = s.client.Post(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dolsot bibimbap", post.Title)
	assert.Empty(t, post.ImageURLs)

	require.NoError(t, s.client.DeletePost(ctx, id))
	_, err = s.client.Post(ctx, id)
	assert.True(t, authclient.IsNotFound(err))
}

func TestEndToEndProfileUpdate(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	_, err := s.client.Login(ctx, "abcde", "password1")
	require.NoError(t, err)

	age := 29
	require.NoError(t, s.client.UpdateProfile(ctx, api.ProfileUpdate{NewName: "Abby", Age: &age}))
	assert.Equal(t, "Abby", s.client.Session().Read().User.DisplayName)

	me, err := s.client.MyPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Abby", me.Username)
	assert.Equal(t, 29, me.Age)
}

func TestEndToEndDuplicateSignup(t *testing.T) {
	s := newStack(t)
	_, err := s.client.Signup(context.Background(), api.SignupRequest{
		LoginID: "abcde", Password: "password1", Username: "Abc", Gender: api.GenderMale, Age: 28,
	})
	require.Error(t, err)
	assert.True(t, authclient.IsConflict(err))
}

func TestEndToEndBadPasswordIsNotASessionExpiry(t *testing.T) {
	s := newStack(t)
	_, err := s.client.Login(context.Background(), "abcde", "wrong-password")
	require.Error(t, err)

	var upstream *authclient.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 401, upstream.StatusCode)
	assert.Zero(t, s.hooked.Load(), "login is public, no reissue attempted")
	assert.False(t, s.client.Session().Read().IsAuthenticated)
}

func TestEndToEndReissueAfterRestart(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	path := filepath.Join(t.TempDir(), "session.toml")

	storage, err := session.NewFileStorage(path)
	require.NoError(t, err)
	_, err = s.connect(t, storage).Login(ctx, "abcde", "password1")
	require.NoError(t, err)
	refresh, err := storage.RefreshToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, refresh)

	reopened, err := session.NewFileStorage(path)
	require.NoError(t, err)
	restarted := s.connect(t, reopened)
	s.stub.ExpireAccessTokens()

	me, err := restarted.MyPage(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "abcde", me.LoginID)
	assert.True(t, restarted.Session().Read().IsAuthenticated)
	assert.Zero(t, s.hooked.Load())

	rotated, err := reopened.RefreshToken(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, rotated, "rotated refresh cookie persisted")

	require.NoError(t, restarted.Logout(ctx))
	rotated, err = reopened.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, rotated)
}
