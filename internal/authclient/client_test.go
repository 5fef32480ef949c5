package authclient

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	setErr  error
	sets    []string
	logouts int
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeTokens) SetAccessToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.token = token
	f.sets = append(f.sets, token)
	return nil
}

func (f *fakeTokens) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.logouts++
	return nil
}

func (f *fakeTokens) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type call struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
	Cookie    string
	Body      string
}

// fakeBackend accepts exactly one access token at a time and rotates it
// on reissue.
type fakeBackend struct {
	mu            sync.Mutex
	validToken    string
	nextToken     string
	reissueStatus int
	reissueBody   string
	rejectAll     bool
	calls         []call
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	defer b.mu.Unlock()

	c := call{
		Method:    r.Method,
		Path:      r.URL.Path,
		Auth:      r.Header.Get("Authorization"),
		RequestID: r.Header.Get("X-Request-ID"),
		Body:      string(body),
	}
	if cookie, err := r.Cookie("refresh_token"); err == nil {
		c.Cookie = cookie.Value
	}
	b.calls = append(b.calls, c)

	switch r.URL.Path {
	case "/api/login":
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "R1", Path: "/api", HttpOnly: true})
		b.validToken = "T1"
		respond(w, http.StatusOK, `{"grantType":"Bearer","accessToken":"T1"}`)
		return
	case "/api/members/check":
		respond(w, http.StatusUnauthorized, `{"code":"Unauthorized","message":"nope"}`)
		return
	case "/api/auth/reissue":
		switch {
		case b.reissueStatus != 0:
			respond(w, b.reissueStatus, `{"code":"Unauthorized","message":"refresh token invalid"}`)
		case b.reissueBody != "":
			respond(w, http.StatusOK, b.reissueBody)
		default:
			b.validToken = b.nextToken
			respond(w, http.StatusOK, `{"grantType":"Bearer","accessToken":"`+b.nextToken+`"}`)
		}
		return
	}

	if b.rejectAll || c.Auth == "" || c.Auth != "Bearer "+b.validToken {
		respond(w, http.StatusUnauthorized, `{"code":"Unauthorized","message":"token expired"}`)
		return
	}
	switch r.URL.Path {
	case "/api/boom":
		respond(w, http.StatusInternalServerError, `{"code":"Internal","message":"kaput"}`)
	case "/api/missing":
		respond(w, http.StatusNotFound, `{"code":"NotFound","message":"no such post"}`)
	default:
		respond(w, http.StatusOK, `{"path":"`+r.URL.Path+`","query":"`+r.URL.RawQuery+`"}`)
	}
}

func (b *fakeBackend) snapshot() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]call(nil), b.calls...)
}

func (b *fakeBackend) count(path string) int {
	n := 0
	for _, c := range b.snapshot() {
		if c.Path == path {
			n++
		}
	}
	return n
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestClient(t *testing.T, backend http.Handler, tokens TokenStore, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL+"/api/", tokens, opts...)
	require.NoError(t, err)
	return client
}

func TestSend_AttachesBearerToProtectedRequests(t *testing.T) {
	backend := &fakeBackend{validToken: "T1"}
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, backend, tokens)

	resp, err := client.Send(context.Background(), Request{Path: "/mypage", Query: map[string][]string{"page": {"2"}}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct{ Path, Query string }
	require.NoError(t, resp.Decode(&payload))
	assert.Equal(t, "/api/mypage", payload.Path)
	assert.Equal(t, "page=2", payload.Query)

	calls := backend.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "Bearer T1", calls[0].Auth)
	assert.NotEmpty(t, calls[0].RequestID)
}

func TestSend_PublicRequestsNeverCarryBearer(t *testing.T) {
	backend := &fakeBackend{}
	tokens := &fakeTokens{token: "T0"}
	client := newTestClient(t, backend, tokens)

	req, err := JSON(http.MethodPost, "/login", map[string]string{"loginId": "abc", "password": "x"})
	require.NoError(t, err)
	req.Header = http.Header{"Authorization": {"Bearer smuggled"}}
	_, err = client.Send(context.Background(), req)
	require.NoError(t, err)

	calls := backend.snapshot()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Auth)
	assert.JSONEq(t, `{"loginId":"abc","password":"x"}`, calls[0].Body)
}

func TestSend_NoBearerWhenLoggedOut(t *testing.T) {
	backend := &fakeBackend{reissueStatus: http.StatusUnauthorized}
	tokens := &fakeTokens{}
	client := newTestClient(t, backend, tokens)

	_, err := client.Send(context.Background(), Request{Path: "/posts"})
	require.Error(t, err)

	calls := backend.snapshot()
	require.NotEmpty(t, calls)
	assert.Empty(t, calls[0].Auth)
}

func TestSend_PublicUnauthorizedPassesThrough(t *testing.T) {
	backend := &fakeBackend{}
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, backend, tokens)

	_, err := client.Send(context.Background(), Request{Path: "/members/check"})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, backend.count("/api/auth/reissue"))
	assert.Zero(t, tokens.logouts)
	assert.Equal(t, "T1", tokens.current())
}

func TestSend_ReissuesAndRetriesOnce(t *testing.T) {
	backend := &fakeBackend{validToken: "T2", nextToken: "T2"}
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, backend, tokens)

	req, err := JSON(http.MethodPost, "/posts/p1/comments", map[string]string{"content": "hi"})
	require.NoError(t, err)
	resp, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	calls := backend.snapshot()
	require.Len(t, calls, 3)
	first, reissue, retry := calls[0], calls[1], calls[2]

	assert.Equal(t, "Bearer T1", first.Auth)
	assert.Equal(t, "/api/auth/reissue", reissue.Path)
	assert.Equal(t, http.MethodPost, reissue.Method)
	assert.Empty(t, reissue.Auth)
	assert.Empty(t, reissue.Body)
	assert.Equal(t, "Bearer T2", retry.Auth)
	assert.Equal(t, first.Body, retry.Body)
	assert.Equal(t, first.RequestID, retry.RequestID)
	assert.NotEqual(t, first.RequestID, reissue.RequestID)

	assert.Equal(t, "T2", tokens.current())
	assert.Equal(t, []string{"T2"}, tokens.sets)
	assert.Zero(t, tokens.logouts)
}

func TestSend_RetryUnauthorizedIsFinal(t *testing.T) {
	backend := &fakeBackend{nextToken: "T2", rejectAll: true}
	tokens := &fakeTokens{token: "T1"}
	hookCalls := 0
	client := newTestClient(t, backend, tokens, WithAuthFailureHook(func(error) { hookCalls++ }))

	_, err := client.Send(context.Background(), Request{Path: "/mypage"})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr))
	assert.Equal(t, 1, backend.count("/api/auth/reissue"))
	assert.Equal(t, 2, backend.count("/api/mypage"))
	assert.Zero(t, hookCalls)
	assert.Equal(t, "T2", tokens.current(), "the reissued token stays stored")
}

func TestSend_ReissueRejectedClearsSession(t *testing.T) {
	backend := &fakeBackend{validToken: "T9", reissueStatus: http.StatusUnauthorized}
	tokens := &fakeTokens{token: "T1"}
	var hookErr error
	client := newTestClient(t, backend, tokens, WithAuthFailureHook(func(err error) { hookErr = err }))

	_, err := client.Send(context.Background(), Request{Method: http.MethodDelete, Path: "/posts/p1"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.MethodDelete, authErr.Method)
	assert.Equal(t, "/posts/p1", authErr.Path)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var upstream *UpstreamError
	require.ErrorAs(t, authErr.Err, &upstream)
	assert.Equal(t, "refresh token invalid", upstream.Message)

	assert.Equal(t, 1, tokens.logouts)
	assert.Empty(t, tokens.current())
	assert.Same(t, authErr, hookErr)
	assert.Equal(t, 1, backend.count("/api/posts/p1"), "no retry after a failed reissue")
}

func TestSend_ReissueWithoutTokenFails(t *testing.T) {
	backend := &fakeBackend{reissueBody: `{"grantType":"Bearer"}`}
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, backend, tokens)

	_, err := client.Send(context.Background(), Request{Path: "/mypage"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, 1, tokens.logouts)
}

func TestSend_ReissuePersistFailureFails(t *testing.T) {
	backend := &fakeBackend{nextToken: "T2"}
	boom := errors.New("disk full")
	tokens := &fakeTokens{token: "T1", setErr: boom}
	client := newTestClient(t, backend, tokens)

	_, err := client.Send(context.Background(), Request{Path: "/mypage"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, tokens.logouts)
	assert.Equal(t, 1, backend.count("/api/mypage"))
}

type failReissue struct{ next http.RoundTripper }

func (f failReissue) RoundTrip(r *http.Request) (*http.Response, error) {
	if strings.HasSuffix(r.URL.Path, ReissuePath) {
		return nil, errors.New("dial tcp: connection refused")
	}
	return f.next.RoundTrip(r)
}

func TestSend_ReissueTransportFailureFails(t *testing.T) {
	backend := &fakeBackend{nextToken: "T2"}
	tokens := &fakeTokens{token: "T1"}
	hc := &http.Client{Transport: failReissue{next: http.DefaultTransport}}
	client := newTestClient(t, backend, tokens, WithHTTPClient(hc))

	_, err := client.Send(context.Background(), Request{Path: "/mypage"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	var transport *TransportError
	assert.ErrorAs(t, authErr.Err, &transport)
	assert.Equal(t, 1, tokens.logouts)
	assert.Nil(t, hc.Jar, "caller's client is not modified")
}

func TestSend_NonUnauthorizedErrorsPassThrough(t *testing.T) {
	backend := &fakeBackend{validToken: "T1"}
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, backend, tokens)

	_, err := client.Send(context.Background(), Request{Path: "/boom"})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	assert.Equal(t, "Internal", upstream.Code)
	assert.Equal(t, "kaput", upstream.Message)

	_, err = client.Send(context.Background(), Request{Path: "/missing"})
	assert.True(t, IsNotFound(err))

	assert.Zero(t, backend.count("/api/auth/reissue"))
	assert.Zero(t, tokens.logouts)
}

func TestSend_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	tokens := &fakeTokens{token: "T1"}
	client, err := New(base, tokens, WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = client.Send(context.Background(), Request{Path: "/posts"})
	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, "/posts", transport.Path)
	assert.Zero(t, tokens.logouts)
	assert.Equal(t, "T1", tokens.current())
}

func TestSend_RefreshCookieTravelsWithReissue(t *testing.T) {
	backend := &fakeBackend{nextToken: "T2"}
	tokens := &fakeTokens{}
	client := newTestClient(t, backend, tokens)
	ctx := context.Background()

	resp, err := client.Send(ctx, Request{Method: http.MethodPost, Path: "/login"})
	require.NoError(t, err)
	var login TokenResponse
	require.NoError(t, resp.Decode(&login))
	require.NoError(t, tokens.SetAccessToken(ctx, login.AccessToken))

	// server-side expiry of T1
	backend.mu.Lock()
	backend.validToken = "expired"
	backend.mu.Unlock()

	_, err = client.Send(ctx, Request{Path: "/mypage"})
	require.NoError(t, err)

	var reissue call
	for _, c := range backend.snapshot() {
		if c.Path == "/api/auth/reissue" {
			reissue = c
		}
	}
	assert.Equal(t, "R1", reissue.Cookie)
	assert.Equal(t, "T2", tokens.current())
}

func TestSend_MultipartBodyReplayedOnRetry(t *testing.T) {
	backend := &fakeBackend{validToken: "T2", nextToken: "T2"}
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, backend, tokens)

	req, err := Multipart(http.MethodPost, "/posts",
		Part{Name: "data", ContentType: "application/json", Data: []byte(`{"title":"t","content":"c"}`)},
		Part{Name: "files", Filename: "a.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	)
	require.NoError(t, err)
	_, err = client.Send(context.Background(), req)
	require.NoError(t, err)

	calls := backend.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, calls[0].Body, calls[2].Body)

	_, params, err := mime.ParseMediaType(req.ContentType)
	require.NoError(t, err)
	mr := multipart.NewReader(strings.NewReader(calls[2].Body), params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "data", part.FormName())
	assert.Equal(t, "application/json", part.Header.Get("Content-Type"))
	part, err = mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "files", part.FormName())
	assert.Equal(t, "a.png", part.FileName())
}

func TestSend_CoalescedReissue(t *testing.T) {
	const workers = 8
	var reissues atomic.Int32
	var arrived sync.WaitGroup
	arrived.Add(workers)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/reissue", func(w http.ResponseWriter, r *http.Request) {
		reissues.Add(1)
		time.Sleep(200 * time.Millisecond)
		respond(w, http.StatusOK, `{"grantType":"Bearer","accessToken":"T2"}`)
	})
	mux.HandleFunc("/api/mypage", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer T2" {
			respond(w, http.StatusOK, `{}`)
			return
		}
		arrived.Done()
		arrived.Wait()
		respond(w, http.StatusUnauthorized, `{}`)
	})

	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, mux, tokens, WithReissueCoalescing(true))

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Send(context.Background(), Request{Path: "/mypage"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), reissues.Load())
	assert.Equal(t, []string{"T2"}, tokens.sets)
}

func TestSend_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	backend := &fakeBackend{validToken: "T2", nextToken: "T2"}
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, backend, tokens, WithMetrics(metrics))

	_, err = client.Send(context.Background(), Request{Path: "/mypage"})
	require.NoError(t, err)
	_, err = client.Send(context.Background(), Request{Path: "/missing"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, outcomeUpstream)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reissues.WithLabelValues("ok")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "double registration is rejected")
}

func TestNew_Validation(t *testing.T) {
	_, err := New("http://127.0.0.1:1/api", nil)
	assert.Error(t, err)

	_, err = New("   ", &fakeTokens{})
	assert.Error(t, err)

	client, err := New("127.0.0.1:8080/api/", &fakeTokens{})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/api", client.BaseURL())
	assert.Equal(t, "http://127.0.0.1:8080/api/posts/p1?page=0",
		client.resolve(Request{Path: "posts/p1", Query: map[string][]string{"page": {"0"}}}))
}

func TestSend_CancelDuringReissueKeepsSession(t *testing.T) {
	inReissue := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/reissue", func(w http.ResponseWriter, r *http.Request) {
		close(inReissue)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	mux.HandleFunc("/api/mypage", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusUnauthorized, `{}`)
	})

	var hooked atomic.Int32
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, mux, tokens, WithAuthFailureHook(func(error) { hooked.Add(1) }))
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-inReissue
		cancel()
	}()
	_, err := client.Send(ctx, Request{Path: "/mypage"})

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, tokens.logouts)
	assert.Zero(t, hooked.Load())
	assert.Equal(t, "T1", tokens.current())
}

func TestSend_CoalescedReissueSurvivesCancelledWaiter(t *testing.T) {
	var reissues atomic.Int32
	release := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/reissue", func(w http.ResponseWriter, r *http.Request) {
		reissues.Add(1)
		<-release
		respond(w, http.StatusOK, `{"grantType":"Bearer","accessToken":"T2"}`)
	})
	mux.HandleFunc("/api/mypage", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer T2" {
			respond(w, http.StatusOK, `{}`)
			return
		}
		arrived.Done()
		arrived.Wait()
		respond(w, http.StatusUnauthorized, `{}`)
	})

	var hooked atomic.Int32
	tokens := &fakeTokens{token: "T1"}
	client := newTestClient(t, mux, tokens,
		WithReissueCoalescing(true),
		WithAuthFailureHook(func(error) { hooked.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := client.Send(ctx, Request{Path: "/mypage"})
		cancelled <- err
	}()
	live := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), Request{Path: "/mypage"})
		live <- err
	}()

	require.Eventually(t, func() bool { return reissues.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	err := <-cancelled
	var transport *TransportError
	require.ErrorAs(t, err, &transport)

	close(release)
	require.NoError(t, <-live)
	assert.Zero(t, tokens.logouts)
	assert.Zero(t, hooked.Load())
	assert.Equal(t, "T2", tokens.current())
}

func TestSend_UserAgent(t *testing.T) {
	agents := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/members", func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		respond(w, http.StatusCreated, `{}`)
	})
	client := newTestClient(t, mux, &fakeTokens{}, WithUserAgent("morsel/1.2.0"), WithUserAgent("  "))

	_, err := client.Send(context.Background(), Request{Method: http.MethodPost, Path: "/members"})
	require.NoError(t, err)
	assert.Equal(t, "morsel/1.2.0", <-agents)
}

// refreshTokens also keeps the refresh credential, like *session.Store.
type refreshTokens struct {
	fakeTokens
	refresh string
}

func (f *refreshTokens) RefreshToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh, nil
}

func (f *refreshTokens) SetRefreshToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = token
	return nil
}

func TestSend_RefreshCookieOutlivesClient(t *testing.T) {
	backend := &fakeBackend{nextToken: "T2"}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	ctx := context.Background()
	tokens := &refreshTokens{}

	first, err := New(srv.URL+"/api", tokens)
	require.NoError(t, err)
	resp, err := first.Send(ctx, Request{Method: http.MethodPost, Path: "/login"})
	require.NoError(t, err)
	var login TokenResponse
	require.NoError(t, resp.Decode(&login))
	require.NoError(t, tokens.SetAccessToken(ctx, login.AccessToken))
	assert.Equal(t, "R1", tokens.refresh)

	// a new process: fresh jar, same durable store, expired access token
	second, err := New(srv.URL+"/api", tokens)
	require.NoError(t, err)
	backend.mu.Lock()
	backend.validToken = "expired"
	backend.mu.Unlock()

	_, err = second.Send(ctx, Request{Path: "/mypage"})
	require.NoError(t, err)
	assert.Equal(t, "T2", tokens.current())

	for _, c := range backend.snapshot() {
		switch c.Path {
		case "/api/auth/reissue":
			assert.Equal(t, "R1", c.Cookie)
		case "/api/mypage":
			assert.Empty(t, c.Cookie, "refresh cookie only goes to the reissue endpoint")
		}
	}

	// once the store forgets it, nothing is presented
	require.NoError(t, tokens.SetRefreshToken(ctx, ""))
	backend.mu.Lock()
	backend.validToken = "expired-again"
	backend.reissueStatus = http.StatusUnauthorized
	backend.mu.Unlock()
	_, err = second.Send(ctx, Request{Path: "/mypage"})
	require.ErrorIs(t, err, ErrUnauthorized)
	calls := backend.snapshot()
	assert.Empty(t, calls[len(calls)-1].Cookie)
}
