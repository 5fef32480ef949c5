package authclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/foodcom/morsel/internal/logging"
)

// TokenStore is the session slot the client reads and updates.
// *session.Store satisfies it.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	Logout(ctx context.Context) error
}

// TokenResponse is the body of a successful login or reissue.
type TokenResponse struct {
	GrantType   string `json:"grantType"`
	AccessToken string `json:"accessToken"`
}

// ErrMissingToken is the reissue failure cause when a 2xx response has no
// access token in it.
var ErrMissingToken = errors.New("reissue response carried no access token")

const (
	defaultUserAgent = "morsel"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 8 << 20
	requestIDHeader  = "X-Request-ID"
	reissueFlightKey = "reissue"
)

// Client sends requests to the foodcom API, attaching the bearer token
// and running one reissue-and-retry cycle when an access token expires.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	timeout       time.Duration
	tokens        TokenStore
	logger        *slog.Logger
	metrics       *Metrics
	userAgent     string
	onAuthFailure func(error)
	reissueGroup  *singleflight.Group
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc. A cookie jar is added to a
// copy of hc when it has none; hc itself is not modified. A jar already
// set on hc is used as is, so the refresh cookie is not persisted.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each dispatch. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.For(logger, "authclient") }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// WithAuthFailureHook registers fn to run after a failed reissue has
// cleared the session. The UI uses it to return to the login view.
func WithAuthFailureHook(fn func(error)) Option {
	return func(c *Client) { c.onAuthFailure = fn }
}

// WithReissueCoalescing makes concurrent 401s share a single reissue call.
func WithReissueCoalescing(enabled bool) Option {
	return func(c *Client) {
		if enabled {
			c.reissueGroup = &singleflight.Group{}
		} else {
			c.reissueGroup = nil
		}
	}
}

// New builds a Client for the API rooted at baseURL (for example
// "http://127.0.0.1:8080/api").
func New(baseURL string, tokens TokenStore, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token store is nil")
	}
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		timeout:   defaultTimeout,
		tokens:    tokens,
		logger:    logging.For(nil, "authclient"),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	var hc http.Client
	if c.http != nil {
		hc = *c.http
	} else {
		hc.Timeout = c.timeout
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		hc.Jar = jar
		if refresh, ok := tokens.(RefreshStore); ok {
			hc.Jar = &sessionJar{inner: jar, store: refresh, logger: c.logger, now: time.Now}
		}
	}
	c.http = &hc
	return c, nil
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Send dispatches req. A 2xx response is returned as is. A 401 to a
// protected endpoint triggers one reissue; when it succeeds the request
// is sent again with the new token and that outcome is final. When it
// fails the session is cleared and an *AuthError is returned. Every
// other non-2xx becomes an *UpstreamError, and a request that never
// completes becomes a *TransportError.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	start := time.Now()
	public := IsPublic(req.Path)
	requestID := uuid.NewString()

	var bearer string
	if !public {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.metrics.observeRequest(req.Method, outcomeTransport, time.Since(start))
			return nil, &TransportError{Method: req.Method, Path: req.Path, Err: err}
		}
		bearer = token
	}

	phase := PhaseInitial
	for {
		resp, err := c.roundTrip(ctx, req, bearer, requestID)
		if err != nil {
			c.logger.Debug("request failed",
				"method", req.Method,
				"path", req.Path,
				"phase", phase,
				"request_id", requestID,
				"error", err,
			)
			c.metrics.observeRequest(req.Method, outcomeTransport, time.Since(start))
			return nil, err
		}

		next := NextPhase(phase, public, resp.StatusCode)
		c.logger.Debug("request complete",
			"method", req.Method,
			"path", req.Path,
			"public", public,
			"phase", phase,
			"status", resp.StatusCode,
			"request_id", requestID,
		)
		if next != PhaseReissuing {
			return c.finish(req, resp, start)
		}

		token, err := c.reissue(ctx, req)
		if err != nil {
			outcome := outcomeAuth
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				outcome = outcomeTransport
			}
			c.metrics.observeRequest(req.Method, outcome, time.Since(start))
			return nil, err
		}
		bearer = token
		phase = PhaseRetried
	}
}

func (c *Client) finish(req Request, resp *Response, start time.Time) (*Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.metrics.observeRequest(req.Method, outcomeOK, time.Since(start))
		return resp, nil
	}
	c.metrics.observeRequest(req.Method, outcomeUpstream, time.Since(start))
	return nil, parseUpstreamError(resp.StatusCode, resp.Body)
}

func (c *Client) reissue(ctx context.Context, origin Request) (string, error) {
	if c.reissueGroup == nil {
		return c.doReissue(ctx, origin)
	}
	// The shared call outlives any one waiter.
	ch := c.reissueGroup.DoChan(reissueFlightKey, func() (any, error) {
		return c.doReissue(context.WithoutCancel(ctx), origin)
	})
	select {
	case <-ctx.Done():
		return "", &TransportError{Method: origin.Method, Path: origin.Path, Err: fmt.Errorf("reissue: %w", ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			var authErr *AuthError
			if res.Shared && errors.As(res.Err, &authErr) {
				return "", &AuthError{Method: origin.Method, Path: origin.Path, Err: authErr.Err}
			}
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) doReissue(ctx context.Context, origin Request) (string, error) {
	c.logger.Info("access token rejected, reissuing", "method", origin.Method, "path", origin.Path)

	token, err := c.fetchToken(ctx)
	if err == nil {
		c.metrics.observeReissue(true)
		c.logger.Info("access token reissued")
		return token, nil
	}

	// Cancellation is not a rejected refresh credential: keep the session.
	if ctx.Err() != nil {
		c.logger.Debug("reissue abandoned", "method", origin.Method, "path", origin.Path, "error", err)
		return "", &TransportError{Method: origin.Method, Path: origin.Path, Err: fmt.Errorf("reissue: %w", err)}
	}

	c.metrics.observeReissue(false)
	c.logger.Warn("reissue failed, clearing session", "error", err)
	if logoutErr := c.tokens.Logout(ctx); logoutErr != nil {
		c.logger.Warn("clear session after failed reissue", "error", logoutErr)
	}
	authErr := &AuthError{Method: origin.Method, Path: origin.Path, Err: fmt.Errorf("reissue: %w", err)}
	if c.onAuthFailure != nil {
		c.onAuthFailure(authErr)
	}
	return "", authErr
}

// fetchToken posts to the reissue endpoint with no body and no bearer; the
// refresh cookie rides along from the jar. The new token is persisted
// before it is returned.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	resp, err := c.roundTrip(ctx, Request{Method: http.MethodPost, Path: ReissuePath}, "", uuid.NewString())
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parseUpstreamError(resp.StatusCode, resp.Body)
	}
	var payload TokenResponse
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", ErrMissingToken
	}
	if err := c.tokens.SetAccessToken(ctx, payload.AccessToken); err != nil {
		return "", fmt.Errorf("persist access token: %w", err)
	}
	return payload.AccessToken, nil
}

func (c *Client) roundTrip(ctx context.Context, req Request, bearer, requestID string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req), body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, Path: req.Path, Err: fmt.Errorf("create request: %w", err)}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(requestIDHeader, requestID)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Del("Authorization")
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: req.Method, Path: req.Path, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Method: req.Method, Path: req.Path, Err: fmt.Errorf("read response: %w", err)}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) resolve(req Request) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	u.RawQuery = req.Query.Encode()
	return u.String()
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("api base is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api base %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
