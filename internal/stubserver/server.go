package stubserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/logging"
)

const (
	// RefreshCookieName is the cookie carrying the refresh token.
	RefreshCookieName = "refresh_token"
	// DefaultAccessTTL is deliberately short so reissue happens in practice.
	DefaultAccessTTL = 30 * time.Minute

	maxUploadBytes = 16 << 20
)

// Options configures a Server. Zero values pick the defaults.
type Options struct {
	Secret       []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Refresh      RefreshStore
	Logger       *slog.Logger
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer
	BcryptCost   int
	CookieSecure bool
	Now          func() time.Time
}

// Server is an in-memory stand-in for the foodcom REST backend.
type Server struct {
	tokens       *TokenIssuer
	refresh      RefreshStore
	refreshTTL   time.Duration
	members      *memberStore
	posts        *postStore
	metrics      *serverMetrics
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	cookieSecure bool
	mux          *http.ServeMux
}

type serverMetrics struct {
	requests *prometheus.CounterVec
	reissues *prometheus.CounterVec
}

func New(opts Options) (*Server, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	tokens, err := NewTokenIssuer(opts.Secret, opts.AccessTTL, opts.RefreshTTL, opts.Now)
	if err != nil {
		return nil, err
	}
	if opts.Refresh == nil {
		opts.Refresh = NewMemoryRefreshStore(opts.Now)
	}
	if opts.Registerer == nil {
		reg := prometheus.NewRegistry()
		opts.Registerer = reg
		opts.Gatherer = reg
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	metrics := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "morsel",
			Subsystem: "stub",
			Name:      "requests_total",
			Help:      "Requests served by route and status.",
		}, []string{"route", "status"}),
		reissues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "morsel",
			Subsystem: "stub",
			Name:      "reissues_total",
			Help:      "Reissue requests by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{metrics.requests, metrics.reissues} {
		if err := opts.Registerer.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	s := &Server{
		tokens:       tokens,
		refresh:      opts.Refresh,
		refreshTTL:   opts.RefreshTTL,
		members:      newMemberStore(opts.BcryptCost),
		posts:        newPostStore(opts.Now),
		metrics:      metrics,
		gatherer:     opts.Gatherer,
		logger:       logging.For(opts.Logger, "stubserver"),
		cookieSecure: opts.CookieSecure,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/members", s.handleSignup)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/reissue", s.handleReissue)

	s.mux.HandleFunc("GET /api/posts", s.handleFeed)
	s.mux.HandleFunc("GET /api/posts/{id}", s.handlePost)
	s.mux.HandleFunc("POST /api/posts", s.requireAuth(s.handleCreatePost))
	s.mux.HandleFunc("PATCH /api/posts/{id}", s.requireAuth(s.handleUpdatePost))
	s.mux.HandleFunc("DELETE /api/posts/{id}", s.requireAuth(s.handleDeletePost))
	s.mux.HandleFunc("POST /api/posts/{id}/comments", s.requireAuth(s.handleAddComment))
	s.mux.HandleFunc("GET /api/images/{id}", s.handleImage)

	s.mux.HandleFunc("GET /api/mypage", s.requireAuth(s.handleMyPage))
	s.mux.HandleFunc("PATCH /api/mypage", s.requireAuth(s.handleUpdateProfile))
	s.mux.HandleFunc("PATCH /api/mypage/edit", s.requireAuth(s.handleUpdateProfile))

	s.mux.HandleFunc("POST /_stub/expire-access", s.handleExpireAccess)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the HTTP handler with request accounting applied.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		s.mux.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", r.Header.Get("X-Request-ID"),
		)
	})
}

// SeedMember registers a member directly, for dev runs and tests.
func (s *Server) SeedMember(req api.SignupRequest) error {
	if problems := validateSignup(req); problems != nil {
		return fmt.Errorf("seed member: invalid fields %v", problems)
	}
	_, err := s.members.create(req)
	return err
}

// ExpireAccessTokens makes every outstanding access token fail with 401.
func (s *Server) ExpireAccessTokens() {
	s.tokens.ExpireAccessTokens()
	s.logger.Info("access tokens expired")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type ctxKey struct{}

func loginIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "access token is missing")
			return
		}
		loginID, err := s.tokens.ParseAccess(tok)
		if err != nil {
			writeUnauthorized(w, "access token is invalid or expired")
			return
		}
		if _, ok := s.members.get(loginID); !ok {
			writeUnauthorized(w, "member no longer exists")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, loginID)))
	}
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(s.refreshTTL / time.Second),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if problems := validateSignup(req); problems != nil {
		writeError(w, http.StatusBadRequest, "Validation Failed", problems)
		return
	}
	m, err := s.members.create(req)
	if err != nil {
		if errors.Is(err, errDuplicateMember) {
			writeError(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		s.logger.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "unexpected server error")
		return
	}
	s.logger.Info("member registered", "login_id", m.LoginID)
	w.Header().Set("Location", fmt.Sprintf("/api/members/%d", m.ID))
	writeJSON(w, http.StatusCreated, api.SignupResponse{ID: m.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	m, err := s.members.authenticate(req.LoginID, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Login Failed", err.Error())
		return
	}
	pair, err := s.tokens.Issue(m.LoginID)
	if err == nil {
		err = s.refresh.Save(r.Context(), m.LoginID, pair.RefreshToken, s.refreshTTL)
	}
	if err != nil {
		s.logger.Error("issue tokens failed", "login_id", m.LoginID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "unexpected server error")
		return
	}
	s.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiry)
	s.logger.Info("login", "login_id", m.LoginID)
	writeJSON(w, http.StatusOK, tokenResponse{GrantType: grantType, AccessToken: pair.AccessToken})
}

type tokenResponse struct {
	GrantType   string `json:"grantType"`
	AccessToken string `json:"accessToken"`
}

// handleReissue rotates both tokens. A refresh token that verifies but
// differs from the stored one is treated as stolen: the stored token is
// dropped and the member must log in again.
func (s *Server) handleReissue(w http.ResponseWriter, r *http.Request) {
	fail := func(msg string) {
		s.metrics.reissues.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Token Error", msg)
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		fail("refresh token cookie is missing")
		return
	}
	presented := strings.TrimSpace(cookie.Value)
	loginID, err := s.tokens.ParseRefresh(presented)
	if err != nil {
		fail("refresh token is invalid or expired")
		return
	}
	stored, err := s.refresh.Get(r.Context(), loginID)
	if err != nil {
		if !errors.Is(err, ErrNoRefreshToken) {
			s.logger.Error("load refresh token", "login_id", loginID, "error", err)
		}
		fail("no refresh token on record")
		return
	}
	if stored != presented {
		if err := s.refresh.Delete(r.Context(), loginID); err != nil {
			s.logger.Error("drop refresh token", "login_id", loginID, "error", err)
		}
		s.logger.Warn("refresh token mismatch", "login_id", loginID)
		fail("refresh token does not match")
		return
	}

	pair, err := s.tokens.Issue(loginID)
	if err == nil {
		err = s.refresh.Save(r.Context(), loginID, pair.RefreshToken, s.refreshTTL)
	}
	if err != nil {
		s.logger.Error("rotate tokens failed", "login_id", loginID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "unexpected server error")
		return
	}
	s.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiry)
	s.metrics.reissues.WithLabelValues("ok").Inc()
	s.logger.Info("tokens reissued", "login_id", loginID)
	writeJSON(w, http.StatusOK, tokenResponse{GrantType: grantType, AccessToken: pair.AccessToken})
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.posts.list(pageParam(r)))
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.get(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type draftPart struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	DeleteImageIDs []int64 `json:"deleteImageIds"`
}

func readDraft(r *http.Request) (draftPart, []upload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return draftPart{}, nil, fmt.Errorf("parse multipart: %w", err)
	}
	var draft draftPart
	data := r.MultipartForm.Value["data"]
	headers := r.MultipartForm.File["data"]
	switch {
	case len(data) > 0:
		if err := jsonUnmarshal([]byte(data[0]), &draft); err != nil {
			return draftPart{}, nil, err
		}
	case len(headers) > 0:
		raw, err := readFileHeader(headers[0])
		if err != nil {
			return draftPart{}, nil, err
		}
		if err := jsonUnmarshal(raw, &draft); err != nil {
			return draftPart{}, nil, err
		}
	default:
		return draftPart{}, nil, errors.New("missing data part")
	}

	var files []upload
	for _, fh := range r.MultipartForm.File["files"] {
		raw, err := readFileHeader(fh)
		if err != nil {
			return draftPart{}, nil, err
		}
		files = append(files, upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: raw})
	}
	return draft, files, nil
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	draft, files, err := readDraft(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if problems := validateDraft(draft.Title, draft.Content, false); problems != nil {
		writeError(w, http.StatusBadRequest, "Validation Failed", problems)
		return
	}
	author, _ := s.members.get(loginIDFrom(r.Context()))
	id := s.posts.create(author, draft.Title, draft.Content, files)
	s.logger.Info("post created", "post_id", id, "login_id", author.LoginID)
	w.Header().Set("Location", "/api/posts/"+id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	draft, files, err := readDraft(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if problems := validateDraft(draft.Title, draft.Content, true); problems != nil {
		writeError(w, http.StatusBadRequest, "Validation Failed", problems)
		return
	}
	err = s.posts.update(r.PathValue("id"), loginIDFrom(r.Context()), draft.Title, draft.Content, draft.DeleteImageIDs, files)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.delete(r.PathValue("id"), loginIDFrom(r.Context())); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req api.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if n := len([]rune(content)); n < 1 || n > maxCommentRunes {
		writeError(w, http.StatusBadRequest, "Validation Failed", map[string]string{"content": "comment must be 1 to 300 characters"})
		return
	}
	if err := s.posts.addComment(r.PathValue("id"), loginIDFrom(r.Context()), content); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Resource Not Found", "image not found")
		return
	}
	img, ok := s.posts.image(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Resource Not Found", "image not found")
		return
	}
	if img.ContentType != "" {
		w.Header().Set("Content-Type", img.ContentType)
	}
	_, _ = w.Write(img.Data)
}

func (s *Server) handleMyPage(w http.ResponseWriter, r *http.Request) {
	loginID := loginIDFrom(r.Context())
	m, ok := s.members.get(loginID)
	if !ok {
		writeUnauthorized(w, "member no longer exists")
		return
	}
	posts := s.posts.byAuthor(loginID)
	page := pageParam(r)
	total := len(posts)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	writeJSON(w, http.StatusOK, api.MyPage{
		LoginID:       m.LoginID,
		Username:      m.Username,
		Gender:        m.Gender,
		Age:           m.Age,
		Posts:         posts[start:end],
		TotalElements: int64(total),
		TotalPages:    (total + pageSize - 1) / pageSize,
		Size:          pageSize,
		Number:        page - 1,
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req api.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	problems := make(map[string]string)
	if req.NewPassword != "" {
		if n := len([]rune(req.NewPassword)); n < 8 || n > 20 {
			problems["newPassword"] = "password must be 8 to 20 characters"
		}
	}
	if req.Gender != "" && req.Gender != api.GenderMale && req.Gender != api.GenderFemale {
		problems["gender"] = "gender must be MALE or FEMALE"
	}
	if req.Age != nil && *req.Age <= 0 {
		problems["age"] = "age must be positive"
	}
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, "Validation Failed", problems)
		return
	}
	if _, err := s.members.update(loginIDFrom(r.Context()), req); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExpireAccess(w http.ResponseWriter, _ *http.Request) {
	s.ExpireAccessTokens()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPostNotFound), errors.Is(err, errUnknownMember):
		writeError(w, http.StatusNotFound, "Resource Not Found", err.Error())
	case errors.Is(err, errNotAuthor):
		writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "unexpected server error")
	}
}
