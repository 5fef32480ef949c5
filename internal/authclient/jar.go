package authclient

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RefreshCookie is the cookie the backend uses for the refresh credential.
const RefreshCookie = "refresh_token"

// RefreshStore is implemented by token stores that keep the refresh
// credential across restarts. *session.Store satisfies it. When the
// TokenStore passed to New is also a RefreshStore, the refresh cookie is
// read from and written to it instead of living only in memory.
type RefreshStore interface {
	RefreshToken(ctx context.Context) (string, error)
	SetRefreshToken(ctx context.Context, token string) error
}

// sessionJar keeps every cookie in an in-memory jar except the refresh
// cookie, which goes to the RefreshStore and is only presented to the
// reissue endpoint.
type sessionJar struct {
	inner  http.CookieJar
	store  RefreshStore
	logger *slog.Logger
	now    func() time.Time
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	for _, ck := range cookies {
		if ck.Name != RefreshCookie {
			continue
		}
		value := ck.Value
		if ck.MaxAge < 0 || (!ck.Expires.IsZero() && !ck.Expires.After(j.now())) {
			value = ""
		}
		// http.CookieJar carries no context; the write is a local file or
		// a single Redis SET.
		if err := j.store.SetRefreshToken(context.Background(), value); err != nil {
			j.logger.Warn("persist refresh cookie", "error", err)
		}
	}
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	all := j.inner.Cookies(u)
	cookies := make([]*http.Cookie, 0, len(all)+1)
	for _, ck := range all {
		if ck.Name != RefreshCookie {
			cookies = append(cookies, ck)
		}
	}
	if !strings.HasSuffix(strings.TrimRight(u.Path, "/"), ReissuePath) {
		return cookies
	}

	token, err := j.store.RefreshToken(context.Background())
	if err != nil {
		j.logger.Warn("load refresh cookie", "error", err)
		return cookies
	}
	if token != "" {
		cookies = append(cookies, &http.Cookie{Name: RefreshCookie, Value: token})
	}
	return cookies
}
