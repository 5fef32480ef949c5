package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/foodcom/morsel/internal/logging"
)

// ErrEmptyToken is returned by SetAccessToken for "". Logging out goes
// through Logout.
var ErrEmptyToken = errors.New("session: empty access token")

// Session is a point-in-time copy of the client's identity.
// IsAuthenticated is true exactly when AccessToken is non-empty.
type Session struct {
	AccessToken     string
	IsAuthenticated bool
	User            *User
}

// Store owns the session. Storage is canonical; the Store keeps a
// hydrated copy for cheap reads by the UI.
type Store struct {
	storage Storage
	logger  *slog.Logger

	mu    sync.RWMutex
	cache Session
}

// Open hydrates a Store from storage.
func Open(ctx context.Context, storage Storage, logger *slog.Logger) (*Store, error) {
	if storage == nil {
		return nil, fmt.Errorf("session storage is nil")
	}
	s := &Store{storage: storage, logger: logging.For(logger, "session")}

	token, err := storage.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate session: %w", err)
	}
	user, err := storage.User(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate session: %w", err)
	}
	s.cache = Session{AccessToken: token, IsAuthenticated: token != "", User: user}
	s.logger.Debug("session hydrated", "authenticated", token != "")
	return s, nil
}

// Read returns a copy of the cached session.
func (s *Store) Read() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.cache
	out.User = cloneUser(s.cache.User)
	return out
}

// AccessToken returns the token from durable storage, reconciling the
// cache when another process changed it. A different token may belong to
// a different member, so the identity is reloaded with it.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	token, err := s.storage.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}

	s.mu.RLock()
	changed := s.cache.AccessToken != token
	s.mu.RUnlock()
	if !changed {
		return token, nil
	}

	var user *User
	if token != "" {
		if user, err = s.storage.User(ctx); err != nil {
			s.logger.Warn("reload user after token change", "error", err)
			user = nil
		}
	}
	s.mu.Lock()
	s.cache = Session{AccessToken: token, IsAuthenticated: token != "", User: user}
	s.mu.Unlock()
	s.logger.Debug("session changed in storage", "authenticated", token != "")
	return token, nil
}

// RefreshToken returns the stored refresh credential, "" when there is none.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	token, err := s.storage.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read refresh token: %w", err)
	}
	return token, nil
}

// SetRefreshToken persists the refresh credential; "" forgets it.
func (s *Store) SetRefreshToken(ctx context.Context, token string) error {
	if err := s.storage.SetRefreshToken(ctx, token); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

// SetAccessToken persists token and marks the session authenticated.
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.storage.SetToken(ctx, token); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}

	s.mu.Lock()
	s.cache.AccessToken = token
	s.cache.IsAuthenticated = true
	s.mu.Unlock()
	s.logger.Debug("access token stored")
	return nil
}

// SetUser persists the display identity. Authentication state is untouched.
func (s *Store) SetUser(ctx context.Context, u User) error {
	if err := s.storage.SetUser(ctx, &u); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	s.mu.Lock()
	s.cache.User = &u
	s.mu.Unlock()
	return nil
}

// Logout clears storage and resets the session. Calling it while logged
// out is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	err := s.storage.Clear(ctx)

	s.mu.Lock()
	was := s.cache.IsAuthenticated
	s.cache = Session{}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if was {
		s.logger.Info("logged out")
	}
	return nil
}
