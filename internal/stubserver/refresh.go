package stubserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRefreshTTL matches the backend's seven day refresh window.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// ErrNoRefreshToken means nothing is stored for the login id.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// RefreshStore keeps the single live refresh token per login id.
type RefreshStore interface {
	Save(ctx context.Context, loginID, token string, ttl time.Duration) error
	Get(ctx context.Context, loginID string) (string, error)
	Delete(ctx context.Context, loginID string) error
}

// MemoryRefreshStore is the default, process-local store.
type MemoryRefreshStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]refreshEntry
}

type refreshEntry struct {
	token   string
	expires time.Time
}

func NewMemoryRefreshStore(now func() time.Time) *MemoryRefreshStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryRefreshStore{now: now, entries: make(map[string]refreshEntry)}
}

func (m *MemoryRefreshStore) Save(_ context.Context, loginID, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[loginID] = refreshEntry{token: token, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryRefreshStore) Get(_ context.Context, loginID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[loginID]
	if !ok {
		return "", ErrNoRefreshToken
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, loginID)
		return "", ErrNoRefreshToken
	}
	return entry.token, nil
}

func (m *MemoryRefreshStore) Delete(_ context.Context, loginID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, loginID)
	return nil
}

// RedisRefreshStore keeps tokens under refreshToken:<loginId> with a TTL,
// the same layout the production backend uses.
type RedisRefreshStore struct {
	rdb redis.UniversalClient
}

func NewRedisRefreshStore(rdb redis.UniversalClient) *RedisRefreshStore {
	return &RedisRefreshStore{rdb: rdb}
}

func refreshKey(loginID string) string {
	return "refreshToken:" + loginID
}

func (r *RedisRefreshStore) Save(ctx context.Context, loginID, token string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, refreshKey(loginID), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis save refresh token: %w", err)
	}
	return nil
}

func (r *RedisRefreshStore) Get(ctx context.Context, loginID string) (string, error) {
	token, err := r.rdb.Get(ctx, refreshKey(loginID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoRefreshToken
		}
		return "", fmt.Errorf("redis get refresh token: %w", err)
	}
	return token, nil
}

func (r *RedisRefreshStore) Delete(ctx context.Context, loginID string) error {
	if err := r.rdb.Del(ctx, refreshKey(loginID)).Err(); err != nil {
		return fmt.Errorf("redis delete refresh token: %w", err)
	}
	return nil
}
