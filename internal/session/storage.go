package session

import (
	"context"
	"sync"
)

// User is the display identity of the logged-in member.
type User struct {
	LoginID     string `toml:"login_id"`
	DisplayName string `toml:"display_name"`
}

// Storage is the durable slot holding the access token, the refresh
// credential and identity. An empty token means logged out.
// Implementations must be safe for concurrent use.
type Storage interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	// RefreshToken is the value of the backend's refresh cookie; "" when
	// none was issued.
	RefreshToken(ctx context.Context) (string, error)
	SetRefreshToken(ctx context.Context, token string) error
	User(ctx context.Context) (*User, error)
	// SetUser stores u; nil removes the stored identity.
	SetUser(ctx context.Context, u *User) error
	// Clear removes tokens and identity. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// MemoryStorage keeps the slot in process memory.
type MemoryStorage struct {
	mu      sync.Mutex
	token   string
	refresh string
	user    *User
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty in-memory slot.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStorage) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStorage) RefreshToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh, nil
}

func (m *MemoryStorage) SetRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = token
	return nil
}

func (m *MemoryStorage) User(context.Context) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUser(m.user), nil
}

func (m *MemoryStorage) SetUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = cloneUser(u)
	return nil
}

func (m *MemoryStorage) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.refresh = ""
	m.user = nil
	return nil
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	dup := *u
	return &dup
}
