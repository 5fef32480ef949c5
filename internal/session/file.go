package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// FileStorage keeps the slot in a TOML document on disk. Every call reads
// or rewrites the file, so a login performed by another morsel process is
// visible on the next request.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

var _ Storage = (*FileStorage)(nil)

type fileDocument struct {
	AccessToken  string `toml:"access_token,omitempty"`
	RefreshToken string `toml:"refresh_token,omitempty"`
	User         *User  `toml:"user,omitempty"`
}

// NewFileStorage returns a storage backed by the file at path. The file is
// created on first write.
func NewFileStorage(path string) (*FileStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session path is empty")
	}
	return &FileStorage{path: path}, nil
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return "", err
	}
	return doc.AccessToken, nil
}

func (f *FileStorage) SetToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.AccessToken = token
	return f.write(doc)
}

func (f *FileStorage) RefreshToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return "", err
	}
	return doc.RefreshToken, nil
}

func (f *FileStorage) SetRefreshToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.RefreshToken = token
	return f.write(doc)
}

func (f *FileStorage) User(context.Context) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc.User, nil
}

func (f *FileStorage) SetUser(_ context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.User = cloneUser(u)
	return f.write(doc)
}

func (f *FileStorage) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (f *FileStorage) read() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read session: %w", err)
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fileDocument{}, fmt.Errorf("parse session: %w", err)
	}
	return doc, nil
}

func (f *FileStorage) write(doc fileDocument) error {
	if doc == (fileDocument{}) {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.toml")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
