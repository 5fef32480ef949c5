// Package prefs keeps what the morsel UI remembers between runs: the
// colour theme and the last login id. The file sits next to config.toml
// unless a path is given.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/foodcom/morsel/internal/config"
)

// Prefs holds user preferences for morsel.
type Prefs struct {
	Theme       string `toml:"theme"`
	LastLoginID string `toml:"last_login_id,omitempty"`
}

const defaultTheme = "Dracula"

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return config.DefaultPrefsPath
}

func defaults() Prefs {
	return Prefs{Theme: defaultTheme}
}

// Load reads the preferences at path ("" selects DefaultPath). A missing
// file gives the defaults and no error. A file that cannot be read or
// parsed also gives the defaults, together with the reason.
func Load(path string) (Prefs, error) {
	resolved, err := resolve(path)
	if err != nil {
		return defaults(), err
	}

	data, err := os.ReadFile(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return defaults(), nil
	}
	if err != nil {
		return defaults(), fmt.Errorf("read prefs: %w", err)
	}

	p := defaults()
	if err := toml.Unmarshal(data, &p); err != nil {
		return defaults(), fmt.Errorf("parse prefs %s: %w", resolved, err)
	}
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	p.LastLoginID = strings.TrimSpace(p.LastLoginID)
	return p, nil
}

// Update applies fn to the stored preferences and saves the result. A
// file Load rejects is replaced.
func Update(path string, fn func(*Prefs)) error {
	p, _ := Load(path)
	fn(&p)
	return Save(path, p)
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolve(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	// The CLI and the TUI both write here; replace the file in one step.
	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

func resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = config.DefaultPrefsPath
	}
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve prefs path: %w", err)
	}
	return resolved, nil
}
