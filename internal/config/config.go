package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Session backends understood by Config.Session.Backend.
const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// Config captures everything morsel needs at startup.
type Config struct {
	APIBase         string
	StateDir        string
	LogLevel        slog.Level
	RequestTimeout  time.Duration
	CoalesceReissue bool
	MetricsAddr     string
	Session         Session
}

// Session selects where the access token slot lives.
type Session struct {
	Backend   string
	RedisAddr string
	RedisKey  string
}

// DefaultPrefsPath is where the UI keeps its preferences, next to config.toml.
const DefaultPrefsPath = "~/.config/morsel/prefs.toml"

const (
	defaultConfigPath     = "~/.config/morsel/config.toml"
	defaultStateDir       = "~/.local/share/morsel"
	defaultAPIBase        = "http://127.0.0.1:8080/api"
	defaultRequestTimeout = 10 * time.Second
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultRedisKey       = "morsel"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBase:        defaultAPIBase,
		StateDir:       mustExpand(defaultStateDir),
		LogLevel:       slog.LevelInfo,
		RequestTimeout: defaultRequestTimeout,
		Session: Session{
			Backend:   SessionBackendFile,
			RedisAddr: defaultRedisAddr,
			RedisKey:  defaultRedisKey,
		},
	}
}

// Load locates and parses the morsel config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBase         string `toml:"api_base"`
		StateDir        string `toml:"state_dir"`
		LogLevel        string `toml:"log_level"`
		RequestTimeout  string `toml:"request_timeout"`
		CoalesceReissue bool   `toml:"coalesce_reissue"`
		MetricsAddr     string `toml:"metrics_addr"`
		Session         struct {
			Backend   string `toml:"backend"`
			RedisAddr string `toml:"redis_addr"`
			RedisKey  string `toml:"redis_key"`
		} `toml:"session"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if base := strings.TrimSpace(raw.APIBase); base != "" {
		cfg.APIBase = strings.TrimRight(base, "/")
	}
	if dir := strings.TrimSpace(raw.StateDir); dir != "" {
		cfg.StateDir = mustExpand(dir)
	}
	if level := strings.TrimSpace(raw.LogLevel); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return Config{}, fmt.Errorf("parse config: log_level %q: %w", level, err)
		}
	}
	if timeout := strings.TrimSpace(raw.RequestTimeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: request_timeout %q: %w", timeout, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("parse config: request_timeout must not be negative")
		}
		cfg.RequestTimeout = d
	}
	cfg.CoalesceReissue = raw.CoalesceReissue
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	if backend := strings.ToLower(strings.TrimSpace(raw.Session.Backend)); backend != "" {
		switch backend {
		case SessionBackendFile, SessionBackendRedis, SessionBackendMemory:
			cfg.Session.Backend = backend
		default:
			return Config{}, fmt.Errorf("parse config: unknown session backend %q", backend)
		}
	}
	if addr := strings.TrimSpace(raw.Session.RedisAddr); addr != "" {
		cfg.Session.RedisAddr = addr
	}
	if key := strings.TrimSpace(raw.Session.RedisKey); key != "" {
		cfg.Session.RedisKey = key
	}

	return cfg, nil
}

// LogPath returns the path of the client log file.
func (c Config) LogPath() string {
	return filepath.Join(c.stateDir(), "morsel.log")
}

// SessionPath returns the path of the file-backed session slot.
func (c Config) SessionPath() string {
	return filepath.Join(c.stateDir(), "session.toml")
}

func (c Config) stateDir() string {
	if strings.TrimSpace(c.StateDir) == "" {
		return mustExpand(defaultStateDir)
	}
	return c.StateDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath trims path, expands a leading ~ and makes it absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
