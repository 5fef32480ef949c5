package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != defaultAPIBase {
		t.Fatalf("APIBase = %q, want %q", cfg.APIBase, defaultAPIBase)
	}

	wantStateDir, err := ExpandPath(defaultStateDir)
	if err != nil {
		t.Fatalf("ExpandPath(defaultStateDir) returned error: %v", err)
	}
	if cfg.StateDir != wantStateDir {
		t.Fatalf("StateDir = %q, want %q", cfg.StateDir, wantStateDir)
	}
	if cfg.Session.Backend != SessionBackendFile {
		t.Fatalf("Session.Backend = %q, want %q", cfg.Session.Backend, SessionBackendFile)
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Fatalf("RequestTimeout = %v, want %v", cfg.RequestTimeout, defaultRequestTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.CoalesceReissue {
		t.Fatalf("CoalesceReissue = true, want false by default")
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_base = "  https://foodcom.example/api/  "
state_dir = "  ~/.morsel  "
log_level = "DEBUG"
request_timeout = "3s"
coalesce_reissue = true
metrics_addr = " 127.0.0.1:9464 "

[session]
backend = "Redis"
redis_addr = "10.0.0.5:6380"
redis_key = "feed"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != "https://foodcom.example/api" {
		t.Fatalf("APIBase = %q, want trailing slash trimmed", cfg.APIBase)
	}
	if !strings.HasPrefix(cfg.StateDir, home) {
		t.Fatalf("StateDir = %q, want it under HOME %q", cfg.StateDir, home)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if !cfg.CoalesceReissue {
		t.Fatalf("CoalesceReissue = false, want true")
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Fatalf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.Session.Backend != SessionBackendRedis || cfg.Session.RedisAddr != "10.0.0.5:6380" || cfg.Session.RedisKey != "feed" {
		t.Fatalf("Session = %#v", cfg.Session)
	}
	if cfg.SessionPath() != filepath.Join(cfg.StateDir, "session.toml") {
		t.Fatalf("SessionPath = %q", cfg.SessionPath())
	}
	if cfg.LogPath() != filepath.Join(cfg.StateDir, "morsel.log") {
		t.Fatalf("LogPath = %q", cfg.LogPath())
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_base = "   "
state_dir = ""
[session]
backend = ""
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != defaultAPIBase {
		t.Fatalf("APIBase = %q, want %q", cfg.APIBase, defaultAPIBase)
	}
	wantStateDir, err := ExpandPath(defaultStateDir)
	if err != nil {
		t.Fatalf("ExpandPath(defaultStateDir) returned error: %v", err)
	}
	if cfg.StateDir != wantStateDir {
		t.Fatalf("StateDir = %q, want %q", cfg.StateDir, wantStateDir)
	}
	if cfg.Session.Backend != SessionBackendFile {
		t.Fatalf("Session.Backend = %q, want file", cfg.Session.Backend)
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	cases := map[string]string{
		"toml":    `api_base = [`,
		"level":   `log_level = "loud"`,
		"timeout": `request_timeout = "soon"`,
		"backend": "[session]\nbackend = \"etcd\"",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatalf("Load returned nil error, want parse error")
			}
			if !strings.Contains(err.Error(), "parse config") {
				t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := ExpandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestLogPath_DefaultsWhenStateDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.LogPath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/morsel.log")) {
		t.Fatalf("LogPath = %q, want it to end with /morsel.log", got)
	}
}
