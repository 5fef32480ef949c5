package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/foodcom/morsel/internal/config"
	"github.com/foodcom/morsel/internal/logging"
	"github.com/foodcom/morsel/internal/prefs"
	"github.com/foodcom/morsel/internal/state"
	"github.com/foodcom/morsel/internal/ui"
)

// Version is reported in the User-Agent header. Release builds set it
// with -ldflags "-X github.com/foodcom/morsel/internal/app.Version=...".
var Version = "dev"

// Options configure the morsel application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/morsel/prefs.toml
	PollEvery  int    // seconds; zero uses default
	Ephemeral  bool   // keep the session in memory only
}

// Run boots the morsel TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, logger, closeLog, err := setup(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("using default preferences", "error", err)
	}

	deps, err := Build(ctx, cfg, opts.Ephemeral, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	store := &state.Store{}

	interval := defaultPollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	StartPoller(ctx, store, deps.API, interval, logging.For(logger, "poller"))

	logger.Info("morsel started", "api_base", cfg.APIBase, "session_backend", cfg.Session.Backend, "ephemeral", opts.Ephemeral)
	return ui.Run(ui.Options{
		Context:     ctx,
		API:         deps.API,
		Session:     deps.Session,
		Feed:        store,
		AuthExpired: deps.AuthExpired,
		PollTick:    time.Second,
		ThemeName:   userPrefs.Theme,
		LastLoginID: userPrefs.LastLoginID,
		PrefsPath:   opts.PrefsPath,
		LogPath:     cfg.LogPath(),
	})
}

func setup(opts Options) (config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.Open(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, logger, func() { closeQuietly(closer) }, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
