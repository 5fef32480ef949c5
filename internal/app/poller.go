package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/state"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = 30 * time.Second
)

// StartPoller launches a background goroutine that refreshes the feed in
// store. Consecutive failures back off exponentially up to maxBackoff.
// It returns immediately.
func StartPoller(ctx context.Context, store *state.Store, backend api.Backend, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		for {
			refresh(ctx, store, backend, logger)
			wait := calculateBackoff(store.Snapshot().ConsecutiveFailures, interval)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func refresh(ctx context.Context, store *state.Store, backend api.Backend, logger *slog.Logger) {
	page := store.Page()
	feed, err := backend.Feed(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		store.Update(nil, err)
		if logger != nil {
			logger.Warn("feed poll failed", "page", page, "error", err)
		}
		return
	}
	store.Update(feed, nil)
}
