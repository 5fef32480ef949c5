package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/authclient"
	"github.com/foodcom/morsel/internal/config"
	"github.com/foodcom/morsel/internal/logging"
	"github.com/foodcom/morsel/internal/session"
)

// Deps is everything a morsel front end needs, built from one Config.
type Deps struct {
	Config    config.Config
	Logger    *slog.Logger
	Session   *session.Store
	Transport *authclient.Client
	API       *api.Client

	// AuthExpired receives the cause whenever a reissue fails and the
	// session is cleared. Sends never block; extra events are dropped.
	AuthExpired <-chan error

	closers []io.Closer
}

// Build wires storage, transport and API client for cfg. logger may be nil.
func Build(ctx context.Context, cfg config.Config, ephemeral bool, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	d := &Deps{Config: cfg, Logger: logger}

	storage, closer, err := openStorage(ctx, cfg, ephemeral)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		d.closers = append(d.closers, closer)
	}

	store, err := session.Open(ctx, storage, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Session = store

	metrics, err := d.startMetrics(cfg.MetricsAddr)
	if err != nil {
		d.Close()
		return nil, err
	}

	expired := make(chan error, 1)
	d.AuthExpired = expired
	transport, err := authclient.New(cfg.APIBase, store,
		authclient.WithTimeout(cfg.RequestTimeout),
		authclient.WithUserAgent("morsel/"+Version),
		authclient.WithLogger(logger),
		authclient.WithMetrics(metrics),
		authclient.WithReissueCoalescing(cfg.CoalesceReissue),
		authclient.WithAuthFailureHook(func(err error) {
			select {
			case expired <- err:
			default:
			}
		}),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	d.Transport = transport
	d.API = api.New(transport, store, logger)
	return d, nil
}

// Close releases the storage connection and the metrics listener.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			d.Logger.Warn("close failed", "error", err)
		}
	}
	d.closers = nil
}

func openStorage(ctx context.Context, cfg config.Config, ephemeral bool) (session.Storage, io.Closer, error) {
	backend := cfg.Session.Backend
	if ephemeral {
		backend = config.SessionBackendMemory
	}
	switch backend {
	case config.SessionBackendMemory:
		return session.NewMemoryStorage(), nil, nil
	case config.SessionBackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect session redis %s: %w", cfg.Session.RedisAddr, err)
		}
		return session.NewRedisStorage(rdb, cfg.Session.RedisKey), rdb, nil
	default:
		storage, err := session.NewFileStorage(cfg.SessionPath())
		if err != nil {
			return nil, nil, err
		}
		return storage, nil, nil
	}
}

func (d *Deps) startMetrics(addr string) (*authclient.Metrics, error) {
	if addr == "" {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := authclient.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	d.Logger.Info("serving metrics", "addr", addr)
	d.closers = append(d.closers, srv)
	return metrics, nil
}
