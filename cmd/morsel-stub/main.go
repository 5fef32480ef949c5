package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/stubserver"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	accessTTL := flag.Duration("access-ttl", stubserver.DefaultAccessTTL, "access token lifetime")
	refreshTTL := flag.Duration("refresh-ttl", stubserver.DefaultRefreshTTL, "refresh token lifetime")
	secret := flag.String("secret", "", "HS256 signing secret (random when empty)")
	redisAddr := flag.String("redis-addr", "", "keep refresh tokens in this Redis instead of memory")
	seed := flag.StringArray("seed-user", nil, "register loginId:password before serving (repeatable)")
	seedFile := flag.String("seed-file", "", "YAML fixture with members, posts and comments to load at start")
	debug := flag.Bool("debug", false, "log every request")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := serve(ctx, logger, serveOptions{
		addr:       *addr,
		accessTTL:  *accessTTL,
		refreshTTL: *refreshTTL,
		secret:     *secret,
		redisAddr:  *redisAddr,
		seed:       *seed,
		seedFile:   *seedFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "morsel-stub: %v\n", err)
		return 1
	}
	return 0
}

type serveOptions struct {
	addr       string
	accessTTL  time.Duration
	refreshTTL time.Duration
	secret     string
	redisAddr  string
	seed       []string
	seedFile   string
}

func serve(ctx context.Context, logger *slog.Logger, opts serveOptions) error {
	key := []byte(opts.secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
	}

	serverOpts := stubserver.Options{
		Secret:     key,
		AccessTTL:  opts.accessTTL,
		RefreshTTL: opts.refreshTTL,
		Logger:     logger,
	}
	if opts.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", opts.redisAddr, err)
		}
		serverOpts.Refresh = stubserver.NewRedisRefreshStore(rdb)
	}

	srv, err := stubserver.New(serverOpts)
	if err != nil {
		return err
	}
	for _, entry := range opts.seed {
		loginID, password, ok := strings.Cut(entry, ":")
		if !ok {
			return fmt.Errorf("seed user %q: want loginId:password", entry)
		}
		err := srv.SeedMember(api.SignupRequest{
			LoginID:  loginID,
			Password: password,
			Username: loginID,
			Gender:   api.GenderFemale,
			Age:      20,
		})
		if err != nil {
			return err
		}
		logger.Info("seeded member", "login_id", loginID)
	}
	if opts.seedFile != "" {
		fixture, err := stubserver.LoadSeed(opts.seedFile)
		if err != nil {
			return err
		}
		if err := srv.ApplySeed(fixture); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub backend listening", "addr", opts.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
