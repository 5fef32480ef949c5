package stubserver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshStores(t *testing.T) {
	stores := map[string]func(t *testing.T) RefreshStore{
		"memory": func(*testing.T) RefreshStore { return NewMemoryRefreshStore(nil) },
		"redis": func(t *testing.T) RefreshStore {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return NewRedisRefreshStore(rdb)
		},
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk(t)

			_, err := store.Get(ctx, "alice01")
			assert.ErrorIs(t, err, ErrNoRefreshToken)

			require.NoError(t, store.Save(ctx, "alice01", "R1", time.Hour))
			got, err := store.Get(ctx, "alice01")
			require.NoError(t, err)
			assert.Equal(t, "R1", got)

			require.NoError(t, store.Save(ctx, "alice01", "R2", time.Hour))
			got, err = store.Get(ctx, "alice01")
			require.NoError(t, err)
			assert.Equal(t, "R2", got, "save replaces the live token")

			require.NoError(t, store.Delete(ctx, "alice01"))
			_, err = store.Get(ctx, "alice01")
			assert.ErrorIs(t, err, ErrNoRefreshToken)
		})
	}
}

func TestMemoryRefreshStoreExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryRefreshStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice01", "R1", time.Minute))
	clock.Advance(time.Minute)
	_, err := store.Get(ctx, "alice01")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRedisRefreshStoreKeyAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	store := NewRedisRefreshStore(rdb)

	require.NoError(t, store.Save(context.Background(), "alice01", "R1", DefaultRefreshTTL))
	got, err := mr.Get("refreshToken:alice01")
	require.NoError(t, err)
	assert.Equal(t, "R1", got)
	assert.Equal(t, DefaultRefreshTTL, mr.TTL("refreshToken:alice01"))

	mr.FastForward(DefaultRefreshTTL)
	_, err = store.Get(context.Background(), "alice01")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}
