package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps the slot in Redis so several terminals (or hosts)
// share one login. Keys are <prefix>:access_token, <prefix>:refresh_token
// and <prefix>:user.
type RedisStorage struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage wraps rdb. An empty prefix defaults to "morsel".
func NewRedisStorage(rdb redis.UniversalClient, prefix string) *RedisStorage {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "morsel"
	}
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

func (r *RedisStorage) tokenKey() string   { return r.prefix + ":access_token" }
func (r *RedisStorage) refreshKey() string { return r.prefix + ":refresh_token" }
func (r *RedisStorage) userKey() string    { return r.prefix + ":user" }

func (r *RedisStorage) Token(ctx context.Context) (string, error) {
	return r.get(ctx, r.tokenKey())
}

func (r *RedisStorage) SetToken(ctx context.Context, token string) error {
	return r.set(ctx, r.tokenKey(), token)
}

func (r *RedisStorage) RefreshToken(ctx context.Context) (string, error) {
	return r.get(ctx, r.refreshKey())
}

func (r *RedisStorage) SetRefreshToken(ctx context.Context, token string) error {
	return r.set(ctx, r.refreshKey(), token)
}

func (r *RedisStorage) get(ctx context.Context, key string) (string, error) {
	value, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// set stores value under key; "" deletes the key.
func (r *RedisStorage) set(ctx context.Context, key, value string) error {
	if value == "" {
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", key, err)
		}
		return nil
	}
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) User(ctx context.Context) (*User, error) {
	fields, err := r.rdb.HGetAll(ctx, r.userKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get user: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &User{LoginID: fields["login_id"], DisplayName: fields["display_name"]}, nil
}

func (r *RedisStorage) SetUser(ctx context.Context, u *User) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.userKey())
		if u != nil {
			pipe.HSet(ctx, r.userKey(), "login_id", u.LoginID, "display_name", u.DisplayName)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set user: %w", err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.tokenKey(), r.refreshKey(), r.userKey()).Err(); err != nil {
		return fmt.Errorf("redis clear session: %w", err)
	}
	return nil
}
