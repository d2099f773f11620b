package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"storefront/internal/domain"
)

// ConnectRedis initializes a Redis client from URL or host:port input.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type redisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis stores values under storefront:<browser>:<key>. A zero ttl
// keeps entries until deleted.
func NewRedis(client *redis.Client, ttl time.Duration) Repository {
	return &redisRepo{client: client, ttl: ttl}
}

func redisKey(browserID, key string) string {
	return "storefront:" + browserID + ":" + key
}

func (r *redisRepo) Get(ctx context.Context, browserID, key string) ([]byte, error) {
	if !validKey(browserID, key) {
		return nil, domain.ErrNotFound
	}
	v, err := r.client.Get(ctx, redisKey(browserID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *redisRepo) Set(ctx context.Context, browserID, key string, value []byte) error {
	if !validKey(browserID, key) {
		return errors.New("browser id and key required")
	}
	return r.client.Set(ctx, redisKey(browserID, key), value, r.ttl).Err()
}

func (r *redisRepo) Delete(ctx context.Context, browserID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, redisKey(browserID, k))
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *redisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
