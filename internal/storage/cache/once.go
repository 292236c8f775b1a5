package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const onceKeyPrefix = "booking:once:"

// OnceGuard remembers keys in Redis so that every api-service replica
// agrees on the first caller. Keys expire after ttl.
type OnceGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewOnceGuard(client redis.UniversalClient, ttl time.Duration) *OnceGuard {
	return &OnceGuard{client: client, ttl: ttl}
}

func (g *OnceGuard) First(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, onceKeyPrefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
