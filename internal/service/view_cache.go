package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agrilink/sourcing-service/internal/domain"
)

// ViewCache stores computed visibility views. Lookups are best effort: a
// cache failure is treated as a miss, never as an application error.
type ViewCache interface {
	Fetch(ctx context.Context, view string) ([]domain.Request, bool)
	Store(ctx context.Context, view string, requests []domain.Request)
	InvalidateAll(ctx context.Context) error
}

const viewGenerationKey = "visibility:gen"

// redisViewCache keys views by a generation counter bumped on every request
// mutation. Old generations are never read again and fall out via TTL, which
// avoids scanning for per-principal keys on invalidation.
type redisViewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisViewCache builds a redis-backed view cache.
func NewRedisViewCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) ViewCache {
	return &redisViewCache{client: client, ttl: ttl, logger: logger}
}

func (c *redisViewCache) Fetch(ctx context.Context, view string) ([]domain.Request, bool) {
	raw, err := c.client.Get(ctx, c.key(ctx, view)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("view cache fetch failed", zap.String("view", view), zap.Error(err))
		}
		return nil, false
	}
	var requests []domain.Request
	if err := json.Unmarshal(raw, &requests); err != nil {
		return nil, false
	}
	return requests, true
}

func (c *redisViewCache) Store(ctx context.Context, view string, requests []domain.Request) {
	raw, err := json.Marshal(requests)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ctx, view), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("view cache store failed", zap.String("view", view), zap.Error(err))
	}
}

func (c *redisViewCache) InvalidateAll(ctx context.Context) error {
	return c.client.Incr(ctx, viewGenerationKey).Err()
}

func (c *redisViewCache) key(ctx context.Context, view string) string {
	gen, err := c.client.Get(ctx, viewGenerationKey).Int64()
	if err != nil {
		gen = 0
	}
	return fmt.Sprintf("visibility:%d:%s", gen, view)
}
