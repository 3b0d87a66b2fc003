package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Armin-FalDiS/availability-bot/internal/domain"
)

const versionKey = "availability:ver"

// AvailabilityCache is a Redis read-through cache for range queries.
//
// Entries are keyed by a generation counter that every write bumps, so
// invalidation never has to enumerate cached ranges: stale generations
// simply become unreachable and expire with their TTL. Any Redis failure
// is treated as a miss and logged, never surfaced to the caller.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewAvailabilityCache builds the cache. A zero TTL disables expiry-based
// cleanup but generations still rotate on writes.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached entries for the range under the current
// generation, or a miss.
func (c *AvailabilityCache) Get(ctx context.Context, startDate, endDate string) ([]domain.AvailabilityEntry, bool) {
	key, err := c.rangeKey(ctx, startDate, endDate)
	if err != nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("availability cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var entries []domain.AvailabilityEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		c.logger.Warn("availability cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return entries, true
}

// Set stores the entries for the range under the current generation.
func (c *AvailabilityCache) Set(ctx context.Context, startDate, endDate string, entries []domain.AvailabilityEntry) {
	key, err := c.rangeKey(ctx, startDate, endDate)
	if err != nil {
		return
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		c.logger.Warn("availability cache marshal failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", zap.Error(err))
	}
}

// Invalidate bumps the generation counter, orphaning every cached range.
func (c *AvailabilityCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		c.logger.Warn("availability cache invalidation failed", zap.Error(err))
	}
}

func (c *AvailabilityCache) rangeKey(ctx context.Context, startDate, endDate string) (string, error) {
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("availability cache version unavailable", zap.Error(err))
		return "", err
	}
	return fmt.Sprintf("availability:%d:%s:%s", ver, startDate, endDate), nil
}
