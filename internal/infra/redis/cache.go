package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

const (
	// DefaultTTL bounds how long an orphaned report generation lingers
	DefaultTTL = 10 * time.Minute

	// KeyPrefix is the prefix for report cache keys
	KeyPrefix = "ledger:report:"

	generationKey = KeyPrefix + "generation"
)

// ReportCache is a Redis-backed ledger.ReportCache.
//
// Every key embeds the generation counter; Invalidate bumps the counter so old
// keys are never read again and age out through their TTL.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

var _ ledger.ReportCache = (*ReportCache)(nil)

// NewReportCache creates a report cache. A non-positive ttl selects DefaultTTL.
func NewReportCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReportCache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "report_cache"),
	}
}

func trialBalanceKey(generation int64, asOf time.Time) string {
	return fmt.Sprintf("%stb:%d:%s", KeyPrefix, generation, ledger.DateOnly(asOf).Format(time.DateOnly))
}

// Generation returns the current generation, 0 before the first invalidation
func (c *ReportCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read report generation: %w", err)
	}
	return gen, nil
}

// GetTrialBalance returns the cached report for generation and asOf
func (c *ReportCache) GetTrialBalance(ctx context.Context, generation int64, asOf time.Time) (*ledger.TrialBalance, bool, error) {
	key := trialBalanceKey(generation, asOf)

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "key", key, "error", err)
		return nil, false, fmt.Errorf("failed to get cached trial balance: %w", err)
	}

	var tb ledger.TrialBalance
	if err := json.Unmarshal(val, &tb); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached trial balance: %w", err)
	}

	c.logger.Debug("cache hit", "key", key)
	return &tb, true, nil
}

// SetTrialBalance stores a report under the generation it was computed from
func (c *ReportCache) SetTrialBalance(ctx context.Context, generation int64, tb *ledger.TrialBalance) error {
	key := trialBalanceKey(generation, tb.AsOf)

	data, err := json.Marshal(tb)
	if err != nil {
		return fmt.Errorf("failed to marshal trial balance: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "key", key, "error", err)
		return fmt.Errorf("failed to set cached trial balance: %w", err)
	}
	return nil
}

// Invalidate moves to a new generation
func (c *ReportCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to bump report generation: %w", err)
	}
	return nil
}

// Clear removes every report key, including the generation counter
func (c *ReportCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefix+"*", 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
		if count >= 100 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear report cache: %w", err)
			}
			pipe = c.client.Pipeline()
			count = 0
		}
	}

	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear report cache: %w", err)
		}
	}

	return iter.Err()
}

// Health pings the server
func (c *ReportCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
