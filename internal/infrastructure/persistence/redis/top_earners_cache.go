package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/application/query"
	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOP EARNERS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// TopEarnersCache implements query.TopEarnersCache with Redis sorted
// sets. Each period keeps one set per calendar bucket; Record bumps the
// current bucket of every period, so the set always reflects credits
// observed by this process group. An empty set is a valid answer only
// until the window's first credit, which is why the query handler falls
// back to the ledger when Top returns nothing.
type TopEarnersCache struct {
	cache *Cache
}

// NewTopEarnersCache creates a new TopEarnersCache.
func NewTopEarnersCache(cache *Cache) *TopEarnersCache {
	return &TopEarnersCache{cache: cache}
}

// Top returns up to limit earners for the period, highest first.
func (c *TopEarnersCache) Top(ctx context.Context, period string, limit int) ([]ledger.EarnerEntry, error) {
	key, _, err := periodKey(query.EarnersPeriod(period), timeutil.Now())
	if err != nil {
		return nil, err
	}

	results, err := c.cache.Client().ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read top earners: %w", err)
	}

	entries := make([]ledger.EarnerEntry, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, ledger.EarnerEntry{
			UserID: shared.UserID(member),
			Earned: int(z.Score),
		})
	}

	return entries, nil
}

// Record adds a credited amount to the user's score in every period's
// current bucket.
func (c *TopEarnersCache) Record(ctx context.Context, userID shared.UserID, amount int) error {
	now := timeutil.Now()
	periods := []query.EarnersPeriod{query.PeriodToday, query.PeriodWeek, query.PeriodMonth}

	pipe := c.cache.Client().Pipeline()
	for _, period := range periods {
		key, ttl, err := periodKey(period, now)
		if err != nil {
			return err
		}
		pipe.ZIncrBy(ctx, key, float64(amount), userID.String())
		// Refreshing on every write is cheaper than checking whether
		// the key is new.
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record earner: %w", err)
	}

	return nil
}

// periodKey maps a period to its current bucket key and TTL.
func periodKey(period query.EarnersPeriod, now time.Time) (string, time.Duration, error) {
	switch period {
	case query.PeriodToday:
		return EarnersKey(string(period), now.Format("2006-01-02")), TTLEarnersDay, nil
	case query.PeriodWeek:
		year, week := now.ISOWeek()
		return EarnersKey(string(period), fmt.Sprintf("%04d-W%02d", year, week)), TTLEarnersWeek, nil
	case query.PeriodMonth:
		return EarnersKey(string(period), now.Format("2006-01")), TTLEarnersMonth, nil
	default:
		return "", 0, fmt.Errorf("unknown earners period: %q", period)
	}
}
