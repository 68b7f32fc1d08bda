package redis

import (
	"context"
	"errors"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache implements stats.Cache on top of Redis.
// It is strictly read-through: misses surface as shared.ErrNotFound and
// the caller falls back to PostgreSQL.
type StatsCache struct {
	cache *Cache
}

// NewStatsCache creates a new StatsCache.
func NewStatsCache(cache *Cache) *StatsCache {
	return &StatsCache{cache: cache}
}

// cachedStats is the JSON shape of one cached record.
type cachedStats struct {
	UserID             string    `json:"user_id"`
	Level              int       `json:"level"`
	TotalXP            int       `json:"total_xp"`
	CurrentRank        string    `json:"current_rank"`
	MLCoins            int       `json:"ml_coins"`
	MLCoinsEarnedTotal int       `json:"ml_coins_earned_total"`
	MLCoinsSpentTotal  int       `json:"ml_coins_spent_total"`
	MLCoinsEarnedToday int       `json:"ml_coins_earned_today"`
	LastCoinsResetAt   time.Time `json:"last_coins_reset_at"`
	CurrentStreak      int       `json:"current_streak"`
	MaxStreak          int       `json:"max_streak"`
	LastActivityDate   time.Time `json:"last_activity_date"`
	ExercisesCompleted int       `json:"exercises_completed"`
	ModulesCompleted   int       `json:"modules_completed"`
	PerfectScores      int       `json:"perfect_scores"`
	AverageScore       float64   `json:"average_score"`
	ScoresRecorded     int       `json:"scores_recorded"`
	AchievementsEarned int       `json:"achievements_earned"`
	Version            int       `json:"version"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Get returns the cached record for a user.
// Returns shared.ErrNotFound on a miss.
func (c *StatsCache) Get(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	var cached cachedStats
	err := c.cache.Get(ctx, StatsKey(userID.String()), &cached)
	if errors.Is(err, ErrCacheMiss) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return fromCached(&cached), nil
}

// Set stores a record with the given TTL.
func (c *StatsCache) Set(ctx context.Context, s *stats.UserStats, ttl time.Duration) error {
	return c.cache.Set(ctx, StatsKey(s.UserID.String()), toCached(s), ttl)
}

// Invalidate removes a user's record from the cache.
func (c *StatsCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	return c.cache.Delete(ctx, StatsKey(userID.String()))
}

// InvalidateAll clears the whole stats cache.
func (c *StatsCache) InvalidateAll(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, PrefixStats+"*")
}

func toCached(s *stats.UserStats) *cachedStats {
	return &cachedStats{
		UserID:             s.UserID.String(),
		Level:              int(s.Level),
		TotalXP:            int(s.TotalXP),
		CurrentRank:        s.CurrentRank,
		MLCoins:            int(s.MLCoins),
		MLCoinsEarnedTotal: s.MLCoinsEarnedTotal,
		MLCoinsSpentTotal:  s.MLCoinsSpentTotal,
		MLCoinsEarnedToday: s.MLCoinsEarnedToday,
		LastCoinsResetAt:   s.LastCoinsResetAt,
		CurrentStreak:      s.CurrentStreak,
		MaxStreak:          s.MaxStreak,
		LastActivityDate:   s.LastActivityDate,
		ExercisesCompleted: s.ExercisesCompleted,
		ModulesCompleted:   s.ModulesCompleted,
		PerfectScores:      s.PerfectScores,
		AverageScore:       s.AverageScore,
		ScoresRecorded:     s.ScoresRecorded,
		AchievementsEarned: s.AchievementsEarned,
		Version:            s.Version,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func fromCached(c *cachedStats) *stats.UserStats {
	return &stats.UserStats{
		UserID:             shared.UserID(c.UserID),
		Level:              shared.Level(c.Level),
		TotalXP:            shared.XP(c.TotalXP),
		CurrentRank:        c.CurrentRank,
		MLCoins:            shared.Coins(c.MLCoins),
		MLCoinsEarnedTotal: c.MLCoinsEarnedTotal,
		MLCoinsSpentTotal:  c.MLCoinsSpentTotal,
		MLCoinsEarnedToday: c.MLCoinsEarnedToday,
		LastCoinsResetAt:   c.LastCoinsResetAt,
		CurrentStreak:      c.CurrentStreak,
		MaxStreak:          c.MaxStreak,
		LastActivityDate:   c.LastActivityDate,
		ExercisesCompleted: c.ExercisesCompleted,
		ModulesCompleted:   c.ModulesCompleted,
		PerfectScores:      c.PerfectScores,
		AverageScore:       c.AverageScore,
		ScoresRecorded:     c.ScoresRecorded,
		AchievementsEarned: c.AchievementsEarned,
		Version:            c.Version,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
