// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COIN STATS QUERY
// Returns the user's ML Coins picture: balance, lifetime and daily totals,
// and today's ledger summary. Served from cache when possible.
// ══════════════════════════════════════════════════════════════════════════════

// GetCoinStatsQuery identifies the user.
type GetCoinStatsQuery struct {
	// UserID is the queried user.
	UserID string

	// IncludeDailySummary also aggregates today's ledger entries.
	IncludeDailySummary bool
}

// Validate validates the query.
func (q GetCoinStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_coin_stats: user_id is required")
	}
	return nil
}

// CoinStatsDTO is the coin statistics view.
type CoinStatsDTO struct {
	// UserID is the queried user.
	UserID string `json:"user_id"`

	// Balance is the current spendable balance.
	Balance int `json:"balance"`

	// EarnedTotal is the lifetime credited amount.
	EarnedTotal int `json:"earned_total"`

	// SpentTotal is the lifetime debited amount.
	SpentTotal int `json:"spent_total"`

	// EarnedToday is the amount credited since the daily reset.
	EarnedToday int `json:"earned_today"`

	// TodaySummary aggregates today's ledger entries (optional).
	TodaySummary *DailySummaryDTO `json:"today_summary,omitempty"`

	// RetrievedAt is when the view was built.
	RetrievedAt time.Time `json:"retrieved_at"`
}

// DailySummaryDTO aggregates one day of ledger activity.
type DailySummaryDTO struct {
	Date         string `json:"date"`
	Earned       int    `json:"earned"`
	Spent        int    `json:"spent"`
	Transactions int    `json:"transactions"`
}

// GetCoinStatsHandler handles the GetCoinStatsQuery.
type GetCoinStatsHandler struct {
	statsRepo  stats.Repository
	statsCache stats.Cache
	ledgerRepo ledger.Repository
	logger     *slog.Logger
	cacheTTL   time.Duration
}

// NewGetCoinStatsHandler creates a new GetCoinStatsHandler.
// The cache may be nil; reads then always hit the repository.
func NewGetCoinStatsHandler(
	statsRepo stats.Repository,
	statsCache stats.Cache,
	ledgerRepo ledger.Repository,
	logger *slog.Logger,
) *GetCoinStatsHandler {
	return &GetCoinStatsHandler{
		statsRepo:  statsRepo,
		statsCache: statsCache,
		ledgerRepo: ledgerRepo,
		logger:     logger,
		cacheTTL:   time.Minute,
	}
}

// Handle executes the get coin stats query.
func (h *GetCoinStatsHandler) Handle(ctx context.Context, q GetCoinStatsQuery) (*CoinStatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_coin_stats: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_coin_stats: %w", err)
	}

	userStats, err := h.loadStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_coin_stats: failed to get stats: %w", err)
	}

	dto := &CoinStatsDTO{
		UserID:      q.UserID,
		Balance:     userStats.MLCoins.Int(),
		EarnedTotal: userStats.MLCoinsEarnedTotal,
		SpentTotal:  userStats.MLCoinsSpentTotal,
		EarnedToday: userStats.MLCoinsEarnedToday,
		RetrievedAt: time.Now().UTC(),
	}

	if q.IncludeDailySummary {
		summary, summaryErr := h.todaySummary(ctx, userID)
		if summaryErr != nil {
			// The balance view is still useful without the summary.
			h.logger.Warn("daily summary failed",
				slog.String("user_id", q.UserID),
				slog.String("error", summaryErr.Error()))
		} else {
			dto.TodaySummary = summary
		}
	}

	return dto, nil
}

// loadStats reads through the cache.
func (h *GetCoinStatsHandler) loadStats(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	if h.statsCache != nil {
		if cached, err := h.statsCache.Get(ctx, userID); err == nil && cached != nil {
			return cached, nil
		}
	}

	userStats, err := h.statsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if h.statsCache != nil {
		if cacheErr := h.statsCache.Set(ctx, userStats, h.cacheTTL); cacheErr != nil {
			h.logger.Warn("stats cache set failed",
				slog.String("user_id", string(userID)),
				slog.String("error", cacheErr.Error()))
		}
	}

	return userStats, nil
}

func (h *GetCoinStatsHandler) todaySummary(ctx context.Context, userID shared.UserID) (*DailySummaryDTO, error) {
	dayStart, dayEnd := timeutil.DayRange(timeutil.Now())

	entries, err := h.ledgerRepo.History(ctx, userID,
		ledger.DefaultHistoryFilter().WithRange(dayStart, dayEnd))
	if err != nil {
		return nil, err
	}

	summary := ledger.Summarize(userID, shared.TimeRange{From: dayStart, To: dayEnd}, entries)

	return &DailySummaryDTO{
		Date:         timeutil.FormatDateStr(dayStart),
		Earned:       summary.Earned,
		Spent:        summary.Spent,
		Transactions: summary.Transactions,
	}, nil
}
