package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP EARNERS QUERY
// Lists who earned the most ML Coins in a period. The hot path is a Redis
// sorted set maintained by the event handlers; the ledger is the fallback
// and the source of truth.
// ══════════════════════════════════════════════════════════════════════════════

// EarnersPeriod selects the aggregation window.
type EarnersPeriod string

const (
	// PeriodToday - since the platform day started.
	PeriodToday EarnersPeriod = "today"

	// PeriodWeek - the last 7 days.
	PeriodWeek EarnersPeriod = "week"

	// PeriodMonth - the last 30 days.
	PeriodMonth EarnersPeriod = "month"
)

// TopEarnersCache is the hot-path ranking, typically a Redis sorted set.
type TopEarnersCache interface {
	// Top returns up to limit entries, highest earners first.
	Top(ctx context.Context, period string, limit int) ([]ledger.EarnerEntry, error)

	// Record adds earned coins to a user's period buckets.
	Record(ctx context.Context, userID shared.UserID, amount int) error
}

// GetTopEarnersQuery contains the listing request.
type GetTopEarnersQuery struct {
	// Period selects the window (default today).
	Period EarnersPeriod

	// Limit bounds the listing (default 10, max 100).
	Limit int
}

// Validate validates the query and applies defaults.
func (q *GetTopEarnersQuery) Validate() error {
	switch q.Period {
	case "":
		q.Period = PeriodToday
	case PeriodToday, PeriodWeek, PeriodMonth:
	default:
		return fmt.Errorf("get_top_earners: unknown period: %s", q.Period)
	}

	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}

	return nil
}

// EarnerDTO is one row of the listing.
type EarnerDTO struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
	Earned   int    `json:"earned"`
}

// TopEarnersDTO is the full listing view.
type TopEarnersDTO struct {
	Period      string      `json:"period"`
	Earners     []EarnerDTO `json:"earners"`
	FromCache   bool        `json:"from_cache"`
	RetrievedAt time.Time   `json:"retrieved_at"`
}

// GetTopEarnersHandler handles the GetTopEarnersQuery.
type GetTopEarnersHandler struct {
	ledgerRepo ledger.Repository
	cache      TopEarnersCache
	logger     *slog.Logger
}

// NewGetTopEarnersHandler creates a new GetTopEarnersHandler.
// The cache may be nil; reads then always aggregate the ledger.
func NewGetTopEarnersHandler(ledgerRepo ledger.Repository, cache TopEarnersCache, logger *slog.Logger) *GetTopEarnersHandler {
	return &GetTopEarnersHandler{ledgerRepo: ledgerRepo, cache: cache, logger: logger}
}

// Handle executes the get top earners query.
func (h *GetTopEarnersHandler) Handle(ctx context.Context, q GetTopEarnersQuery) (*TopEarnersDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_top_earners: validation failed: %w", err)
	}

	if h.cache != nil {
		entries, err := h.cache.Top(ctx, string(q.Period), q.Limit)
		if err == nil && len(entries) > 0 {
			return h.toDTO(q.Period, entries, true), nil
		}
		if err != nil {
			h.logger.Warn("top earners cache read failed, falling back to ledger",
				slog.String("error", err.Error()))
		}
	}

	window := periodWindow(q.Period)
	entries, err := h.ledgerRepo.TopEarners(ctx, window, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_top_earners: failed to aggregate ledger: %w", err)
	}

	return h.toDTO(q.Period, entries, false), nil
}

func (h *GetTopEarnersHandler) toDTO(period EarnersPeriod, entries []ledger.EarnerEntry, fromCache bool) *TopEarnersDTO {
	dto := &TopEarnersDTO{
		Period:      string(period),
		Earners:     make([]EarnerDTO, 0, len(entries)),
		FromCache:   fromCache,
		RetrievedAt: time.Now().UTC(),
	}
	for i, e := range entries {
		dto.Earners = append(dto.Earners, EarnerDTO{
			Position: i + 1,
			UserID:   string(e.UserID),
			Earned:   e.Earned,
		})
	}
	return dto
}

func periodWindow(period EarnersPeriod) shared.TimeRange {
	now := timeutil.Now()
	switch period {
	case PeriodWeek:
		return shared.TimeRange{From: now.AddDate(0, 0, -7), To: now}
	case PeriodMonth:
		return shared.TimeRange{From: now.AddDate(0, 0, -30), To: now}
	default:
		start, end := timeutil.DayRange(now)
		return shared.TimeRange{From: start, To: end}
	}
}
