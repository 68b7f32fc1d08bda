package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/application/query"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COINS EARNED HANDLER
// Keeps read models warm: bumps the top-earners ranking and drops the
// stale stats cache entry. The ledger remains the source of truth; a
// failed cache update is logged and forgotten.
// ═══════════════════════════════════════════════════════════════════════════

// OnCoinsEarnedHandler handles ledger.coins_earned events.
type OnCoinsEarnedHandler struct {
	earnersCache query.TopEarnersCache
	statsCache   stats.Cache
	logger       *slog.Logger

	updateTimeout time.Duration
}

// NewOnCoinsEarnedHandler creates a new OnCoinsEarnedHandler.
// Either cache may be nil when the deployment runs without Redis.
func NewOnCoinsEarnedHandler(
	earnersCache query.TopEarnersCache,
	statsCache stats.Cache,
	logger *slog.Logger,
) *OnCoinsEarnedHandler {
	return &OnCoinsEarnedHandler{
		earnersCache:  earnersCache,
		statsCache:    statsCache,
		logger:        logger,
		updateTimeout: 3 * time.Second,
	}
}

// Handle processes one event. Non-earn events are ignored.
func (h *OnCoinsEarnedHandler) Handle(event shared.Event) error {
	earnEvent, ok := event.(shared.CoinsEarnedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.updateTimeout)
	defer cancel()

	userID, err := shared.NewUserID(earnEvent.UserID)
	if err != nil {
		h.logger.Warn("coins earned event with bad user id",
			slog.String("user_id", earnEvent.UserID))
		return nil
	}

	if h.earnersCache != nil {
		if err := h.earnersCache.Record(ctx, userID, earnEvent.Amount); err != nil {
			h.logger.Warn("top earners update failed",
				slog.String("user_id", earnEvent.UserID),
				slog.String("error", err.Error()))
		}
	}

	if h.statsCache != nil {
		if err := h.statsCache.Invalidate(ctx, userID); err != nil {
			h.logger.Warn("stats cache invalidation failed",
				slog.String("user_id", earnEvent.UserID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}
