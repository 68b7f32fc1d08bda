package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RANK CHANGED HANDLER
// Reacts to rank transitions. Promotions get a congratulation with the
// bonus and the new multiplier; demotions get a soft nudge, never a scold.
// ═══════════════════════════════════════════════════════════════════════════

// OnRankChangedHandler handles rank.changed events.
type OnRankChangedHandler struct {
	notifier Notifier
	logger   *slog.Logger

	// notifyTimeout bounds each delivery attempt.
	notifyTimeout time.Duration
}

// NewOnRankChangedHandler creates a new OnRankChangedHandler.
func NewOnRankChangedHandler(notifier Notifier, logger *slog.Logger) *OnRankChangedHandler {
	return &OnRankChangedHandler{
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: 5 * time.Second,
	}
}

// Handle processes one event. Non-rank events are ignored.
func (h *OnRankChangedHandler) Handle(event shared.Event) error {
	rankEvent, ok := event.(shared.RankChangedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.notifyTimeout)
	defer cancel()

	var title, message string
	switch {
	case rankEvent.IsPromotion():
		title = "Rank up!"
		message = fmt.Sprintf(
			"You reached %s. Bonus: %d ML Coins, rewards now x%.2f.",
			rankEvent.NewRank, rankEvent.BonusCoins, rankEvent.NewMultiplier,
		)
	case rankEvent.IsDemotion():
		title = "Rank updated"
		message = fmt.Sprintf(
			"Your rank is now %s. Keep reading to climb back up.",
			rankEvent.NewRank,
		)
	default:
		return nil
	}

	if err := h.notifier.Notify(ctx, rankEvent.UserID, title, message); err != nil {
		h.logger.Error("rank notification failed",
			slog.String("user_id", rankEvent.UserID),
			slog.String("new_rank", rankEvent.NewRank),
			slog.String("error", err.Error()))
		return err
	}

	h.logger.Info("rank notification sent",
		slog.String("user_id", rankEvent.UserID),
		slog.String("previous_rank", rankEvent.PreviousRank),
		slog.String("new_rank", rankEvent.NewRank))

	return nil
}
