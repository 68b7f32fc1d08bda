package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT UNLOCKED HANDLER
// Celebrates a completed achievement and reminds the user to claim the
// attached rewards. Secret achievements get a special reveal message.
// ═══════════════════════════════════════════════════════════════════════════

// OnAchievementUnlockedHandler handles achievement.unlocked events.
type OnAchievementUnlockedHandler struct {
	notifier Notifier
	logger   *slog.Logger

	notifyTimeout time.Duration
}

// NewOnAchievementUnlockedHandler creates a new OnAchievementUnlockedHandler.
func NewOnAchievementUnlockedHandler(notifier Notifier, logger *slog.Logger) *OnAchievementUnlockedHandler {
	return &OnAchievementUnlockedHandler{
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: 5 * time.Second,
	}
}

// Handle processes one event. Non-achievement events are ignored.
func (h *OnAchievementUnlockedHandler) Handle(event shared.Event) error {
	unlockEvent, ok := event.(shared.AchievementUnlockedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.notifyTimeout)
	defer cancel()

	title := "Achievement unlocked!"
	if unlockEvent.IsSecret {
		title = "Secret achievement discovered!"
	}

	message := fmt.Sprintf("%s completed.", unlockEvent.Name)
	if unlockEvent.XPReward > 0 || unlockEvent.CoinReward > 0 {
		message = fmt.Sprintf(
			"%s completed. Claim your reward: %d XP, %d ML Coins.",
			unlockEvent.Name, unlockEvent.XPReward, unlockEvent.CoinReward,
		)
	}

	if err := h.notifier.Notify(ctx, unlockEvent.UserID, title, message); err != nil {
		h.logger.Error("achievement notification failed",
			slog.String("user_id", unlockEvent.UserID),
			slog.String("achievement_id", unlockEvent.AchievementID),
			slog.String("error", err.Error()))
		return err
	}

	return nil
}
