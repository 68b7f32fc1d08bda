package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gamilit/rewards-engine/internal/domain/achievement"
	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
	"github.com/gamilit/rewards-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM REWARDS COMMAND
// Grants the XP and ML Coins attached to a completed achievement. Unlocking
// and claiming are separate: detection marks the achievement completed, the
// user claims explicitly. Claiming twice fails.
// ══════════════════════════════════════════════════════════════════════════════

// ClaimRewardsCommand identifies the achievement to claim.
type ClaimRewardsCommand struct {
	// UserID is the claiming user.
	UserID string

	// AchievementID is the completed achievement.
	AchievementID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ClaimRewardsCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("claim_rewards: user_id is required")
	}

	if c.AchievementID == "" {
		return errors.New("claim_rewards: achievement_id is required")
	}

	return nil
}

// ClaimRewardsResult contains the granted rewards.
type ClaimRewardsResult struct {
	// UserID is the claiming user.
	UserID string

	// AchievementID is the claimed achievement.
	AchievementID string

	// XPGranted and CoinsGranted are the amounts credited.
	// Achievement rewards are fixed: the multiplier does not apply.
	XPGranted    int
	CoinsGranted int

	// NewBalance is the coin balance after the credit.
	NewBalance int

	// LeveledUp indicates the XP crossed a level boundary.
	LeveledUp bool

	// Events contains domain events generated.
	Events []shared.Event

	// ClaimedAt is when the claim was applied.
	ClaimedAt time.Time
}

// ClaimStore extends stats.AtomicStore with a commit that persists the
// claimed achievement record in the same transaction as the balance and
// ledger. A claim paid out without its record marked claimed would pay
// again on retry, so the three writes must land together.
type ClaimStore interface {
	stats.AtomicStore

	// SaveWithLedgerAndRecord saves the stats (with a version check),
	// appends the ledger entries and upserts the achievement record in
	// one transaction. Returns shared.ErrConcurrentModification on a
	// version conflict.
	SaveWithLedgerAndRecord(ctx context.Context, s *stats.UserStats, entries []*ledger.Transaction, record *achievement.UserAchievement) error
}

// ClaimRewardsHandler handles the ClaimRewardsCommand.
type ClaimRewardsHandler struct {
	store          ClaimStore
	definitionRepo achievement.DefinitionRepository
	userAchRepo    achievement.UserRepository
	locks          *keylock.KeyLock
	retrier        *retry.Retrier
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewClaimRewardsHandler creates a new ClaimRewardsHandler.
func NewClaimRewardsHandler(
	store ClaimStore,
	definitionRepo achievement.DefinitionRepository,
	userAchRepo achievement.UserRepository,
	locks *keylock.KeyLock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *ClaimRewardsHandler {
	return &ClaimRewardsHandler{
		store:          store,
		definitionRepo: definitionRepo,
		userAchRepo:    userAchRepo,
		locks:          locks,
		retrier:        retry.OptimisticLockRetrier(shared.IsRetryable),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the claim rewards command.
func (h *ClaimRewardsHandler) Handle(ctx context.Context, cmd ClaimRewardsCommand) (*ClaimRewardsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("claim_rewards: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("claim_rewards: %w", err)
	}

	definition, err := h.definitionRepo.GetByID(ctx, cmd.AchievementID)
	if err != nil {
		return nil, fmt.Errorf("claim_rewards: failed to get achievement: %w", err)
	}

	var result *ClaimRewardsResult

	h.locks.Lock(string(userID))
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		result, attemptErr = h.claim(ctx, cmd, userID, definition)
		return attemptErr
	})
	h.locks.Unlock(string(userID))

	if err != nil {
		return nil, err
	}

	for _, event := range result.Events {
		if publishErr := h.eventPublisher.Publish(event); publishErr != nil {
			h.logger.Error("event publish failed",
				slog.String("event_type", string(event.EventType())),
				slog.String("error", publishErr.Error()))
		}
	}

	return result, nil
}

func (h *ClaimRewardsHandler) claim(
	ctx context.Context,
	cmd ClaimRewardsCommand,
	userID shared.UserID,
	definition *achievement.Definition,
) (*ClaimRewardsResult, error) {
	record, err := h.userAchRepo.Get(ctx, userID, cmd.AchievementID)
	if err != nil {
		return nil, fmt.Errorf("claim_rewards: failed to get record: %w", err)
	}

	// Claim mutates the record; everything after must succeed or the
	// record stays unsaved and the claim can be retried.
	if err := record.Claim(); err != nil {
		return nil, fmt.Errorf("claim_rewards: %w", err)
	}

	userStats, err := h.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("claim_rewards: failed to get stats: %w", err)
	}

	result := &ClaimRewardsResult{
		UserID:        cmd.UserID,
		AchievementID: cmd.AchievementID,
		XPGranted:     definition.Reward.XP,
		CoinsGranted:  definition.Reward.Coins,
		ClaimedAt:     time.Now().UTC(),
		Events:        make([]shared.Event, 0, 2),
	}

	var entries []*ledger.Transaction

	if definition.Reward.Coins > 0 {
		balanceBefore := userStats.MLCoins.Int()
		if err := userStats.CreditCoins(definition.Reward.Coins); err != nil {
			return nil, fmt.Errorf("claim_rewards: %w", err)
		}

		entry, err := ledger.NewTransaction(ledger.NewTransactionParams{
			ID:            uuid.NewString(),
			UserID:        userID,
			Amount:        definition.Reward.Coins,
			BalanceBefore: balanceBefore,
			Type:          ledger.TypeBonus,
			Reference:     definition.ID,
			Description:   fmt.Sprintf("achievement reward: %s", definition.Name),
		})
		if err != nil {
			return nil, fmt.Errorf("claim_rewards: %w", err)
		}
		entries = append(entries, entry)
	}

	if definition.Reward.XP > 0 {
		xpResult, err := userStats.AddXP(definition.Reward.XP)
		if err != nil {
			return nil, fmt.Errorf("claim_rewards: %w", err)
		}
		result.LeveledUp = xpResult.LeveledUp
		if xpResult.LeveledUp {
			result.Events = append(result.Events, shared.NewLevelUpEvent(
				cmd.UserID, xpResult.OldLevel.Int(), xpResult.NewLevel.Int(), xpResult.NewTotal,
			))
		}
	}

	// Repeatable achievements re-open on claim: the record returns to
	// zero progress (TimesEarned survives) so the next detection run can
	// earn it again. Non-repeatable records stay claimed forever.
	if definition.IsRepeatable {
		if err := record.Reset(true); err != nil {
			return nil, fmt.Errorf("claim_rewards: %w", err)
		}
	}

	if err := h.store.SaveWithLedgerAndRecord(ctx, userStats, entries, record); err != nil {
		return nil, fmt.Errorf("claim_rewards: failed to save: %w", err)
	}

	result.NewBalance = userStats.MLCoins.Int()
	result.Events = append(result.Events, shared.NewAchievementClaimedEvent(
		cmd.UserID, cmd.AchievementID, definition.Reward.XP, definition.Reward.Coins,
	))

	return result, nil
}
