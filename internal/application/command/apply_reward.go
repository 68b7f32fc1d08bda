// Package command contains write operations (CQRS - Commands).
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
	"github.com/gamilit/rewards-engine/internal/domain/multiplier"
	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
	"github.com/gamilit/rewards-engine/pkg/retry"
	"github.com/gamilit/rewards-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY REWARD COMMAND
// The single entry point for granting rewards: multiplies XP and ML Coins,
// writes the ledger, updates streak and counters, recomputes the rank and
// detects newly met achievements. All of it happens under the user's lock.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyRewardCommand contains the reward to apply to one user.
type ApplyRewardCommand struct {
	// UserID is the ID of the rewarded user.
	UserID string

	// BaseXP is the unmultiplied XP amount.
	BaseXP int

	// BaseCoins is the unmultiplied ML Coins amount.
	BaseCoins int

	// ExerciseCompleted marks this reward as coming from a finished exercise.
	ExerciseCompleted bool

	// Score is the exercise score 0-100 (used when ExerciseCompleted).
	Score int

	// ModuleCompleted marks this reward as coming from a finished module.
	ModuleCompleted bool

	// Reference links the ledger entry to the originating action
	// (exercise ID, module ID).
	Reference string

	// Description is a human-readable reason for the ledger entry.
	Description string

	// Timestamp is when the rewarded action happened (defaults to now).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ApplyRewardCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("apply_reward: user_id is required")
	}

	if c.BaseXP < 0 {
		return errors.New("apply_reward: base_xp must be non-negative")
	}

	if c.BaseCoins < 0 {
		return errors.New("apply_reward: base_coins must be non-negative")
	}

	if c.BaseXP == 0 && c.BaseCoins == 0 && !c.ExerciseCompleted && !c.ModuleCompleted {
		return errors.New("apply_reward: nothing to apply")
	}

	if c.ExerciseCompleted && (c.Score < 0 || c.Score > 100) {
		return errors.New("apply_reward: score must be between 0 and 100")
	}

	return nil
}

// UnlockedAchievement describes one achievement completed by this reward.
type UnlockedAchievement struct {
	AchievementID string
	Name          string
	IsSecret      bool
}

// ApplyRewardResult contains the outcome of applying a reward.
type ApplyRewardResult struct {
	// UserID is the rewarded user.
	UserID string

	// XPAwarded is the effective XP after the multiplier.
	XPAwarded int

	// CoinsAwarded is the effective ML Coins after the multiplier.
	CoinsAwarded int

	// MultiplierApplied is the combined multiplier used for both amounts.
	MultiplierApplied float64

	// NewBalance is the coin balance after all credits.
	NewBalance int

	// NewLevel is the level after the XP credit.
	NewLevel int

	// LeveledUp indicates the XP credit crossed a level boundary.
	LeveledUp bool

	// Streak is the daily streak after this activity.
	Streak stats.StreakResult

	// RankChanged indicates the rank was recomputed to a different tier.
	RankChanged bool

	// PreviousRank and NewRank identify the tiers involved in a change.
	PreviousRank string
	NewRank      string

	// RankBonusCoins is the one-time promotion bonus credited (unmultiplied).
	RankBonusCoins int

	// Unlocked lists achievements completed by this reward.
	Unlocked []UnlockedAchievement

	// Events contains domain events generated, in occurrence order.
	Events []shared.Event

	// AppliedAt is when the reward was applied.
	AppliedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ApplyRewardHandler handles the ApplyRewardCommand.
type ApplyRewardHandler struct {
	store          stats.AtomicStore
	multiplierRepo multiplier.Repository
	rankRepo       rank.Repository
	definitionRepo achievement.DefinitionRepository
	userAchRepo    achievement.UserRepository
	locks          *keylock.KeyLock
	retrier        *retry.Retrier
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewApplyRewardHandler creates a new ApplyRewardHandler.
func NewApplyRewardHandler(
	store stats.AtomicStore,
	multiplierRepo multiplier.Repository,
	rankRepo rank.Repository,
	definitionRepo achievement.DefinitionRepository,
	userAchRepo achievement.UserRepository,
	locks *keylock.KeyLock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *ApplyRewardHandler {
	return &ApplyRewardHandler{
		store:          store,
		multiplierRepo: multiplierRepo,
		rankRepo:       rankRepo,
		definitionRepo: definitionRepo,
		userAchRepo:    userAchRepo,
		locks:          locks,
		retrier:        retry.OptimisticLockRetrier(shared.IsRetryable),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the apply reward command.
func (h *ApplyRewardHandler) Handle(ctx context.Context, cmd ApplyRewardCommand) (*ApplyRewardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("apply_reward: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("apply_reward: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	definition := h.loadDefinition(ctx)

	var result *ApplyRewardResult
	var pendingRecords []*achievement.UserAchievement
	var pendingRankSource *multiplier.Source

	// All mutations for one user are serialized. The retrier only fires
	// when another process raced us on the same row.
	h.locks.Lock(string(userID))
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		result, pendingRecords, pendingRankSource, attemptErr = h.apply(ctx, cmd, userID, definition, timestamp)
		return attemptErr
	})
	if err == nil {
		err = h.persistSideEffects(ctx, userID, pendingRecords, pendingRankSource)
	}
	h.locks.Unlock(string(userID))

	if err != nil {
		return nil, err
	}

	h.publish(result.Events, cmd.CorrelationID)

	return result, nil
}

// apply performs one attempt: load, mutate, persist atomically.
// Called under the user's lock; re-reads everything on each attempt.
func (h *ApplyRewardHandler) apply(
	ctx context.Context,
	cmd ApplyRewardCommand,
	userID shared.UserID,
	definition *rank.Definition,
	timestamp time.Time,
) (*ApplyRewardResult, []*achievement.UserAchievement, *multiplier.Source, error) {
	userStats, err := h.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("apply_reward: failed to get stats: %w", err)
	}

	sources, err := h.multiplierRepo.GetForUser(ctx, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("apply_reward: failed to get multipliers: %w", err)
	}

	result := &ApplyRewardResult{
		UserID:    cmd.UserID,
		AppliedAt: timestamp,
		Events:    make([]shared.Event, 0, 4),
	}

	if userStats.NeedsDailyReset(timestamp) {
		userStats.ResetDailyCounters(timestamp)
	}

	total := multiplier.Total(sources, timestamp)
	result.MultiplierApplied = total.Float64()

	effectiveXP := total.Apply(cmd.BaseXP)
	effectiveCoins := total.Apply(cmd.BaseCoins)

	var entries []*ledger.Transaction

	// Coins first so the earn entry carries the pre-reward balance.
	if effectiveCoins > 0 {
		entry, creditErr := h.creditCoins(userStats, creditParams{
			amount:      effectiveCoins,
			txType:      ledger.TypeEarn,
			multiplier:  total.Float64(),
			reference:   cmd.Reference,
			description: cmd.Description,
		})
		if creditErr != nil {
			return nil, nil, nil, fmt.Errorf("apply_reward: %w", creditErr)
		}
		entries = append(entries, entry)

		event := shared.NewCoinsEarnedEvent(
			cmd.UserID, effectiveCoins, cmd.BaseCoins,
			total.Float64(), entry.BalanceAfter, cmd.Description,
		)
		result.Events = append(result.Events, event.WithReference(cmd.Reference))
	}
	result.CoinsAwarded = effectiveCoins

	if effectiveXP > 0 {
		xpResult, xpErr := userStats.AddXP(effectiveXP)
		if xpErr != nil {
			return nil, nil, nil, fmt.Errorf("apply_reward: %w", xpErr)
		}

		result.Events = append(result.Events, shared.NewXPGainedEvent(
			cmd.UserID, effectiveXP, xpResult.NewTotal, cmd.Reference,
		))

		if xpResult.LeveledUp {
			result.LeveledUp = true
			result.Events = append(result.Events, shared.NewLevelUpEvent(
				cmd.UserID, xpResult.OldLevel.Int(), xpResult.NewLevel.Int(), xpResult.NewTotal,
			))
		}
	}
	result.XPAwarded = effectiveXP
	result.NewLevel = userStats.Level.Int()

	if cmd.ExerciseCompleted {
		if err := userStats.RecordExercise(shared.Score(cmd.Score)); err != nil {
			return nil, nil, nil, fmt.Errorf("apply_reward: %w", err)
		}
	}
	if cmd.ModuleCompleted {
		userStats.RecordModule()
	}

	// Streak days run on the platform timezone, not UTC.
	streak := userStats.RecordDailyActivity(timeutil.ToPlatform(timestamp))
	result.Streak = streak
	if streak.Changed {
		result.Events = append(result.Events, shared.NewStreakUpdatedEvent(
			cmd.UserID, streak.Current, streak.Max, streak.WasReset,
		))
	}

	rankSource, rankEntry := h.applyRankChange(userStats, definition, result)
	if rankEntry != nil {
		entries = append(entries, rankEntry)
	}

	tierIndex := definition.IndexOf(userStats.CurrentRank)
	if tierIndex < 0 {
		tierIndex = 0
	}
	records, detectErr := h.detectAchievements(ctx, userStats, tierIndex, result)
	if detectErr != nil {
		return nil, nil, nil, detectErr
	}

	if err := h.store.SaveWithLedger(ctx, userStats, entries); err != nil {
		return nil, nil, nil, fmt.Errorf("apply_reward: failed to save: %w", err)
	}

	result.NewBalance = userStats.MLCoins.Int()

	return result, records, rankSource, nil
}

type creditParams struct {
	amount      int
	txType      ledger.TransactionType
	multiplier  float64
	reference   string
	description string
}

// creditCoins credits the balance and builds the matching ledger entry.
func (h *ApplyRewardHandler) creditCoins(userStats *stats.UserStats, p creditParams) (*ledger.Transaction, error) {
	balanceBefore := userStats.MLCoins.Int()

	if err := userStats.CreditCoins(p.amount); err != nil {
		return nil, err
	}

	return ledger.NewTransaction(ledger.NewTransactionParams{
		ID:                uuid.NewString(),
		UserID:            userStats.UserID,
		Amount:            p.amount,
		BalanceBefore:     balanceBefore,
		Type:              p.txType,
		MultiplierApplied: p.multiplier,
		Reference:         p.reference,
		Description:       p.description,
	})
}

// applyRankChange recomputes the rank against the active table and applies
// promotion or demotion. The promotion bonus is a fixed amount: it is never
// multiplied. Returns the new rank multiplier source to persist and the
// bonus ledger entry, both nil when nothing changed.
func (h *ApplyRewardHandler) applyRankChange(
	userStats *stats.UserStats,
	definition *rank.Definition,
	result *ApplyRewardResult,
) (*multiplier.Source, *ledger.Transaction) {
	newIndex := rank.Recompute(userStats, definition)
	change := rank.Compare(definition, userStats.CurrentRank, newIndex)
	if change == rank.NoChange {
		return nil, nil
	}

	previousRank := userStats.CurrentRank
	previousIndex := definition.IndexOf(previousRank)
	if previousIndex < 0 {
		previousIndex = 0
	}

	newTier, _ := definition.TierAt(newIndex)
	userStats.SetRank(newTier.ID)

	var bonusEntry *ledger.Transaction
	bonus := 0
	if change == rank.Promotion && newTier.CoinBonus > 0 {
		bonus = newTier.CoinBonus
		entry, err := h.creditCoins(userStats, creditParams{
			amount:      bonus,
			txType:      ledger.TypeBonus,
			multiplier:  1.0,
			reference:   newTier.ID,
			description: fmt.Sprintf("rank promotion to %s", newTier.Name),
		})
		if err != nil {
			// Bonus credit can only fail on a non-positive amount, which
			// the table validation already rules out.
			h.logger.Error("rank bonus credit failed",
				slog.String("user_id", string(userStats.UserID)),
				slog.String("error", err.Error()))
			bonus = 0
		} else {
			bonusEntry = entry
		}
	}

	result.RankChanged = true
	result.PreviousRank = previousRank
	result.NewRank = newTier.ID
	result.RankBonusCoins = bonus
	result.Events = append(result.Events, shared.NewRankChangedEvent(
		string(userStats.UserID), previousRank, newTier.ID,
		previousIndex, newIndex, bonus, newTier.Multiplier.Float64(),
	))

	source, err := multiplier.NewSource(multiplier.NewSourceParams{
		ID:     uuid.NewString(),
		UserID: userStats.UserID,
		Kind:   multiplier.KindRank,
		Label:  newTier.Name,
		Value:  newTier.Multiplier,
	})
	if err != nil {
		h.logger.Error("rank multiplier source rejected",
			slog.String("user_id", string(userStats.UserID)),
			slog.String("error", err.Error()))
		return nil, bonusEntry
	}

	return source, bonusEntry
}

// detectAchievements evaluates all active definitions against the final
// stats snapshot. Progress records are returned for persistence after the
// stats save; upserts keyed by (user, achievement) keep retries idempotent.
func (h *ApplyRewardHandler) detectAchievements(
	ctx context.Context,
	userStats *stats.UserStats,
	tierIndex int,
	result *ApplyRewardResult,
) ([]*achievement.UserAchievement, error) {
	definitions, err := h.definitionRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply_reward: failed to list achievements: %w", err)
	}

	evalCtx := achievement.EvalContext{Stats: userStats, TierIndex: tierIndex}

	var dirty []*achievement.UserAchievement
	for _, def := range definitions {
		record, err := h.userAchRepo.Get(ctx, userStats.UserID, def.ID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return nil, fmt.Errorf("apply_reward: failed to get achievement record: %w", err)
			}
			record, err = achievement.NewUserAchievement(userStats.UserID, def.ID)
			if err != nil {
				return nil, fmt.Errorf("apply_reward: %w", err)
			}
		}

		if record.IsCompleted {
			continue
		}

		update := def.Evaluate(record, evalCtx)
		if update.Progress == 0 && !update.JustCompleted {
			continue
		}

		dirty = append(dirty, record)

		if update.JustCompleted {
			userStats.RecordAchievement()
			result.Unlocked = append(result.Unlocked, UnlockedAchievement{
				AchievementID: def.ID,
				Name:          def.Name,
				IsSecret:      def.IsSecret,
			})
			result.Events = append(result.Events, shared.NewAchievementUnlockedEvent(
				string(userStats.UserID), def.ID, def.Name,
				def.Reward.XP, def.Reward.Coins, def.IsSecret,
			))
		}
	}

	return dirty, nil
}

// persistSideEffects writes the non-atomic leftovers after the stats and
// ledger committed: achievement progress rows and the rank multiplier
// source. Both writes are idempotent upserts.
func (h *ApplyRewardHandler) persistSideEffects(
	ctx context.Context,
	userID shared.UserID,
	records []*achievement.UserAchievement,
	rankSource *multiplier.Source,
) error {
	for _, record := range records {
		if err := h.userAchRepo.Save(ctx, record); err != nil {
			return fmt.Errorf("apply_reward: failed to save achievement record: %w", err)
		}
	}

	if rankSource != nil {
		if err := h.multiplierRepo.ReplaceRankSource(ctx, userID, rankSource); err != nil {
			return fmt.Errorf("apply_reward: failed to replace rank multiplier: %w", err)
		}
	}

	return nil
}

// loadDefinition returns the stored rank table, falling back to the
// built-in one when the store is empty.
func (h *ApplyRewardHandler) loadDefinition(ctx context.Context) *rank.Definition {
	definition, err := h.rankRepo.Load(ctx)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Warn("rank table load failed, using default",
				slog.String("error", err.Error()))
		}
		return rank.DefaultDefinition()
	}
	return definition
}

// publish sends events with best effort; reward application never fails
// because a subscriber did.
func (h *ApplyRewardHandler) publish(events []shared.Event, correlationID string) {
	for _, event := range events {
		if err := h.eventPublisher.Publish(event); err != nil {
			h.logger.Error("event publish failed",
				slog.String("event_type", string(event.EventType())),
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()))
		}
	}
}
