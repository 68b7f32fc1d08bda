package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARD USER COMMAND
// Bootstraps the gamification state for a fresh user: stats row at the
// lowest rank, the welcome bonus with its ledger entry, and the rank
// multiplier source. Idempotent: onboarding an existing user is a no-op.
// ══════════════════════════════════════════════════════════════════════════════

// OnboardUserCommand identifies the user to bootstrap.
type OnboardUserCommand struct {
	// UserID is the new user.
	UserID string

	// WelcomeBonus overrides the configured bonus when positive.
	WelcomeBonus int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c OnboardUserCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("onboard_user: user_id is required")
	}

	if c.WelcomeBonus < 0 {
		return errors.New("onboard_user: welcome_bonus must be non-negative")
	}

	return nil
}

// OnboardUserResult contains the bootstrap outcome.
type OnboardUserResult struct {
	// UserID is the onboarded user.
	UserID string

	// AlreadyOnboarded indicates the user existed and nothing was written.
	AlreadyOnboarded bool

	// WelcomeBonus is the credited bonus.
	WelcomeBonus int

	// InitialRank is the assigned rank.
	InitialRank string

	// Events contains domain events generated.
	Events []shared.Event
}

// OnboardUserHandler handles the OnboardUserCommand.
type OnboardUserHandler struct {
	store          stats.AtomicStore
	ledgerRepo     ledger.Repository
	rankRepo       rank.Repository
	locks          *keylock.KeyLock
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	defaultBonus int
}

// NewOnboardUserHandler creates a new OnboardUserHandler.
func NewOnboardUserHandler(
	store stats.AtomicStore,
	ledgerRepo ledger.Repository,
	rankRepo rank.Repository,
	locks *keylock.KeyLock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	defaultBonus int,
) *OnboardUserHandler {
	return &OnboardUserHandler{
		store:          store,
		ledgerRepo:     ledgerRepo,
		rankRepo:       rankRepo,
		locks:          locks,
		eventPublisher: eventPublisher,
		logger:         logger,
		defaultBonus:   defaultBonus,
	}
}

// Handle executes the onboard user command.
func (h *OnboardUserHandler) Handle(ctx context.Context, cmd OnboardUserCommand) (*OnboardUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("onboard_user: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("onboard_user: %w", err)
	}

	bonus := cmd.WelcomeBonus
	if bonus == 0 {
		bonus = h.defaultBonus
	}

	definition, err := h.rankRepo.Load(ctx)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Warn("rank table load failed, using default",
				slog.String("error", err.Error()))
		}
		definition = rank.DefaultDefinition()
	}
	initialRank := definition.Lowest()

	var result *OnboardUserResult

	err = h.locks.WithLock(string(userID), func() error {
		exists, existsErr := h.store.Exists(ctx, userID)
		if existsErr != nil {
			return fmt.Errorf("onboard_user: failed to check existence: %w", existsErr)
		}
		if exists {
			result = &OnboardUserResult{UserID: cmd.UserID, AlreadyOnboarded: true}
			return nil
		}

		userStats, statsErr := stats.NewUserStats(stats.NewUserStatsParams{
			UserID:         userID,
			InitialBalance: bonus,
			InitialRank:    initialRank.ID,
		})
		if statsErr != nil {
			return fmt.Errorf("onboard_user: %w", statsErr)
		}

		if createErr := h.store.Create(ctx, userStats); createErr != nil {
			if shared.IsAlreadyExists(createErr) {
				result = &OnboardUserResult{UserID: cmd.UserID, AlreadyOnboarded: true}
				return nil
			}
			return fmt.Errorf("onboard_user: failed to create stats: %w", createErr)
		}

		if bonus > 0 {
			entry, txErr := ledger.NewTransaction(ledger.NewTransactionParams{
				ID:            uuid.NewString(),
				UserID:        userID,
				Amount:        bonus,
				BalanceBefore: 0,
				Type:          ledger.TypeBonus,
				Description:   "welcome bonus",
			})
			if txErr != nil {
				return fmt.Errorf("onboard_user: %w", txErr)
			}
			if appendErr := h.ledgerRepo.Append(ctx, entry); appendErr != nil {
				return fmt.Errorf("onboard_user: failed to append welcome bonus: %w", appendErr)
			}
		}

		result = &OnboardUserResult{
			UserID:       cmd.UserID,
			WelcomeBonus: bonus,
			InitialRank:  initialRank.ID,
			Events: []shared.Event{
				shared.NewUserOnboardedEvent(cmd.UserID, bonus, initialRank.ID),
			},
		}
		return nil
	})
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
