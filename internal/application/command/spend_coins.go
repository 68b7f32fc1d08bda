package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
	"github.com/gamilit/rewards-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SPEND COINS COMMAND
// Debits ML Coins for a purchase. The balance check and the debit happen
// under the user's lock, so the balance can never go negative, and every
// debit leaves a ledger entry.
// ══════════════════════════════════════════════════════════════════════════════

// SpendCoinsCommand contains the data for a coin debit.
type SpendCoinsCommand struct {
	// UserID is the ID of the spending user.
	UserID string

	// Amount is the positive amount to debit.
	Amount int

	// Reference links the entry to what was bought.
	Reference string

	// Description is a human-readable reason.
	Description string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SpendCoinsCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("spend_coins: user_id is required")
	}

	if c.Amount <= 0 {
		return errors.New("spend_coins: amount must be positive")
	}

	if c.Description == "" {
		return errors.New("spend_coins: description is required")
	}

	return nil
}

// SpendCoinsResult contains the outcome of a debit.
type SpendCoinsResult struct {
	// UserID is the spending user.
	UserID string

	// AmountSpent is the debited amount.
	AmountSpent int

	// NewBalance is the balance after the debit.
	NewBalance int

	// TransactionID identifies the ledger entry.
	TransactionID string

	// Events contains domain events generated.
	Events []shared.Event

	// SpentAt is when the debit was applied.
	SpentAt time.Time
}

// SpendCoinsHandler handles the SpendCoinsCommand.
type SpendCoinsHandler struct {
	store          stats.AtomicStore
	locks          *keylock.KeyLock
	retrier        *retry.Retrier
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewSpendCoinsHandler creates a new SpendCoinsHandler.
func NewSpendCoinsHandler(
	store stats.AtomicStore,
	locks *keylock.KeyLock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *SpendCoinsHandler {
	return &SpendCoinsHandler{
		store:          store,
		locks:          locks,
		retrier:        retry.OptimisticLockRetrier(shared.IsRetryable),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the spend coins command.
func (h *SpendCoinsHandler) Handle(ctx context.Context, cmd SpendCoinsCommand) (*SpendCoinsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("spend_coins: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("spend_coins: %w", err)
	}

	var result *SpendCoinsResult

	h.locks.Lock(string(userID))
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		result, attemptErr = h.spend(ctx, cmd, userID)
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

func (h *SpendCoinsHandler) spend(ctx context.Context, cmd SpendCoinsCommand, userID shared.UserID) (*SpendCoinsResult, error) {
	userStats, err := h.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("spend_coins: failed to get stats: %w", err)
	}

	balanceBefore := userStats.MLCoins.Int()

	if err := userStats.DebitCoins(cmd.Amount); err != nil {
		if errors.Is(err, stats.ErrInsufficientCoins) {
			return nil, shared.NewInsufficientBalanceError(cmd.Amount, balanceBefore)
		}
		return nil, fmt.Errorf("spend_coins: %w", err)
	}

	entry, err := ledger.NewTransaction(ledger.NewTransactionParams{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        -cmd.Amount,
		BalanceBefore: balanceBefore,
		Type:          ledger.TypeSpend,
		Reference:     cmd.Reference,
		Description:   cmd.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("spend_coins: %w", err)
	}

	if err := h.store.SaveWithLedger(ctx, userStats, []*ledger.Transaction{entry}); err != nil {
		return nil, fmt.Errorf("spend_coins: failed to save: %w", err)
	}

	return &SpendCoinsResult{
		UserID:        cmd.UserID,
		AmountSpent:   cmd.Amount,
		NewBalance:    userStats.MLCoins.Int(),
		TransactionID: entry.ID,
		Events: []shared.Event{
			shared.NewCoinsSpentEvent(cmd.UserID, cmd.Amount, userStats.MLCoins.Int(), cmd.Description),
		},
		SpentAt: entry.CreatedAt,
	}, nil
}
