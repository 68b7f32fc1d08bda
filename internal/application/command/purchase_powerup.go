package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/powerup"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
	"github.com/gamilit/rewards-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE POWER-UP COMMAND
// Buys power-up charges with ML Coins. The debit and the inventory credit
// run under the user's lock so a raced purchase cannot overdraw.
// ══════════════════════════════════════════════════════════════════════════════

// PurchasePowerUpCommand contains the purchase request.
type PurchasePowerUpCommand struct {
	// UserID is the buying user.
	UserID string

	// Kind identifies the power-up (hint, reading_vision, second_chance).
	Kind string

	// Quantity is the number of charges to buy.
	Quantity int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c PurchasePowerUpCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("purchase_powerup: user_id is required")
	}

	if !powerup.Kind(c.Kind).IsValid() {
		return fmt.Errorf("purchase_powerup: unknown kind: %s", c.Kind)
	}

	if c.Quantity <= 0 {
		return errors.New("purchase_powerup: quantity must be positive")
	}

	return nil
}

// PurchasePowerUpResult contains the purchase outcome.
type PurchasePowerUpResult struct {
	// UserID is the buying user.
	UserID string

	// Kind is the purchased power-up.
	Kind string

	// Quantity is the number of charges bought.
	Quantity int

	// CoinsSpent is the total price debited.
	CoinsSpent int

	// NewBalance is the coin balance after the debit.
	NewBalance int

	// TotalCharges is the charge count after the purchase.
	TotalCharges int

	// Events contains domain events generated.
	Events []shared.Event

	// PurchasedAt is when the purchase was applied.
	PurchasedAt time.Time
}

// PurchasePowerUpHandler handles the PurchasePowerUpCommand.
type PurchasePowerUpHandler struct {
	store          stats.AtomicStore
	powerupRepo    powerup.Repository
	locks          *keylock.KeyLock
	retrier        *retry.Retrier
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewPurchasePowerUpHandler creates a new PurchasePowerUpHandler.
func NewPurchasePowerUpHandler(
	store stats.AtomicStore,
	powerupRepo powerup.Repository,
	locks *keylock.KeyLock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *PurchasePowerUpHandler {
	return &PurchasePowerUpHandler{
		store:          store,
		powerupRepo:    powerupRepo,
		locks:          locks,
		retrier:        retry.OptimisticLockRetrier(shared.IsRetryable),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the purchase power-up command.
func (h *PurchasePowerUpHandler) Handle(ctx context.Context, cmd PurchasePowerUpCommand) (*PurchasePowerUpResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("purchase_powerup: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("purchase_powerup: %w", err)
	}

	var result *PurchasePowerUpResult

	h.locks.Lock(string(userID))
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		result, attemptErr = h.purchase(ctx, cmd, userID)
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

func (h *PurchasePowerUpHandler) purchase(ctx context.Context, cmd PurchasePowerUpCommand, userID shared.UserID) (*PurchasePowerUpResult, error) {
	kind := powerup.Kind(cmd.Kind)
	price := kind.Price() * cmd.Quantity

	userStats, err := h.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("purchase_powerup: failed to get stats: %w", err)
	}

	balanceBefore := userStats.MLCoins.Int()

	if err := userStats.DebitCoins(price); err != nil {
		if errors.Is(err, stats.ErrInsufficientCoins) {
			return nil, shared.NewInsufficientBalanceError(price, balanceBefore)
		}
		return nil, fmt.Errorf("purchase_powerup: %w", err)
	}

	entry, err := ledger.NewTransaction(ledger.NewTransactionParams{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        -price,
		BalanceBefore: balanceBefore,
		Type:          ledger.TypeSpend,
		Reference:     string(kind),
		Description:   fmt.Sprintf("power-up purchase: %s x%d", kind, cmd.Quantity),
	})
	if err != nil {
		return nil, fmt.Errorf("purchase_powerup: %w", err)
	}

	inventory, err := h.powerupRepo.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("purchase_powerup: failed to get inventory: %w", err)
		}
		inventory, err = powerup.NewInventory(userID)
		if err != nil {
			return nil, fmt.Errorf("purchase_powerup: %w", err)
		}
	}

	if err := inventory.Add(kind, cmd.Quantity); err != nil {
		return nil, fmt.Errorf("purchase_powerup: %w", err)
	}

	// Debit commits first. If the inventory write fails afterwards the
	// ledger entry still points at the purchase for reconciliation.
	if err := h.store.SaveWithLedger(ctx, userStats, []*ledger.Transaction{entry}); err != nil {
		return nil, fmt.Errorf("purchase_powerup: failed to save: %w", err)
	}

	if err := h.powerupRepo.Save(ctx, inventory); err != nil {
		return nil, fmt.Errorf("purchase_powerup: failed to save inventory: %w", err)
	}

	return &PurchasePowerUpResult{
		UserID:       cmd.UserID,
		Kind:         cmd.Kind,
		Quantity:     cmd.Quantity,
		CoinsSpent:   price,
		NewBalance:   userStats.MLCoins.Int(),
		TotalCharges: inventory.Available(kind),
		Events: []shared.Event{
			shared.NewCoinsSpentEvent(cmd.UserID, price, userStats.MLCoins.Int(), entry.Description),
			shared.NewPowerUpPurchasedEvent(cmd.UserID, cmd.Kind, cmd.Quantity, price),
		},
		PurchasedAt: entry.CreatedAt,
	}, nil
}
