package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/powerup"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// USE POWER-UP COMMAND
// Consumes one charge from the inventory. No coins move here; the charge
// was paid for at purchase time.
// ══════════════════════════════════════════════════════════════════════════════

// UsePowerUpCommand identifies the charge to consume.
type UsePowerUpCommand struct {
	// UserID is the user consuming the charge.
	UserID string

	// Kind identifies the power-up.
	Kind string

	// Reference links the use to the exercise it helped with.
	Reference string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UsePowerUpCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("use_powerup: user_id is required")
	}

	if !powerup.Kind(c.Kind).IsValid() {
		return fmt.Errorf("use_powerup: unknown kind: %s", c.Kind)
	}

	return nil
}

// UsePowerUpResult contains the consumption outcome.
type UsePowerUpResult struct {
	// UserID is the consuming user.
	UserID string

	// Kind is the consumed power-up.
	Kind string

	// RemainingCharges is the charge count after consumption.
	RemainingCharges int

	// Events contains domain events generated.
	Events []shared.Event

	// UsedAt is when the charge was consumed.
	UsedAt time.Time
}

// UsePowerUpHandler handles the UsePowerUpCommand.
type UsePowerUpHandler struct {
	powerupRepo    powerup.Repository
	locks          *keylock.KeyLock
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewUsePowerUpHandler creates a new UsePowerUpHandler.
func NewUsePowerUpHandler(
	powerupRepo powerup.Repository,
	locks *keylock.KeyLock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *UsePowerUpHandler {
	return &UsePowerUpHandler{
		powerupRepo:    powerupRepo,
		locks:          locks,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the use power-up command.
func (h *UsePowerUpHandler) Handle(ctx context.Context, cmd UsePowerUpCommand) (*UsePowerUpResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("use_powerup: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("use_powerup: %w", err)
	}

	kind := powerup.Kind(cmd.Kind)

	var result *UsePowerUpResult

	err = h.locks.WithLock(string(userID), func() error {
		inventory, getErr := h.powerupRepo.Get(ctx, userID)
		if getErr != nil {
			return fmt.Errorf("use_powerup: failed to get inventory: %w", getErr)
		}

		if useErr := inventory.Use(kind); useErr != nil {
			return fmt.Errorf("use_powerup: %w", useErr)
		}

		if saveErr := h.powerupRepo.Save(ctx, inventory); saveErr != nil {
			return fmt.Errorf("use_powerup: failed to save inventory: %w", saveErr)
		}

		result = &UsePowerUpResult{
			UserID:           cmd.UserID,
			Kind:             cmd.Kind,
			RemainingCharges: inventory.Available(kind),
			Events: []shared.Event{
				shared.NewPowerUpUsedEvent(cmd.UserID, cmd.Kind, inventory.Available(kind)),
			},
			UsedAt: time.Now().UTC(),
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
