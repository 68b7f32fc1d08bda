package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gamilit/rewards-engine/internal/domain/multiplier"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT MULTIPLIER COMMAND
// Grants a temporary multiplier source: a streak boost, a platform event or
// a shop purchase. Rank multipliers are never granted here; they follow the
// rank automatically.
// ══════════════════════════════════════════════════════════════════════════════

// GrantMultiplierCommand contains the grant request.
type GrantMultiplierCommand struct {
	// UserID is the receiving user.
	UserID string

	// Kind is the source kind (streak, event, purchase).
	Kind string

	// Label is the display text, e.g. "7-day streak".
	Label string

	// Value is the multiplier value, at least 1.0.
	Value float64

	// Duration is how long the boost lasts.
	Duration time.Duration

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c GrantMultiplierCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("grant_multiplier: user_id is required")
	}

	kind := multiplier.SourceKind(c.Kind)
	if !kind.IsValid() {
		return fmt.Errorf("grant_multiplier: unknown kind: %s", c.Kind)
	}
	if kind == multiplier.KindRank {
		return errors.New("grant_multiplier: rank multipliers follow the rank, not grants")
	}

	if c.Value < 1.0 {
		return errors.New("grant_multiplier: value must be at least 1.0")
	}

	if c.Duration <= 0 {
		return errors.New("grant_multiplier: duration must be positive")
	}

	return nil
}

// GrantMultiplierResult contains the stored source.
type GrantMultiplierResult struct {
	// SourceID identifies the stored grant.
	SourceID string

	// UserID is the receiving user.
	UserID string

	// ExpiresAt is when the boost stops contributing.
	ExpiresAt time.Time

	// Events contains domain events generated.
	Events []shared.Event
}

// GrantMultiplierHandler handles the GrantMultiplierCommand.
type GrantMultiplierHandler struct {
	multiplierRepo multiplier.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewGrantMultiplierHandler creates a new GrantMultiplierHandler.
func NewGrantMultiplierHandler(
	multiplierRepo multiplier.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *GrantMultiplierHandler {
	return &GrantMultiplierHandler{
		multiplierRepo: multiplierRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the grant multiplier command.
func (h *GrantMultiplierHandler) Handle(ctx context.Context, cmd GrantMultiplierCommand) (*GrantMultiplierResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("grant_multiplier: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("grant_multiplier: %w", err)
	}

	expiresAt := time.Now().UTC().Add(cmd.Duration)

	source, err := multiplier.NewSource(multiplier.NewSourceParams{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      multiplier.SourceKind(cmd.Kind),
		Label:     cmd.Label,
		Value:     shared.Multiplier(cmd.Value),
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("grant_multiplier: %w", err)
	}

	if err := h.multiplierRepo.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("grant_multiplier: failed to save: %w", err)
	}

	event := shared.NewMultiplierGrantedEvent(
		cmd.UserID, source.ID, cmd.Label, cmd.Value, false, &expiresAt,
	)
	if publishErr := h.eventPublisher.Publish(event); publishErr != nil {
		h.logger.Error("event publish failed",
			slog.String("event_type", string(event.EventType())),
			slog.String("error", publishErr.Error()))
	}

	return &GrantMultiplierResult{
		SourceID:  source.ID,
		UserID:    cmd.UserID,
		ExpiresAt: expiresAt,
		Events:    []shared.Event{event},
	}, nil
}
