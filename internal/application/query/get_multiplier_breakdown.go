package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/multiplier"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MULTIPLIER BREAKDOWN QUERY
// Shows the user's combined multiplier and every source behind it, with
// warnings for boosts about to expire.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultExpiryWarningWindow marks sources expiring within this window.
const DefaultExpiryWarningWindow = 24 * time.Hour

// GetMultiplierBreakdownQuery identifies the user.
type GetMultiplierBreakdownQuery struct {
	// UserID is the queried user.
	UserID string

	// ExpiryWindow overrides the expiring-soon window when positive.
	ExpiryWindow time.Duration
}

// Validate validates the query.
func (q *GetMultiplierBreakdownQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_multiplier_breakdown: user_id is required")
	}
	if q.ExpiryWindow <= 0 {
		q.ExpiryWindow = DefaultExpiryWarningWindow
	}
	return nil
}

// MultiplierSourceDTO is one source view.
type MultiplierSourceDTO struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Permanent bool       `json:"permanent"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// MultiplierBreakdownDTO is the full breakdown view.
type MultiplierBreakdownDTO struct {
	UserID       string                `json:"user_id"`
	Total        float64               `json:"total"`
	Active       []MultiplierSourceDTO `json:"active"`
	ExpiringSoon []MultiplierSourceDTO `json:"expiring_soon"`
	ResolvedAt   time.Time             `json:"resolved_at"`
}

// GetMultiplierBreakdownHandler handles the GetMultiplierBreakdownQuery.
type GetMultiplierBreakdownHandler struct {
	multiplierRepo multiplier.Repository
}

// NewGetMultiplierBreakdownHandler creates a new GetMultiplierBreakdownHandler.
func NewGetMultiplierBreakdownHandler(multiplierRepo multiplier.Repository) *GetMultiplierBreakdownHandler {
	return &GetMultiplierBreakdownHandler{multiplierRepo: multiplierRepo}
}

// Handle executes the get multiplier breakdown query.
func (h *GetMultiplierBreakdownHandler) Handle(ctx context.Context, q GetMultiplierBreakdownQuery) (*MultiplierBreakdownDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_multiplier_breakdown: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_multiplier_breakdown: %w", err)
	}

	sources, err := h.multiplierRepo.GetForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_multiplier_breakdown: failed to get sources: %w", err)
	}

	breakdown := multiplier.Resolve(sources, time.Now().UTC(), q.ExpiryWindow)

	return &MultiplierBreakdownDTO{
		UserID:       q.UserID,
		Total:        breakdown.Total.Float64(),
		Active:       toSourceDTOs(breakdown.Active),
		ExpiringSoon: toSourceDTOs(breakdown.ExpiringSoon),
		ResolvedAt:   breakdown.ResolvedAt,
	}, nil
}

func toSourceDTOs(sources []*multiplier.Source) []MultiplierSourceDTO {
	dtos := make([]MultiplierSourceDTO, 0, len(sources))
	for _, s := range sources {
		dtos = append(dtos, MultiplierSourceDTO{
			ID:        s.ID,
			Kind:      string(s.Kind),
			Label:     s.Label,
			Value:     s.Value.Float64(),
			Permanent: s.Permanent,
			ExpiresAt: s.ExpiresAt,
		})
	}
	return dtos
}
