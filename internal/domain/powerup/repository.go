package powerup

import (
	"context"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// Repository defines storage for power-up inventories.
type Repository interface {
	// Get returns a user's inventory.
	// Returns shared.ErrNotFound when the user has never purchased.
	Get(ctx context.Context, userID shared.UserID) (*Inventory, error)

	// Save inserts or updates the inventory.
	Save(ctx context.Context, inv *Inventory) error
}
