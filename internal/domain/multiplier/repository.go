package multiplier

import (
	"context"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// Repository defines storage for multiplier sources.
// Reads return sources as stored, including expired ones; filtering is
// the domain's job, not the store's.
type Repository interface {
	// GetForUser returns all stored sources for a user.
	GetForUser(ctx context.Context, userID shared.UserID) ([]*Source, error)

	// Save inserts or updates a source by ID.
	Save(ctx context.Context, source *Source) error

	// ReplaceRankSource atomically swaps the user's rank source for the
	// given one. There is at most one rank source per user.
	ReplaceRankSource(ctx context.Context, userID shared.UserID, source *Source) error

	// Delete removes a source by ID.
	// Returns shared.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// PurgeExpired removes temporary sources that expired before the
	// cutoff. Housekeeping only; correctness never depends on it.
	PurgeExpired(ctx context.Context, expiredBefore time.Time) (int, error)
}
