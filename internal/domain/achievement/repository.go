package achievement

import (
	"context"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// DefinitionRepository defines storage for achievement definitions.
// Implementations decode stored conditions with DecodeCondition, so a
// loaded definition always carries a validated typed condition.
type DefinitionRepository interface {
	// ListActive returns all active definitions.
	ListActive(ctx context.Context) ([]*Definition, error)

	// GetByID returns one definition.
	// Returns shared.ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Definition, error)

	// Save inserts or updates a definition.
	Save(ctx context.Context, def *Definition) error

	// Deactivate hides a definition from detection without deleting
	// earned records.
	Deactivate(ctx context.Context, id string) error
}

// UserRepository defines storage for per-user achievement state.
type UserRepository interface {
	// Get returns the user's record for one achievement.
	// Returns shared.ErrNotFound when no progress has been written yet.
	Get(ctx context.Context, userID shared.UserID, achievementID string) (*UserAchievement, error)

	// ListForUser returns all of the user's records.
	ListForUser(ctx context.Context, userID shared.UserID) ([]*UserAchievement, error)

	// Save inserts or updates a record keyed by (user, achievement).
	Save(ctx context.Context, record *UserAchievement) error

	// CountCompleted returns how many achievements the user completed.
	CountCompleted(ctx context.Context, userID shared.UserID) (int, error)
}
