package rank

import (
	"context"
	"time"
)

// Repository defines storage for the active rank table.
// Tables are validated before they are stored; Load never returns an
// invalid definition.
type Repository interface {
	// Load returns the active rank table.
	// Returns shared.ErrNotFound when none has been stored yet; callers
	// typically fall back to DefaultDefinition.
	Load(ctx context.Context) (*Definition, error)

	// Replace stores a new active table and records the previous one in
	// history. The definition has already passed NewDefinition.
	Replace(ctx context.Context, def *Definition, changedBy string) error

	// History returns past table replacements, newest first.
	History(ctx context.Context, limit int) ([]ChangeRecord, error)
}

// ChangeRecord documents one table replacement.
type ChangeRecord struct {
	ChangedBy string
	ChangedAt time.Time
	TierCount int
}
