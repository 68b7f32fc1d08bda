package ledger

import (
	"context"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// HistoryFilter narrows a transaction history read.
type HistoryFilter struct {
	// Type filters by transaction type; empty means all types.
	Type TransactionType

	// From/To bound CreatedAt; zero values mean unbounded.
	From time.Time
	To   time.Time

	// Limit and Offset paginate. Results are ordered newest first.
	Limit  int
	Offset int
}

// DefaultHistoryFilter returns a filter for the most recent page.
func DefaultHistoryFilter() HistoryFilter {
	return HistoryFilter{Limit: 20}
}

// WithType restricts the filter to one transaction type.
func (f HistoryFilter) WithType(t TransactionType) HistoryFilter {
	f.Type = t
	return f
}

// WithRange bounds the filter to a time window.
func (f HistoryFilter) WithRange(from, to time.Time) HistoryFilter {
	f.From = from
	f.To = to
	return f
}

// WithPage sets pagination.
func (f HistoryFilter) WithPage(limit, offset int) HistoryFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// Repository defines storage operations for the transaction ledger.
// Entries are append-only: there is no update or delete.
type Repository interface {
	// Append stores a new transaction.
	// Returns shared.ErrAlreadyExists on a duplicate transaction ID,
	// which makes retried appends with a caller-supplied ID idempotent.
	Append(ctx context.Context, tx *Transaction) error

	// GetByID returns a single transaction.
	// Returns shared.ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// History returns a user's transactions, newest first.
	History(ctx context.Context, userID shared.UserID, filter HistoryFilter) ([]*Transaction, error)

	// AllForUser returns the complete log oldest first, for auditing.
	AllForUser(ctx context.Context, userID shared.UserID) ([]*Transaction, error)

	// CountForUser returns the number of entries for a user.
	CountForUser(ctx context.Context, userID shared.UserID) (int, error)

	// TopEarners returns user IDs with their earned totals within a window,
	// highest first.
	TopEarners(ctx context.Context, window shared.TimeRange, limit int) ([]EarnerEntry, error)
}

// EarnerEntry is one row of the top-earners listing.
type EarnerEntry struct {
	UserID shared.UserID
	Earned int
}
