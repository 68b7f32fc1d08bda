package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TRANSACTION HISTORY QUERY
// Pages through a user's ledger, newest first, with optional type and
// date filters.
// ══════════════════════════════════════════════════════════════════════════════

// GetTransactionHistoryQuery contains the history request.
type GetTransactionHistoryQuery struct {
	// UserID is the queried user.
	UserID string

	// Type filters by transaction type (empty = all).
	Type string

	// From and To bound the period (zero = unbounded).
	From time.Time
	To   time.Time

	// Limit and Offset page the result (defaults applied).
	Limit  int
	Offset int
}

// Validate validates the query and applies paging defaults.
func (q *GetTransactionHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_transaction_history: user_id is required")
	}

	if q.Type != "" && !ledger.TransactionType(q.Type).IsValid() {
		return fmt.Errorf("get_transaction_history: unknown type: %s", q.Type)
	}

	if q.Limit <= 0 {
		q.Limit = shared.DefaultPageSize
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	return nil
}

// TransactionDTO is one ledger entry view.
type TransactionDTO struct {
	ID                string    `json:"id"`
	Amount            int       `json:"amount"`
	BalanceAfter      int       `json:"balance_after"`
	Type              string    `json:"type"`
	MultiplierApplied float64   `json:"multiplier_applied"`
	Reference         string    `json:"reference,omitempty"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
}

// TransactionHistoryDTO is the paged history view.
type TransactionHistoryDTO struct {
	UserID       string           `json:"user_id"`
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
}

// GetTransactionHistoryHandler handles the GetTransactionHistoryQuery.
type GetTransactionHistoryHandler struct {
	ledgerRepo ledger.Repository
}

// NewGetTransactionHistoryHandler creates a new GetTransactionHistoryHandler.
func NewGetTransactionHistoryHandler(ledgerRepo ledger.Repository) *GetTransactionHistoryHandler {
	return &GetTransactionHistoryHandler{ledgerRepo: ledgerRepo}
}

// Handle executes the get transaction history query.
func (h *GetTransactionHistoryHandler) Handle(ctx context.Context, q GetTransactionHistoryQuery) (*TransactionHistoryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_transaction_history: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_transaction_history: %w", err)
	}

	filter := ledger.DefaultHistoryFilter().WithPage(q.Limit, q.Offset)
	if q.Type != "" {
		filter = filter.WithType(ledger.TransactionType(q.Type))
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		filter = filter.WithRange(q.From, q.To)
	}

	entries, err := h.ledgerRepo.History(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("get_transaction_history: failed to read ledger: %w", err)
	}

	total, err := h.ledgerRepo.CountForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_transaction_history: failed to count: %w", err)
	}

	dto := &TransactionHistoryDTO{
		UserID:       q.UserID,
		Transactions: make([]TransactionDTO, 0, len(entries)),
		Total:        total,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
	for _, tx := range entries {
		dto.Transactions = append(dto.Transactions, TransactionDTO{
			ID:                tx.ID,
			Amount:            tx.Amount,
			BalanceAfter:      tx.BalanceAfter,
			Type:              string(tx.Type),
			MultiplierApplied: tx.MultiplierApplied,
			Reference:         tx.Reference,
			Description:       tx.Description,
			CreatedAt:         tx.CreatedAt,
		})
	}

	return dto, nil
}
