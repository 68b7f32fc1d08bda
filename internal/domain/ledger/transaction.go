// Package ledger contains domain entities and business logic for the
// ML Coins transaction ledger. Entries are immutable and append-only:
// the full history of every balance is reconstructible from the log.
// This is a pure domain layer with zero external dependencies.
package ledger

import (
	"errors"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// Domain errors for ledger package.
var (
	ErrInvalidUserID      = errors.New("ledger: invalid user ID")
	ErrNonPositiveAmount  = errors.New("ledger: amount must be positive")
	ErrInvalidMultiplier  = errors.New("ledger: multiplier must be at least 1.0")
	ErrInvalidType        = errors.New("ledger: unknown transaction type")
	ErrBalanceEquation    = errors.New("ledger: balance_after must equal balance_before + amount")
	ErrNegativeBalance    = errors.New("ledger: balance_after cannot be negative")
	ErrTransactionIDEmpty = errors.New("ledger: transaction ID is required")
)

// TransactionType tags why coins moved.
type TransactionType string

const (
	// TypeEarn - coins credited for learning activity.
	TypeEarn TransactionType = "earn"
	// TypeSpend - coins debited for a purchase or power-up.
	TypeSpend TransactionType = "spend"
	// TypeBonus - one-time grants: welcome bonus, rank promotion bonus.
	TypeBonus TransactionType = "bonus"
	// TypeRefund - a reversed spend.
	TypeRefund TransactionType = "refund"
	// TypeAdminAdjustment - manual correction by an administrator.
	TypeAdminAdjustment TransactionType = "admin_adjustment"
)

// IsValid checks if the transaction type is one of the known tags.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeEarn, TypeSpend, TypeBonus, TypeRefund, TypeAdminAdjustment:
		return true
	default:
		return false
	}
}

// IsCredit reports whether the type normally increases the balance.
func (t TransactionType) IsCredit() bool {
	return t == TypeEarn || t == TypeBonus || t == TypeRefund || t == TypeAdminAdjustment
}

// Transaction is a single immutable ledger entry.
// Invariant: BalanceAfter == BalanceBefore + Amount, and BalanceAfter >= 0.
// For spends Amount is negative.
type Transaction struct {
	ID                string
	UserID            shared.UserID
	Amount            int // signed: positive for credits, negative for debits
	BalanceBefore     int
	BalanceAfter      int
	Type              TransactionType
	MultiplierApplied float64 // 1.0 when no multiplier was involved
	Reference         string  // optional link to the originating reward event
	Description       string
	CreatedAt         time.Time
}

// NewTransactionParams carries everything needed to build a valid entry.
type NewTransactionParams struct {
	ID                string
	UserID            shared.UserID
	Amount            int
	BalanceBefore     int
	Type              TransactionType
	MultiplierApplied float64
	Reference         string
	Description       string
}

// NewTransaction builds a ledger entry and enforces the balance equation.
func NewTransaction(params NewTransactionParams) (*Transaction, error) {
	if params.ID == "" {
		return nil, ErrTransactionIDEmpty
	}
	if params.UserID.IsEmpty() {
		return nil, ErrInvalidUserID
	}
	if !params.Type.IsValid() {
		return nil, ErrInvalidType
	}
	if params.Amount == 0 {
		return nil, ErrNonPositiveAmount
	}

	multiplier := params.MultiplierApplied
	if multiplier == 0 {
		multiplier = 1.0
	}
	if multiplier < 1.0 {
		return nil, ErrInvalidMultiplier
	}

	after := params.BalanceBefore + params.Amount
	if after < 0 {
		return nil, ErrNegativeBalance
	}

	return &Transaction{
		ID:                params.ID,
		UserID:            params.UserID,
		Amount:            params.Amount,
		BalanceBefore:     params.BalanceBefore,
		BalanceAfter:      after,
		Type:              params.Type,
		MultiplierApplied: multiplier,
		Reference:         params.Reference,
		Description:       params.Description,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// IsCredit reports whether the entry increased the balance.
func (t *Transaction) IsCredit() bool {
	return t.Amount > 0
}

// IsDebit reports whether the entry decreased the balance.
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// Validate re-checks the balance equation. Used by the audit job when
// walking stored history.
func (t *Transaction) Validate() error {
	if t.BalanceAfter != t.BalanceBefore+t.Amount {
		return ErrBalanceEquation
	}
	if t.BalanceAfter < 0 {
		return ErrNegativeBalance
	}
	return nil
}

// AuditReport is the outcome of replaying a user's transaction log.
type AuditReport struct {
	UserID           shared.UserID
	RecordedBalance  int
	ComputedBalance  int
	TransactionCount int
	Consistent       bool
	BrokenEntries    []string // IDs of entries violating the balance equation
}

// Audit replays transactions in chronological order against the recorded
// balance. The transactions slice must be ordered oldest first.
func Audit(userID shared.UserID, recordedBalance int, transactions []*Transaction) AuditReport {
	report := AuditReport{
		UserID:           userID,
		RecordedBalance:  recordedBalance,
		TransactionCount: len(transactions),
	}

	computed := 0
	for _, tx := range transactions {
		if err := tx.Validate(); err != nil {
			report.BrokenEntries = append(report.BrokenEntries, tx.ID)
		}
		computed += tx.Amount
	}

	report.ComputedBalance = computed
	report.Consistent = computed == recordedBalance && len(report.BrokenEntries) == 0
	return report
}

// DailySummary aggregates one day of ledger movement for a user.
type DailySummary struct {
	UserID       shared.UserID
	Day          time.Time
	Earned       int
	Spent        int
	Transactions int
}

// Summarize computes earn/spend totals over transactions that fall within
// the given day. Spent is reported as a positive magnitude.
func Summarize(userID shared.UserID, day shared.TimeRange, transactions []*Transaction) DailySummary {
	summary := DailySummary{UserID: userID, Day: day.From}
	for _, tx := range transactions {
		if !day.Contains(tx.CreatedAt) {
			continue
		}
		summary.Transactions++
		if tx.Amount > 0 {
			summary.Earned += tx.Amount
		} else {
			summary.Spent += -tx.Amount
		}
	}
	return summary
}
