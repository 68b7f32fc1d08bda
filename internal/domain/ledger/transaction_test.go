package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

const testUserID = shared.UserID("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

func TestNewTransaction_Credit(t *testing.T) {
	tx, err := NewTransaction(NewTransactionParams{
		ID:                "tx-1",
		UserID:            testUserID,
		Amount:            30,
		BalanceBefore:     500,
		Type:              TypeEarn,
		MultiplierApplied: 1.5,
		Reference:         "exercise-42",
		Description:       "exercise completed",
	})
	assert.NoError(t, err)
	assert.Equal(t, 530, tx.BalanceAfter)
	assert.True(t, tx.IsCredit())
	assert.False(t, tx.IsDebit())
	assert.Equal(t, 1.5, tx.MultiplierApplied)
	assert.NoError(t, tx.Validate())
}

func TestNewTransaction_Debit(t *testing.T) {
	tx, err := NewTransaction(NewTransactionParams{
		ID:            "tx-2",
		UserID:        testUserID,
		Amount:        -40,
		BalanceBefore: 100,
		Type:          TypeSpend,
		Description:   "power-up: hint",
	})
	assert.NoError(t, err)
	assert.Equal(t, 60, tx.BalanceAfter)
	assert.True(t, tx.IsDebit())
	// Unset multiplier defaults to neutral.
	assert.Equal(t, 1.0, tx.MultiplierApplied)
}

func TestNewTransaction_Rejections(t *testing.T) {
	base := NewTransactionParams{
		ID:            "tx-3",
		UserID:        testUserID,
		Amount:        10,
		BalanceBefore: 0,
		Type:          TypeEarn,
	}

	p := base
	p.ID = ""
	_, err := NewTransaction(p)
	assert.ErrorIs(t, err, ErrTransactionIDEmpty)

	p = base
	p.UserID = ""
	_, err = NewTransaction(p)
	assert.ErrorIs(t, err, ErrInvalidUserID)

	p = base
	p.Type = "theft"
	_, err = NewTransaction(p)
	assert.ErrorIs(t, err, ErrInvalidType)

	p = base
	p.Amount = 0
	_, err = NewTransaction(p)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	p = base
	p.MultiplierApplied = 0.5
	_, err = NewTransaction(p)
	assert.ErrorIs(t, err, ErrInvalidMultiplier)

	// A debit may never push the balance negative.
	p = base
	p.Amount = -50
	p.BalanceBefore = 30
	_, err = NewTransaction(p)
	assert.ErrorIs(t, err, ErrNegativeBalance)
}

func TestTransactionType(t *testing.T) {
	assert.True(t, TypeEarn.IsValid())
	assert.True(t, TypeAdminAdjustment.IsValid())
	assert.False(t, TransactionType("gift").IsValid())

	assert.True(t, TypeBonus.IsCredit())
	assert.True(t, TypeRefund.IsCredit())
	assert.False(t, TypeSpend.IsCredit())
}

func mustTx(t *testing.T, id string, amount, before int, txType TransactionType) *Transaction {
	t.Helper()
	tx, err := NewTransaction(NewTransactionParams{
		ID:            id,
		UserID:        testUserID,
		Amount:        amount,
		BalanceBefore: before,
		Type:          txType,
		Description:   "test",
	})
	assert.NoError(t, err)
	return tx
}

func TestAudit_ConsistentLog(t *testing.T) {
	log := []*Transaction{
		mustTx(t, "tx-1", 500, 0, TypeBonus),
		mustTx(t, "tx-2", 30, 500, TypeEarn),
		mustTx(t, "tx-3", -100, 530, TypeSpend),
	}

	report := Audit(testUserID, 430, log)
	assert.True(t, report.Consistent)
	assert.Equal(t, 430, report.ComputedBalance)
	assert.Equal(t, 3, report.TransactionCount)
	assert.Empty(t, report.BrokenEntries)
}

func TestAudit_DetectsDrift(t *testing.T) {
	log := []*Transaction{
		mustTx(t, "tx-1", 500, 0, TypeBonus),
	}

	report := Audit(testUserID, 480, log)
	assert.False(t, report.Consistent)
	assert.Equal(t, 500, report.ComputedBalance)
	assert.Equal(t, 480, report.RecordedBalance)
}

func TestAudit_FlagsBrokenEntries(t *testing.T) {
	broken := mustTx(t, "tx-bad", 50, 100, TypeEarn)
	broken.BalanceAfter = 999 // corrupted row

	report := Audit(testUserID, 50, []*Transaction{broken})
	assert.False(t, report.Consistent)
	assert.Equal(t, []string{"tx-bad"}, report.BrokenEntries)
}

func TestSummarize(t *testing.T) {
	day, err := shared.NewTimeRange(
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC),
	)
	assert.NoError(t, err)

	inDay := mustTx(t, "tx-1", 120, 0, TypeEarn)
	inDay.CreatedAt = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	spend := mustTx(t, "tx-2", -45, 120, TypeSpend)
	spend.CreatedAt = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	outside := mustTx(t, "tx-3", 200, 75, TypeEarn)
	outside.CreatedAt = time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)

	summary := Summarize(testUserID, day, []*Transaction{inDay, spend, outside})
	assert.Equal(t, 120, summary.Earned)
	assert.Equal(t, 45, summary.Spent)
	assert.Equal(t, 2, summary.Transactions)
}

func TestHistoryFilter_Builders(t *testing.T) {
	f := DefaultHistoryFilter().
		WithType(TypeSpend).
		WithPage(10, 20)

	assert.Equal(t, TypeSpend, f.Type)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 20, f.Offset)
}
