package postgres

import (
	"context"
	"fmt"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const ledgerColumns = `id, user_id, amount, balance_before, balance_after, type,
		   multiplier_applied, reference, description, created_at`

// LedgerRepository implements ledger.Repository for PostgreSQL.
// The coin_transactions table is append-only: this type never issues an
// UPDATE or DELETE against it.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// Append stores a new transaction.
// A duplicate ID maps to shared.ErrAlreadyExists, which makes retried
// appends with a caller-supplied ID idempotent.
func (r *LedgerRepository) Append(ctx context.Context, tx *ledger.Transaction) error {
	return appendLedgerTx(ctx, r.conn, tx)
}

// appendLedgerTx inserts one entry through the pool or an open
// transaction. StatsRepository.SaveWithLedger shares it so stats and
// ledger writes land in one commit.
func appendLedgerTx(ctx context.Context, q Querier, tx *ledger.Transaction) error {
	query := `
		INSERT INTO coin_transactions (
			id, user_id, amount, balance_before, balance_after, type,
			multiplier_applied, reference, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := q.Exec(ctx, query,
		tx.ID,
		tx.UserID.String(),
		tx.Amount,
		tx.BalanceBefore,
		tx.BalanceAfter,
		string(tx.Type),
		tx.MultiplierApplied,
		nullableString(tx.Reference),
		tx.Description,
		tx.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// GetByID returns a single transaction.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM coin_transactions WHERE id = $1`, ledgerColumns)

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanTransaction(row)
}

// History returns a user's transactions, newest first.
func (r *LedgerRepository) History(ctx context.Context, userID shared.UserID, filter ledger.HistoryFilter) ([]*ledger.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM coin_transactions WHERE user_id = $1`, ledgerColumns)
	args := []interface{}{userID.String()}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	query += " ORDER BY created_at DESC, id DESC"

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction history: %w", err)
	}
	defer rows.Close()

	return r.scanTransactions(rows)
}

// AllForUser returns the complete log oldest first, for auditing.
func (r *LedgerRepository) AllForUser(ctx context.Context, userID shared.UserID) ([]*ledger.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, ledgerColumns)

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for audit: %w", err)
	}
	defer rows.Close()

	return r.scanTransactions(rows)
}

// CountForUser returns the number of entries for a user.
func (r *LedgerRepository) CountForUser(ctx context.Context, userID shared.UserID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM coin_transactions WHERE user_id = $1",
		userID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// TopEarners returns user IDs with their credited totals within a
// window, highest first. Spends do not reduce the total.
func (r *LedgerRepository) TopEarners(ctx context.Context, window shared.TimeRange, limit int) ([]ledger.EarnerEntry, error) {
	query := `
		SELECT user_id, SUM(amount) AS earned
		FROM coin_transactions
		WHERE amount > 0 AND created_at >= $1 AND created_at < $2
		GROUP BY user_id
		ORDER BY earned DESC
		LIMIT $3
	`

	rows, err := r.conn.Query(ctx, query, window.From, window.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top earners: %w", err)
	}
	defer rows.Close()

	var entries []ledger.EarnerEntry
	for rows.Next() {
		var userID string
		var earned int
		if err := rows.Scan(&userID, &earned); err != nil {
			return nil, fmt.Errorf("failed to scan top earner: %w", err)
		}
		entries = append(entries, ledger.EarnerEntry{
			UserID: shared.UserID(userID),
			Earned: earned,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func (r *LedgerRepository) scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	var userID, txType string
	var reference *string

	err := row.Scan(
		&tx.ID,
		&userID,
		&tx.Amount,
		&tx.BalanceBefore,
		&tx.BalanceAfter,
		&txType,
		&tx.MultiplierApplied,
		&reference,
		&tx.Description,
		&tx.CreatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.UserID = shared.UserID(userID)
	tx.Type = ledger.TransactionType(txType)
	if reference != nil {
		tx.Reference = *reference
	}

	return &tx, nil
}

func (r *LedgerRepository) scanTransactions(rows pgx.Rows) ([]*ledger.Transaction, error) {
	var list []*ledger.Transaction

	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return list, nil
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
