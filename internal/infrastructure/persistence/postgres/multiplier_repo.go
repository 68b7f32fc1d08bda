package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/multiplier"
	"github.com/gamilit/rewards-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MULTIPLIER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const multiplierColumns = `id, user_id, kind, label, value, permanent, expires_at, granted_at`

// MultiplierRepository implements multiplier.Repository for PostgreSQL.
// Reads return sources as stored, expired ones included; filtering by
// time is the domain's job.
type MultiplierRepository struct {
	conn *Connection
}

// NewMultiplierRepository creates a new MultiplierRepository.
func NewMultiplierRepository(conn *Connection) *MultiplierRepository {
	return &MultiplierRepository{conn: conn}
}

// GetForUser returns all stored sources for a user.
func (r *MultiplierRepository) GetForUser(ctx context.Context, userID shared.UserID) ([]*multiplier.Source, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM multiplier_sources
		WHERE user_id = $1
		ORDER BY granted_at ASC
	`, multiplierColumns)

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query multiplier sources: %w", err)
	}
	defer rows.Close()

	var sources []*multiplier.Source
	for rows.Next() {
		source, err := r.scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return sources, nil
}

// Save inserts or updates a source by ID.
func (r *MultiplierRepository) Save(ctx context.Context, source *multiplier.Source) error {
	return r.saveTx(ctx, r.conn, source)
}

func (r *MultiplierRepository) saveTx(ctx context.Context, q Querier, source *multiplier.Source) error {
	query := `
		INSERT INTO multiplier_sources (
			id, user_id, kind, label, value, permanent, expires_at, granted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			value = EXCLUDED.value,
			permanent = EXCLUDED.permanent,
			expires_at = EXCLUDED.expires_at
	`

	_, err := q.Exec(ctx, query,
		source.ID,
		source.UserID.String(),
		string(source.Kind),
		source.Label,
		source.Value.Float64(),
		source.Permanent,
		source.ExpiresAt,
		source.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save multiplier source: %w", err)
	}

	return nil
}

// ReplaceRankSource atomically swaps the user's rank source for the
// given one.
func (r *MultiplierRepository) ReplaceRankSource(ctx context.Context, userID shared.UserID, source *multiplier.Source) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"DELETE FROM multiplier_sources WHERE user_id = $1 AND kind = $2",
			userID.String(), string(multiplier.KindRank),
		)
		if err != nil {
			return fmt.Errorf("failed to remove previous rank source: %w", err)
		}

		return r.saveTx(ctx, tx, source)
	})
}

// Delete removes a source by ID.
func (r *MultiplierRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM multiplier_sources WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete multiplier source: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrMultiplierNotFound
	}

	return nil
}

// PurgeExpired removes temporary sources that expired before the cutoff.
func (r *MultiplierRepository) PurgeExpired(ctx context.Context, expiredBefore time.Time) (int, error) {
	result, err := r.conn.Exec(ctx,
		"DELETE FROM multiplier_sources WHERE NOT permanent AND expires_at < $1",
		expiredBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired multiplier sources: %w", err)
	}

	return int(result.RowsAffected()), nil
}

func (r *MultiplierRepository) scanSource(row pgx.Row) (*multiplier.Source, error) {
	var source multiplier.Source
	var userID, kind string
	var value float64

	err := row.Scan(
		&source.ID,
		&userID,
		&kind,
		&source.Label,
		&value,
		&source.Permanent,
		&source.ExpiresAt,
		&source.GrantedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrMultiplierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan multiplier source: %w", err)
	}

	source.UserID = shared.UserID(userID)
	source.Kind = multiplier.SourceKind(kind)
	source.Value = shared.Multiplier(value)

	return &source, nil
}
