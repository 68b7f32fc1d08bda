package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RankRepository implements rank.Repository for PostgreSQL.
// The active table lives in a single-row table; every Replace archives
// the previous tiers into rank_table_history.
type RankRepository struct {
	conn *Connection
}

// NewRankRepository creates a new RankRepository.
func NewRankRepository(conn *Connection) *RankRepository {
	return &RankRepository{conn: conn}
}

// tierRecord is the JSONB shape of one stored tier.
type tierRecord struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MinXP      int     `json:"min_xp"`
	MinModules int     `json:"min_modules,omitempty"`
	CoinBonus  int     `json:"coin_bonus"`
	Multiplier float64 `json:"multiplier"`
}

// Load returns the active rank table.
func (r *RankRepository) Load(ctx context.Context) (*rank.Definition, error) {
	var tiersJSON []byte
	err := r.conn.QueryRow(ctx, "SELECT tiers FROM rank_tables WHERE id").Scan(&tiersJSON)
	if IsNoRows(err) {
		return nil, shared.ErrRankTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rank table: %w", err)
	}

	return decodeTiers(tiersJSON)
}

// Replace stores a new active table and archives the previous one.
func (r *RankRepository) Replace(ctx context.Context, def *rank.Definition, changedBy string) error {
	tiersJSON, err := encodeTiers(def)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO rank_table_history (tiers, tier_count, changed_by, changed_at)
			SELECT tiers, jsonb_array_length(tiers), changed_by, changed_at
			FROM rank_tables WHERE id
		`)
		if err != nil {
			return fmt.Errorf("failed to archive rank table: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO rank_tables (id, tiers, changed_by, changed_at)
			VALUES (TRUE, $1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET
				tiers = EXCLUDED.tiers,
				changed_by = EXCLUDED.changed_by,
				changed_at = EXCLUDED.changed_at
		`, tiersJSON, changedBy, now)
		if err != nil {
			return fmt.Errorf("failed to store rank table: %w", err)
		}

		return nil
	})
}

// History returns past table replacements, newest first.
func (r *RankRepository) History(ctx context.Context, limit int) ([]rank.ChangeRecord, error) {
	query := `
		SELECT changed_by, changed_at, tier_count
		FROM rank_table_history
		ORDER BY changed_at DESC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rank table history: %w", err)
	}
	defer rows.Close()

	var records []rank.ChangeRecord
	for rows.Next() {
		var record rank.ChangeRecord
		if err := rows.Scan(&record.ChangedBy, &record.ChangedAt, &record.TierCount); err != nil {
			return nil, fmt.Errorf("failed to scan rank table change: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

func encodeTiers(def *rank.Definition) ([]byte, error) {
	tiers := def.Tiers()
	records := make([]tierRecord, len(tiers))
	for i, tier := range tiers {
		records[i] = tierRecord{
			ID:         tier.ID,
			Name:       tier.Name,
			MinXP:      tier.MinXP,
			MinModules: tier.MinModules,
			CoinBonus:  tier.CoinBonus,
			Multiplier: tier.Multiplier.Float64(),
		}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rank tiers: %w", err)
	}
	return data, nil
}

func decodeTiers(data []byte) (*rank.Definition, error) {
	var records []tierRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rank tiers: %w", err)
	}

	tiers := make([]rank.Tier, len(records))
	for i, record := range records {
		tiers[i] = rank.Tier{
			ID:         record.ID,
			Name:       record.Name,
			MinXP:      record.MinXP,
			MinModules: record.MinModules,
			CoinBonus:  record.CoinBonus,
			Multiplier: shared.Multiplier(record.Multiplier),
		}
	}

	// Stored tables passed validation on the way in; running it again
	// keeps a manually edited row from reaching rank evaluation.
	return rank.NewDefinition(tiers)
}
