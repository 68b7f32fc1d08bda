package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/powerup"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POWERUP REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PowerUpRepository implements powerup.Repository for PostgreSQL.
// Charge counts are stored as JSONB maps keyed by power-up kind.
type PowerUpRepository struct {
	conn *Connection
}

// NewPowerUpRepository creates a new PowerUpRepository.
func NewPowerUpRepository(conn *Connection) *PowerUpRepository {
	return &PowerUpRepository{conn: conn}
}

// Get returns a user's inventory.
func (r *PowerUpRepository) Get(ctx context.Context, userID shared.UserID) (*powerup.Inventory, error) {
	query := `
		SELECT user_id, charges, used_total, created_at, updated_at
		FROM powerup_inventories
		WHERE user_id = $1
	`

	var inv powerup.Inventory
	var id string
	var chargesJSON, usedJSON []byte

	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&id,
		&chargesJSON,
		&usedJSON,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get powerup inventory: %w", err)
	}

	inv.UserID = shared.UserID(id)

	inv.Charges, err = decodeKindMap(chargesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode charges: %w", err)
	}
	inv.UsedTotal, err = decodeKindMap(usedJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode used totals: %w", err)
	}

	return &inv, nil
}

// Save upserts the inventory.
func (r *PowerUpRepository) Save(ctx context.Context, inv *powerup.Inventory) error {
	chargesJSON, err := encodeKindMap(inv.Charges)
	if err != nil {
		return fmt.Errorf("failed to encode charges: %w", err)
	}
	usedJSON, err := encodeKindMap(inv.UsedTotal)
	if err != nil {
		return fmt.Errorf("failed to encode used totals: %w", err)
	}

	query := `
		INSERT INTO powerup_inventories (user_id, charges, used_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			charges = EXCLUDED.charges,
			used_total = EXCLUDED.used_total,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.conn.Exec(ctx, query,
		inv.UserID.String(),
		chargesJSON,
		usedJSON,
		inv.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save powerup inventory: %w", err)
	}

	return nil
}

func encodeKindMap(m map[powerup.Kind]int) ([]byte, error) {
	plain := make(map[string]int, len(m))
	for kind, n := range m {
		plain[string(kind)] = n
	}
	return json.Marshal(plain)
}

func decodeKindMap(data []byte) (map[powerup.Kind]int, error) {
	plain := make(map[string]int)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &plain); err != nil {
			return nil, err
		}
	}

	m := make(map[powerup.Kind]int, len(plain))
	for kind, n := range plain {
		m[powerup.Kind(kind)] = n
	}
	return m, nil
}
