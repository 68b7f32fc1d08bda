package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/achievement"
	"github.com/gamilit/rewards-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT DEFINITION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const definitionColumns = `id, name, description, category, condition_kind, condition,
		   max_progress, is_repeatable, is_secret, reward_xp, reward_coins,
		   is_active, created_at`

// AchievementDefinitionRepository implements achievement.DefinitionRepository
// for PostgreSQL. Conditions round-trip through the discriminated JSONB
// payload: condition_kind selects the concrete type on load.
type AchievementDefinitionRepository struct {
	conn *Connection
}

// NewAchievementDefinitionRepository creates a new AchievementDefinitionRepository.
func NewAchievementDefinitionRepository(conn *Connection) *AchievementDefinitionRepository {
	return &AchievementDefinitionRepository{conn: conn}
}

// ListActive returns all active definitions.
func (r *AchievementDefinitionRepository) ListActive(ctx context.Context) ([]*achievement.Definition, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM achievement_definitions
		WHERE is_active
		ORDER BY category, id
	`, definitionColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievement definitions: %w", err)
	}
	defer rows.Close()

	var defs []*achievement.Definition
	for rows.Next() {
		def, err := r.scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return defs, nil
}

// GetByID returns one definition.
func (r *AchievementDefinitionRepository) GetByID(ctx context.Context, id string) (*achievement.Definition, error) {
	query := fmt.Sprintf(`SELECT %s FROM achievement_definitions WHERE id = $1`, definitionColumns)

	return r.scanDefinition(r.conn.QueryRow(ctx, query, id))
}

// Save inserts or updates a definition.
func (r *AchievementDefinitionRepository) Save(ctx context.Context, def *achievement.Definition) error {
	kind, rawCondition, err := achievement.EncodeCondition(def.Condition)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO achievement_definitions (
			id, name, description, category, condition_kind, condition,
			max_progress, is_repeatable, is_secret, reward_xp, reward_coins,
			is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			condition_kind = EXCLUDED.condition_kind,
			condition = EXCLUDED.condition,
			max_progress = EXCLUDED.max_progress,
			is_repeatable = EXCLUDED.is_repeatable,
			is_secret = EXCLUDED.is_secret,
			reward_xp = EXCLUDED.reward_xp,
			reward_coins = EXCLUDED.reward_coins,
			is_active = EXCLUDED.is_active
	`

	_, err = r.conn.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		string(def.Category),
		string(kind),
		[]byte(rawCondition),
		def.MaxProgress,
		def.IsRepeatable,
		def.IsSecret,
		def.Reward.XP,
		def.Reward.Coins,
		def.IsActive,
		def.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save achievement definition: %w", err)
	}

	return nil
}

// Deactivate hides a definition from detection without deleting earned
// records.
func (r *AchievementDefinitionRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx,
		"UPDATE achievement_definitions SET is_active = FALSE WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate achievement definition: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}

	return nil
}

func (r *AchievementDefinitionRepository) scanDefinition(row pgx.Row) (*achievement.Definition, error) {
	var def achievement.Definition
	var category, conditionKind string
	var rawCondition []byte

	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&category,
		&conditionKind,
		&rawCondition,
		&def.MaxProgress,
		&def.IsRepeatable,
		&def.IsSecret,
		&def.Reward.XP,
		&def.Reward.Coins,
		&def.IsActive,
		&def.CreatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan achievement definition: %w", err)
	}

	def.Category = achievement.Category(category)

	cond, err := achievement.DecodeCondition(achievement.ConditionKind(conditionKind), json.RawMessage(rawCondition))
	if err != nil {
		return nil, fmt.Errorf("failed to decode condition for %q: %w", def.ID, err)
	}
	def.Condition = cond

	return &def, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const userAchievementColumns = `user_id, achievement_id, progress, completion_percentage,
		   is_completed, completed_at, rewards_claimed, claimed_at, times_earned,
		   created_at, updated_at`

// UserAchievementRepository implements achievement.UserRepository for
// PostgreSQL.
type UserAchievementRepository struct {
	conn *Connection
}

// NewUserAchievementRepository creates a new UserAchievementRepository.
func NewUserAchievementRepository(conn *Connection) *UserAchievementRepository {
	return &UserAchievementRepository{conn: conn}
}

// Get returns the user's record for one achievement.
func (r *UserAchievementRepository) Get(ctx context.Context, userID shared.UserID, achievementID string) (*achievement.UserAchievement, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_achievements
		WHERE user_id = $1 AND achievement_id = $2
	`, userAchievementColumns)

	return r.scanRecord(r.conn.QueryRow(ctx, query, userID.String(), achievementID))
}

// ListForUser returns all of the user's records.
func (r *UserAchievementRepository) ListForUser(ctx context.Context, userID shared.UserID) ([]*achievement.UserAchievement, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_achievements
		WHERE user_id = $1
		ORDER BY achievement_id
	`, userAchievementColumns)

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query user achievements: %w", err)
	}
	defer rows.Close()

	var records []*achievement.UserAchievement
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// Save upserts a record keyed by (user, achievement). Upsert keeps
// retried detection idempotent.
func (r *UserAchievementRepository) Save(ctx context.Context, record *achievement.UserAchievement) error {
	return saveUserAchievementTx(ctx, r.conn, record)
}

// saveUserAchievementTx runs the upsert against either the pool or an
// open transaction, so a claim can commit the record together with the
// balance it paid out.
func saveUserAchievementTx(ctx context.Context, q Querier, record *achievement.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (
			user_id, achievement_id, progress, completion_percentage,
			is_completed, completed_at, rewards_claimed, claimed_at, times_earned,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, achievement_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			completion_percentage = EXCLUDED.completion_percentage,
			is_completed = EXCLUDED.is_completed,
			completed_at = EXCLUDED.completed_at,
			rewards_claimed = EXCLUDED.rewards_claimed,
			claimed_at = EXCLUDED.claimed_at,
			times_earned = EXCLUDED.times_earned,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		record.UserID.String(),
		record.AchievementID,
		record.Progress,
		record.CompletionPercentage,
		record.IsCompleted,
		record.CompletedAt,
		record.RewardsClaimed,
		record.ClaimedAt,
		record.TimesEarned,
		record.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save user achievement: %w", err)
	}

	return nil
}

// CountCompleted returns how many achievements the user completed.
func (r *UserAchievementRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM user_achievements WHERE user_id = $1 AND is_completed",
		userID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed achievements: %w", err)
	}
	return count, nil
}

func (r *UserAchievementRepository) scanRecord(row pgx.Row) (*achievement.UserAchievement, error) {
	var record achievement.UserAchievement
	var userID string

	err := row.Scan(
		&userID,
		&record.AchievementID,
		&record.Progress,
		&record.CompletionPercentage,
		&record.IsCompleted,
		&record.CompletedAt,
		&record.RewardsClaimed,
		&record.ClaimedAt,
		&record.TimesEarned,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user achievement: %w", err)
	}

	record.UserID = shared.UserID(userID)

	return &record, nil
}
