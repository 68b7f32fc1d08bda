package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/achievement"
	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/timeutil"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const statsColumns = `user_id, level, total_xp, current_rank, ml_coins,
		   ml_coins_earned_total, ml_coins_spent_total, ml_coins_earned_today,
		   last_coins_reset_at, current_streak, max_streak, last_activity_date,
		   exercises_completed, modules_completed, perfect_scores, average_score,
		   scores_recorded, achievements_earned, version, created_at, updated_at`

// StatsRepository implements stats.AtomicStore for PostgreSQL.
// Saves are guarded by the version column: an UPDATE whose WHERE clause
// misses the expected version affects zero rows and surfaces as
// shared.ErrConcurrentModification.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a stats record for a new user.
func (r *StatsRepository) Create(ctx context.Context, s *stats.UserStats) error {
	query := `
		INSERT INTO user_stats (
			user_id, level, total_xp, current_rank, ml_coins,
			ml_coins_earned_total, ml_coins_spent_total, ml_coins_earned_today,
			last_coins_reset_at, current_streak, max_streak, last_activity_date,
			exercises_completed, modules_completed, perfect_scores, average_score,
			scores_recorded, achievements_earned, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := r.conn.Exec(ctx, query, statsArgs(s)...)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStatsExist
		}
		return fmt.Errorf("failed to create user stats: %w", err)
	}

	return nil
}

// GetByUserID returns a user's stats record.
func (r *StatsRepository) GetByUserID(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_stats WHERE user_id = $1`, statsColumns)

	row := r.conn.QueryRow(ctx, query, userID.String())
	return r.scanStats(row)
}

// Save persists a modified record with a version check and bumps Version
// on success.
func (r *StatsRepository) Save(ctx context.Context, s *stats.UserStats) error {
	return r.saveTx(ctx, r.conn, s)
}

// SaveWithLedger persists a modified record and its ledger entries in a
// single transaction. Either everything commits or nothing does, so the
// ledger can never drift from the balance it explains.
func (r *StatsRepository) SaveWithLedger(ctx context.Context, s *stats.UserStats, entries []*ledger.Transaction) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := r.saveTx(ctx, tx, s); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := appendLedgerTx(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveWithLedgerAndRecord persists the record, its ledger entries and a
// user achievement row in a single transaction. Claims use this so the
// paid-out balance and the claimed flag can never commit separately.
func (r *StatsRepository) SaveWithLedgerAndRecord(ctx context.Context, s *stats.UserStats, entries []*ledger.Transaction, record *achievement.UserAchievement) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := r.saveTx(ctx, tx, s); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := appendLedgerTx(ctx, tx, entry); err != nil {
				return err
			}
		}
		return saveUserAchievementTx(ctx, tx, record)
	})
}

// saveTx runs the versioned UPDATE against either the pool or an open
// transaction.
func (r *StatsRepository) saveTx(ctx context.Context, q Querier, s *stats.UserStats) error {
	query := `
		UPDATE user_stats SET
			level = $2,
			total_xp = $3,
			current_rank = $4,
			ml_coins = $5,
			ml_coins_earned_total = $6,
			ml_coins_spent_total = $7,
			ml_coins_earned_today = $8,
			last_coins_reset_at = $9,
			current_streak = $10,
			max_streak = $11,
			last_activity_date = $12,
			exercises_completed = $13,
			modules_completed = $14,
			perfect_scores = $15,
			average_score = $16,
			scores_recorded = $17,
			achievements_earned = $18,
			version = version + 1,
			updated_at = $20
		WHERE user_id = $1 AND version = $19
	`

	result, err := q.Exec(ctx, query,
		s.UserID.String(),
		int(s.Level),
		int(s.TotalXP),
		s.CurrentRank,
		int(s.MLCoins),
		s.MLCoinsEarnedTotal,
		s.MLCoinsSpentTotal,
		s.MLCoinsEarnedToday,
		s.LastCoinsResetAt,
		s.CurrentStreak,
		s.MaxStreak,
		nullableTime(s.LastActivityDate),
		s.ExercisesCompleted,
		s.ModulesCompleted,
		s.PerfectScores,
		s.AverageScore,
		s.ScoresRecorded,
		s.AchievementsEarned,
		s.Version,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save user stats: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the row is gone or someone saved a newer version.
		exists, exErr := r.existsTx(ctx, q, s.UserID)
		if exErr != nil {
			return exErr
		}
		if !exists {
			return shared.ErrStatsNotFound
		}
		return shared.ErrStaleStatsVersion
	}

	s.Version++
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns stats records with pagination.
func (r *StatsRepository) GetAll(ctx context.Context, opts stats.ListOptions) ([]*stats.UserStats, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_stats`, statsColumns)
	query += r.buildOrderBy(opts)
	query += " LIMIT $1 OFFSET $2"

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	defer rows.Close()

	return r.scanStatsList(rows)
}

// GetByUserIDs returns stats for a list of users.
func (r *StatsRepository) GetByUserIDs(ctx context.Context, userIDs []shared.UserID) ([]*stats.UserStats, error) {
	if len(userIDs) == 0 {
		return []*stats.UserStats{}, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id.String()
	}

	query := fmt.Sprintf(`SELECT %s FROM user_stats WHERE user_id IN (%s)`,
		statsColumns, strings.Join(placeholders, ", "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats by ids: %w", err)
	}
	defer rows.Close()

	return r.scanStatsList(rows)
}

// Sample returns a random sample of records, used by rank table
// simulation.
func (r *StatsRepository) Sample(ctx context.Context, size int) ([]*stats.UserStats, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_stats ORDER BY random() LIMIT $1`, statsColumns)

	rows, err := r.conn.Query(ctx, query, size)
	if err != nil {
		return nil, fmt.Errorf("failed to sample user stats: %w", err)
	}
	defer rows.Close()

	return r.scanStatsList(rows)
}

// Count returns the total number of records.
func (r *StatsRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM user_stats").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user stats: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Maintenance
// ─────────────────────────────────────────────────────────────────────────────

// FindStaleDailyCounters finds users whose daily coin counter has not
// been reset since the start of the current platform day.
func (r *StatsRepository) FindStaleDailyCounters(ctx context.Context, now time.Time, limit int) ([]*stats.UserStats, error) {
	dayStart := timeutil.StartOfDay(timeutil.ToPlatform(now))

	query := fmt.Sprintf(`
		SELECT %s FROM user_stats
		WHERE last_coins_reset_at < $1 AND ml_coins_earned_today > 0
		ORDER BY last_coins_reset_at ASC
		LIMIT $2
	`, statsColumns)

	rows, err := r.conn.Query(ctx, query, dayStart, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale daily counters: %w", err)
	}
	defer rows.Close()

	return r.scanStatsList(rows)
}

// Exists checks whether a stats record exists.
func (r *StatsRepository) Exists(ctx context.Context, userID shared.UserID) (bool, error) {
	return r.existsTx(ctx, r.conn, userID)
}

func (r *StatsRepository) existsTx(ctx context.Context, q Querier, userID shared.UserID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM user_stats WHERE user_id = $1)",
		userID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check stats existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning & Helpers
// ─────────────────────────────────────────────────────────────────────────────

// statsArgs returns insert/update arguments in statsColumns order.
func statsArgs(s *stats.UserStats) []interface{} {
	return []interface{}{
		s.UserID.String(),
		int(s.Level),
		int(s.TotalXP),
		s.CurrentRank,
		int(s.MLCoins),
		s.MLCoinsEarnedTotal,
		s.MLCoinsSpentTotal,
		s.MLCoinsEarnedToday,
		s.LastCoinsResetAt,
		s.CurrentStreak,
		s.MaxStreak,
		nullableTime(s.LastActivityDate),
		s.ExercisesCompleted,
		s.ModulesCompleted,
		s.PerfectScores,
		s.AverageScore,
		s.ScoresRecorded,
		s.AchievementsEarned,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	}
}

func (r *StatsRepository) scanStats(row pgx.Row) (*stats.UserStats, error) {
	var s stats.UserStats
	var userID, currentRank string
	var level, totalXP, mlCoins int
	var lastActivity *time.Time

	err := row.Scan(
		&userID,
		&level,
		&totalXP,
		&currentRank,
		&mlCoins,
		&s.MLCoinsEarnedTotal,
		&s.MLCoinsSpentTotal,
		&s.MLCoinsEarnedToday,
		&s.LastCoinsResetAt,
		&s.CurrentStreak,
		&s.MaxStreak,
		&lastActivity,
		&s.ExercisesCompleted,
		&s.ModulesCompleted,
		&s.PerfectScores,
		&s.AverageScore,
		&s.ScoresRecorded,
		&s.AchievementsEarned,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user stats: %w", err)
	}

	s.UserID = shared.UserID(userID)
	s.Level = shared.Level(level)
	s.TotalXP = shared.XP(totalXP)
	s.CurrentRank = currentRank
	s.MLCoins = shared.Coins(mlCoins)
	if lastActivity != nil {
		s.LastActivityDate = *lastActivity
	}

	return &s, nil
}

func (r *StatsRepository) scanStatsList(rows pgx.Rows) ([]*stats.UserStats, error) {
	var list []*stats.UserStats

	for rows.Next() {
		s, err := r.scanStats(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return list, nil
}

// buildOrderBy builds ORDER BY clause from a whitelist of sort fields.
func (r *StatsRepository) buildOrderBy(opts stats.ListOptions) string {
	orderField := "total_xp"
	validFields := map[string]string{
		"total_xp":       "total_xp",
		"xp":             "total_xp",
		"level":          "level",
		"ml_coins":       "ml_coins",
		"coins":          "ml_coins",
		"current_streak": "current_streak",
		"created_at":     "created_at",
		"updated_at":     "updated_at",
	}

	if field, ok := validFields[opts.SortBy]; ok {
		orderField = field
	}

	direction := "DESC"
	if !opts.SortDesc {
		direction = "ASC"
	}

	return fmt.Sprintf(" ORDER BY %s %s", orderField, direction)
}

// nullableTime maps a zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
