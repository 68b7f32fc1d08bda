package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/application/query"
	"github.com/gamilit/rewards-engine/internal/domain/multiplier"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
	"github.com/gamilit/rewards-engine/pkg/retry"
	"github.com/gamilit/rewards-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY MAINTENANCE SAGA
// Midnight housekeeping for the platform day: resets daily coin counters,
// purges expired multiplier boosts and spot-audits balances against the
// ledger. Every step is safe to rerun; rewards also reset counters lazily
// on the first credit of a new day.
// ══════════════════════════════════════════════════════════════════════════════

// DailyMaintenanceResult summarizes one run.
type DailyMaintenanceResult struct {
	// CountersReset is the number of users whose daily counters reset.
	CountersReset int

	// MultipliersPurged is the number of removed expired sources.
	MultipliersPurged int

	// UsersAudited and Inconsistencies describe the balance spot check.
	UsersAudited    int
	Inconsistencies int

	// Failures counts users a step could not process.
	Failures int

	// Duration is the wall time of the run.
	Duration time.Duration
}

// DailyMaintenanceSaga runs the midnight housekeeping.
type DailyMaintenanceSaga struct {
	statsRepo      stats.Repository
	multiplierRepo multiplier.Repository
	auditor        *query.AuditBalanceHandler
	locks          *keylock.KeyLock
	retrier        *retry.Retrier
	logger         *slog.Logger

	batchSize  int
	auditLimit int
}

// NewDailyMaintenanceSaga creates a new DailyMaintenanceSaga.
func NewDailyMaintenanceSaga(
	statsRepo stats.Repository,
	multiplierRepo multiplier.Repository,
	auditor *query.AuditBalanceHandler,
	locks *keylock.KeyLock,
	logger *slog.Logger,
) *DailyMaintenanceSaga {
	return &DailyMaintenanceSaga{
		statsRepo:      statsRepo,
		multiplierRepo: multiplierRepo,
		auditor:        auditor,
		locks:          locks,
		retrier:        retry.OptimisticLockRetrier(shared.IsRetryable),
		logger:         logger,
		batchSize:      500,
		auditLimit:     50,
	}
}

// Run executes all maintenance steps. Steps are independent: a failing
// step logs and the next one still runs.
func (s *DailyMaintenanceSaga) Run(ctx context.Context) (*DailyMaintenanceResult, error) {
	started := time.Now()
	result := &DailyMaintenanceResult{}

	if err := s.resetCounters(ctx, result); err != nil {
		s.logger.Error("daily counter reset failed", slog.String("error", err.Error()))
		result.Failures++
	}

	if err := s.purgeMultipliers(ctx, result); err != nil {
		s.logger.Error("multiplier purge failed", slog.String("error", err.Error()))
		result.Failures++
	}

	if err := s.auditBalances(ctx, result); err != nil {
		s.logger.Error("balance audit failed", slog.String("error", err.Error()))
		result.Failures++
	}

	result.Duration = time.Since(started)
	s.logger.Info("daily maintenance finished",
		slog.Int("counters_reset", result.CountersReset),
		slog.Int("multipliers_purged", result.MultipliersPurged),
		slog.Int("users_audited", result.UsersAudited),
		slog.Int("inconsistencies", result.Inconsistencies),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// resetCounters resets stale daily coin counters in batches.
func (s *DailyMaintenanceSaga) resetCounters(ctx context.Context, result *DailyMaintenanceResult) error {
	now := timeutil.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stale, err := s.statsRepo.FindStaleDailyCounters(ctx, now, s.batchSize)
		if err != nil {
			return fmt.Errorf("find stale counters: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}

		resetInBatch := 0
		for _, snapshot := range stale {
			userID := snapshot.UserID
			err := s.locks.WithLock(string(userID), func() error {
				return s.retrier.Do(ctx, func(ctx context.Context) error {
					userStats, getErr := s.statsRepo.GetByUserID(ctx, userID)
					if getErr != nil {
						return getErr
					}
					if !userStats.NeedsDailyReset(now) {
						// A concurrent reward already reset it lazily.
						return nil
					}
					userStats.ResetDailyCounters(now)
					return s.statsRepo.Save(ctx, userStats)
				})
			})
			if err != nil {
				result.Failures++
				s.logger.Error("counter reset failed for user",
					slog.String("user_id", string(userID)),
					slog.String("error", err.Error()))
				continue
			}
			result.CountersReset++
			resetInBatch++
		}

		// A batch where every save failed would page back the exact same
		// rows; stop instead of spinning and let the next run retry.
		if resetInBatch == 0 {
			return fmt.Errorf("counter reset made no progress in a batch of %d", len(stale))
		}

		if len(stale) < s.batchSize {
			return nil
		}
	}
}

// purgeMultipliers removes long-expired temporary sources. Recent expiries
// are kept briefly so breakdowns can still show what just ended.
func (s *DailyMaintenanceSaga) purgeMultipliers(ctx context.Context, result *DailyMaintenanceResult) error {
	cutoff := time.Now().UTC().Add(-48 * time.Hour)

	purged, err := s.multiplierRepo.PurgeExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge expired: %w", err)
	}

	result.MultipliersPurged = purged
	return nil
}

// auditBalances replays the ledger for a random sample of users.
func (s *DailyMaintenanceSaga) auditBalances(ctx context.Context, result *DailyMaintenanceResult) error {
	sample, err := s.statsRepo.Sample(ctx, s.auditLimit)
	if err != nil {
		return fmt.Errorf("sample users: %w", err)
	}

	for _, userStats := range sample {
		report, auditErr := s.auditor.Handle(ctx, query.AuditBalanceQuery{UserID: string(userStats.UserID)})
		if auditErr != nil {
			result.Failures++
			continue
		}
		result.UsersAudited++
		if !report.Consistent {
			result.Inconsistencies++
		}
	}

	return nil
}
