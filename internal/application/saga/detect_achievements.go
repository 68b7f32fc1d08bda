// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/achievement"
	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT ACHIEVEMENTS SAGA
// Batch sweep over user statistics: evaluates every active achievement
// against every user's snapshot and records newly met ones. The reward
// path detects inline; this sweep catches users whose achievements were
// added or changed after their last activity.
//
// Flow: Load Definitions → Page Users → Evaluate Under Lock →
//
//	Save Progress → Publish Unlock Events
//
// ══════════════════════════════════════════════════════════════════════════════

// DetectAchievementsInput controls the sweep.
type DetectAchievementsInput struct {
	// UserIDs limits the sweep to specific users (empty = all users).
	UserIDs []string

	// Concurrency bounds the number of users processed in parallel.
	Concurrency int

	// PageSize bounds each page of the full-table sweep.
	PageSize int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate checks the input and applies defaults.
func (i *DetectAchievementsInput) Validate() error {
	if i.Concurrency <= 0 {
		i.Concurrency = 8
	}
	if i.Concurrency > 64 {
		i.Concurrency = 64
	}
	if i.PageSize <= 0 {
		i.PageSize = 200
	}
	return nil
}

// DetectAchievementsResult summarizes the sweep.
type DetectAchievementsResult struct {
	// UsersScanned is the number of users evaluated.
	UsersScanned int

	// UsersUpdated is the number of users with at least one progress write.
	UsersUpdated int

	// AchievementsUnlocked is the total of newly completed achievements.
	AchievementsUnlocked int

	// Failures counts users the sweep could not process.
	Failures int

	// Duration is the wall time of the sweep.
	Duration time.Duration
}

// DetectAchievementsSaga runs the batch detection sweep.
type DetectAchievementsSaga struct {
	statsRepo      stats.Repository
	definitionRepo achievement.DefinitionRepository
	userAchRepo    achievement.UserRepository
	rankRepo       rank.Repository
	locks          *keylock.KeyLock
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewDetectAchievementsSaga creates a new DetectAchievementsSaga.
func NewDetectAchievementsSaga(
	statsRepo stats.Repository,
	definitionRepo achievement.DefinitionRepository,
	userAchRepo achievement.UserRepository,
	rankRepo rank.Repository,
	locks *keylock.KeyLock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *DetectAchievementsSaga {
	return &DetectAchievementsSaga{
		statsRepo:      statsRepo,
		definitionRepo: definitionRepo,
		userAchRepo:    userAchRepo,
		rankRepo:       rankRepo,
		locks:          locks,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Run executes the sweep.
func (s *DetectAchievementsSaga) Run(ctx context.Context, input DetectAchievementsInput) (*DetectAchievementsResult, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("detect_achievements: validation failed: %w", err)
	}

	started := time.Now()

	definitions, err := s.definitionRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect_achievements: failed to list definitions: %w", err)
	}
	if len(definitions) == 0 {
		return &DetectAchievementsResult{Duration: time.Since(started)}, nil
	}

	rankDef, err := s.rankRepo.Load(ctx)
	if err != nil {
		if !shared.IsNotFound(err) {
			s.logger.Warn("rank table load failed, using default",
				slog.String("error", err.Error()))
		}
		rankDef = rank.DefaultDefinition()
	}

	result := &DetectAchievementsResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, input.Concurrency)

	process := func(userStats *stats.UserStats) {
		defer wg.Done()
		defer func() { <-sem }()

		unlocked, updated, procErr := s.processUser(ctx, userStats, definitions, rankDef)

		mu.Lock()
		defer mu.Unlock()
		result.UsersScanned++
		switch {
		case procErr != nil:
			result.Failures++
			s.logger.Error("achievement sweep failed for user",
				slog.String("user_id", string(userStats.UserID)),
				slog.String("error", procErr.Error()))
		case updated:
			result.UsersUpdated++
			result.AchievementsUnlocked += unlocked
		}
	}

	err = s.forEachUser(ctx, input, func(userStats *stats.UserStats) {
		sem <- struct{}{}
		wg.Add(1)
		go process(userStats)
	})
	wg.Wait()

	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(started)
	s.logger.Info("achievement sweep finished",
		slog.Int("scanned", result.UsersScanned),
		slog.Int("updated", result.UsersUpdated),
		slog.Int("unlocked", result.AchievementsUnlocked),
		slog.Int("failures", result.Failures),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// forEachUser streams the target users, either the explicit list or the
// whole table page by page.
func (s *DetectAchievementsSaga) forEachUser(
	ctx context.Context,
	input DetectAchievementsInput,
	fn func(*stats.UserStats),
) error {
	if len(input.UserIDs) > 0 {
		ids := make([]shared.UserID, 0, len(input.UserIDs))
		for _, raw := range input.UserIDs {
			id, err := shared.NewUserID(raw)
			if err != nil {
				return fmt.Errorf("detect_achievements: %w", err)
			}
			ids = append(ids, id)
		}
		users, err := s.statsRepo.GetByUserIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("detect_achievements: failed to load users: %w", err)
		}
		for _, u := range users {
			fn(u)
		}
		return nil
	}

	opts := stats.DefaultListOptions().WithLimit(input.PageSize)
	for offset := 0; ; offset += input.PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.statsRepo.GetAll(ctx, opts.WithOffset(offset))
		if err != nil {
			return fmt.Errorf("detect_achievements: failed to page users: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, u := range page {
			fn(u)
		}
		if len(page) < input.PageSize {
			return nil
		}
	}
}

// processUser evaluates one user under their lock and persists progress.
// Returns how many achievements completed and whether anything was written.
func (s *DetectAchievementsSaga) processUser(
	ctx context.Context,
	snapshot *stats.UserStats,
	definitions []*achievement.Definition,
	rankDef *rank.Definition,
) (int, bool, error) {
	unlocked := 0
	updated := false
	var events []shared.Event

	err := s.locks.WithLock(string(snapshot.UserID), func() error {
		// Re-read under the lock: the paged snapshot may be stale.
		userStats, err := s.statsRepo.GetByUserID(ctx, snapshot.UserID)
		if err != nil {
			return err
		}

		records, err := s.userAchRepo.ListForUser(ctx, userStats.UserID)
		if err != nil {
			return err
		}
		recordByID := make(map[string]*achievement.UserAchievement, len(records))
		for _, r := range records {
			recordByID[r.AchievementID] = r
		}

		tierIndex := rankDef.IndexOf(userStats.CurrentRank)
		if tierIndex < 0 {
			tierIndex = 0
		}
		evalCtx := achievement.EvalContext{Stats: userStats, TierIndex: tierIndex}

		completedNow := 0
		for _, def := range definitions {
			record, ok := recordByID[def.ID]
			if !ok {
				record, err = achievement.NewUserAchievement(userStats.UserID, def.ID)
				if err != nil {
					return err
				}
			}
			if record.IsCompleted {
				continue
			}

			update := def.Evaluate(record, evalCtx)
			if update.Progress == 0 && !update.JustCompleted {
				continue
			}

			if err = s.userAchRepo.Save(ctx, record); err != nil {
				return err
			}
			updated = true

			if update.JustCompleted {
				completedNow++
				events = append(events, shared.NewAchievementUnlockedEvent(
					string(userStats.UserID), def.ID, def.Name,
					def.Reward.XP, def.Reward.Coins, def.IsSecret,
				))
			}
		}

		if completedNow > 0 {
			for i := 0; i < completedNow; i++ {
				userStats.RecordAchievement()
			}
			if err = s.statsRepo.Save(ctx, userStats); err != nil {
				// The counter is derivable from the records; a version
				// conflict here is not worth failing the sweep.
				if !errors.Is(err, shared.ErrConcurrentModification) {
					return err
				}
				s.logger.Warn("achievement counter save conflicted",
					slog.String("user_id", string(userStats.UserID)))
			}
			unlocked = completedNow
		}

		return nil
	})
	if err != nil {
		return 0, false, err
	}

	for _, event := range events {
		if publishErr := s.eventPublisher.Publish(event); publishErr != nil {
			s.logger.Error("event publish failed",
				slog.String("event_type", string(event.EventType())),
				slog.String("error", publishErr.Error()))
		}
	}

	return unlocked, updated, nil
}
