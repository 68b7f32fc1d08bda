package achievement

import (
	"errors"
	"strings"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// Domain errors for achievement entities.
var (
	ErrDefinitionIDEmpty  = errors.New("achievement: definition ID is required")
	ErrNameEmpty          = errors.New("achievement: name is required")
	ErrConditionMissing   = errors.New("achievement: condition is required")
	ErrInvalidMaxProgress = errors.New("achievement: max progress must be positive")
	ErrNegativeReward     = errors.New("achievement: rewards cannot be negative")
	ErrInvalidUserID      = errors.New("achievement: invalid user ID")
	ErrNotCompleted       = errors.New("achievement: not completed yet")
	ErrAlreadyClaimed     = errors.New("achievement: rewards already claimed")
	ErrNotRepeatable      = errors.New("achievement: not repeatable")
)

// Category groups achievements for listings.
type Category string

const (
	CategoryProgress Category = "progress"
	CategoryStreak   Category = "streak"
	CategoryMastery  Category = "mastery"
	CategoryRank     Category = "rank"
	CategoryEconomy  Category = "economy"
)

// Reward is the payload granted on claim.
type Reward struct {
	XP    int
	Coins int
}

// IsEmpty reports whether the reward grants nothing.
func (r Reward) IsEmpty() bool {
	return r.XP == 0 && r.Coins == 0
}

// Definition describes one achievement: its unlock condition, progress
// target and claimable reward.
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Condition   Condition
	MaxProgress int
	IsRepeatable bool
	// IsSecret hides the achievement from listings until earned.
	IsSecret bool
	Reward   Reward
	IsActive bool
	CreatedAt time.Time
}

// NewDefinitionParams carries everything needed to build a definition.
type NewDefinitionParams struct {
	ID           string
	Name         string
	Description  string
	Category     Category
	Condition    Condition
	MaxProgress  int
	IsRepeatable bool
	IsSecret     bool
	Reward       Reward
}

// NewDefinition validates and builds an achievement definition.
// The condition is validated here so evaluation never meets a bad one.
func NewDefinition(params NewDefinitionParams) (*Definition, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, ErrDefinitionIDEmpty
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, ErrNameEmpty
	}
	if params.Condition == nil {
		return nil, ErrConditionMissing
	}
	if err := params.Condition.Validate(); err != nil {
		return nil, err
	}
	if params.MaxProgress <= 0 {
		return nil, ErrInvalidMaxProgress
	}
	if params.Reward.XP < 0 || params.Reward.Coins < 0 {
		return nil, ErrNegativeReward
	}

	return &Definition{
		ID:           params.ID,
		Name:         params.Name,
		Description:  params.Description,
		Category:     params.Category,
		Condition:    params.Condition,
		MaxProgress:  params.MaxProgress,
		IsRepeatable: params.IsRepeatable,
		IsSecret:     params.IsSecret,
		Reward:       params.Reward,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Evaluate advances the user's record against this definition.
// Completion is decided by Condition.Met alone; Condition.Measure only
// moves the visible progress bar and is held below MaxProgress while
// the condition is unmet, so a large measure on a small progress target
// can never complete the achievement by itself.
func (d *Definition) Evaluate(record *UserAchievement, ctx EvalContext) ProgressUpdate {
	if d.Condition.Met(ctx) {
		return record.Complete(d.MaxProgress, d.IsRepeatable)
	}

	value := d.Condition.Measure(ctx)
	if value >= d.MaxProgress {
		value = d.MaxProgress - 1
	}
	return record.ApplyProgress(value, d.MaxProgress, d.IsRepeatable)
}

// UserAchievement is a user's state against one definition.
// Created lazily on the first progress write.
// Invariants: Progress <= MaxProgress of the definition;
// IsCompleted implies Progress == MaxProgress;
// RewardsClaimed implies IsCompleted.
type UserAchievement struct {
	UserID               shared.UserID
	AchievementID        string
	Progress             int
	CompletionPercentage float64 // derived, rounded to 2 decimals
	IsCompleted          bool
	CompletedAt          *time.Time
	RewardsClaimed       bool
	ClaimedAt            *time.Time
	TimesEarned          int // > 1 only for repeatable achievements
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewUserAchievement creates the lazy per-user record at zero progress.
func NewUserAchievement(userID shared.UserID, achievementID string) (*UserAchievement, error) {
	if userID.IsEmpty() {
		return nil, ErrInvalidUserID
	}
	if achievementID == "" {
		return nil, ErrDefinitionIDEmpty
	}

	now := time.Now().UTC()
	return &UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ProgressUpdate describes the outcome of an ApplyProgress call.
type ProgressUpdate struct {
	Progress      int
	Percentage    float64
	JustCompleted bool
}

// ApplyProgress moves progress to the given absolute value, clamped to
// [0, maxProgress]. The completion flag flips at most once per earn:
// a completed non-repeatable achievement ignores further writes.
func (ua *UserAchievement) ApplyProgress(value, maxProgress int, repeatable bool) ProgressUpdate {
	if ua.IsCompleted && !repeatable {
		return ProgressUpdate{Progress: ua.Progress, Percentage: ua.CompletionPercentage}
	}
	if ua.IsCompleted && repeatable {
		// A repeatable achievement must be reset before it progresses again.
		return ProgressUpdate{Progress: ua.Progress, Percentage: ua.CompletionPercentage}
	}

	if value < 0 {
		value = 0
	}
	if value > maxProgress {
		value = maxProgress
	}

	ua.Progress = value
	ua.CompletionPercentage = shared.RoundPercentage(float64(value) / float64(maxProgress) * 100)

	update := ProgressUpdate{Progress: ua.Progress, Percentage: ua.CompletionPercentage}

	if value == maxProgress && !ua.IsCompleted {
		now := time.Now().UTC()
		ua.IsCompleted = true
		ua.CompletedAt = &now
		ua.TimesEarned++
		update.JustCompleted = true
	}

	ua.UpdatedAt = time.Now().UTC()
	return update
}

// Increment adds a delta on top of current progress.
func (ua *UserAchievement) Increment(delta, maxProgress int, repeatable bool) ProgressUpdate {
	return ua.ApplyProgress(ua.Progress+delta, maxProgress, repeatable)
}

// Complete marks the achievement fully earned in one step.
func (ua *UserAchievement) Complete(maxProgress int, repeatable bool) ProgressUpdate {
	return ua.ApplyProgress(maxProgress, maxProgress, repeatable)
}

// Claim marks rewards as paid out.
// Fails with ErrNotCompleted before completion and ErrAlreadyClaimed on a
// second claim; the caller grants the payload only on success.
func (ua *UserAchievement) Claim() error {
	if !ua.IsCompleted {
		return ErrNotCompleted
	}
	if ua.RewardsClaimed {
		return ErrAlreadyClaimed
	}

	now := time.Now().UTC()
	ua.RewardsClaimed = true
	ua.ClaimedAt = &now
	ua.UpdatedAt = now
	return nil
}

// Reset re-opens a claimed repeatable achievement for another earn.
func (ua *UserAchievement) Reset(repeatable bool) error {
	if !repeatable {
		return ErrNotRepeatable
	}

	ua.Progress = 0
	ua.CompletionPercentage = 0
	ua.IsCompleted = false
	ua.CompletedAt = nil
	ua.RewardsClaimed = false
	ua.ClaimedAt = nil
	ua.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy.
func (ua *UserAchievement) Clone() *UserAchievement {
	if ua == nil {
		return nil
	}
	clone := *ua
	if ua.CompletedAt != nil {
		t := *ua.CompletedAt
		clone.CompletedAt = &t
	}
	if ua.ClaimedAt != nil {
		t := *ua.ClaimedAt
		clone.ClaimedAt = &t
	}
	return &clone
}

// UserSummary aggregates a user's achievement standing.
type UserSummary struct {
	Total          int
	Completed      int
	Claimed        int
	InProgress     int
	CompletionRate float64 // percentage, 2 decimals
}

// Summarize computes the standing over all active definitions and the
// user's records.
func Summarize(definitions []*Definition, records []*UserAchievement) UserSummary {
	byID := make(map[string]*UserAchievement, len(records))
	for _, r := range records {
		byID[r.AchievementID] = r
	}

	summary := UserSummary{Total: len(definitions)}
	for _, def := range definitions {
		r, ok := byID[def.ID]
		if !ok {
			continue
		}
		switch {
		case r.IsCompleted && r.RewardsClaimed:
			summary.Completed++
			summary.Claimed++
		case r.IsCompleted:
			summary.Completed++
		case r.Progress > 0:
			summary.InProgress++
		}
	}

	if summary.Total > 0 {
		summary.CompletionRate = shared.RoundPercentage(float64(summary.Completed) / float64(summary.Total) * 100)
	}
	return summary
}
