package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/achievement"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENT STATS QUERY
// Lists the user's achievements with progress and the overall completion
// rate. Secret achievements stay hidden until completed.
// ══════════════════════════════════════════════════════════════════════════════

// GetAchievementStatsQuery identifies the user.
type GetAchievementStatsQuery struct {
	// UserID is the queried user.
	UserID string

	// IncludeSecret reveals uncompleted secret achievements (admin views).
	IncludeSecret bool
}

// Validate validates the query.
func (q GetAchievementStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_achievement_stats: user_id is required")
	}
	return nil
}

// AchievementDTO is one achievement view with the user's progress.
type AchievementDTO struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Category             string     `json:"category"`
	RewardXP             int        `json:"reward_xp"`
	RewardCoins          int        `json:"reward_coins"`
	IsSecret             bool       `json:"is_secret"`
	Progress             int        `json:"progress"`
	MaxProgress          int        `json:"max_progress"`
	CompletionPercentage float64    `json:"completion_percentage"`
	IsCompleted          bool       `json:"is_completed"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	RewardsClaimed       bool       `json:"rewards_claimed"`
}

// AchievementStatsDTO is the full achievements view.
type AchievementStatsDTO struct {
	UserID         string           `json:"user_id"`
	Achievements   []AchievementDTO `json:"achievements"`
	TotalActive    int              `json:"total_active"`
	Completed      int              `json:"completed"`
	Claimed        int              `json:"claimed"`
	CompletionRate float64          `json:"completion_rate"`
}

// GetAchievementStatsHandler handles the GetAchievementStatsQuery.
type GetAchievementStatsHandler struct {
	definitionRepo achievement.DefinitionRepository
	userAchRepo    achievement.UserRepository
}

// NewGetAchievementStatsHandler creates a new GetAchievementStatsHandler.
func NewGetAchievementStatsHandler(
	definitionRepo achievement.DefinitionRepository,
	userAchRepo achievement.UserRepository,
) *GetAchievementStatsHandler {
	return &GetAchievementStatsHandler{
		definitionRepo: definitionRepo,
		userAchRepo:    userAchRepo,
	}
}

// Handle executes the get achievement stats query.
func (h *GetAchievementStatsHandler) Handle(ctx context.Context, q GetAchievementStatsQuery) (*AchievementStatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_achievement_stats: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_achievement_stats: %w", err)
	}

	definitions, err := h.definitionRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_achievement_stats: failed to list definitions: %w", err)
	}

	records, err := h.userAchRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_achievement_stats: failed to list records: %w", err)
	}

	recordByID := make(map[string]*achievement.UserAchievement, len(records))
	for _, r := range records {
		recordByID[r.AchievementID] = r
	}

	summary := achievement.Summarize(definitions, records)

	dto := &AchievementStatsDTO{
		UserID:         q.UserID,
		Achievements:   make([]AchievementDTO, 0, len(definitions)),
		TotalActive:    summary.Total,
		Completed:      summary.Completed,
		Claimed:        summary.Claimed,
		CompletionRate: summary.CompletionRate,
	}

	for _, def := range definitions {
		record := recordByID[def.ID]
		completed := record != nil && record.IsCompleted

		// Secret achievements are invisible until earned.
		if def.IsSecret && !completed && !q.IncludeSecret {
			continue
		}

		item := AchievementDTO{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Category:    string(def.Category),
			RewardXP:    def.Reward.XP,
			RewardCoins: def.Reward.Coins,
			IsSecret:    def.IsSecret,
			MaxProgress: def.MaxProgress,
		}
		if record != nil {
			item.Progress = record.Progress
			item.CompletionPercentage = record.CompletionPercentage
			item.IsCompleted = record.IsCompleted
			item.CompletedAt = record.CompletedAt
			item.RewardsClaimed = record.RewardsClaimed
		}
		dto.Achievements = append(dto.Achievements, item)
	}

	return dto, nil
}
