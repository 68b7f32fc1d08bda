package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RANK PROGRESS QUERY
// Shows where the user stands in the rank ladder: current tier, the next
// tier and the percentage towards it.
// ══════════════════════════════════════════════════════════════════════════════

// GetRankProgressQuery identifies the user.
type GetRankProgressQuery struct {
	// UserID is the queried user.
	UserID string
}

// Validate validates the query.
func (q GetRankProgressQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_rank_progress: user_id is required")
	}
	return nil
}

// TierDTO is one rank tier view.
type TierDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MinXP      int     `json:"min_xp"`
	MinModules int     `json:"min_modules"`
	CoinBonus  int     `json:"coin_bonus"`
	Multiplier float64 `json:"multiplier"`
}

// RankProgressDTO is the rank progress view.
type RankProgressDTO struct {
	UserID             string   `json:"user_id"`
	CurrentTier        TierDTO  `json:"current_tier"`
	NextTier           *TierDTO `json:"next_tier,omitempty"`
	ProgressPercentage float64  `json:"progress_percentage"`
	XPRemaining        int      `json:"xp_remaining"`
	IsMaxRank          bool     `json:"is_max_rank"`
}

// GetRankProgressHandler handles the GetRankProgressQuery.
type GetRankProgressHandler struct {
	statsRepo stats.Repository
	rankRepo  rank.Repository
	logger    *slog.Logger
}

// NewGetRankProgressHandler creates a new GetRankProgressHandler.
func NewGetRankProgressHandler(statsRepo stats.Repository, rankRepo rank.Repository, logger *slog.Logger) *GetRankProgressHandler {
	return &GetRankProgressHandler{statsRepo: statsRepo, rankRepo: rankRepo, logger: logger}
}

// Handle executes the get rank progress query.
func (h *GetRankProgressHandler) Handle(ctx context.Context, q GetRankProgressQuery) (*RankProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_rank_progress: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_rank_progress: %w", err)
	}

	userStats, err := h.statsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_rank_progress: failed to get stats: %w", err)
	}

	definition, err := h.rankRepo.Load(ctx)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Warn("rank table load failed, using default",
				slog.String("error", err.Error()))
		}
		definition = rank.DefaultDefinition()
	}

	progress := rank.CalculateProgress(userStats, definition)

	dto := &RankProgressDTO{
		UserID:             q.UserID,
		CurrentTier:        toTierDTO(progress.CurrentTier),
		ProgressPercentage: progress.ProgressPercentage,
		XPRemaining:        progress.XPRemaining,
		IsMaxRank:          progress.IsMaxRank,
	}
	if progress.NextTier != nil {
		next := toTierDTO(*progress.NextTier)
		dto.NextTier = &next
	}

	return dto, nil
}

func toTierDTO(t rank.Tier) TierDTO {
	return TierDTO{
		ID:         t.ID,
		Name:       t.Name,
		MinXP:      t.MinXP,
		MinModules: t.MinModules,
		CoinBonus:  t.CoinBonus,
		Multiplier: t.Multiplier.Float64(),
	}
}
