package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW RANK IMPACT QUERY
// Dry-runs a candidate rank table over a random sample of users and reports
// how many would be promoted or demoted and what the promotion bonuses
// would cost. Nothing is written.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultSimulationSample bounds the dry-run sample size.
const DefaultSimulationSample = 1000

// CandidateTierInput is one tier of the candidate table.
type CandidateTierInput struct {
	ID         string
	Name       string
	MinXP      int
	MinModules int
	CoinBonus  int
	Multiplier float64
}

// PreviewRankImpactQuery contains the candidate table.
type PreviewRankImpactQuery struct {
	// Tiers is the candidate table, lowest first.
	Tiers []CandidateTierInput

	// SampleSize bounds the sample (default applied).
	SampleSize int
}

// Validate validates the query and applies defaults.
func (q *PreviewRankImpactQuery) Validate() error {
	if len(q.Tiers) == 0 {
		return errors.New("preview_rank_impact: tiers are required")
	}
	if q.SampleSize <= 0 {
		q.SampleSize = DefaultSimulationSample
	}
	return nil
}

// RankImpactDTO is the dry-run report.
type RankImpactDTO struct {
	SampleSize     int     `json:"sample_size"`
	UsersAffected  int     `json:"users_affected"`
	Promotions     int     `json:"promotions"`
	Demotions      int     `json:"demotions"`
	TotalCoinDelta int     `json:"total_coin_delta"`
	AvgCoinDelta   float64 `json:"avg_coin_delta"`
}

// PreviewRankImpactHandler handles the PreviewRankImpactQuery.
type PreviewRankImpactHandler struct {
	statsRepo stats.Repository
}

// NewPreviewRankImpactHandler creates a new PreviewRankImpactHandler.
func NewPreviewRankImpactHandler(statsRepo stats.Repository) *PreviewRankImpactHandler {
	return &PreviewRankImpactHandler{statsRepo: statsRepo}
}

// Handle executes the preview rank impact query.
func (h *PreviewRankImpactHandler) Handle(ctx context.Context, q PreviewRankImpactQuery) (*RankImpactDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("preview_rank_impact: validation failed: %w", err)
	}

	tiers := make([]rank.Tier, 0, len(q.Tiers))
	for _, in := range q.Tiers {
		tiers = append(tiers, rank.Tier{
			ID:         in.ID,
			Name:       in.Name,
			MinXP:      in.MinXP,
			MinModules: in.MinModules,
			CoinBonus:  in.CoinBonus,
			Multiplier: shared.Multiplier(in.Multiplier),
		})
	}

	candidate, err := rank.NewDefinition(tiers)
	if err != nil {
		return nil, fmt.Errorf("preview_rank_impact: %w", err)
	}

	sample, err := h.statsRepo.Sample(ctx, q.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("preview_rank_impact: failed to sample users: %w", err)
	}

	result := rank.Simulate(candidate, sample)

	return &RankImpactDTO{
		SampleSize:     result.SampleSize,
		UsersAffected:  result.UsersAffected,
		Promotions:     result.Promotions,
		Demotions:      result.Demotions,
		TotalCoinDelta: result.TotalCoinDelta,
		AvgCoinDelta:   result.AvgCoinDelta,
	}, nil
}
