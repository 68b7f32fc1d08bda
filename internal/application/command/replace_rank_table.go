package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPLACE RANK TABLE COMMAND
// Swaps the active rank table for a new one. Users are not rewritten here:
// each user's rank is recomputed lazily on their next reward, which is when
// promotions and demotions against the new table take effect.
// ══════════════════════════════════════════════════════════════════════════════

// TierInput is one tier of the proposed table.
type TierInput struct {
	ID         string
	Name       string
	MinXP      int
	MinModules int
	CoinBonus  int
	Multiplier float64
}

// ReplaceRankTableCommand contains the proposed table.
type ReplaceRankTableCommand struct {
	// Tiers is the full replacement table, lowest first.
	Tiers []TierInput

	// ChangedBy identifies the administrator.
	ChangedBy string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command shape. Table semantics are validated by
// rank.NewDefinition.
func (c ReplaceRankTableCommand) Validate() error {
	if len(c.Tiers) == 0 {
		return errors.New("replace_rank_table: tiers are required")
	}

	if c.ChangedBy == "" {
		return errors.New("replace_rank_table: changed_by is required")
	}

	return nil
}

// ReplaceRankTableResult confirms the swap.
type ReplaceRankTableResult struct {
	// TierCount is the size of the new table.
	TierCount int

	// ReplacedAt is when the table became active.
	ReplacedAt time.Time
}

// ReplaceRankTableHandler handles the ReplaceRankTableCommand.
type ReplaceRankTableHandler struct {
	rankRepo rank.Repository
	logger   *slog.Logger
}

// NewReplaceRankTableHandler creates a new ReplaceRankTableHandler.
func NewReplaceRankTableHandler(rankRepo rank.Repository, logger *slog.Logger) *ReplaceRankTableHandler {
	return &ReplaceRankTableHandler{rankRepo: rankRepo, logger: logger}
}

// Handle executes the replace rank table command.
func (h *ReplaceRankTableHandler) Handle(ctx context.Context, cmd ReplaceRankTableCommand) (*ReplaceRankTableResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("replace_rank_table: validation failed: %w", err)
	}

	definition, err := buildDefinition(cmd.Tiers)
	if err != nil {
		return nil, fmt.Errorf("replace_rank_table: %w", err)
	}

	if err := h.rankRepo.Replace(ctx, definition, cmd.ChangedBy); err != nil {
		return nil, fmt.Errorf("replace_rank_table: failed to store: %w", err)
	}

	h.logger.Info("rank table replaced",
		slog.String("changed_by", cmd.ChangedBy),
		slog.Int("tier_count", definition.Len()))

	return &ReplaceRankTableResult{
		TierCount:  definition.Len(),
		ReplacedAt: time.Now().UTC(),
	}, nil
}

// buildDefinition converts tier inputs into a validated definition.
func buildDefinition(inputs []TierInput) (*rank.Definition, error) {
	tiers := make([]rank.Tier, 0, len(inputs))
	for _, in := range inputs {
		tiers = append(tiers, rank.Tier{
			ID:         in.ID,
			Name:       in.Name,
			MinXP:      in.MinXP,
			MinModules: in.MinModules,
			CoinBonus:  in.CoinBonus,
			Multiplier: shared.Multiplier(in.Multiplier),
		})
	}
	return rank.NewDefinition(tiers)
}
