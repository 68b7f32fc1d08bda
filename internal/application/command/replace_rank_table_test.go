package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

func validTierInputs() []TierInput {
	return []TierInput{
		{ID: "novice", Name: "Novice", MinXP: 0, Multiplier: 1.0},
		{ID: "scholar", Name: "Scholar", MinXP: 400, CoinBonus: 80, Multiplier: 1.2},
		{ID: "sage", Name: "Sage", MinXP: 1200, MinModules: 3, CoinBonus: 200, Multiplier: 1.5},
	}
}

func TestReplaceRankTable_SwapsActiveTable(t *testing.T) {
	rankRepo := &fakeRankRepo{}
	handler := NewReplaceRankTableHandler(rankRepo, testLogger())

	result, err := handler.Handle(context.Background(), ReplaceRankTableCommand{
		Tiers:     validTierInputs(),
		ChangedBy: "admin@gamilit.kz",
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, result.TierCount)

	def, err := rankRepo.Load(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, def.Len())
	assert.Equal(t, "novice", def.Lowest().ID)
}

func TestReplaceRankTable_RecordsHistory(t *testing.T) {
	rankRepo := &fakeRankRepo{}
	handler := NewReplaceRankTableHandler(rankRepo, testLogger())

	cmd := ReplaceRankTableCommand{Tiers: validTierInputs(), ChangedBy: "admin"}

	_, err := handler.Handle(context.Background(), cmd)
	assert.NoError(t, err)
	_, err = handler.Handle(context.Background(), cmd)
	assert.NoError(t, err)

	history, err := rankRepo.History(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, "admin", history[0].ChangedBy)
}

func TestReplaceRankTable_RejectsInvalidTable(t *testing.T) {
	rankRepo := &fakeRankRepo{}
	handler := NewReplaceRankTableHandler(rankRepo, testLogger())

	// A single tier is not a ladder.
	_, err := handler.Handle(context.Background(), ReplaceRankTableCommand{
		Tiers:     validTierInputs()[:1],
		ChangedBy: "admin",
	})
	var tableErr *shared.InvalidRankTableError
	assert.ErrorAs(t, err, &tableErr)

	// Thresholds must strictly increase.
	tiers := validTierInputs()
	tiers[2].MinXP = tiers[1].MinXP
	_, err = handler.Handle(context.Background(), ReplaceRankTableCommand{
		Tiers:     tiers,
		ChangedBy: "admin",
	})
	assert.ErrorAs(t, err, &tableErr)

	// The rejected tables never reached the store.
	_, err = rankRepo.Load(context.Background())
	assert.True(t, shared.IsNotFound(err))
}

func TestReplaceRankTable_Validation(t *testing.T) {
	handler := NewReplaceRankTableHandler(&fakeRankRepo{}, testLogger())

	_, err := handler.Handle(context.Background(), ReplaceRankTableCommand{ChangedBy: "admin"})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), ReplaceRankTableCommand{Tiers: validTierInputs()})
	assert.Error(t, err)
}
