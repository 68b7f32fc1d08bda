package achievement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

func evalCtx(s *stats.UserStats, tierIndex int) EvalContext {
	return EvalContext{Stats: s, TierIndex: tierIndex}
}

func TestProgressCondition(t *testing.T) {
	c := ProgressCondition{MinExercises: 10}
	assert.NoError(t, c.Validate())

	s := &stats.UserStats{ExercisesCompleted: 7}
	assert.False(t, c.Met(evalCtx(s, 0)))
	assert.Equal(t, 7, c.Measure(evalCtx(s, 0)))

	s.ExercisesCompleted = 10
	assert.True(t, c.Met(evalCtx(s, 0)))
}

func TestProgressCondition_BothThresholds(t *testing.T) {
	c := ProgressCondition{MinExercises: 5, MinModules: 2}

	s := &stats.UserStats{ExercisesCompleted: 8, ModulesCompleted: 1}
	assert.False(t, c.Met(evalCtx(s, 0)))

	s.ModulesCompleted = 2
	assert.True(t, c.Met(evalCtx(s, 0)))
}

func TestProgressCondition_ModulesOnlyMeasuresModules(t *testing.T) {
	c := ProgressCondition{MinModules: 5}
	s := &stats.UserStats{ExercisesCompleted: 40, ModulesCompleted: 3}
	assert.Equal(t, 3, c.Measure(evalCtx(s, 0)))
}

func TestProgressCondition_Invalid(t *testing.T) {
	assert.Error(t, ProgressCondition{}.Validate())
	assert.Error(t, ProgressCondition{MinExercises: -1}.Validate())
}

func TestStreakCondition(t *testing.T) {
	c := StreakCondition{MinStreak: 7}
	assert.NoError(t, c.Validate())
	assert.Error(t, StreakCondition{}.Validate())

	s := &stats.UserStats{CurrentStreak: 6, MaxStreak: 12}
	assert.False(t, c.Met(evalCtx(s, 0)))
	assert.Equal(t, 6, c.Measure(evalCtx(s, 0)))

	s.CurrentStreak = 7
	assert.True(t, c.Met(evalCtx(s, 0)))
}

func TestLevelCondition(t *testing.T) {
	c := LevelCondition{MinLevel: 5}

	s := &stats.UserStats{Level: 4}
	assert.False(t, c.Met(evalCtx(s, 0)))

	s.Level = 5
	assert.True(t, c.Met(evalCtx(s, 0)))
	assert.Equal(t, 5, c.Measure(evalCtx(s, 0)))
}

func TestScoreCondition_AverageGuardsSampleSize(t *testing.T) {
	c := ScoreCondition{MinAverageScore: 90, MinExercises: 20}

	// A high average over too few exercises does not qualify.
	s := &stats.UserStats{AverageScore: 95, ExercisesCompleted: 3}
	assert.False(t, c.Met(evalCtx(s, 0)))

	s.ExercisesCompleted = 20
	assert.True(t, c.Met(evalCtx(s, 0)))

	s.AverageScore = 89.9
	assert.False(t, c.Met(evalCtx(s, 0)))
}

func TestScoreCondition_PerfectScores(t *testing.T) {
	c := ScoreCondition{MinPerfectScores: 5}

	s := &stats.UserStats{PerfectScores: 4, ExercisesCompleted: 30}
	assert.False(t, c.Met(evalCtx(s, 0)))
	assert.Equal(t, 4, c.Measure(evalCtx(s, 0)))

	s.PerfectScores = 5
	assert.True(t, c.Met(evalCtx(s, 0)))
}

func TestScoreCondition_Invalid(t *testing.T) {
	assert.Error(t, ScoreCondition{}.Validate())
	assert.Error(t, ScoreCondition{MinAverageScore: 101}.Validate())
	assert.Error(t, ScoreCondition{MinAverageScore: 90, MinExercises: -1}.Validate())
}

func TestRankCondition(t *testing.T) {
	c := RankCondition{MinTier: 2}

	s := &stats.UserStats{}
	assert.False(t, c.Met(evalCtx(s, 1)))
	assert.True(t, c.Met(evalCtx(s, 2)))
	assert.True(t, c.Met(evalCtx(s, 4)))
	assert.Equal(t, 4, c.Measure(evalCtx(s, 4)))
}

func TestCurrencyCondition(t *testing.T) {
	c := CurrencyCondition{MinCoinsEarned: 1000}

	s := &stats.UserStats{MLCoinsEarnedTotal: 999, MLCoins: shared.Coins(50)}
	assert.False(t, c.Met(evalCtx(s, 0)))

	// Lifetime earnings count, not the current balance.
	s.MLCoinsEarnedTotal = 1000
	assert.True(t, c.Met(evalCtx(s, 0)))
}

func TestGenericCondition(t *testing.T) {
	s := &stats.UserStats{
		TotalXP:            shared.XP(1200),
		MaxStreak:          15,
		AchievementsEarned: 4,
	}

	c := GenericCondition{Stat: StatTotalXP, Min: 1000}
	assert.NoError(t, c.Validate())
	assert.True(t, c.Met(evalCtx(s, 0)))
	assert.Equal(t, 1200, c.Measure(evalCtx(s, 0)))

	c = GenericCondition{Stat: StatMaxStreak, Min: 20}
	assert.False(t, c.Met(evalCtx(s, 0)))

	assert.Error(t, GenericCondition{Stat: "karma", Min: 1}.Validate())
	assert.Error(t, GenericCondition{Stat: StatModules, Min: 0}.Validate())
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original := ScoreCondition{MinAverageScore: 90, MinExercises: 20}

	kind, raw, err := EncodeCondition(original)
	assert.NoError(t, err)
	assert.Equal(t, KindScore, kind)

	decoded, err := DecodeCondition(kind, raw)
	assert.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeCondition_UnknownKind(t *testing.T) {
	_, err := DecodeCondition("karma", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownConditionKind)
}

func TestDecodeCondition_RejectsInvalidParameters(t *testing.T) {
	// Well-formed JSON that fails semantic validation.
	_, err := DecodeCondition(KindStreak, json.RawMessage(`{"min_streak": 0}`))
	assert.ErrorIs(t, err, ErrConditionInvalid)

	_, err = DecodeCondition(KindProgress, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrConditionInvalid)
}

func TestDecodeCondition_MalformedJSON(t *testing.T) {
	_, err := DecodeCondition(KindLevel, json.RawMessage(`{"min_level":`))
	assert.Error(t, err)
}

func TestDefaultCatalog_AllValid(t *testing.T) {
	catalog := DefaultCatalog()
	assert.NotEmpty(t, catalog)

	seen := make(map[string]bool)
	for _, def := range catalog {
		assert.False(t, seen[def.ID], "duplicate catalog ID %s", def.ID)
		seen[def.ID] = true

		assert.NoError(t, def.Condition.Validate(), "catalog entry %s", def.ID)
		assert.True(t, def.IsActive)
		assert.Greater(t, def.MaxProgress, 0)

		// Every stored condition must survive the codec.
		kind, raw, err := EncodeCondition(def.Condition)
		assert.NoError(t, err)
		decoded, err := DecodeCondition(kind, raw)
		assert.NoError(t, err)
		assert.Equal(t, def.Condition, decoded)
	}
}
