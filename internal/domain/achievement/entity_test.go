package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

const testUserID = shared.UserID("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

func TestNewDefinition(t *testing.T) {
	def, err := NewDefinition(NewDefinitionParams{
		ID:          "week_streak",
		Name:        "Seven in a Row",
		Category:    CategoryStreak,
		Condition:   StreakCondition{MinStreak: 7},
		MaxProgress: 7,
		Reward:      Reward{XP: 150, Coins: 75},
	})
	assert.NoError(t, err)
	assert.True(t, def.IsActive)
	assert.False(t, def.Reward.IsEmpty())
}

func TestNewDefinition_Rejections(t *testing.T) {
	valid := NewDefinitionParams{
		ID:          "a",
		Name:        "A",
		Condition:   StreakCondition{MinStreak: 1},
		MaxProgress: 1,
	}

	p := valid
	p.ID = "  "
	_, err := NewDefinition(p)
	assert.ErrorIs(t, err, ErrDefinitionIDEmpty)

	p = valid
	p.Name = ""
	_, err = NewDefinition(p)
	assert.ErrorIs(t, err, ErrNameEmpty)

	p = valid
	p.Condition = nil
	_, err = NewDefinition(p)
	assert.ErrorIs(t, err, ErrConditionMissing)

	p = valid
	p.Condition = StreakCondition{MinStreak: -1}
	_, err = NewDefinition(p)
	assert.ErrorIs(t, err, ErrConditionInvalid)

	p = valid
	p.MaxProgress = 0
	_, err = NewDefinition(p)
	assert.ErrorIs(t, err, ErrInvalidMaxProgress)

	p = valid
	p.Reward = Reward{Coins: -5}
	_, err = NewDefinition(p)
	assert.ErrorIs(t, err, ErrNegativeReward)
}

func TestApplyProgress_ClampsAndRounds(t *testing.T) {
	ua, err := NewUserAchievement(testUserID, "exercise_apprentice")
	assert.NoError(t, err)

	update := ua.ApplyProgress(3, 10, false)
	assert.Equal(t, 3, update.Progress)
	assert.Equal(t, 30.0, update.Percentage)
	assert.False(t, update.JustCompleted)

	update = ua.ApplyProgress(-4, 10, false)
	assert.Equal(t, 0, update.Progress)

	update = ua.ApplyProgress(25, 10, false)
	assert.Equal(t, 10, update.Progress)
	assert.Equal(t, 100.0, update.Percentage)
	assert.True(t, update.JustCompleted)
	assert.True(t, ua.IsCompleted)
	assert.NotNil(t, ua.CompletedAt)
	assert.Equal(t, 1, ua.TimesEarned)
}

func TestApplyProgress_CompletedIgnoresFurtherWrites(t *testing.T) {
	ua, err := NewUserAchievement(testUserID, "first_steps")
	assert.NoError(t, err)

	ua.Complete(1, false)
	assert.True(t, ua.IsCompleted)

	update := ua.ApplyProgress(0, 1, false)
	assert.False(t, update.JustCompleted)
	assert.Equal(t, 1, update.Progress)
	assert.Equal(t, 1, ua.TimesEarned)
}

func TestIncrement(t *testing.T) {
	ua, err := NewUserAchievement(testUserID, "module_marathon")
	assert.NoError(t, err)

	ua.Increment(2, 5, false)
	update := ua.Increment(2, 5, false)
	assert.Equal(t, 4, update.Progress)
	assert.Equal(t, 80.0, update.Percentage)
}

func TestClaim_Lifecycle(t *testing.T) {
	ua, err := NewUserAchievement(testUserID, "perfect_five")
	assert.NoError(t, err)

	// Claim before completion fails.
	assert.ErrorIs(t, ua.Claim(), ErrNotCompleted)

	ua.Complete(5, false)
	assert.NoError(t, ua.Claim())
	assert.True(t, ua.RewardsClaimed)
	assert.NotNil(t, ua.ClaimedAt)

	// Second claim fails.
	assert.ErrorIs(t, ua.Claim(), ErrAlreadyClaimed)
}

func TestReset_RepeatableOnly(t *testing.T) {
	ua, err := NewUserAchievement(testUserID, "week_streak")
	assert.NoError(t, err)

	ua.Complete(7, true)
	assert.NoError(t, ua.Claim())

	assert.ErrorIs(t, ua.Reset(false), ErrNotRepeatable)

	assert.NoError(t, ua.Reset(true))
	assert.False(t, ua.IsCompleted)
	assert.False(t, ua.RewardsClaimed)
	assert.Nil(t, ua.CompletedAt)
	assert.Equal(t, 0, ua.Progress)
	// Earn count is history, not state.
	assert.Equal(t, 1, ua.TimesEarned)

	// A fresh earn after the reset bumps the counter again.
	update := ua.Complete(7, true)
	assert.True(t, update.JustCompleted)
	assert.Equal(t, 2, ua.TimesEarned)
}

func TestEvaluate_UnmetConditionNeverCompletes(t *testing.T) {
	def, err := NewDefinition(NewDefinitionParams{
		ID:          "sharp_mind",
		Name:        "Sharp Mind",
		Condition:   ScoreCondition{MinAverageScore: 90, MinExercises: 20},
		MaxProgress: 1,
		Reward:      Reward{XP: 300, Coins: 200},
	})
	assert.NoError(t, err)

	record, err := NewUserAchievement(testUserID, "sharp_mind")
	assert.NoError(t, err)

	// One mediocre exercise: the measure (the running average) dwarfs
	// the 1-step progress target but the condition itself is unmet.
	s := &stats.UserStats{AverageScore: 50, ExercisesCompleted: 1, ScoresRecorded: 1}
	update := def.Evaluate(record, evalCtx(s, 0))
	assert.False(t, update.JustCompleted)
	assert.False(t, record.IsCompleted)
	assert.Equal(t, 0, record.Progress)

	// Once the condition holds, evaluation completes in one step.
	s.AverageScore = 92
	s.ExercisesCompleted = 20
	update = def.Evaluate(record, evalCtx(s, 0))
	assert.True(t, update.JustCompleted)
	assert.Equal(t, 1, record.Progress)
}

func TestEvaluate_MeasureDrivesPartialProgress(t *testing.T) {
	def, err := NewDefinition(NewDefinitionParams{
		ID:          "scholar",
		Name:        "Scholar",
		Condition:   ProgressCondition{MinExercises: 100},
		MaxProgress: 100,
	})
	assert.NoError(t, err)

	record, err := NewUserAchievement(testUserID, "scholar")
	assert.NoError(t, err)

	s := &stats.UserStats{ExercisesCompleted: 40}
	update := def.Evaluate(record, evalCtx(s, 0))
	assert.False(t, update.JustCompleted)
	assert.Equal(t, 40, record.Progress)
	assert.Equal(t, 40.0, record.CompletionPercentage)

	s.ExercisesCompleted = 100
	update = def.Evaluate(record, evalCtx(s, 0))
	assert.True(t, update.JustCompleted)
	assert.Equal(t, 1, record.TimesEarned)
}

func TestNewUserAchievement_Invalid(t *testing.T) {
	_, err := NewUserAchievement("", "first_steps")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewUserAchievement(testUserID, "")
	assert.ErrorIs(t, err, ErrDefinitionIDEmpty)
}

func TestClone_DeepCopiesTimestamps(t *testing.T) {
	ua, err := NewUserAchievement(testUserID, "first_steps")
	assert.NoError(t, err)
	ua.Complete(1, false)
	assert.NoError(t, ua.Claim())

	clone := ua.Clone()
	assert.NoError(t, clone.Reset(true))

	assert.True(t, ua.IsCompleted)
	assert.NotNil(t, ua.CompletedAt)
	assert.False(t, clone.IsCompleted)
}

func TestSummarize(t *testing.T) {
	defs := []*Definition{
		{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"},
	}

	completed, err := NewUserAchievement(testUserID, "a")
	assert.NoError(t, err)
	completed.Complete(1, false)

	claimed, err := NewUserAchievement(testUserID, "b")
	assert.NoError(t, err)
	claimed.Complete(1, false)
	assert.NoError(t, claimed.Claim())

	inProgress, err := NewUserAchievement(testUserID, "c")
	assert.NoError(t, err)
	inProgress.ApplyProgress(3, 10, false)

	summary := Summarize(defs, []*UserAchievement{completed, claimed, inProgress})
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Claimed)
	assert.Equal(t, 1, summary.InProgress)
	assert.Equal(t, 50.0, summary.CompletionRate)
}
