package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

const testUserID = shared.UserID("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

func newTestStats(t *testing.T) *UserStats {
	t.Helper()
	s, err := NewUserStats(NewUserStatsParams{
		UserID:         testUserID,
		InitialBalance: 500,
		InitialRank:    "ajaw",
	})
	assert.NoError(t, err)
	return s
}

func TestNewUserStats(t *testing.T) {
	s := newTestStats(t)

	assert.Equal(t, testUserID, s.UserID)
	assert.Equal(t, shared.Level(1), s.Level)
	assert.Equal(t, shared.XP(0), s.TotalXP)
	assert.Equal(t, "ajaw", s.CurrentRank)
	assert.Equal(t, shared.Coins(500), s.MLCoins)
	assert.Equal(t, 500, s.MLCoinsEarnedTotal)
	assert.Equal(t, 0, s.MLCoinsEarnedToday)
	assert.Equal(t, 0, s.Version)
}

func TestNewUserStats_Invalid(t *testing.T) {
	_, err := NewUserStats(NewUserStatsParams{UserID: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewUserStats(NewUserStatsParams{UserID: testUserID, InitialBalance: -10})
	assert.ErrorIs(t, err, ErrNegativeCoins)
}

func TestAddXP_LevelsUp(t *testing.T) {
	s := newTestStats(t)

	result, err := s.AddXP(75)
	assert.NoError(t, err)
	assert.Equal(t, 75, result.NewTotal)
	assert.False(t, result.LeveledUp)
	assert.Equal(t, shared.Level(1), s.Level)

	// Crossing 100 total XP reaches level 2.
	result, err = s.AddXP(30)
	assert.NoError(t, err)
	assert.Equal(t, 105, result.NewTotal)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, shared.Level(1), result.OldLevel)
	assert.Equal(t, shared.Level(2), result.NewLevel)
}

func TestAddXP_RejectsNegative(t *testing.T) {
	s := newTestStats(t)
	_, err := s.AddXP(-5)
	assert.ErrorIs(t, err, ErrNegativeXP)
	assert.Equal(t, shared.XP(0), s.TotalXP)
}

func TestCreditCoins(t *testing.T) {
	s := newTestStats(t)

	assert.NoError(t, s.CreditCoins(30))
	assert.Equal(t, shared.Coins(530), s.MLCoins)
	assert.Equal(t, 530, s.MLCoinsEarnedTotal)
	assert.Equal(t, 30, s.MLCoinsEarnedToday)

	assert.ErrorIs(t, s.CreditCoins(0), ErrNegativeCoins)
	assert.ErrorIs(t, s.CreditCoins(-10), ErrNegativeCoins)
}

func TestDebitCoins(t *testing.T) {
	s := newTestStats(t)

	assert.NoError(t, s.DebitCoins(200))
	assert.Equal(t, shared.Coins(300), s.MLCoins)
	assert.Equal(t, 200, s.MLCoinsSpentTotal)
}

func TestDebitCoins_InsufficientLeavesStateUntouched(t *testing.T) {
	s := newTestStats(t)

	err := s.DebitCoins(501)
	assert.ErrorIs(t, err, ErrInsufficientCoins)
	assert.Equal(t, shared.Coins(500), s.MLCoins)
	assert.Equal(t, 0, s.MLCoinsSpentTotal)
}

func TestDailyReset(t *testing.T) {
	s := newTestStats(t)
	assert.NoError(t, s.CreditCoins(40))
	assert.Equal(t, 40, s.MLCoinsEarnedToday)

	now := s.LastCoinsResetAt
	assert.False(t, s.NeedsDailyReset(now))

	tomorrow := now.AddDate(0, 0, 1)
	assert.True(t, s.NeedsDailyReset(tomorrow))

	s.ResetDailyCounters(tomorrow)
	assert.Equal(t, 0, s.MLCoinsEarnedToday)
	assert.Equal(t, tomorrow, s.LastCoinsResetAt)
	assert.False(t, s.NeedsDailyReset(tomorrow))

	// Lifetime totals survive the reset.
	assert.Equal(t, 540, s.MLCoinsEarnedTotal)
}

func TestNeedsDailyReset_PlatformDayBoundary(t *testing.T) {
	s := newTestStats(t)

	// 03:00 UTC is still the previous evening in the platform timezone,
	// so noon UTC of the same calendar date is already a new day there.
	s.LastCoinsResetAt = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	assert.True(t, s.NeedsDailyReset(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))

	// Crossing UTC midnight alone does not start a new platform day.
	s.LastCoinsResetAt = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.False(t, s.NeedsDailyReset(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC)))
}

func TestRecordDailyActivity_StartsStreak(t *testing.T) {
	s := newTestStats(t)
	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	result := s.RecordDailyActivity(day)
	assert.True(t, result.Changed)
	assert.False(t, result.WasReset)
	assert.Equal(t, 1, result.Current)
	assert.Equal(t, 1, result.Max)
}

func TestRecordDailyActivity_SameDayIsNoOp(t *testing.T) {
	s := newTestStats(t)
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s.RecordDailyActivity(day)
	result := s.RecordDailyActivity(day.Add(5 * time.Hour))
	assert.False(t, result.Changed)
	assert.Equal(t, 1, result.Current)
}

func TestRecordDailyActivity_ConsecutiveDaysGrow(t *testing.T) {
	s := newTestStats(t)
	day := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	s.RecordDailyActivity(day)
	s.RecordDailyActivity(day.AddDate(0, 0, 1))
	result := s.RecordDailyActivity(day.AddDate(0, 0, 2))

	assert.Equal(t, 3, result.Current)
	assert.Equal(t, 3, result.Max)
}

func TestRecordDailyActivity_GapResetsToOne(t *testing.T) {
	s := newTestStats(t)
	day := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	s.RecordDailyActivity(day)
	s.RecordDailyActivity(day.AddDate(0, 0, 1))
	result := s.RecordDailyActivity(day.AddDate(0, 0, 4))

	assert.True(t, result.WasReset)
	assert.Equal(t, 1, result.Current)
	// The record stays.
	assert.Equal(t, 2, result.Max)
}

func TestRecordExercise_IncrementalAverage(t *testing.T) {
	s := newTestStats(t)

	assert.NoError(t, s.RecordExercise(80))
	assert.NoError(t, s.RecordExercise(100))
	assert.NoError(t, s.RecordExercise(90))

	assert.Equal(t, 3, s.ExercisesCompleted)
	assert.Equal(t, 3, s.ScoresRecorded)
	assert.Equal(t, 1, s.PerfectScores)
	assert.InDelta(t, 90.0, s.AverageScore, 0.001)
}

func TestRecordExercise_RejectsOutOfRange(t *testing.T) {
	s := newTestStats(t)
	assert.ErrorIs(t, s.RecordExercise(101), ErrInvalidScore)
	assert.ErrorIs(t, s.RecordExercise(-1), ErrInvalidScore)
	assert.Equal(t, 0, s.ExercisesCompleted)
}

func TestCounters(t *testing.T) {
	s := newTestStats(t)

	s.RecordModule()
	s.RecordModule()
	s.RecordAchievement()
	s.SetRank("nacom")

	assert.Equal(t, 2, s.ModulesCompleted)
	assert.Equal(t, 1, s.AchievementsEarned)
	assert.Equal(t, "nacom", s.CurrentRank)
}

func TestClone_IsIndependent(t *testing.T) {
	s := newTestStats(t)
	clone := s.Clone()

	assert.NoError(t, clone.CreditCoins(100))
	assert.Equal(t, shared.Coins(500), s.MLCoins)
	assert.Equal(t, shared.Coins(600), clone.MLCoins)

	var nilStats *UserStats
	assert.Nil(t, nilStats.Clone())
}
