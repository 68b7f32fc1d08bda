package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewUserID_Normalizes(t *testing.T) {
	id, err := NewUserID("  3F2504E0-4F89-11D3-9A0C-0305E82C3301  ")
	assert.NoError(t, err)
	assert.Equal(t, UserID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"), id)
	assert.True(t, id.IsValid())
	assert.False(t, id.IsEmpty())
}

func TestNewUserID_RejectsGarbage(t *testing.T) {
	_, err := NewUserID("not-a-uuid")
	assert.Error(t, err)

	_, err = NewUserID("")
	assert.Error(t, err)
}

func TestMultiplier_Apply_RoundsHalfUp(t *testing.T) {
	m := Multiplier(1.5)
	assert.Equal(t, 30, m.Apply(20))
	assert.Equal(t, 75, m.Apply(50))

	// 5 * 1.1 = 5.5, rounds up to 6.
	assert.Equal(t, 6, Multiplier(1.1).Apply(5))
	// 3 * 1.1 = 3.3, rounds down to 3.
	assert.Equal(t, 3, Multiplier(1.1).Apply(3))

	assert.Equal(t, 0, m.Apply(0))
	assert.Equal(t, 7, BaseMultiplier.Apply(7))
}

func TestNewMultiplier_RejectsBelowBase(t *testing.T) {
	_, err := NewMultiplier(0.5)
	assert.Error(t, err)

	m, err := NewMultiplier(1.0)
	assert.NoError(t, err)
	assert.Equal(t, BaseMultiplier, m)
}

func TestXP_Level(t *testing.T) {
	// Level 1 covers 0-99, level 2 needs 100 more at 200 each step after.
	assert.Equal(t, Level(1), XP(0).Level())
	assert.Equal(t, Level(1), XP(99).Level())
	assert.Equal(t, Level(2), XP(100).Level())
	assert.Equal(t, Level(2), XP(299).Level())
	assert.Equal(t, Level(3), XP(300).Level())
	assert.Equal(t, Level(4), XP(600).Level())
}

func TestLevel_RequiredXP(t *testing.T) {
	assert.Equal(t, 0, Level(1).RequiredXP())
	assert.Equal(t, 100, Level(2).RequiredXP())
	assert.Equal(t, 300, Level(3).RequiredXP())
	assert.Equal(t, 600, Level(4).RequiredXP())
}

func TestXP_Add_CapsAtMax(t *testing.T) {
	assert.Equal(t, MaxXP, MaxXP.Add(1))
	assert.Equal(t, XP(150), XP(100).Add(50))
	assert.Equal(t, MinXP, XP(10).Add(-20))
}

func TestCoins_CanAfford(t *testing.T) {
	c := Coins(100)
	assert.True(t, c.CanAfford(100))
	assert.True(t, c.CanAfford(1))
	assert.False(t, c.CanAfford(101))
}

func TestNewCoins_RejectsNegative(t *testing.T) {
	_, err := NewCoins(-1)
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestScore_Perfect(t *testing.T) {
	s, err := NewScore(100)
	assert.NoError(t, err)
	assert.True(t, s.IsPerfect())

	s, err = NewScore(99)
	assert.NoError(t, err)
	assert.False(t, s.IsPerfect())

	_, err = NewScore(101)
	assert.Error(t, err)
	_, err = NewScore(-1)
	assert.Error(t, err)
}

func TestRoundPercentage(t *testing.T) {
	assert.Equal(t, 33.33, RoundPercentage(100.0/3.0))
	assert.Equal(t, 66.67, RoundPercentage(200.0/3.0))
	assert.Equal(t, 50.0, RoundPercentage(50))
}

func TestTimeRange_Contains(t *testing.T) {
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tr, err := NewTimeRange(from, to)
	assert.NoError(t, err)
	assert.True(t, tr.Contains(from))
	assert.True(t, tr.Contains(from.Add(12*time.Hour)))
	assert.True(t, tr.Contains(to))
	assert.False(t, tr.Contains(to.Add(time.Second)))
	assert.False(t, tr.Contains(from.Add(-time.Second)))

	_, err = NewTimeRange(to, from)
	assert.Error(t, err)
}

func TestPagination_Bounds(t *testing.T) {
	p := NewPagination(3, 25)
	assert.Equal(t, 50, p.Offset())
	assert.Equal(t, 25, p.Limit())

	p = NewPagination(0, 0)
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, DefaultPageSize, p.Limit())

	p = NewPagination(1, 500)
	assert.Equal(t, MaxPageSize, p.Limit())
}
