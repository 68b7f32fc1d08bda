package powerup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

const testUserID = shared.UserID("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

func TestKind(t *testing.T) {
	assert.True(t, KindHint.IsValid())
	assert.True(t, KindSecondChance.IsValid())
	assert.False(t, Kind("time_freeze").IsValid())

	assert.Equal(t, 15, KindHint.Price())
	assert.Equal(t, 25, KindReadingVision.Price())
	assert.Equal(t, 40, KindSecondChance.Price())
	assert.Equal(t, 0, Kind("time_freeze").Price())

	assert.Len(t, AllKinds(), 3)
}

func TestNewInventory(t *testing.T) {
	inv, err := NewInventory(testUserID)
	assert.NoError(t, err)
	assert.Equal(t, 0, inv.Available(KindHint))

	_, err = NewInventory("")
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestAdd(t *testing.T) {
	inv, err := NewInventory(testUserID)
	assert.NoError(t, err)

	assert.NoError(t, inv.Add(KindHint, 3))
	assert.NoError(t, inv.Add(KindHint, 2))
	assert.Equal(t, 5, inv.Available(KindHint))

	assert.ErrorIs(t, inv.Add(KindHint, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, inv.Add(KindHint, -1), ErrInvalidQuantity)
	assert.ErrorIs(t, inv.Add("time_freeze", 1), ErrUnknownKind)
}

func TestUse(t *testing.T) {
	inv, err := NewInventory(testUserID)
	assert.NoError(t, err)
	assert.NoError(t, inv.Add(KindSecondChance, 2))

	assert.NoError(t, inv.Use(KindSecondChance))
	assert.NoError(t, inv.Use(KindSecondChance))
	assert.Equal(t, 0, inv.Available(KindSecondChance))
	assert.Equal(t, 2, inv.UsedTotal[KindSecondChance])

	assert.ErrorIs(t, inv.Use(KindSecondChance), ErrNoCharges)
	assert.ErrorIs(t, inv.Use(KindHint), ErrNoCharges)
	assert.ErrorIs(t, inv.Use("time_freeze"), ErrUnknownKind)
}

func TestClone_IsIndependent(t *testing.T) {
	inv, err := NewInventory(testUserID)
	assert.NoError(t, err)
	assert.NoError(t, inv.Add(KindHint, 1))

	clone := inv.Clone()
	assert.NoError(t, clone.Use(KindHint))

	assert.Equal(t, 1, inv.Available(KindHint))
	assert.Equal(t, 0, clone.Available(KindHint))
	assert.Equal(t, 0, inv.UsedTotal[KindHint])
}
