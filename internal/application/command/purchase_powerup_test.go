package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/powerup"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
)

func newPurchasePowerUpEnv(t *testing.T, balance int) (*PurchasePowerUpHandler, *fakeStore, *fakePowerupRepo, *capturingPublisher) {
	t.Helper()
	store := newFakeStore()
	powerupRepo := newFakePowerupRepo()
	publisher := &capturingPublisher{}

	s, err := stats.NewUserStats(stats.NewUserStatsParams{
		UserID:         shared.UserID(testUser),
		InitialBalance: balance,
		InitialRank:    "ajaw",
	})
	assert.NoError(t, err)
	store.put(s)

	handler := NewPurchasePowerUpHandler(store, powerupRepo, keylock.New(), publisher, testLogger())
	return handler, store, powerupRepo, publisher
}

func TestPurchasePowerUp_DebitsAndCredits(t *testing.T) {
	handler, store, powerupRepo, publisher := newPurchasePowerUpEnv(t, 100)

	result, err := handler.Handle(context.Background(), PurchasePowerUpCommand{
		UserID:   testUser,
		Kind:     "hint",
		Quantity: 3,
	})
	assert.NoError(t, err)

	// 3 hints at 15 coins each.
	assert.Equal(t, 45, result.CoinsSpent)
	assert.Equal(t, 55, result.NewBalance)
	assert.Equal(t, 3, result.TotalCharges)

	assert.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, -45, entry.Amount)
	assert.Equal(t, ledger.TypeSpend, entry.Type)

	// The inventory was created lazily on the first purchase.
	inv, err := powerupRepo.Get(context.Background(), shared.UserID(testUser))
	assert.NoError(t, err)
	assert.Equal(t, 3, inv.Available(powerup.KindHint))

	assert.Len(t, publisher.byType(shared.EventCoinsSpent), 1)
	assert.Len(t, publisher.byType(shared.EventPowerUpPurchased), 1)
}

func TestPurchasePowerUp_AccumulatesCharges(t *testing.T) {
	handler, _, powerupRepo, _ := newPurchasePowerUpEnv(t, 200)

	_, err := handler.Handle(context.Background(), PurchasePowerUpCommand{
		UserID: testUser, Kind: "hint", Quantity: 2,
	})
	assert.NoError(t, err)

	result, err := handler.Handle(context.Background(), PurchasePowerUpCommand{
		UserID: testUser, Kind: "hint", Quantity: 1,
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, result.TotalCharges)

	inv, err := powerupRepo.Get(context.Background(), shared.UserID(testUser))
	assert.NoError(t, err)
	assert.Equal(t, 3, inv.Available(powerup.KindHint))
}

func TestPurchasePowerUp_InsufficientBalance(t *testing.T) {
	handler, store, powerupRepo, publisher := newPurchasePowerUpEnv(t, 30)

	// second_chance costs 40.
	_, err := handler.Handle(context.Background(), PurchasePowerUpCommand{
		UserID:   testUser,
		Kind:     "second_chance",
		Quantity: 1,
	})

	assert.True(t, shared.IsInsufficientBalance(err))

	var balanceErr *shared.InsufficientBalanceError
	assert.ErrorAs(t, err, &balanceErr)
	assert.Equal(t, 40, balanceErr.Required)
	assert.Equal(t, 30, balanceErr.Available)

	assert.Empty(t, store.entries)
	assert.Empty(t, publisher.events)

	_, err = powerupRepo.Get(context.Background(), shared.UserID(testUser))
	assert.True(t, shared.IsNotFound(err))
}

func TestPurchasePowerUp_Validation(t *testing.T) {
	handler, _, _, _ := newPurchasePowerUpEnv(t, 100)

	_, err := handler.Handle(context.Background(), PurchasePowerUpCommand{
		Kind: "hint", Quantity: 1,
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), PurchasePowerUpCommand{
		UserID: testUser, Kind: "time_freeze", Quantity: 1,
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), PurchasePowerUpCommand{
		UserID: testUser, Kind: "hint", Quantity: 0,
	})
	assert.Error(t, err)
}
