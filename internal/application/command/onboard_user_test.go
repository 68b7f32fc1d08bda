package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/pkg/keylock"
)

func newOnboardUserEnv(defaultBonus int) (*OnboardUserHandler, *fakeStore, *fakeLedgerRepo, *capturingPublisher) {
	store := newFakeStore()
	ledgerRepo := &fakeLedgerRepo{}
	publisher := &capturingPublisher{}
	handler := NewOnboardUserHandler(
		store, ledgerRepo, &fakeRankRepo{}, keylock.New(), publisher, testLogger(), defaultBonus,
	)
	return handler, store, ledgerRepo, publisher
}

func TestOnboardUser_BootstrapsStats(t *testing.T) {
	handler, store, ledgerRepo, publisher := newOnboardUserEnv(100)

	result, err := handler.Handle(context.Background(), OnboardUserCommand{UserID: testUser})
	assert.NoError(t, err)

	assert.False(t, result.AlreadyOnboarded)
	assert.Equal(t, 100, result.WelcomeBonus)
	assert.Equal(t, "ajaw", result.InitialRank)

	saved, err := store.GetByUserID(context.Background(), shared.UserID(testUser))
	assert.NoError(t, err)
	assert.Equal(t, 100, saved.MLCoins.Int())
	assert.Equal(t, "ajaw", saved.CurrentRank)
	assert.Equal(t, 1, saved.Level.Int())

	// The welcome bonus is on the ledger from balance zero.
	assert.Len(t, ledgerRepo.entries, 1)
	entry := ledgerRepo.entries[0]
	assert.Equal(t, 100, entry.Amount)
	assert.Equal(t, 0, entry.BalanceBefore)
	assert.Equal(t, ledger.TypeBonus, entry.Type)
	assert.Equal(t, "welcome bonus", entry.Description)

	assert.Len(t, publisher.byType(shared.EventUserOnboarded), 1)
}

func TestOnboardUser_Idempotent(t *testing.T) {
	handler, _, ledgerRepo, publisher := newOnboardUserEnv(100)

	first, err := handler.Handle(context.Background(), OnboardUserCommand{UserID: testUser})
	assert.NoError(t, err)
	assert.False(t, first.AlreadyOnboarded)

	second, err := handler.Handle(context.Background(), OnboardUserCommand{UserID: testUser})
	assert.NoError(t, err)
	assert.True(t, second.AlreadyOnboarded)

	// The second call wrote nothing and published nothing new.
	assert.Len(t, ledgerRepo.entries, 1)
	assert.Len(t, publisher.byType(shared.EventUserOnboarded), 1)
}

func TestOnboardUser_BonusOverride(t *testing.T) {
	handler, store, ledgerRepo, _ := newOnboardUserEnv(100)

	result, err := handler.Handle(context.Background(), OnboardUserCommand{
		UserID:       testUser,
		WelcomeBonus: 250,
	})
	assert.NoError(t, err)
	assert.Equal(t, 250, result.WelcomeBonus)

	saved, err := store.GetByUserID(context.Background(), shared.UserID(testUser))
	assert.NoError(t, err)
	assert.Equal(t, 250, saved.MLCoins.Int())
	assert.Equal(t, 250, ledgerRepo.entries[0].Amount)
}

func TestOnboardUser_ZeroBonusSkipsLedger(t *testing.T) {
	handler, store, ledgerRepo, _ := newOnboardUserEnv(0)

	result, err := handler.Handle(context.Background(), OnboardUserCommand{UserID: testUser})
	assert.NoError(t, err)
	assert.Equal(t, 0, result.WelcomeBonus)
	assert.Empty(t, ledgerRepo.entries)

	saved, err := store.GetByUserID(context.Background(), shared.UserID(testUser))
	assert.NoError(t, err)
	assert.Equal(t, 0, saved.MLCoins.Int())
}

func TestOnboardUser_Validation(t *testing.T) {
	handler, _, _, _ := newOnboardUserEnv(100)

	_, err := handler.Handle(context.Background(), OnboardUserCommand{})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), OnboardUserCommand{
		UserID: testUser, WelcomeBonus: -5,
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), OnboardUserCommand{UserID: "nope"})
	assert.Error(t, err)
}
