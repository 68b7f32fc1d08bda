package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gamilit/rewards-engine/internal/application/query"
	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/multiplier"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
	"github.com/gamilit/rewards-engine/pkg/keylock"
)

type maintenanceEnv struct {
	statsRepo   *fakeStatsRepo
	multipliers *fakeMultiplierRepo
	ledgerRepo  *fakeLedgerRepo
	publisher   *capturingPublisher
	saga        *DailyMaintenanceSaga
}

func newMaintenanceEnv() *maintenanceEnv {
	env := &maintenanceEnv{
		statsRepo:   newFakeStatsRepo(),
		multipliers: newFakeMultiplierRepo(),
		ledgerRepo:  &fakeLedgerRepo{},
		publisher:   &capturingPublisher{},
	}
	auditor := query.NewAuditBalanceHandler(env.statsRepo, env.ledgerRepo, env.publisher, testLogger())
	env.saga = NewDailyMaintenanceSaga(
		env.statsRepo, env.multipliers, auditor, keylock.New(), testLogger(),
	)
	return env
}

func (env *maintenanceEnv) seedUser(t *testing.T, balance int) shared.UserID {
	t.Helper()
	userID := shared.UserID(uuid.NewString())
	s, err := stats.NewUserStats(stats.NewUserStatsParams{
		UserID:         userID,
		InitialBalance: balance,
		InitialRank:    "ajaw",
	})
	assert.NoError(t, err)
	env.statsRepo.put(s)
	return userID
}

func (env *maintenanceEnv) markStale(t *testing.T, userID shared.UserID, earnedToday int) {
	t.Helper()
	s, err := env.statsRepo.GetByUserID(context.Background(), userID)
	assert.NoError(t, err)
	s.MLCoinsEarnedToday = earnedToday
	s.LastCoinsResetAt = time.Now().UTC().AddDate(0, 0, -1)
	env.statsRepo.put(s)
}

func TestDailyMaintenance_ResetsStaleCounters(t *testing.T) {
	env := newMaintenanceEnv()

	stale := env.seedUser(t, 0)
	env.markStale(t, stale, 120)
	fresh := env.seedUser(t, 0)

	result, err := env.saga.Run(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 1, result.CountersReset)
	assert.Equal(t, 0, result.Failures)

	reset, err := env.statsRepo.GetByUserID(context.Background(), stale)
	assert.NoError(t, err)
	assert.Equal(t, 0, reset.MLCoinsEarnedToday)

	untouched, err := env.statsRepo.GetByUserID(context.Background(), fresh)
	assert.NoError(t, err)
	assert.Equal(t, 0, untouched.MLCoinsEarnedToday)
}

func TestDailyMaintenance_BrokenStoreDoesNotSpin(t *testing.T) {
	env := newMaintenanceEnv()
	env.saga.batchSize = 2

	for i := 0; i < 2; i++ {
		userID := env.seedUser(t, 0)
		env.markStale(t, userID, 50)
	}
	env.statsRepo.saveErr = errors.New("storage offline")

	// A full batch where every save fails would page back the same rows
	// forever; the run must finish and report the failures instead.
	done := make(chan *DailyMaintenanceResult, 1)
	go func() {
		result, err := env.saga.Run(context.Background())
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case result := <-done:
		assert.Equal(t, 0, result.CountersReset)
		assert.GreaterOrEqual(t, result.Failures, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("maintenance run did not finish against a failing store")
	}
}

func TestDailyMaintenance_PurgesExpiredMultipliers(t *testing.T) {
	env := newMaintenanceEnv()
	userID := env.seedUser(t, 0)

	longExpired := time.Now().UTC().Add(-72 * time.Hour)
	justExpired := time.Now().UTC().Add(-1 * time.Hour)

	for i, expiry := range []time.Time{longExpired, justExpired} {
		exp := expiry
		source, err := multiplier.NewSource(multiplier.NewSourceParams{
			ID:        uuid.NewString(),
			UserID:    userID,
			Kind:      multiplier.KindStreak,
			Label:     "boost",
			Value:     shared.Multiplier(1.1 + float64(i)*0.1),
			ExpiresAt: &exp,
		})
		assert.NoError(t, err)
		assert.NoError(t, env.multipliers.Save(context.Background(), source))
	}

	result, err := env.saga.Run(context.Background())
	assert.NoError(t, err)

	// Only sources past the 48h grace window are purged.
	assert.Equal(t, 1, result.MultipliersPurged)

	remaining, err := env.multipliers.GetForUser(context.Background(), userID)
	assert.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestDailyMaintenance_AuditsBalances(t *testing.T) {
	env := newMaintenanceEnv()

	// Consistent user: one earn entry matching the recorded balance.
	consistent := env.seedUser(t, 50)
	entry, err := ledger.NewTransaction(ledger.NewTransactionParams{
		ID:            uuid.NewString(),
		UserID:        consistent,
		Amount:        50,
		BalanceBefore: 0,
		Type:          ledger.TypeEarn,
		Description:   "reward",
	})
	assert.NoError(t, err)
	assert.NoError(t, env.ledgerRepo.Append(context.Background(), entry))

	// Drifted user: the recorded balance has no ledger backing.
	env.seedUser(t, 75)

	result, err := env.saga.Run(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 2, result.UsersAudited)
	assert.Equal(t, 1, result.Inconsistencies)
	assert.Len(t, env.publisher.byType(shared.EventBalanceInconsistent), 1)
}

func TestDailyMaintenance_EmptyStore(t *testing.T) {
	env := newMaintenanceEnv()

	result, err := env.saga.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, result.CountersReset)
	assert.Equal(t, 0, result.UsersAudited)
	assert.Equal(t, 0, result.Failures)
}
