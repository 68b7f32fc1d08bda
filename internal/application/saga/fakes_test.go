package saga

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/achievement"
	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/multiplier"
	"github.com/gamilit/rewards-engine/internal/domain/rank"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// In-memory fakes for the saga tests.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStatsRepo struct {
	mu    sync.Mutex
	users map[shared.UserID]*stats.UserStats

	// saveErr makes every Save fail, simulating a broken store.
	saveErr error
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{users: make(map[shared.UserID]*stats.UserStats)}
}

func (f *fakeStatsRepo) put(s *stats.UserStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[s.UserID] = s.Clone()
}

func (f *fakeStatsRepo) Create(ctx context.Context, s *stats.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[s.UserID]; ok {
		return shared.ErrStatsExist
	}
	f.users[s.UserID] = s.Clone()
	return nil
}

func (f *fakeStatsRepo) GetByUserID(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.users[userID]
	if !ok {
		return nil, shared.ErrStatsNotFound
	}
	return s.Clone(), nil
}

func (f *fakeStatsRepo) Save(ctx context.Context, s *stats.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.users[s.UserID]; !ok {
		return shared.ErrStatsNotFound
	}
	f.users[s.UserID] = s.Clone()
	return nil
}

func (f *fakeStatsRepo) GetAll(ctx context.Context, opts stats.ListOptions) ([]*stats.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*stats.UserStats, 0, len(f.users))
	for _, s := range f.users {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStatsRepo) GetByUserIDs(ctx context.Context, userIDs []shared.UserID) ([]*stats.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*stats.UserStats
	for _, id := range userIDs {
		if s, ok := f.users[id]; ok {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (f *fakeStatsRepo) Sample(ctx context.Context, size int) ([]*stats.UserStats, error) {
	return f.GetAll(ctx, stats.ListOptions{Limit: size})
}

func (f *fakeStatsRepo) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeStatsRepo) FindStaleDailyCounters(ctx context.Context, now time.Time, limit int) ([]*stats.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*stats.UserStats
	for _, s := range f.users {
		if s.NeedsDailyReset(now) && s.MLCoinsEarnedToday > 0 {
			out = append(out, s.Clone())
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStatsRepo) Exists(ctx context.Context, userID shared.UserID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[userID]
	return ok, nil
}

type fakeMultiplierRepo struct {
	mu      sync.Mutex
	sources map[string]*multiplier.Source
}

func newFakeMultiplierRepo() *fakeMultiplierRepo {
	return &fakeMultiplierRepo{sources: make(map[string]*multiplier.Source)}
}

func (f *fakeMultiplierRepo) GetForUser(ctx context.Context, userID shared.UserID) ([]*multiplier.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*multiplier.Source
	for _, s := range f.sources {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeMultiplierRepo) Save(ctx context.Context, source *multiplier.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[source.ID] = source
	return nil
}

func (f *fakeMultiplierRepo) ReplaceRankSource(ctx context.Context, userID shared.UserID, source *multiplier.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sources {
		if s.UserID == userID && s.Kind == multiplier.KindRank {
			delete(f.sources, id)
		}
	}
	f.sources[source.ID] = source
	return nil
}

func (f *fakeMultiplierRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sources[id]; !ok {
		return shared.ErrMultiplierNotFound
	}
	delete(f.sources, id)
	return nil
}

func (f *fakeMultiplierRepo) PurgeExpired(ctx context.Context, expiredBefore time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	purged := 0
	for id, s := range f.sources {
		if !s.Permanent && s.ExpiresAt != nil && s.ExpiresAt.Before(expiredBefore) {
			delete(f.sources, id)
			purged++
		}
	}
	return purged, nil
}

type fakeRankRepo struct {
	def *rank.Definition
}

func (f *fakeRankRepo) Load(ctx context.Context) (*rank.Definition, error) {
	if f.def == nil {
		return nil, shared.ErrRankTableNotFound
	}
	return f.def, nil
}

func (f *fakeRankRepo) Replace(ctx context.Context, def *rank.Definition, changedBy string) error {
	f.def = def
	return nil
}

func (f *fakeRankRepo) History(ctx context.Context, limit int) ([]rank.ChangeRecord, error) {
	return nil, nil
}

type fakeDefinitionRepo struct {
	defs []*achievement.Definition
}

func (f *fakeDefinitionRepo) ListActive(ctx context.Context) ([]*achievement.Definition, error) {
	var out []*achievement.Definition
	for _, d := range f.defs {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDefinitionRepo) GetByID(ctx context.Context, id string) (*achievement.Definition, error) {
	for _, d := range f.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, shared.ErrAchievementNotFound
}

func (f *fakeDefinitionRepo) Save(ctx context.Context, def *achievement.Definition) error {
	f.defs = append(f.defs, def)
	return nil
}

func (f *fakeDefinitionRepo) Deactivate(ctx context.Context, id string) error {
	for _, d := range f.defs {
		if d.ID == id {
			d.IsActive = false
			return nil
		}
	}
	return shared.ErrAchievementNotFound
}

type achKey struct {
	user shared.UserID
	ach  string
}

type fakeUserAchRepo struct {
	mu      sync.Mutex
	records map[achKey]*achievement.UserAchievement
}

func newFakeUserAchRepo() *fakeUserAchRepo {
	return &fakeUserAchRepo{records: make(map[achKey]*achievement.UserAchievement)}
}

func (f *fakeUserAchRepo) Get(ctx context.Context, userID shared.UserID, achievementID string) (*achievement.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[achKey{userID, achievementID}]
	if !ok {
		return nil, shared.ErrAchievementNotFound
	}
	return r.Clone(), nil
}

func (f *fakeUserAchRepo) ListForUser(ctx context.Context, userID shared.UserID) ([]*achievement.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*achievement.UserAchievement
	for k, r := range f.records {
		if k.user == userID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (f *fakeUserAchRepo) Save(ctx context.Context, record *achievement.UserAchievement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[achKey{record.UserID, record.AchievementID}] = record.Clone()
	return nil
}

func (f *fakeUserAchRepo) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for k, r := range f.records {
		if k.user == userID && r.IsCompleted {
			count++
		}
	}
	return count, nil
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []*ledger.Transaction
}

func (f *fakeLedgerRepo) Append(ctx context.Context, tx *ledger.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, tx)
	return nil
}

func (f *fakeLedgerRepo) GetByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, shared.ErrTransactionNotFound
}

func (f *fakeLedgerRepo) History(ctx context.Context, userID shared.UserID, filter ledger.HistoryFilter) ([]*ledger.Transaction, error) {
	all, _ := f.AllForUser(ctx, userID)
	var out []*ledger.Transaction
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (f *fakeLedgerRepo) AllForUser(ctx context.Context, userID shared.UserID) ([]*ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*ledger.Transaction
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) CountForUser(ctx context.Context, userID shared.UserID) (int, error) {
	all, _ := f.AllForUser(ctx, userID)
	return len(all), nil
}

func (f *fakeLedgerRepo) TopEarners(ctx context.Context, window shared.TimeRange, limit int) ([]ledger.EarnerEntry, error) {
	return nil, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(eventType shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}
