// Package stats содержит доменную модель игровой статистики пользователя GAMILIT.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package stats

import (
	"errors"
	"fmt"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER STATS
// ══════════════════════════════════════════════════════════════════════════════

// UserStats - агрегат игровой статистики пользователя. Единственный владелец
// баланса ML Coins, XP и счётчиков прогресса. Создаётся при первой активности,
// никогда не удаляется.
type UserStats struct {
	// UserID - идентификатор пользователя (UUID в строковом формате).
	UserID shared.UserID

	// Level - текущий уровень, вычисляется из TotalXP.
	Level shared.Level

	// TotalXP - суммарный опыт. Монотонно неубывающий.
	TotalXP shared.XP

	// CurrentRank - идентификатор текущего ранга (например, "nacom").
	CurrentRank string

	// MLCoins - текущий баланс ML Coins. Никогда не отрицательный.
	MLCoins shared.Coins

	// MLCoinsEarnedTotal - сколько монет заработано за всё время.
	MLCoinsEarnedTotal int

	// MLCoinsSpentTotal - сколько монет потрачено за всё время.
	MLCoinsSpentTotal int

	// MLCoinsEarnedToday - монеты, заработанные с последнего суточного сброса.
	MLCoinsEarnedToday int

	// LastCoinsResetAt - день последнего сброса суточного счётчика.
	LastCoinsResetAt time.Time

	// CurrentStreak - текущая серия дней с активностью.
	CurrentStreak int

	// MaxStreak - рекордная серия.
	MaxStreak int

	// LastActivityDate - дата последней засчитанной активности.
	LastActivityDate time.Time

	// ExercisesCompleted - количество завершённых упражнений.
	ExercisesCompleted int

	// ModulesCompleted - количество завершённых модулей.
	ModulesCompleted int

	// PerfectScores - количество упражнений, решённых на максимальный балл.
	PerfectScores int

	// AverageScore - средний балл по упражнениям (0.0 - 100.0).
	AverageScore float64

	// ScoresRecorded - сколько оценок учтено в среднем балле.
	ScoresRecorded int

	// AchievementsEarned - количество завершённых достижений.
	AchievementsEarned int

	// Version - версия записи для оптимистичной блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidUserID - невалидный идентификатор пользователя.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrNegativeXP - попытка применить отрицательный XP.
	ErrNegativeXP = errors.New("xp delta must be non-negative")

	// ErrNegativeCoins - попытка применить неположительную сумму монет.
	ErrNegativeCoins = errors.New("coin amount must be positive")

	// ErrInsufficientCoins - недостаточно монет для списания.
	ErrInsufficientCoins = errors.New("insufficient coins")

	// ErrInvalidScore - балл вне диапазона 0-100.
	ErrInvalidScore = errors.New("score must be between 0 and 100")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewUserStatsParams содержит параметры для создания статистики нового пользователя.
type NewUserStatsParams struct {
	UserID         shared.UserID
	InitialBalance int
	InitialRank    string
}

// NewUserStats создаёт статистику нового пользователя с валидацией полей.
// Начальный баланс задаётся конфигурацией (приветственный бонус).
func NewUserStats(params NewUserStatsParams) (*UserStats, error) {
	if !params.UserID.IsValid() {
		return nil, ErrInvalidUserID
	}

	if params.InitialBalance < 0 {
		return nil, ErrNegativeCoins
	}

	now := time.Now().UTC()

	return &UserStats{
		UserID:             params.UserID,
		Level:              1,
		TotalXP:            0,
		CurrentRank:        params.InitialRank,
		MLCoins:            shared.Coins(params.InitialBalance),
		MLCoinsEarnedTotal: params.InitialBalance,
		MLCoinsEarnedToday: 0,
		LastCoinsResetAt:   now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS: XP & LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// XPResult описывает результат начисления опыта.
type XPResult struct {
	Delta     int
	NewTotal  int
	OldLevel  shared.Level
	NewLevel  shared.Level
	LeveledUp bool
}

// AddXP начисляет опыт и пересчитывает уровень.
// TotalXP монотонен: отрицательная дельта отклоняется.
func (s *UserStats) AddXP(delta int) (XPResult, error) {
	if delta < 0 {
		return XPResult{}, ErrNegativeXP
	}

	oldLevel := s.Level
	s.TotalXP = s.TotalXP.Add(delta)
	s.Level = s.TotalXP.Level()
	s.touch()

	return XPResult{
		Delta:     delta,
		NewTotal:  s.TotalXP.Int(),
		OldLevel:  oldLevel,
		NewLevel:  s.Level,
		LeveledUp: s.Level > oldLevel,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS: COINS
// ══════════════════════════════════════════════════════════════════════════════

// CreditCoins зачисляет монеты на баланс и обновляет счётчики.
// Сумма уже эффективная (после применения множителя).
func (s *UserStats) CreditCoins(amount int) error {
	if amount <= 0 {
		return ErrNegativeCoins
	}

	s.MLCoins = s.MLCoins.Add(amount)
	s.MLCoinsEarnedTotal += amount
	s.MLCoinsEarnedToday += amount
	s.touch()
	return nil
}

// DebitCoins списывает монеты с баланса.
// Баланс никогда не уходит в минус: при нехватке возвращается ошибка
// без каких-либо изменений.
func (s *UserStats) DebitCoins(amount int) error {
	if amount <= 0 {
		return ErrNegativeCoins
	}

	if !s.MLCoins.CanAfford(amount) {
		return ErrInsufficientCoins
	}

	s.MLCoins = s.MLCoins.Add(-amount)
	s.MLCoinsSpentTotal += amount
	s.touch()
	return nil
}

// ResetDailyCounters сбрасывает суточный счётчик заработанных монет.
// Вызывается фоновой задачей в полночь или лениво при первом начислении
// нового дня.
func (s *UserStats) ResetDailyCounters(now time.Time) {
	s.MLCoinsEarnedToday = 0
	s.LastCoinsResetAt = now
	s.touch()
}

// NeedsDailyReset проверяет, что последний сброс был до начала текущего
// платформенного дня. Границы дня считаются в часовом поясе платформы,
// как и у фоновой задачи сброса.
func (s *UserStats) NeedsDailyReset(now time.Time) bool {
	return !timeutil.IsSameDay(s.LastCoinsResetAt, now)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS: STREAK
// ══════════════════════════════════════════════════════════════════════════════

// StreakResult описывает результат учёта дневной активности.
type StreakResult struct {
	Current  int
	Max      int
	Changed  bool
	WasReset bool
}

// RecordDailyActivity учитывает активность для дневной серии.
// Повторная активность в тот же день ничего не меняет; активность на
// следующий день наращивает серию; пропуск хотя бы одного дня сбрасывает
// серию до единицы.
func (s *UserStats) RecordDailyActivity(now time.Time) StreakResult {
	today := truncateToDay(now)
	last := truncateToDay(s.LastActivityDate)

	result := StreakResult{Current: s.CurrentStreak, Max: s.MaxStreak}

	switch {
	case s.LastActivityDate.IsZero():
		s.CurrentStreak = 1
		result.Changed = true

	case today.Equal(last):
		// Уже засчитано сегодня.
		return result

	case today.Equal(last.AddDate(0, 0, 1)):
		s.CurrentStreak++
		result.Changed = true

	default:
		s.CurrentStreak = 1
		result.Changed = true
		result.WasReset = true
	}

	if s.CurrentStreak > s.MaxStreak {
		s.MaxStreak = s.CurrentStreak
	}

	s.LastActivityDate = today
	s.touch()

	result.Current = s.CurrentStreak
	result.Max = s.MaxStreak
	return result
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS: PROGRESS COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// RecordExercise учитывает завершённое упражнение с баллом 0-100.
// Средний балл пересчитывается инкрементально.
func (s *UserStats) RecordExercise(score shared.Score) error {
	if !score.IsValid() {
		return ErrInvalidScore
	}

	total := s.AverageScore * float64(s.ScoresRecorded)
	s.ScoresRecorded++
	s.AverageScore = (total + float64(score.Int())) / float64(s.ScoresRecorded)

	s.ExercisesCompleted++
	if score.IsPerfect() {
		s.PerfectScores++
	}
	s.touch()
	return nil
}

// RecordModule учитывает завершённый модуль.
func (s *UserStats) RecordModule() {
	s.ModulesCompleted++
	s.touch()
}

// RecordAchievement учитывает завершённое достижение.
func (s *UserStats) RecordAchievement() {
	s.AchievementsEarned++
	s.touch()
}

// SetRank обновляет текущий ранг.
func (s *UserStats) SetRank(rankID string) {
	s.CurrentRank = rankID
	s.touch()
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *UserStats) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление для логирования.
func (s *UserStats) String() string {
	return fmt.Sprintf(
		"UserStats{User: %s, XP: %d, Level: %d, Rank: %s, Coins: %d}",
		s.UserID, s.TotalXP, s.Level, s.CurrentRank, s.MLCoins,
	)
}

// Clone создаёт глубокую копию статистики.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return nil
	}

	clone := *s
	return &clone
}
