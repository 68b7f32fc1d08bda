// Package achievement contains achievement definitions, the closed
// condition schema they are validated against, and per-user achievement
// state. Conditions are typed variants decoded and validated when a
// definition is loaded; evaluation is a pure predicate over a stats
// snapshot and never sees an unvalidated condition.
package achievement

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// Domain errors for condition handling.
var (
	ErrUnknownConditionKind = errors.New("achievement: unknown condition kind")
	ErrConditionInvalid     = errors.New("achievement: invalid condition parameters")
)

// ConditionKind enumerates the closed set of condition variants.
type ConditionKind string

const (
	KindProgress ConditionKind = "progress"
	KindStreak   ConditionKind = "streak"
	KindLevel    ConditionKind = "level"
	KindScore    ConditionKind = "score"
	KindRank     ConditionKind = "rank"
	KindCurrency ConditionKind = "currency"
	KindGeneric  ConditionKind = "generic"
)

// EvalContext is the snapshot a condition is evaluated against.
// TierIndex is the user's rank tier index under the active table, resolved
// by the caller so conditions stay free of table lookups.
type EvalContext struct {
	Stats     *stats.UserStats
	TierIndex int
}

// Condition is a typed unlock rule.
// Met decides completion; Measure returns the raw counter behind the rule
// so incremental progress can be displayed.
type Condition interface {
	Kind() ConditionKind
	Validate() error
	Met(ctx EvalContext) bool
	Measure(ctx EvalContext) int
}

// ─────────────────────────────────────────────────────────────────────────────
// progress: completed exercises and/or modules
// ─────────────────────────────────────────────────────────────────────────────

// ProgressCondition unlocks on completed exercise or module counts.
// At least one threshold must be set; both set means both must hold.
type ProgressCondition struct {
	MinExercises int `json:"min_exercises,omitempty"`
	MinModules   int `json:"min_modules,omitempty"`
}

func (c ProgressCondition) Kind() ConditionKind { return KindProgress }

func (c ProgressCondition) Validate() error {
	if c.MinExercises < 0 || c.MinModules < 0 {
		return ErrConditionInvalid
	}
	if c.MinExercises == 0 && c.MinModules == 0 {
		return ErrConditionInvalid
	}
	return nil
}

func (c ProgressCondition) Met(ctx EvalContext) bool {
	if c.MinExercises > 0 && ctx.Stats.ExercisesCompleted < c.MinExercises {
		return false
	}
	if c.MinModules > 0 && ctx.Stats.ModulesCompleted < c.MinModules {
		return false
	}
	return true
}

func (c ProgressCondition) Measure(ctx EvalContext) int {
	if c.MinModules > 0 && c.MinExercises == 0 {
		return ctx.Stats.ModulesCompleted
	}
	return ctx.Stats.ExercisesCompleted
}

// ─────────────────────────────────────────────────────────────────────────────
// streak: consecutive active days
// ─────────────────────────────────────────────────────────────────────────────

// StreakCondition unlocks on the current daily streak.
type StreakCondition struct {
	MinStreak int `json:"min_streak"`
}

func (c StreakCondition) Kind() ConditionKind { return KindStreak }

func (c StreakCondition) Validate() error {
	if c.MinStreak <= 0 {
		return ErrConditionInvalid
	}
	return nil
}

func (c StreakCondition) Met(ctx EvalContext) bool {
	return ctx.Stats.CurrentStreak >= c.MinStreak
}

func (c StreakCondition) Measure(ctx EvalContext) int {
	return ctx.Stats.CurrentStreak
}

// ─────────────────────────────────────────────────────────────────────────────
// level
// ─────────────────────────────────────────────────────────────────────────────

// LevelCondition unlocks on reaching a level.
type LevelCondition struct {
	MinLevel int `json:"min_level"`
}

func (c LevelCondition) Kind() ConditionKind { return KindLevel }

func (c LevelCondition) Validate() error {
	if c.MinLevel <= 0 {
		return ErrConditionInvalid
	}
	return nil
}

func (c LevelCondition) Met(ctx EvalContext) bool {
	return ctx.Stats.Level.Int() >= c.MinLevel
}

func (c LevelCondition) Measure(ctx EvalContext) int {
	return ctx.Stats.Level.Int()
}

// ─────────────────────────────────────────────────────────────────────────────
// score: average score and/or perfect score count
// ─────────────────────────────────────────────────────────────────────────────

// ScoreCondition unlocks on scoring quality. MinExercises guards against
// a high average over a trivially small sample.
type ScoreCondition struct {
	MinAverageScore  float64 `json:"min_average_score,omitempty"`
	MinPerfectScores int     `json:"min_perfect_scores,omitempty"`
	MinExercises     int     `json:"min_exercises,omitempty"`
}

func (c ScoreCondition) Kind() ConditionKind { return KindScore }

func (c ScoreCondition) Validate() error {
	if c.MinAverageScore < 0 || c.MinAverageScore > 100 {
		return ErrConditionInvalid
	}
	if c.MinPerfectScores < 0 || c.MinExercises < 0 {
		return ErrConditionInvalid
	}
	if c.MinAverageScore == 0 && c.MinPerfectScores == 0 {
		return ErrConditionInvalid
	}
	return nil
}

func (c ScoreCondition) Met(ctx EvalContext) bool {
	if ctx.Stats.ExercisesCompleted < c.MinExercises {
		return false
	}
	if c.MinAverageScore > 0 && ctx.Stats.AverageScore < c.MinAverageScore {
		return false
	}
	if c.MinPerfectScores > 0 && ctx.Stats.PerfectScores < c.MinPerfectScores {
		return false
	}
	return true
}

func (c ScoreCondition) Measure(ctx EvalContext) int {
	if c.MinPerfectScores > 0 {
		return ctx.Stats.PerfectScores
	}
	return int(ctx.Stats.AverageScore)
}

// ─────────────────────────────────────────────────────────────────────────────
// rank: reached a tier
// ─────────────────────────────────────────────────────────────────────────────

// RankCondition unlocks on reaching a tier index under the active table.
type RankCondition struct {
	MinTier int `json:"min_tier"`
}

func (c RankCondition) Kind() ConditionKind { return KindRank }

func (c RankCondition) Validate() error {
	if c.MinTier <= 0 {
		return ErrConditionInvalid
	}
	return nil
}

func (c RankCondition) Met(ctx EvalContext) bool {
	return ctx.TierIndex >= c.MinTier
}

func (c RankCondition) Measure(ctx EvalContext) int {
	return ctx.TierIndex
}

// ─────────────────────────────────────────────────────────────────────────────
// currency: lifetime coins earned
// ─────────────────────────────────────────────────────────────────────────────

// CurrencyCondition unlocks on lifetime ML Coins earned.
type CurrencyCondition struct {
	MinCoinsEarned int `json:"min_coins_earned"`
}

func (c CurrencyCondition) Kind() ConditionKind { return KindCurrency }

func (c CurrencyCondition) Validate() error {
	if c.MinCoinsEarned <= 0 {
		return ErrConditionInvalid
	}
	return nil
}

func (c CurrencyCondition) Met(ctx EvalContext) bool {
	return ctx.Stats.MLCoinsEarnedTotal >= c.MinCoinsEarned
}

func (c CurrencyCondition) Measure(ctx EvalContext) int {
	return ctx.Stats.MLCoinsEarnedTotal
}

// ─────────────────────────────────────────────────────────────────────────────
// generic: one named counter against a threshold
// ─────────────────────────────────────────────────────────────────────────────

// StatKey names a counter a GenericCondition may target. Closed set.
type StatKey string

const (
	StatExercises    StatKey = "exercises_completed"
	StatModules      StatKey = "modules_completed"
	StatMaxStreak    StatKey = "max_streak"
	StatPerfect      StatKey = "perfect_scores"
	StatAchievements StatKey = "achievements_earned"
	StatTotalXP      StatKey = "total_xp"
)

// IsValid checks if the stat key is known.
func (k StatKey) IsValid() bool {
	switch k {
	case StatExercises, StatModules, StatMaxStreak, StatPerfect, StatAchievements, StatTotalXP:
		return true
	default:
		return false
	}
}

// GenericCondition unlocks when one named counter reaches a threshold.
// Kept for definitions that fit no richer variant; the key set is still
// closed, there is no free-form property bag.
type GenericCondition struct {
	Stat StatKey `json:"stat"`
	Min  int     `json:"min"`
}

func (c GenericCondition) Kind() ConditionKind { return KindGeneric }

func (c GenericCondition) Validate() error {
	if !c.Stat.IsValid() || c.Min <= 0 {
		return ErrConditionInvalid
	}
	return nil
}

func (c GenericCondition) Met(ctx EvalContext) bool {
	return c.Measure(ctx) >= c.Min
}

func (c GenericCondition) Measure(ctx EvalContext) int {
	s := ctx.Stats
	switch c.Stat {
	case StatExercises:
		return s.ExercisesCompleted
	case StatModules:
		return s.ModulesCompleted
	case StatMaxStreak:
		return s.MaxStreak
	case StatPerfect:
		return s.PerfectScores
	case StatAchievements:
		return s.AchievementsEarned
	case StatTotalXP:
		return s.TotalXP.Int()
	default:
		return 0
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Decoding
// ─────────────────────────────────────────────────────────────────────────────

// DecodeCondition parses a stored condition into its typed variant and
// validates it. Unknown kinds are rejected here, at load time.
func DecodeCondition(kind ConditionKind, raw json.RawMessage) (Condition, error) {
	var cond Condition

	switch kind {
	case KindProgress:
		var c ProgressCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("achievement: decode %s condition: %w", kind, err)
		}
		cond = c
	case KindStreak:
		var c StreakCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("achievement: decode %s condition: %w", kind, err)
		}
		cond = c
	case KindLevel:
		var c LevelCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("achievement: decode %s condition: %w", kind, err)
		}
		cond = c
	case KindScore:
		var c ScoreCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("achievement: decode %s condition: %w", kind, err)
		}
		cond = c
	case KindRank:
		var c RankCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("achievement: decode %s condition: %w", kind, err)
		}
		cond = c
	case KindCurrency:
		var c CurrencyCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("achievement: decode %s condition: %w", kind, err)
		}
		cond = c
	case KindGeneric:
		var c GenericCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("achievement: decode %s condition: %w", kind, err)
		}
		cond = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownConditionKind, kind)
	}

	if err := cond.Validate(); err != nil {
		return nil, fmt.Errorf("achievement: %s condition: %w", kind, err)
	}
	return cond, nil
}

// EncodeCondition serializes a condition for storage.
func EncodeCondition(cond Condition) (ConditionKind, json.RawMessage, error) {
	raw, err := json.Marshal(cond)
	if err != nil {
		return "", nil, fmt.Errorf("achievement: encode %s condition: %w", cond.Kind(), err)
	}
	return cond.Kind(), raw, nil
}
