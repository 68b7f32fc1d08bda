// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// UserID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points earned by a user.
// Total XP is monotonic: legitimate reward applications only add.
type XP int

const (
	// XP boundaries
	MinXP XP = 0
	MaxXP XP = 1000000 // 1 million XP cap
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, capped at MaxXP.
func (x XP) Add(amount int) XP {
	result := XP(int(x) + amount)
	if result > MaxXP {
		return MaxXP
	}
	if result < MinXP {
		return MinXP
	}
	return result
}

// Level calculates the level based on XP.
// Each level requires 100 * level additional XP, so level 1 ends at 100.
func (x XP) Level() Level {
	if x <= 0 {
		return 1
	}
	level := 1
	requiredXP := 100
	totalRequired := 0
	for totalRequired+requiredXP <= int(x) {
		totalRequired += requiredXP
		level++
		requiredXP = 100 * level
	}
	return Level(level)
}

// ProgressToNextLevel returns percentage progress to next level (0-100).
func (x XP) ProgressToNextLevel() int {
	currentLevel := x.Level()
	currentLevelXP := currentLevel.RequiredXP()
	nextLevelXP := (currentLevel + 1).RequiredXP()

	xpInCurrentLevel := int(x) - currentLevelXP
	xpNeededForLevel := nextLevelXP - currentLevelXP

	if xpNeededForLevel == 0 {
		return 100
	}

	return (xpInCurrentLevel * 100) / xpNeededForLevel
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	if amount > int(MaxXP) {
		return MaxXP, nil // Cap at max
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 100
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the total XP required to reach this level.
func (l Level) RequiredXP() int {
	if l <= 1 {
		return 0
	}
	total := 0
	for i := Level(1); i < l; i++ {
		total += 100 * int(i)
	}
	return total
}

// ═══════════════════════════════════════════════════════════════════════════
// Coins Value Object (ML Coins balance)
// ═══════════════════════════════════════════════════════════════════════════

// Coins represents an ML Coins balance. Never negative.
type Coins int

// IsValid checks if the balance is non-negative.
func (c Coins) IsValid() bool {
	return c >= 0
}

// Int returns the underlying int value.
func (c Coins) Int() int {
	return int(c)
}

// CanAfford reports whether the balance covers a spend of the given amount.
func (c Coins) CanAfford(amount int) bool {
	return int(c) >= amount
}

// Add credits coins and returns the result.
func (c Coins) Add(amount int) Coins {
	return Coins(int(c) + amount)
}

// NewCoins creates a new Coins value with validation.
func NewCoins(amount int) (Coins, error) {
	if amount < 0 {
		return 0, NewDomainError("shared", "NewCoins", ErrNegativeValue, "coin balance cannot be negative")
	}
	return Coins(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Multiplier Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Multiplier is a reward scalar, always at least 1.0.
type Multiplier float64

// BaseMultiplier is the neutral multiplier.
const BaseMultiplier Multiplier = 1.0

// IsValid checks if the multiplier is at least the base value.
func (m Multiplier) IsValid() bool {
	return float64(m) >= float64(BaseMultiplier)
}

// Float64 returns the underlying float64 value.
func (m Multiplier) Float64() float64 {
	return float64(m)
}

// Apply multiplies an amount and rounds half up to the nearest whole unit.
// Apply(20, 1.5) = 30; Apply(5, 1.1) = 6 (5.5 rounds up).
func (m Multiplier) Apply(amount int) int {
	return int(math.Floor(float64(amount)*float64(m) + 0.5))
}

// NewMultiplier creates a new Multiplier with validation.
func NewMultiplier(value float64) (Multiplier, error) {
	if value < float64(BaseMultiplier) {
		return 0, NewDomainError("shared", "NewMultiplier", ErrValueOutOfRange, "multiplier must be at least 1.0")
	}
	return Multiplier(value), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object (exercise result)
// ═══════════════════════════════════════════════════════════════════════════

// Score represents an exercise score on a 0-100 scale.
type Score int

const (
	MinScore     Score = 0
	MaxScore     Score = 100
	PerfectScore Score = 100
)

// IsValid checks if the score is within valid range.
func (s Score) IsValid() bool {
	return s >= MinScore && s <= MaxScore
}

// Int returns the underlying int value.
func (s Score) Int() int {
	return int(s)
}

// IsPerfect reports whether the score is the maximum.
func (s Score) IsPerfect() bool {
	return s == PerfectScore
}

// NewScore creates a new Score with validation.
func NewScore(value int) (Score, error) {
	s := Score(value)
	if !s.IsValid() {
		return 0, ErrInvalidScore
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage helpers
// ═══════════════════════════════════════════════════════════════════════════

// RoundPercentage rounds a percentage to 2 decimal places.
// Used for achievement completion_percentage so stored values are stable.
func RoundPercentage(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatPercentage renders a percentage with 2 decimal places.
func FormatPercentage(v float64) string {
	return fmt.Sprintf("%.2f", RoundPercentage(v))
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// Today returns a TimeRange for today (local time).
func Today() TimeRange {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24 * time.Hour).Add(-time.Nanosecond)
	return TimeRange{From: start, To: end}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
