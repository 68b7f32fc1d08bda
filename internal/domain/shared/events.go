// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Ledger events
	EventCoinsEarned EventType = "ledger.coins_earned"
	EventCoinsSpent  EventType = "ledger.coins_spent"

	// Progress events
	EventXPGained      EventType = "progress.xp_gained"
	EventLevelUp       EventType = "progress.level_up"
	EventStreakUpdated EventType = "progress.streak_updated"
	EventStreakBroken  EventType = "progress.streak_broken"

	// Rank events
	EventRankChanged EventType = "rank.changed"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventAchievementClaimed  EventType = "achievement.claimed"

	// Multiplier events
	EventMultiplierGranted EventType = "multiplier.granted"

	// Power-up events
	EventPowerUpPurchased EventType = "powerup.purchased"
	EventPowerUpUsed      EventType = "powerup.used"

	// System events
	EventBalanceInconsistent EventType = "system.balance_inconsistent"
	EventUserOnboarded       EventType = "system.user_onboarded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// CoinsEarnedEvent is emitted when coins are credited to a user.
// The payload carries enough state for a notification template to be
// rendered without re-querying the ledger.
type CoinsEarnedEvent struct {
	BaseEvent
	UserID            string  `json:"user_id"`
	Amount            int     `json:"amount"` // effective, after multiplier
	BaseAmount        int     `json:"base_amount"`
	MultiplierApplied float64 `json:"multiplier_applied"`
	BalanceAfter      int     `json:"balance_after"`
	Reason            string  `json:"reason"` // transaction type tag
	Reference         string  `json:"reference,omitempty"`
}

// Payload implements Event interface.
func (e CoinsEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":            e.UserID,
		"amount":             e.Amount,
		"base_amount":        e.BaseAmount,
		"multiplier_applied": e.MultiplierApplied,
		"balance_after":      e.BalanceAfter,
		"reason":             e.Reason,
		"reference":          e.Reference,
	}
}

// NewCoinsEarnedEvent creates a new CoinsEarnedEvent.
func NewCoinsEarnedEvent(userID string, amount, baseAmount int, multiplier float64, balanceAfter int, reason string) CoinsEarnedEvent {
	return CoinsEarnedEvent{
		BaseEvent:         NewBaseEvent(EventCoinsEarned, userID),
		UserID:            userID,
		Amount:            amount,
		BaseAmount:        baseAmount,
		MultiplierApplied: multiplier,
		BalanceAfter:      balanceAfter,
		Reason:            reason,
	}
}

// WithReference links the event to its originating reward event.
func (e CoinsEarnedEvent) WithReference(ref string) CoinsEarnedEvent {
	e.Reference = ref
	return e
}

// CoinsSpentEvent is emitted when coins are debited from a user.
type CoinsSpentEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	Amount       int    `json:"amount"` // positive magnitude of the debit
	BalanceAfter int    `json:"balance_after"`
	Reason       string `json:"reason"`
}

// Payload implements Event interface.
func (e CoinsSpentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"amount":        e.Amount,
		"balance_after": e.BalanceAfter,
		"reason":        e.Reason,
	}
}

// NewCoinsSpentEvent creates a new CoinsSpentEvent.
func NewCoinsSpentEvent(userID string, amount, balanceAfter int, reason string) CoinsSpentEvent {
	return CoinsSpentEvent{
		BaseEvent:    NewBaseEvent(EventCoinsSpent, userID),
		UserID:       userID,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Reason:       reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a user gains XP.
type XPGainedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"` // e.g., "exercise_completed", "achievement"
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID string, amount, newTotal int, source string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when accumulated XP crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// StreakUpdatedEvent is emitted when a user's daily streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	MaxStreak     int    `json:"max_streak"`
	WasReset      bool   `json:"was_reset"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
		"max_streak":     e.MaxStreak,
		"was_reset":      e.WasReset,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, max int, wasReset bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		UserID:        userID,
		CurrentStreak: current,
		MaxStreak:     max,
		WasReset:      wasReset,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a user's rank tier changes.
// Carries both the old and new rank so consumers can compose promotion
// or demotion messages without re-querying.
type RankChangedEvent struct {
	BaseEvent
	UserID        string  `json:"user_id"`
	PreviousRank  string  `json:"previous_rank"`
	NewRank       string  `json:"new_rank"`
	PreviousTier  int     `json:"previous_tier"`
	NewTier       int     `json:"new_tier"`
	BonusCoins    int     `json:"bonus_coins"`
	NewMultiplier float64 `json:"new_multiplier"`
}

// Payload implements Event interface.
func (e RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"previous_rank":  e.PreviousRank,
		"new_rank":       e.NewRank,
		"previous_tier":  e.PreviousTier,
		"new_tier":       e.NewTier,
		"bonus_coins":    e.BonusCoins,
		"new_multiplier": e.NewMultiplier,
	}
}

// NewRankChangedEvent creates a new RankChangedEvent.
func NewRankChangedEvent(userID, previousRank, newRank string, previousTier, newTier, bonusCoins int, newMultiplier float64) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent:     NewBaseEvent(EventRankChanged, userID),
		UserID:        userID,
		PreviousRank:  previousRank,
		NewRank:       newRank,
		PreviousTier:  previousTier,
		NewTier:       newTier,
		BonusCoins:    bonusCoins,
		NewMultiplier: newMultiplier,
	}
}

// IsPromotion returns true if the user moved to a higher tier.
func (e RankChangedEvent) IsPromotion() bool {
	return e.NewTier > e.PreviousTier
}

// IsDemotion returns true if the user moved to a lower tier.
func (e RankChangedEvent) IsDemotion() bool {
	return e.NewTier < e.PreviousTier
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when an achievement completes.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	XPReward      int    `json:"xp_reward"`
	CoinReward    int    `json:"coin_reward"`
	IsSecret      bool   `json:"is_secret"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"name":           e.Name,
		"xp_reward":      e.XPReward,
		"coin_reward":    e.CoinReward,
		"is_secret":      e.IsSecret,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, name string, xpReward, coinReward int, isSecret bool) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Name:          name,
		XPReward:      xpReward,
		CoinReward:    coinReward,
		IsSecret:      isSecret,
	}
}

// AchievementClaimedEvent is emitted when a user claims rewards for a
// completed achievement.
type AchievementClaimedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	XPGranted     int    `json:"xp_granted"`
	CoinsGranted  int    `json:"coins_granted"`
}

// Payload implements Event interface.
func (e AchievementClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"xp_granted":     e.XPGranted,
		"coins_granted":  e.CoinsGranted,
	}
}

// NewAchievementClaimedEvent creates a new AchievementClaimedEvent.
func NewAchievementClaimedEvent(userID, achievementID string, xpGranted, coinsGranted int) AchievementClaimedEvent {
	return AchievementClaimedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementClaimed, userID),
		UserID:        userID,
		AchievementID: achievementID,
		XPGranted:     xpGranted,
		CoinsGranted:  coinsGranted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Multiplier Events
// ═══════════════════════════════════════════════════════════════════════════

// MultiplierGrantedEvent is emitted when a multiplier source is granted.
type MultiplierGrantedEvent struct {
	BaseEvent
	UserID    string     `json:"user_id"`
	SourceID  string     `json:"source_id"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Permanent bool       `json:"permanent"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Payload implements Event interface.
func (e MultiplierGrantedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"user_id":   e.UserID,
		"source_id": e.SourceID,
		"label":     e.Label,
		"value":     e.Value,
		"permanent": e.Permanent,
	}
	if e.ExpiresAt != nil {
		p["expires_at"] = e.ExpiresAt.Format(time.RFC3339)
	}
	return p
}

// NewMultiplierGrantedEvent creates a new MultiplierGrantedEvent.
func NewMultiplierGrantedEvent(userID, sourceID, label string, value float64, permanent bool, expiresAt *time.Time) MultiplierGrantedEvent {
	return MultiplierGrantedEvent{
		BaseEvent: NewBaseEvent(EventMultiplierGranted, userID),
		UserID:    userID,
		SourceID:  sourceID,
		Label:     label,
		Value:     value,
		Permanent: permanent,
		ExpiresAt: expiresAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Power-up Events
// ═══════════════════════════════════════════════════════════════════════════

// PowerUpPurchasedEvent is emitted when a user buys power-up charges.
type PowerUpPurchasedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Kind       string `json:"kind"`
	Quantity   int    `json:"quantity"`
	CoinsSpent int    `json:"coins_spent"`
}

// Payload implements Event interface.
func (e PowerUpPurchasedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"kind":        e.Kind,
		"quantity":    e.Quantity,
		"coins_spent": e.CoinsSpent,
	}
}

// NewPowerUpPurchasedEvent creates a new PowerUpPurchasedEvent.
func NewPowerUpPurchasedEvent(userID, kind string, quantity, coinsSpent int) PowerUpPurchasedEvent {
	return PowerUpPurchasedEvent{
		BaseEvent:  NewBaseEvent(EventPowerUpPurchased, userID),
		UserID:     userID,
		Kind:       kind,
		Quantity:   quantity,
		CoinsSpent: coinsSpent,
	}
}

// PowerUpUsedEvent is emitted when a charge is consumed during an exercise.
type PowerUpUsedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	Kind             string `json:"kind"`
	RemainingCharges int    `json:"remaining_charges"`
}

// Payload implements Event interface.
func (e PowerUpUsedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"kind":              e.Kind,
		"remaining_charges": e.RemainingCharges,
	}
}

// NewPowerUpUsedEvent creates a new PowerUpUsedEvent.
func NewPowerUpUsedEvent(userID, kind string, remainingCharges int) PowerUpUsedEvent {
	return PowerUpUsedEvent{
		BaseEvent:        NewBaseEvent(EventPowerUpUsed, userID),
		UserID:           userID,
		Kind:             kind,
		RemainingCharges: remainingCharges,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// BalanceInconsistentEvent is emitted by the audit job when the recorded
// balance disagrees with the transaction log.
type BalanceInconsistentEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Recorded int    `json:"recorded"`
	Computed int    `json:"computed"`
}

// Payload implements Event interface.
func (e BalanceInconsistentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"recorded": e.Recorded,
		"computed": e.Computed,
	}
}

// NewBalanceInconsistentEvent creates a new BalanceInconsistentEvent.
func NewBalanceInconsistentEvent(userID string, recorded, computed int) BalanceInconsistentEvent {
	return BalanceInconsistentEvent{
		BaseEvent: NewBaseEvent(EventBalanceInconsistent, userID),
		UserID:    userID,
		Recorded:  recorded,
		Computed:  computed,
	}
}

// UserOnboardedEvent is emitted when stats are bootstrapped for a new user.
type UserOnboardedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	WelcomeBonus int    `json:"welcome_bonus"`
	InitialRank  string `json:"initial_rank"`
}

// Payload implements Event interface.
func (e UserOnboardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"welcome_bonus": e.WelcomeBonus,
		"initial_rank":  e.InitialRank,
	}
}

// NewUserOnboardedEvent creates a new UserOnboardedEvent.
func NewUserOnboardedEvent(userID string, welcomeBonus int, initialRank string) UserOnboardedEvent {
	return UserOnboardedEvent{
		BaseEvent:    NewBaseEvent(EventUserOnboarded, userID),
		UserID:       userID,
		WelcomeBonus: welcomeBonus,
		InitialRank:  initialRank,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
