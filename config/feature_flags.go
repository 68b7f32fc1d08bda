package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts for the
// rewards engine. Reward semantics stay stable; flags gate the features
// layered on top of them (power-ups, secret achievements, rankings).
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // platform user UUID
	IsAdmin bool   // admin users get all features
}

// Predefined feature flag names.
const (
	// === Reward Features ===
	FeatureRewardStreakMultipliers = "reward.streak_multipliers" // streak-based multiplier grants
	FeatureRewardEventMultipliers  = "reward.event_multipliers"  // seasonal event boosts
	FeatureRewardDailySummary      = "reward.daily_summary"      // per-day coin summaries in stats

	// === Achievement Features ===
	FeatureAchievementSecret     = "achievement.secret"      // hidden achievements
	FeatureAchievementRepeatable = "achievement.repeatable"  // repeatable completions
	FeatureAchievementSweep      = "achievement.batch_sweep" // scheduled re-detection

	// === Economy Features ===
	FeatureEconomyPowerUps   = "economy.powerups"    // power-up purchases
	FeatureEconomyTopEarners = "economy.top_earners" // earner rankings
	FeatureEconomyAudit      = "economy.audit"       // scheduled balance audits
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Reward features - enabled by default, they are the product
	ff.features[FeatureRewardStreakMultipliers] = &Feature{
		Name:           FeatureRewardStreakMultipliers,
		Description:    "Grant temporary multipliers for activity streaks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRewardEventMultipliers] = &Feature{
		Name:           FeatureRewardEventMultipliers,
		Description:    "Seasonal event multiplier grants",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRewardDailySummary] = &Feature{
		Name:           FeatureRewardDailySummary,
		Description:    "Include per-day coin summaries in stats responses",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Achievement features
	ff.features[FeatureAchievementSecret] = &Feature{
		Name:           FeatureAchievementSecret,
		Description:    "Hidden achievements revealed on completion",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAchievementRepeatable] = &Feature{
		Name:           FeatureAchievementRepeatable,
		Description:    "Allow repeatable achievement completions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAchievementSweep] = &Feature{
		Name:           FeatureAchievementSweep,
		Description:    "Scheduled batch re-detection of achievement progress",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Economy features
	ff.features[FeatureEconomyPowerUps] = &Feature{
		Name:           FeatureEconomyPowerUps,
		Description:    "Power-up purchases with ML Coins",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	ff.features[FeatureEconomyTopEarners] = &Feature{
		Name:           FeatureEconomyTopEarners,
		Description:    "Top earner rankings by period",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEconomyAudit] = &Feature{
		Name:           FeatureEconomyAudit,
		Description:    "Scheduled ledger-vs-balance spot checks",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment applies FEATURE_* environment overrides.
// FEATURE_ECONOMY_POWERUPS=false disables economy.powerups; a numeric
// value sets the rollout percentage.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if percent, err := strconv.Atoi(val); err == nil {
			if percent >= 0 && percent <= 100 {
				feature.RolloutPercent = percent
				feature.Enabled = percent > 0
			}
			continue
		}

		if enabled, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = enabled
			if enabled && feature.RolloutPercent == 0 {
				feature.RolloutPercent = 100
			}
		}
	}
}

func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
