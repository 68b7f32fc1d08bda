// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Currency errors
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Rank configuration errors
	ErrInvalidRankTable = errors.New("invalid rank threshold table")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "rank", "achievement"
	Op      string // Operation that failed, e.g., "AddCoins", "Claim"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// InsufficientBalanceError carries the amounts involved in a rejected spend,
// so the caller can tell the user exactly how short they are.
type InsufficientBalanceError struct {
	Required  int
	Available int
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, available %d", e.Required, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientBalance) match.
func (e *InsufficientBalanceError) Is(target error) bool {
	return errors.Is(target, ErrInsufficientBalance)
}

// NewInsufficientBalanceError creates the typed spend-rejection error.
func NewInsufficientBalanceError(required, available int) *InsufficientBalanceError {
	return &InsufficientBalanceError{Required: required, Available: available}
}

// InvalidRankTableError reports why a candidate rank table was rejected at
// load time. Evaluation never sees a bad table.
type InvalidRankTableError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidRankTableError) Error() string {
	return fmt.Sprintf("invalid rank threshold table: %s", e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRankTable) match.
func (e *InvalidRankTableError) Is(target error) bool {
	return errors.Is(target, ErrInvalidRankTable)
}

// NewInvalidRankTableError creates the typed table-rejection error.
func NewInvalidRankTableError(reason string) *InvalidRankTableError {
	return &InvalidRankTableError{Reason: reason}
}

// Stats domain errors
var (
	ErrStatsNotFound     = NewDomainError("stats", "Find", ErrNotFound, "user stats not found")
	ErrStatsExist        = NewDomainError("stats", "Create", ErrAlreadyExists, "user stats already exist")
	ErrInvalidUserID     = NewDomainError("stats", "Validate", ErrInvalidID, "invalid user ID")
	ErrXPWouldDecrease   = NewDomainError("stats", "ApplyXP", ErrInvalidState, "total XP is non-decreasing")
	ErrInvalidScore      = NewDomainError("stats", "RecordScore", ErrValueOutOfRange, "score must be between 0 and 100")
	ErrStaleStatsVersion = NewDomainError("stats", "Save", ErrConcurrentModification, "stats were modified concurrently")
)

// Ledger domain errors
var (
	ErrTransactionNotFound   = NewDomainError("ledger", "Find", ErrNotFound, "transaction not found")
	ErrNonPositiveAmount     = NewDomainError("ledger", "Validate", ErrInvalidAmount, "coin amount must be positive")
	ErrInvalidMultiplier     = NewDomainError("ledger", "Validate", ErrValueOutOfRange, "multiplier must be at least 1.0")
	ErrInvalidTransactionTyp = NewDomainError("ledger", "Validate", ErrInvalidInput, "unknown transaction type")
	ErrBalanceMismatch       = NewDomainError("ledger", "Audit", ErrInvalidState, "recorded balance disagrees with transaction log")
)

// Rank domain errors
var (
	ErrRankTableNotFound = NewDomainError("rank", "Load", ErrNotFound, "rank definition not found")
	ErrUnknownRank       = NewDomainError("rank", "Find", ErrNotFound, "unknown rank ID")
	ErrEmptySample       = NewDomainError("rank", "Simulate", ErrInvalidInput, "simulation sample is empty")
)

// Multiplier domain errors
var (
	ErrMultiplierNotFound  = NewDomainError("multiplier", "Find", ErrNotFound, "multiplier source not found")
	ErrMultiplierBelowOne  = NewDomainError("multiplier", "Validate", ErrValueOutOfRange, "multiplier value must be at least 1.0")
	ErrTemporaryNeedsTTL   = NewDomainError("multiplier", "Validate", ErrInvalidInput, "temporary multiplier requires an expiry")
	ErrPermanentHasExpiry  = NewDomainError("multiplier", "Validate", ErrInvalidInput, "permanent multiplier cannot expire")
	ErrDuplicateRankSource = NewDomainError("multiplier", "Grant", ErrAlreadyExists, "rank multiplier source already present")
)

// Achievement domain errors
var (
	ErrAchievementNotFound  = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrAchievementNotEarned = NewDomainError("achievement", "Claim", ErrInvalidState, "achievement is not completed yet")
	ErrRewardsClaimed       = NewDomainError("achievement", "Claim", ErrAlreadyProcessed, "achievement rewards already claimed")
	ErrUnknownConditionKind = NewDomainError("achievement", "Validate", ErrInvalidInput, "unknown achievement condition kind")
	ErrInvalidMaxProgress   = NewDomainError("achievement", "Validate", ErrValueOutOfRange, "max progress must be positive")
)

// Power-up domain errors
var (
	ErrPowerUpNotFound    = NewDomainError("powerup", "Find", ErrNotFound, "power-up kind not found")
	ErrPowerUpUnavailable = NewDomainError("powerup", "Use", ErrInvalidState, "no charges of this power-up left")
	ErrInvalidQuantity    = NewDomainError("powerup", "Purchase", ErrInvalidAmount, "quantity must be positive")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInsufficientBalance checks if the error is a rejected spend.
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
