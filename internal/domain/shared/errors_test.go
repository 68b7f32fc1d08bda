package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_MatchesBaseKind(t *testing.T) {
	assert.True(t, errors.Is(ErrStatsNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrStatsExist, ErrAlreadyExists))
	assert.True(t, errors.Is(ErrStaleStatsVersion, ErrConcurrentModification))
	assert.True(t, errors.Is(ErrRankTableNotFound, ErrNotFound))

	assert.False(t, errors.Is(ErrStatsNotFound, ErrAlreadyExists))
}

func TestDomainError_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("loading user: %w", ErrStatsNotFound)
	assert.True(t, IsNotFound(wrapped))
}

func TestInsufficientBalanceError(t *testing.T) {
	err := NewInsufficientBalanceError(150, 40)
	assert.True(t, IsInsufficientBalance(err))
	assert.Equal(t, 150, err.Required)
	assert.Equal(t, 40, err.Available)
	assert.Contains(t, err.Error(), "required 150")
	assert.Contains(t, err.Error(), "available 40")
}

func TestInvalidRankTableError(t *testing.T) {
	err := NewInvalidRankTableError("tier 0 threshold must be 0")
	assert.True(t, errors.Is(err, ErrInvalidRankTable))
	assert.Contains(t, err.Error(), "tier 0 threshold must be 0")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrStaleStatsVersion))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(fmt.Errorf("save: %w", ErrConcurrentModification)))

	assert.False(t, IsRetryable(ErrStatsNotFound))
	assert.False(t, IsRetryable(errors.New("broken pipe")))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidScore))
	assert.True(t, IsValidation(ErrInvalidUserID))
	assert.False(t, IsValidation(ErrStatsNotFound))
}
