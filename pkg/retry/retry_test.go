package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastOpts(maxAttempts int) []Option {
	return []Option{
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
		WithJitter(0),
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, fastOpts(3)...)

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	wantErr := errors.New("version conflict")
	calls := 0

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(wantErr)
		}
		return nil
	}, fastOpts(5)...)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("still conflicting")
	calls := 0

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(wantErr)
	}, fastOpts(4)...)

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 4, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	wantErr := errors.New("not found")
	calls := 0

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	}, fastOpts(5)...)

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentShortCircuits(t *testing.T) {
	wantErr := errors.New("bad input")
	calls := 0

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(wantErr)
	}, fastOpts(5)...)

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomRetryIf(t *testing.T) {
	conflict := errors.New("conflict")
	calls := 0

	opts := append(fastOpts(5), WithRetryIf(func(err error) bool {
		return errors.Is(err, conflict)
	}))

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return conflict
		}
		return nil
	}, opts...)

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wantErr := errors.New("conflict")
	calls := 0

	err := Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(wantErr)
	}, WithMaxAttempts(10), WithInitialDelay(time.Minute))

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int

	opts := append(fastOpts(3), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}))

	_ = Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errors.New("conflict"))
	}, opts...)

	// Retried after attempts 1 and 2; no sleep after the last attempt.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	value, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, Retryable(errors.New("conflict"))
		}
		return 42, nil
	}, fastOpts(3)...)

	assert.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestOptimisticLockRetrier(t *testing.T) {
	conflict := errors.New("stale version")
	calls := 0

	r := OptimisticLockRetrier(func(err error) bool {
		return errors.Is(err, conflict)
	})

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return conflict
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestErrorWrappers(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsRetryable(Retryable(base)))
	assert.False(t, IsRetryable(base))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Retryable(base), base)
	assert.ErrorIs(t, Permanent(base), base)

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
}
