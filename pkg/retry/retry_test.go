package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(boom)
		}
		return nil
	}, append(fastOpts(), WithMaxAttempts(5))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	calls := 0
	boom := errors.New("bad dsn")

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(boom)
	}, fastOpts()...)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_PlainErrorNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("plain")
	}, fastOpts()...)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ReturnsUnwrappedAfterLastAttempt(t *testing.T) {
	boom := errors.New("boom")
	var retries []int

	err := Do(context.Background(), func(ctx context.Context) error {
		return Retryable(boom)
	}, append(fastOpts(),
		WithMaxAttempts(3),
		WithOnRetry(func(attempt int, err error, delay time.Duration) { retries = append(retries, attempt) }),
	)...)

	assert.Same(t, boom, err)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartupRetrier_RetriesEverything(t *testing.T) {
	calls := 0
	err := StartupRetrier(fastOpts()...).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoWithData(t *testing.T) {
	v, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))

	var got []time.Duration
	for attempt := 1; attempt <= 4; attempt++ {
		got = append(got, r.backoff(attempt))
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}, got)
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithJitter(0.2))

	for i := 0; i < 100; i++ {
		d := r.backoff(1)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
