package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBreaker returns a breaker on a fixed clock; advance the returned
// pointer to move time.
func testBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func completeOK(_ context.Context) (string, error) {
	return "分析完成", nil
}

func completeFail(_ context.Context) (string, error) {
	return "", eris.New("provider unavailable")
}

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("closed breaker passes the call through", func(t *testing.T) {
		t.Parallel()
		cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

		got, err := ExecuteVal(context.Background(), cb, completeOK)
		require.NoError(t, err)
		assert.Equal(t, "分析完成", got)
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("opens at the failure threshold and rejects without calling", func(t *testing.T) {
		t.Parallel()
		cb, _ := testBreaker(3, time.Minute)

		for i := 0; i < 3; i++ {
			_, err := ExecuteVal(context.Background(), cb, completeFail)
			require.Error(t, err)
		}
		assert.Equal(t, CircuitOpen, cb.State())

		var called bool
		got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
			called = true
			return "should not run", nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Empty(t, got)
		assert.False(t, called)
	})

	t.Run("success resets the consecutive failure count", func(t *testing.T) {
		t.Parallel()
		cb, _ := testBreaker(3, time.Minute)

		for i := 0; i < 2; i++ {
			_, _ = ExecuteVal(context.Background(), cb, completeFail)
		}
		_, err := ExecuteVal(context.Background(), cb, completeOK)
		require.NoError(t, err)

		// Two more failures are below the threshold again.
		for i := 0; i < 2; i++ {
			_, _ = ExecuteVal(context.Background(), cb, completeFail)
		}
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("elapsed reset window reads half-open and a good probe closes", func(t *testing.T) {
		t.Parallel()
		cb, now := testBreaker(2, 30*time.Second)

		for i := 0; i < 2; i++ {
			_, _ = ExecuteVal(context.Background(), cb, completeFail)
		}
		require.Equal(t, CircuitOpen, cb.State())

		*now = now.Add(31 * time.Second)
		assert.Equal(t, CircuitHalfOpen, cb.State())

		_, err := ExecuteVal(context.Background(), cb, completeOK)
		require.NoError(t, err)
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("failed probe reopens for another full window", func(t *testing.T) {
		t.Parallel()
		cb, now := testBreaker(2, 30*time.Second)

		for i := 0; i < 2; i++ {
			_, _ = ExecuteVal(context.Background(), cb, completeFail)
		}
		*now = now.Add(31 * time.Second)

		_, err := ExecuteVal(context.Background(), cb, completeFail)
		require.Error(t, err)
		assert.Equal(t, CircuitOpen, cb.State())

		_, err = ExecuteVal(context.Background(), cb, completeOK)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("run cancellation does not count as a provider failure", func(t *testing.T) {
		t.Parallel()
		cb, _ := testBreaker(1, time.Minute)

		_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
			return "", context.Canceled
		})
		require.Error(t, err)
		assert.Equal(t, CircuitClosed, cb.State())

		// A real failure still trips it.
		_, _ = ExecuteVal(context.Background(), cb, completeFail)
		assert.Equal(t, CircuitOpen, cb.State())
	})
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}
