package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instant replaces the inter-attempt sleep so tests never wait.
func instant(p *AdaptivePoller) *[]time.Duration {
	var waits []time.Duration
	p.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return &waits
}

func TestPollSucceedsFirstAttempt(t *testing.T) {
	p := NewAdaptivePoller()
	instant(p)

	calls := 0
	got, err := Poll(context.Background(), p, func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}, 5, nil)

	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 1, calls)

	h := p.Health()
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.InDelta(t, 100, h.SuccessRatePct, 0.001)
}

func TestPollExhaustsAttempts(t *testing.T) {
	p := NewAdaptivePoller()
	waits := instant(p)

	calls := 0
	_, err := Poll(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("not yet confirmed")
	}, 4, nil)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Len(t, *waits, 3) // no sleep after the final attempt

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrPollExhausted, appErr.Type)

	h := p.Health()
	assert.Equal(t, 4, h.ConsecutiveFailures)
	assert.InDelta(t, 80, h.SuccessRatePct, 0.001)
}

func TestPollIntervalCascade(t *testing.T) {
	p := NewAdaptivePoller()
	waits := instant(p)

	fail := func(ctx context.Context) (int, error) { return 0, errors.New("pending") }
	_, err := Poll(context.Background(), p, fail, 5, nil)
	require.Error(t, err)

	// Failure streak: 1 -> default, 2..3 -> degraded, 4 -> backoff.
	assert.Equal(t, []time.Duration{
		2000 * time.Millisecond,
		5000 * time.Millisecond,
		5000 * time.Millisecond,
		10000 * time.Millisecond,
	}, *waits)
}

func TestPollFastIntervalOnHealthyBackend(t *testing.T) {
	p := NewAdaptivePoller()
	instant(p)

	// A quick success with a full success rate selects the fast interval.
	h := p.update(50*time.Millisecond, true)
	assert.Equal(t, int64(1000), h.RecommendedPollIntervalMs)
}

func TestPollSlowIntervalOnHighLatency(t *testing.T) {
	p := NewAdaptivePoller()

	h := p.update(3500*time.Millisecond, true)
	assert.Equal(t, int64(4000), h.RecommendedPollIntervalMs)
}

func TestPollSuccessRateClamped(t *testing.T) {
	p := NewAdaptivePoller()

	var h model.BackendHealthMetrics
	for i := 0; i < 30; i++ {
		h = p.update(10*time.Millisecond, false)
	}
	assert.InDelta(t, 0, h.SuccessRatePct, 0.001)

	for i := 0; i < 200; i++ {
		h = p.update(10*time.Millisecond, true)
	}
	assert.InDelta(t, 100, h.SuccessRatePct, 0.001)
}

func TestPollRecoveryResetsFailureStreak(t *testing.T) {
	p := NewAdaptivePoller()

	p.update(10*time.Millisecond, false)
	p.update(10*time.Millisecond, false)
	h := p.update(10*time.Millisecond, true)

	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.Equal(t, int64(2000), h.RecommendedPollIntervalMs)
}

func TestPollProgressCallback(t *testing.T) {
	p := NewAdaptivePoller()
	instant(p)

	var attempts []int
	failures := 2
	_, err := Poll(context.Background(), p, func(ctx context.Context) (bool, error) {
		if failures > 0 {
			failures--
			return false, errors.New("pending")
		}
		return true, nil
	}, 10, func(attempt int, health model.BackendHealthMetrics) {
		attempts = append(attempts, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestPollStopsOnContextCancel(t *testing.T) {
	p := NewAdaptivePoller()
	// Real waits here; the cancel must interrupt the first one.
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Poll(ctx, p, func(ctx context.Context) (bool, error) {
			return false, errors.New("pending")
		}, 10, nil)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after cancellation")
	}
}
