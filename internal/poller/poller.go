// Package poller wraps a confirmation-style operation with adaptive
// retry pacing driven by observed backend responsiveness.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/pkg/metrics"
)

// The interval is always one of these fixed values, chosen by threshold
// rules. Never interpolated.
const (
	intervalFast     = 1000 * time.Millisecond
	intervalDefault  = 2000 * time.Millisecond
	intervalSlow     = 4000 * time.Millisecond
	intervalDegraded = 5000 * time.Millisecond
	intervalBackoff  = 10000 * time.Millisecond
)

// Operation is one poll attempt. A nil error means the confirmation
// arrived and polling stops.
type Operation[T any] func(ctx context.Context) (T, error)

// Progress is invoked after every attempt with the attempt number (1-based)
// and the current health snapshot.
type Progress func(attempt int, health model.BackendHealthMetrics)

// AdaptivePoller tracks backend health across attempts and adjusts the
// wait between them. Attempts within one Poll call are strictly
// sequential; independent Poll calls may interleave freely.
type AdaptivePoller struct {
	mu     sync.Mutex
	health model.BackendHealthMetrics

	// overridable in tests
	wait func(ctx context.Context, d time.Duration) error
}

func NewAdaptivePoller() *AdaptivePoller {
	return &AdaptivePoller{
		health: model.BackendHealthMetrics{
			SuccessRatePct:            100,
			RecommendedPollIntervalMs: intervalDefault.Milliseconds(),
		},
		wait: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Health returns the current metrics snapshot.
func (p *AdaptivePoller) Health() model.BackendHealthMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

// Poll runs op up to maxAttempts times, sleeping the recommended interval
// between failures. Cancelling ctx stops the wait immediately.
func Poll[T any](ctx context.Context, p *AdaptivePoller, op Operation[T], maxAttempts int, onProgress Progress) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		result, err := op(ctx)
		elapsed := time.Since(start)

		health := p.update(elapsed, err == nil)
		if onProgress != nil {
			onProgress(attempt, health)
		}

		if err == nil {
			metrics.PollAttempts.WithLabelValues("success").Inc()
			return result, nil
		}
		lastErr = err
		metrics.PollAttempts.WithLabelValues("failure").Inc()

		if attempt == maxAttempts {
			break
		}

		// Interval read after the update so the just-observed failure
		// already shapes the wait.
		interval := time.Duration(health.RecommendedPollIntervalMs) * time.Millisecond
		if err := p.wait(ctx, interval); err != nil {
			return zero, err
		}
	}

	metrics.PollAttempts.WithLabelValues("exhausted").Inc()
	return zero, apperrors.NewPollExhausted(maxAttempts, lastErr)
}

// update applies one attempt's outcome to the health metrics and returns
// the new snapshot. The interval cascade is evaluated in priority order.
func (p *AdaptivePoller) update(elapsed time.Duration, success bool) model.BackendHealthMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := &p.health
	h.ResponseTimeMs = elapsed.Milliseconds()
	h.LastCheck = time.Now()

	if success {
		h.ConsecutiveFailures = 0
		h.SuccessRatePct += 1
		if h.SuccessRatePct > 100 {
			h.SuccessRatePct = 100
		}
	} else {
		h.ConsecutiveFailures++
		h.SuccessRatePct -= 5
		if h.SuccessRatePct < 0 {
			h.SuccessRatePct = 0
		}
	}

	switch {
	case h.ConsecutiveFailures > 3:
		h.RecommendedPollIntervalMs = intervalBackoff.Milliseconds()
	case h.ConsecutiveFailures > 1:
		h.RecommendedPollIntervalMs = intervalDegraded.Milliseconds()
	case h.ResponseTimeMs > 3000:
		h.RecommendedPollIntervalMs = intervalSlow.Milliseconds()
	case h.ResponseTimeMs < 500 && h.SuccessRatePct > 95:
		h.RecommendedPollIntervalMs = intervalFast.Milliseconds()
	default:
		h.RecommendedPollIntervalMs = intervalDefault.Milliseconds()
	}

	return p.health
}
