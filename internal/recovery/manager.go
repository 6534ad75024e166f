// Package recovery wraps swap operations with bounded retry and keeps
// resumable state for multi-step operations across restarts.
package recovery

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/GoSwapGuard/swapguard/internal/pkg/metrics"
)

const (
	defaultMaxRetries        = 3
	defaultBackoffMultiplier = 1.5
	baseBackoff              = 1000 * time.Millisecond
	maxBackoff               = 30000 * time.Millisecond
)

// Operation is the wrapped async work. No shape requirement beyond
// "may fail".
type Operation[T any] func(ctx context.Context) (T, error)

// Result carries either the operation's value or a fallback marker when
// the graceful-degradation strategy absorbed an exhausted retry budget.
type Result[T any] struct {
	Value    T
	Fallback bool
}

// Manager retries an operation with exponential backoff. One Manager
// tracks one logical operation's retry state; construct a fresh instance
// per call chain.
type Manager struct {
	mu    sync.Mutex
	state model.RecoveryState

	// overridable in tests
	wait func(ctx context.Context, d time.Duration) error
}

func NewManager(maxRetries int, backoffMultiplier float64, strategy model.RecoveryStrategy) *Manager {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if backoffMultiplier <= 1 {
		backoffMultiplier = defaultBackoffMultiplier
	}
	if strategy == "" {
		strategy = model.StrategyAutomatic
	}
	return &Manager{
		state: model.RecoveryState{
			MaxRetries:        maxRetries,
			BackoffMultiplier: backoffMultiplier,
			Strategy:          strategy,
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

// State returns the current retry bookkeeping.
func (m *Manager) State() model.RecoveryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset clears the retry count and last error, keeping configuration.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.RetryCount = 0
	m.state.LastError = ""
	m.state.IsRecovering = false
}

// Run executes op, retrying transient failures with exponential backoff
// (min(1000*mult^n, 30000) ms, skipped before the first attempt). On an
// exhausted budget the graceful-degradation strategy returns a fallback
// result; every other strategy surfaces the terminal error. Non-transient
// failures propagate immediately for manual handling.
func Run[T any](ctx context.Context, m *Manager, op Operation[T]) (Result[T], error) {
	var zero Result[T]

	for {
		m.mu.Lock()
		if m.state.RetryCount >= m.state.MaxRetries {
			strategy := m.state.Strategy
			lastErr := m.state.LastError
			m.state.IsRecovering = false
			m.mu.Unlock()

			if strategy == model.StrategyGracefulDegradation {
				logger.Warn("retry budget exhausted, degrading gracefully", "last_error", lastErr)
				return Result[T]{Fallback: true}, nil
			}
			return zero, apperrors.NewRetryExhausted(errors.New(lastErr))
		}
		retryCount := m.state.RetryCount
		multiplier := m.state.BackoffMultiplier
		strategy := m.state.Strategy
		m.state.IsRecovering = retryCount > 0
		m.mu.Unlock()

		if retryCount > 0 {
			delay := backoffDelay(retryCount, multiplier)
			metrics.RetriesTotal.WithLabelValues(string(strategy)).Inc()
			if err := m.wait(ctx, delay); err != nil {
				return zero, err
			}
		}

		value, err := op(ctx)
		if err == nil {
			m.Reset()
			return Result[T]{Value: value}, nil
		}

		m.mu.Lock()
		m.state.RetryCount++
		m.state.LastError = err.Error()
		retriesLeft := m.state.RetryCount < m.state.MaxRetries
		m.mu.Unlock()

		if retriesLeft && IsTransient(err) {
			continue
		}
		if retriesLeft {
			// Not recognizably transient: hand it to the caller.
			m.mu.Lock()
			m.state.IsRecovering = false
			m.mu.Unlock()
			return zero, err
		}
		// Budget just hit the ceiling; loop once more to apply the
		// strategy's terminal behavior.
	}
}

func backoffDelay(retryCount int, multiplier float64) time.Duration {
	delay := time.Duration(float64(baseBackoff) * math.Pow(multiplier, float64(retryCount)))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// IsTransient reports whether an error looks like a network or
// availability blip worth retrying automatically.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "timed out", "connection", "network", "temporarily", "unavailable", "reset by peer", "eof", "nonce"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
