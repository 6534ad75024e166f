package validate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/GoSwapGuard/swapguard/internal/repository"
)

// rateWindow is one sliding-window rule: at most Limit requests per Span.
type rateWindow struct {
	Name  string
	Span  time.Duration
	Limit int
}

// Three concurrent windows, checked independently. The first violated
// window (narrowest first) determines the reported wait time.
var rateWindows = []rateWindow{
	{Name: "1m", Span: time.Minute, Limit: 10},
	{Name: "5m", Span: 5 * time.Minute, Limit: 25},
	{Name: "1h", Span: time.Hour, Limit: 100},
}

// CheckRateLimitStatus reports whether the user may submit another intent
// now. All requests count, not just matching ones. Fails open: if the
// history itself cannot be read, proceeding is allowed.
func (v *Validator) CheckRateLimitStatus(ctx context.Context, userAddress string) model.RateLimitStatus {
	var history []requestRecord
	err := v.store.Get(ctx, historyKey(userAddress), &history)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Warn("rate limit history unavailable, allowing", "error", err)
		return model.RateLimitStatus{CanProceed: true}
	}

	now := time.Now()
	for _, w := range rateWindows {
		cutoff := now.Add(-w.Span)
		count := 0
		oldest := time.Time{}
		for _, rec := range history {
			if rec.Timestamp.After(cutoff) {
				count++
				if oldest.IsZero() || rec.Timestamp.Before(oldest) {
					oldest = rec.Timestamp
				}
			}
		}
		if count >= w.Limit {
			// Wait until the oldest counted request leaves the window.
			wait := oldest.Add(w.Span).Sub(now)
			if wait < 0 {
				wait = 0
			}
			return model.RateLimitStatus{
				CanProceed: false,
				WaitTimeMs: wait.Milliseconds(),
				Reason:     fmt.Sprintf("limit of %d requests per %s reached", w.Limit, w.Name),
			}
		}
	}

	return model.RateLimitStatus{CanProceed: true}
}
