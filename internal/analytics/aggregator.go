// Package analytics keeps running aggregates over swap lifecycle events
// and a capped, persisted copy of the raw event log.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/GoSwapGuard/swapguard/internal/pkg/metrics"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	eventLogKey     = "analytics:events"
	defaultLogCap   = 1000
	emaOldWeight    = 0.9
	emaNewWeight    = 0.1
	errorRateWindow = 5 * time.Minute
)

// DurableEventSink receives a durable copy of every event (optional).
type DurableEventSink interface {
	Insert(ctx context.Context, rec *model.EventRecord) error
}

// DurableEventSource lets a sink hand back recent events, so aggregates
// survive a restart even when the fast store was memory-only.
type DurableEventSource interface {
	Recent(ctx context.Context, since time.Time) ([]*model.EventRecord, error)
}

// Aggregator records swap lifecycle events and maintains the running
// aggregates. Safe for concurrent use.
type Aggregator struct {
	store  repository.KVStore
	sink   DurableEventSink
	logCap int

	mu             sync.Mutex
	eventLog       []model.EventRecord
	totalEvents    int64
	attempts       int64 // completed + failed, drives the approximate rate
	successRatePct float64
	avgDurationMs  float64
	durationSeen   bool
	totalVolume    decimal.Decimal
	totalSavings   decimal.Decimal
	errCounts      map[string]int64
	buckets        model.ImpactBuckets
}

func NewAggregator(store repository.KVStore, sink DurableEventSink, logCap int) *Aggregator {
	if logCap <= 0 {
		logCap = defaultLogCap
	}
	a := &Aggregator{
		store:          store,
		sink:           sink,
		logCap:         logCap,
		successRatePct: 100,
		totalVolume:    decimal.Zero,
		totalSavings:   decimal.Zero,
		errCounts:      make(map[string]int64),
	}
	a.restore()
	return a
}

// restore reloads the persisted event log so aggregates survive a restart.
// When the fast store has nothing (memory-only deployment), the durable
// sink's recent events are replayed instead.
func (a *Aggregator) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var saved []model.EventRecord
	if err := a.store.Get(ctx, eventLogKey, &saved); err != nil || len(saved) == 0 {
		saved = a.restoreFromDurable(ctx)
	}
	for i := range saved {
		a.applyLocked(&saved[i])
		a.eventLog = append(a.eventLog, saved[i])
	}
	for len(a.eventLog) > a.logCap {
		a.eventLog = a.eventLog[1:]
	}
}

func (a *Aggregator) restoreFromDurable(ctx context.Context) []model.EventRecord {
	src, ok := a.sink.(DurableEventSource)
	if !ok {
		return nil
	}
	// One hour comfortably covers the error-rate window.
	recent, err := src.Recent(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		logger.Warn("failed to replay durable event log", "error", err)
		return nil
	}
	out := make([]model.EventRecord, 0, len(recent))
	for _, rec := range recent {
		out = append(out, *rec)
	}
	return out
}

// Record folds one event into the aggregates and appends it to the log.
func (a *Aggregator) Record(ctx context.Context, event model.SwapEvent) {
	rec := flatten(event)
	metrics.SwapEvents.WithLabelValues(string(rec.Kind)).Inc()

	a.mu.Lock()
	a.applyLocked(&rec)
	a.eventLog = append(a.eventLog, rec)
	for len(a.eventLog) > a.logCap {
		a.eventLog = a.eventLog[1:]
	}
	snapshot := make([]model.EventRecord, len(a.eventLog))
	copy(snapshot, a.eventLog)
	a.mu.Unlock()

	// Persistence is best effort; losing an update loses only heuristics.
	if err := a.store.Set(ctx, eventLogKey, snapshot); err != nil {
		logger.Warn("failed to persist event log", "error", err)
	}
	if a.sink != nil {
		if err := a.sink.Insert(ctx, &rec); err != nil {
			logger.Warn("failed to write durable event", "error", err)
		}
	}
}

func (a *Aggregator) applyLocked(rec *model.EventRecord) {
	a.totalEvents++

	switch rec.Kind {
	case model.EventCompleted:
		// Approximate running rate: infer the success count from the
		// current percentage instead of keeping an exact tally.
		successes := a.successRatePct / 100 * float64(a.attempts)
		a.successRatePct = (successes + 1) / float64(a.attempts+1) * 100
		a.attempts++

		if !a.durationSeen {
			a.avgDurationMs = float64(rec.DurationMs)
			a.durationSeen = true
		} else {
			a.avgDurationMs = a.avgDurationMs*emaOldWeight + float64(rec.DurationMs)*emaNewWeight
		}

		if amt, err := decimal.NewFromString(rec.Amount); err == nil {
			a.totalVolume = a.totalVolume.Add(amt)
		}
		if sav, err := decimal.NewFromString(rec.SavingsUSD); err == nil {
			a.totalSavings = a.totalSavings.Add(sav)
		}

	case model.EventFailed:
		successes := a.successRatePct / 100 * float64(a.attempts)
		a.successRatePct = successes / float64(a.attempts+1) * 100
		a.attempts++

		if rec.ErrorCategory != "" {
			a.errCounts[rec.ErrorCategory]++
		}
	}

	if rec.ImpactPct > 0 {
		switch model.SeverityForImpact(rec.ImpactPct) {
		case model.SeverityMinimal:
			a.buckets.Minimal++
		case model.SeverityLow:
			a.buckets.Low++
		case model.SeverityModerate:
			a.buckets.Moderate++
		case model.SeverityHigh:
			a.buckets.High++
		case model.SeverityExtreme:
			a.buckets.Extreme++
		}
	}
}

// Summary returns a point-in-time snapshot of the aggregates.
func (a *Aggregator) Summary() model.AnalyticsSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[string]int64, len(a.errCounts))
	for k, v := range a.errCounts {
		counts[k] = v
	}
	return model.AnalyticsSummary{
		SuccessRatePct:      a.successRatePct,
		AverageDurationMs:   a.avgDurationMs,
		TotalVolume:         a.totalVolume,
		TotalSavings:        a.totalSavings,
		TotalEvents:         a.totalEvents,
		ErrorCategoryCounts: counts,
		ImpactDistribution:  a.buckets,
	}
}

// recentErrorRate computes the failed share of attempts inside the
// 5-minute window from the in-memory log.
func (a *Aggregator) recentErrorRate(now time.Time) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-errorRateWindow)
	var completed, failed int
	for i := len(a.eventLog) - 1; i >= 0; i-- {
		rec := &a.eventLog[i]
		if rec.Timestamp.Before(cutoff) {
			break
		}
		switch rec.Kind {
		case model.EventCompleted:
			completed++
		case model.EventFailed:
			failed++
		}
	}
	total := completed + failed
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total) * 100
}

func flatten(event model.SwapEvent) model.EventRecord {
	rec := model.EventRecord{Kind: event.Kind(), Timestamp: event.OccurredAt()}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	switch e := event.(type) {
	case model.InitiatedEvent:
		rec.SwapID = e.SwapID
		rec.Amount = e.Amount.String()
		rec.ImpactPct = e.ImpactPct
	case model.CompletedEvent:
		rec.SwapID = e.SwapID
		rec.Amount = e.Amount.String()
		rec.DurationMs = e.DurationMs
		rec.ImpactPct = e.ImpactPct
		rec.SavingsUSD = e.SavingsUSD.String()
	case model.FailedEvent:
		rec.SwapID = e.SwapID
		rec.ErrorCategory = e.ErrorCategory
		rec.ImpactPct = e.ImpactPct
	case model.CancelledEvent:
		rec.SwapID = e.SwapID
		rec.ErrorCategory = e.Reason
	}
	return rec
}
