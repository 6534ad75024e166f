package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedEvent(id string, amount string, durationMs int64, impact float64) model.CompletedEvent {
	return model.CompletedEvent{
		SwapID:     id,
		Amount:     decimal.RequireFromString(amount),
		DurationMs: durationMs,
		ImpactPct:  impact,
		SavingsUSD: decimal.Zero,
		Timestamp:  time.Now().UTC(),
	}
}

func TestRecordCompletedUpdatesAggregates(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)
	ctx := context.Background()

	a.Record(ctx, completedEvent("s1", "100", 4000, 0.3))

	s := a.Summary()
	assert.Equal(t, int64(1), s.TotalEvents)
	assert.InDelta(t, 100, s.SuccessRatePct, 0.001)
	assert.InDelta(t, 4000, s.AverageDurationMs, 0.001) // first sample seeds the average
	assert.True(t, s.TotalVolume.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(1), s.ImpactDistribution.Minimal)
	assert.Zero(t, s.ImpactDistribution.Low)
}

func TestDurationMovingAverage(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)
	ctx := context.Background()

	a.Record(ctx, completedEvent("s1", "1", 4000, 0))
	a.Record(ctx, completedEvent("s2", "1", 6000, 0))

	// 4000*0.9 + 6000*0.1
	assert.InDelta(t, 4200, a.Summary().AverageDurationMs, 0.001)
}

func TestSuccessRateApproximation(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)
	ctx := context.Background()

	a.Record(ctx, completedEvent("s1", "1", 1000, 0))
	a.Record(ctx, model.FailedEvent{SwapID: "s2", ErrorCategory: "network", Timestamp: time.Now().UTC()})

	s := a.Summary()
	assert.InDelta(t, 50, s.SuccessRatePct, 0.001)
	assert.Equal(t, int64(1), s.ErrorCategoryCounts["network"])

	a.Record(ctx, completedEvent("s3", "1", 1000, 0))
	assert.InDelta(t, 66.666, a.Summary().SuccessRatePct, 0.01)
}

func TestImpactBucketBoundaries(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)
	ctx := context.Background()

	for _, impact := range []float64{0.3, 0.5, 1.0, 2.0, 5.0} {
		a.Record(ctx, completedEvent("s", "1", 1000, impact))
	}

	dist := a.Summary().ImpactDistribution
	assert.Equal(t, int64(1), dist.Minimal)
	assert.Equal(t, int64(1), dist.Low)      // 0.5 lands in the higher bucket
	assert.Equal(t, int64(1), dist.Moderate) // 1.0
	assert.Equal(t, int64(1), dist.High)     // 2.0
	assert.Equal(t, int64(1), dist.Extreme)  // 5.0
}

func TestZeroImpactNotBucketed(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)

	a.Record(context.Background(), completedEvent("s1", "1", 1000, 0))

	dist := a.Summary().ImpactDistribution
	assert.Zero(t, dist.Minimal+dist.Low+dist.Moderate+dist.High+dist.Extreme)
}

func TestEventLogCapped(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		a.Record(ctx, completedEvent("s", "1", 1000, 0))
	}

	a.mu.Lock()
	logged := len(a.eventLog)
	a.mu.Unlock()
	assert.Equal(t, 5, logged)
	assert.Equal(t, int64(8), a.Summary().TotalEvents) // aggregates keep counting
}

func TestRestoreFromPersistedLog(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	first := NewAggregator(store, nil, 0)
	first.Record(ctx, completedEvent("s1", "250", 2000, 0.7))
	first.Record(ctx, model.FailedEvent{SwapID: "s2", ErrorCategory: "slippage", Timestamp: time.Now().UTC()})

	second := NewAggregator(store, nil, 0)
	s := second.Summary()
	assert.Equal(t, int64(2), s.TotalEvents)
	assert.InDelta(t, 50, s.SuccessRatePct, 0.001)
	assert.True(t, s.TotalVolume.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, int64(1), s.ErrorCategoryCounts["slippage"])
	assert.Equal(t, int64(1), s.ImpactDistribution.Low)
}

func TestCancelledOnlyCounts(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)

	a.Record(context.Background(), model.CancelledEvent{SwapID: "s1", Reason: "degraded", Timestamp: time.Now().UTC()})

	s := a.Summary()
	assert.Equal(t, int64(1), s.TotalEvents)
	assert.InDelta(t, 100, s.SuccessRatePct, 0.001) // cancellations do not touch the rate
	assert.Empty(t, s.ErrorCategoryCounts)
}

type recordingSink struct {
	records []model.EventRecord
}

func (s *recordingSink) Insert(ctx context.Context, rec *model.EventRecord) error {
	s.records = append(s.records, *rec)
	return nil
}

func TestDurableSinkReceivesEvents(t *testing.T) {
	sink := &recordingSink{}
	a := NewAggregator(repository.NewMemoryStore(), sink, 0)

	a.Record(context.Background(), completedEvent("s1", "10", 1000, 0))

	require.Len(t, sink.records, 1)
	assert.Equal(t, model.EventCompleted, sink.records[0].Kind)
	assert.Equal(t, "s1", sink.records[0].SwapID)
	assert.Equal(t, "10", sink.records[0].Amount)
}

// durableLog records inserts and can replay them, like the Postgres repo.
type durableLog struct {
	records []model.EventRecord
}

func (d *durableLog) Insert(ctx context.Context, rec *model.EventRecord) error {
	d.records = append(d.records, *rec)
	return nil
}

func (d *durableLog) Recent(ctx context.Context, since time.Time) ([]*model.EventRecord, error) {
	var out []*model.EventRecord
	for i := range d.records {
		if d.records[i].Timestamp.After(since) {
			out = append(out, &d.records[i])
		}
	}
	return out, nil
}

func TestRestoreReplaysDurableLogWhenStoreEmpty(t *testing.T) {
	log := &durableLog{}
	ctx := context.Background()

	first := NewAggregator(repository.NewMemoryStore(), log, 0)
	first.Record(ctx, completedEvent("s1", "100", 2000, 0.3))
	first.Record(ctx, model.FailedEvent{SwapID: "s2", ErrorCategory: "network", Timestamp: time.Now().UTC()})

	// Fresh memory store: nothing in the fast path, only the durable log.
	second := NewAggregator(repository.NewMemoryStore(), log, 0)
	s := second.Summary()
	assert.Equal(t, int64(2), s.TotalEvents)
	assert.InDelta(t, 50, s.SuccessRatePct, 0.001)
	assert.Equal(t, int64(1), s.ErrorCategoryCounts["network"])
	assert.InDelta(t, 50, second.recentErrorRate(time.Now()), 0.001)
}

func TestRecentErrorRateWindow(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)
	ctx := context.Background()

	a.Record(ctx, completedEvent("s1", "1", 1000, 0))
	a.Record(ctx, model.FailedEvent{SwapID: "s2", ErrorCategory: "network", Timestamp: time.Now().UTC()})
	a.Record(ctx, model.FailedEvent{SwapID: "s3", ErrorCategory: "network", Timestamp: time.Now().UTC()})

	assert.InDelta(t, 66.666, a.recentErrorRate(time.Now()), 0.01)

	// Events older than the window are excluded.
	assert.Zero(t, a.recentErrorRate(time.Now().Add(10*time.Minute)))
}

func TestHealthMonitorProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAggregator(repository.NewMemoryStore(), nil, 0)
	m := NewHealthMonitor(a, srv.URL, time.Hour)
	m.Start()
	defer m.Stop()

	deadline := time.After(2 * time.Second)
	for {
		snap := m.Snapshot()
		if snap.Up {
			assert.False(t, snap.CheckedAt.IsZero())
			return
		}
		select {
		case <-deadline:
			t.Fatal("probe never reported the backend up")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHealthMonitorDownBackend(t *testing.T) {
	a := NewAggregator(repository.NewMemoryStore(), nil, 0)
	m := NewHealthMonitor(a, "http://127.0.0.1:1/health", time.Hour)

	m.probe(context.Background())
	assert.False(t, m.Snapshot().Up)
}
