package analytics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
)

const defaultHealthInterval = 30 * time.Second

// HealthMonitor periodically probes the backend status endpoint for
// latency and pairs it with the short-window error rate from the event
// log. Any successful response counts as up; probe errors only mark the
// backend down, they never fail anything else.
type HealthMonitor struct {
	agg      *Aggregator
	url      string
	interval time.Duration
	client   *http.Client

	mu       sync.RWMutex
	snapshot model.BackendSnapshot

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHealthMonitor(agg *Aggregator, url string, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthMonitor{
		agg:      agg,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Snapshot returns the latest probe result.
func (m *HealthMonitor) Snapshot() model.BackendSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Start launches the probe loop. Probes immediately, then every interval.
func (m *HealthMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		m.probe(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// Stop cancels the probe loop and waits for it to exit.
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

func (m *HealthMonitor) probe(ctx context.Context) {
	now := time.Now()
	snap := model.BackendSnapshot{
		CheckedAt:        now,
		ErrorRatePct5Min: m.agg.recentErrorRate(now),
	}

	if m.url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
		if err == nil {
			start := time.Now()
			resp, err := m.client.Do(req)
			snap.LatencyMs = time.Since(start).Milliseconds()
			if err == nil {
				resp.Body.Close()
				snap.Up = true
			} else {
				logger.Debug("health probe failed", "error", err)
			}
		}
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()
}
