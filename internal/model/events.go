package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind discriminates swap lifecycle events.
type EventKind string

const (
	EventInitiated EventKind = "initiated"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// SwapEvent is a closed union over the four lifecycle event kinds.
// Each kind carries only the fields relevant to it.
type SwapEvent interface {
	Kind() EventKind
	OccurredAt() time.Time
}

type InitiatedEvent struct {
	SwapID    string          `json:"swap_id"`
	Amount    decimal.Decimal `json:"amount"`
	ImpactPct float64         `json:"impact_pct"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e InitiatedEvent) Kind() EventKind       { return EventInitiated }
func (e InitiatedEvent) OccurredAt() time.Time { return e.Timestamp }

type CompletedEvent struct {
	SwapID     string          `json:"swap_id"`
	Amount     decimal.Decimal `json:"amount"`
	DurationMs int64           `json:"duration_ms"`
	ImpactPct  float64         `json:"impact_pct"`
	SavingsUSD decimal.Decimal `json:"savings_usd"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e CompletedEvent) Kind() EventKind       { return EventCompleted }
func (e CompletedEvent) OccurredAt() time.Time { return e.Timestamp }

type FailedEvent struct {
	SwapID        string    `json:"swap_id"`
	ErrorCategory string    `json:"error_category"`
	ImpactPct     float64   `json:"impact_pct"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e FailedEvent) Kind() EventKind       { return EventFailed }
func (e FailedEvent) OccurredAt() time.Time { return e.Timestamp }

type CancelledEvent struct {
	SwapID    string    `json:"swap_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e CancelledEvent) Kind() EventKind       { return EventCancelled }
func (e CancelledEvent) OccurredAt() time.Time { return e.Timestamp }

// EventRecord is the flat persisted form of a SwapEvent, one row per event.
type EventRecord struct {
	Kind          EventKind `json:"kind" db:"kind"`
	SwapID        string    `json:"swap_id" db:"swap_id"`
	Amount        string    `json:"amount,omitempty" db:"amount"`
	DurationMs    int64     `json:"duration_ms,omitempty" db:"duration_ms"`
	ImpactPct     float64   `json:"impact_pct,omitempty" db:"impact_pct"`
	SavingsUSD    string    `json:"savings_usd,omitempty" db:"savings_usd"`
	ErrorCategory string    `json:"error_category,omitempty" db:"error_category"`
	Timestamp     time.Time `json:"timestamp" db:"ts"`
}

// ImpactBuckets is the fixed 5-bucket histogram over severity.
type ImpactBuckets struct {
	Minimal  int64 `json:"minimal"`
	Low      int64 `json:"low"`
	Moderate int64 `json:"moderate"`
	High     int64 `json:"high"`
	Extreme  int64 `json:"extreme"`
}

// AnalyticsSummary is a point-in-time snapshot of the running aggregates.
type AnalyticsSummary struct {
	SuccessRatePct      float64          `json:"success_rate_pct"`
	AverageDurationMs   float64          `json:"average_duration_ms"`
	TotalVolume         decimal.Decimal  `json:"total_volume"`
	TotalSavings        decimal.Decimal  `json:"total_savings"`
	TotalEvents         int64            `json:"total_events"`
	ErrorCategoryCounts map[string]int64 `json:"error_category_counts"`
	ImpactDistribution  ImpactBuckets    `json:"impact_distribution"`
}

// BackendSnapshot is the result of one periodic health probe.
type BackendSnapshot struct {
	Up               bool      `json:"up"`
	LatencyMs        int64     `json:"latency_ms"`
	ErrorRatePct5Min float64   `json:"error_rate_pct_5min"`
	CheckedAt        time.Time `json:"checked_at"`
}
