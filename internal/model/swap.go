package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one executable price for a swap at a single fee tier.
// Produced by the external price oracle; read-only here.
type Quote struct {
	FeeTier       int             `json:"fee_tier"` // basis points (500 = 0.05%)
	OutputAmount  decimal.Decimal `json:"output_amount"`
	PoolLiquidity decimal.Decimal `json:"pool_liquidity"`
}

// Severity buckets price impact. Thresholds (percent):
// minimal < 0.5 <= low < 1 <= moderate < 2 <= high < 5 <= extreme
type Severity string

const (
	SeverityMinimal  Severity = "minimal"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityExtreme  Severity = "extreme"
)

// SeverityForImpact maps an impact percentage onto its bucket.
// Boundaries belong to the higher bucket (0.5 is "low", not "minimal").
func SeverityForImpact(impactPct float64) Severity {
	switch {
	case impactPct < 0.5:
		return SeverityMinimal
	case impactPct < 1.0:
		return SeverityLow
	case impactPct < 2.0:
		return SeverityModerate
	case impactPct < 5.0:
		return SeverityHigh
	default:
		return SeverityExtreme
	}
}

// SeverityRank orders buckets for monotonicity checks (minimal=0 .. extreme=4).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityMinimal:
		return 0
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeverityHigh:
		return 3
	case SeverityExtreme:
		return 4
	default:
		return 0
	}
}

// PriceImpactAnalysis is the immutable result of one RiskScorer evaluation.
type PriceImpactAnalysis struct {
	ImpactPercentage  float64  `json:"impact_percentage"`
	Severity          Severity `json:"severity"`
	Recommendation    string   `json:"recommendation"`
	OptimalFeeTier    int      `json:"optimal_fee_tier"`
	AlternativeRoutes []string `json:"alternative_routes"`
}

// MevLevel selects one of three fixed protection profiles.
type MevLevel string

const (
	MevBasic    MevLevel = "basic"
	MevStandard MevLevel = "standard"
	MevMaximum  MevLevel = "maximum"
)

// MevProtectionConfig holds the active protection profile.
// Mutated only via MevAdvisor.SetLevel.
type MevProtectionConfig struct {
	Enabled                bool     `json:"enabled"`
	Level                  MevLevel `json:"level"`
	EstimatedProtectionPct float64  `json:"estimated_protection_pct"`
	AddedLatencyMs         int      `json:"added_latency_ms"`
}

// ValidationChecks are the five named pre-submission checks.
type ValidationChecks struct {
	IntentUniqueness    bool `json:"intent_uniqueness"`
	SignatureIntegrity  bool `json:"signature_integrity"`
	RateLimitCompliance bool `json:"rate_limit_compliance"`
	InputSanitization   bool `json:"input_sanitization"`
	TemporalValidation  bool `json:"temporal_validation"`
}

// AllPassed reports whether every named check is true.
func (c ValidationChecks) AllPassed() bool {
	return c.IntentUniqueness && c.SignatureIntegrity && c.RateLimitCompliance &&
		c.InputSanitization && c.TemporalValidation
}

// SecurityValidationResult is the verdict for one intent.
// RiskScore is always within [0,100].
type SecurityValidationResult struct {
	Valid     bool             `json:"valid"`
	Checks    ValidationChecks `json:"checks"`
	RiskScore int              `json:"risk_score"`
	Warnings  []string         `json:"warnings"`
}

// RateLimitStatus reports whether a client may submit another intent now.
type RateLimitStatus struct {
	CanProceed bool   `json:"can_proceed"`
	WaitTimeMs int64  `json:"wait_time_ms"`
	Reason     string `json:"reason,omitempty"`
}

// BackendHealthMetrics tracks backend responsiveness across poll attempts.
type BackendHealthMetrics struct {
	ResponseTimeMs            int64     `json:"response_time_ms"`
	SuccessRatePct            float64   `json:"success_rate_pct"`
	ConsecutiveFailures       int       `json:"consecutive_failures"`
	LastCheck                 time.Time `json:"last_check"`
	RecommendedPollIntervalMs int64     `json:"recommended_poll_interval_ms"`
}

// RecoveryStrategy selects how RecoveryManager reacts to exhausted retries.
type RecoveryStrategy string

const (
	StrategyAutomatic           RecoveryStrategy = "automatic"
	StrategyManual              RecoveryStrategy = "manual"
	StrategyGracefulDegradation RecoveryStrategy = "graceful_degradation"
)

// RecoveryState is the retry bookkeeping for one RecoveryManager instance.
type RecoveryState struct {
	RetryCount        int              `json:"retry_count"`
	MaxRetries        int              `json:"max_retries"`
	BackoffMultiplier float64          `json:"backoff_multiplier"`
	LastError         string           `json:"last_error,omitempty"`
	Strategy          RecoveryStrategy `json:"strategy"`
	IsRecovering      bool             `json:"is_recovering"`
}

// PendingStatus is the lifecycle status of a persisted operation.
type PendingStatus string

const (
	PendingStatusPending   PendingStatus = "pending"
	PendingStatusCompleted PendingStatus = "completed"
	PendingStatusExpired   PendingStatus = "expired"
)

// PendingOperation is a multi-step operation persisted so it can be
// resumed after a restart. Expires one hour after creation.
type PendingOperation struct {
	RecoveryID string            `json:"recovery_id" db:"recovery_id"`
	Payload    map[string]string `json:"payload" db:"-"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	Status     PendingStatus     `json:"status" db:"status"`
}

// RecoveryAction is what RecoverOperation advises the caller to do.
type RecoveryAction string

const (
	ActionComplete    RecoveryAction = "complete"     // confirmation arrived, finish up
	ActionKeepPolling RecoveryAction = "keep_polling" // still in flight
	ActionRetry       RecoveryAction = "retry"        // start over
	ActionExpired     RecoveryAction = "expired"      // too old to resume
)
