package validate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/config"
	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/GoSwapGuard/swapguard/internal/pkg/metrics"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Risk score contributions per failed check.
const (
	scoreMissingFields    = 25
	scoreBadAmount        = 20
	scoreSuspiciousAmount = 15
	scoreBadAddress       = 30
	scoreRateLimited      = 40
	scoreDuplicateIntent  = 35
	scoreTemporalAnomaly  = 20

	rejectThreshold     = 50
	suspiciousThreshold = 30

	// Allowed forward clock skew before a history record counts as anomalous.
	maxClockSkew = 5 * time.Second
)

// Intent is a prospective swap awaiting validation.
type Intent struct {
	FromToken   string `json:"from_token"`
	ToToken     string `json:"to_token"`
	Amount      string `json:"amount"`
	UserAddress string `json:"user_address"`
}

func (i Intent) fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s", i.FromToken, i.ToToken, i.Amount, i.UserAddress)
}

type requestRecord struct {
	FromToken string    `json:"from_token"`
	ToToken   string    `json:"to_token"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (r requestRecord) matches(in Intent) bool {
	return r.FromToken == in.FromToken && r.ToToken == in.ToToken && r.Amount == in.Amount
}

// Counters are the validator's global tallies.
type Counters struct {
	TotalValidations   int64 `json:"total_validations"`
	RejectedRequests   int64 `json:"rejected_requests"`
	SuspiciousActivity int64 `json:"suspicious_activity"`
}

// Validator performs pre-submission checks on swap intents.
// Valid results are cached (FIFO, capped); failures are never cached so a
// corrected retry is re-evaluated. Safe for concurrent use.
type Validator struct {
	store repository.KVStore

	suspiciousAmount decimal.Decimal
	duplicateWindow  time.Duration
	burstWindow      time.Duration
	burstLimit       int
	cacheSize        int

	mu        sync.Mutex
	cacheKeys []string // insertion order, for oldest-first eviction
	counters  Counters
}

func NewValidator(store repository.KVStore, cfg config.ValidationConfig) *Validator {
	v := &Validator{
		store:            store,
		suspiciousAmount: decimal.NewFromFloat(cfg.SuspiciousAmount),
		duplicateWindow:  time.Duration(cfg.DuplicateWindowSeconds) * time.Second,
		burstWindow:      time.Duration(cfg.BurstWindowSeconds) * time.Second,
		burstLimit:       cfg.BurstLimit,
		cacheSize:        cfg.CacheSize,
	}
	if v.suspiciousAmount.Sign() <= 0 {
		v.suspiciousAmount = decimal.NewFromInt(10000)
	}
	if v.duplicateWindow <= 0 {
		v.duplicateWindow = 30 * time.Second
	}
	if v.burstWindow <= 0 {
		v.burstWindow = 60 * time.Second
	}
	if v.burstLimit <= 0 {
		v.burstLimit = 5
	}
	if v.cacheSize <= 0 {
		v.cacheSize = 100
	}
	return v
}

// Validate runs every check and returns a structured verdict. It never
// returns an error: an unusable store yields a maximally-invalid result
// (fail closed).
func (v *Validator) Validate(ctx context.Context, in Intent) model.SecurityValidationResult {
	v.mu.Lock()
	v.counters.TotalValidations++
	v.mu.Unlock()

	if cached, ok := v.cachedResult(ctx, in); ok {
		// Cache hits still count against the rate-limit windows.
		if history, err := v.loadHistory(ctx, in.UserAddress); err == nil {
			v.appendHistory(ctx, in, time.Now(), history)
		}
		metrics.ValidationsTotal.WithLabelValues("cached").Inc()
		return cached
	}

	result := model.SecurityValidationResult{
		Checks: model.ValidationChecks{
			IntentUniqueness:    true,
			SignatureIntegrity:  true,
			RateLimitCompliance: true,
			InputSanitization:   true,
			TemporalValidation:  true,
		},
		Warnings: []string{},
	}
	score := 0

	// Field presence
	if in.FromToken == "" || in.ToToken == "" || in.Amount == "" || in.UserAddress == "" {
		result.Checks.InputSanitization = false
		score += scoreMissingFields
		result.Warnings = append(result.Warnings, "missing required fields")
	}

	// Amount bounds
	amount, err := decimal.NewFromString(in.Amount)
	if in.Amount != "" && (err != nil || amount.Sign() <= 0) {
		result.Checks.InputSanitization = false
		score += scoreBadAmount
		result.Warnings = append(result.Warnings, "amount must be a positive number")
	}
	if err == nil && amount.GreaterThan(v.suspiciousAmount) {
		// Warning only; does not fail any named check.
		score += scoreSuspiciousAmount
		result.Warnings = append(result.Warnings, fmt.Sprintf("unusually large amount (>%s)", v.suspiciousAmount.String()))
	}

	// Address format
	if in.UserAddress != "" && !common.IsHexAddress(in.UserAddress) {
		result.Checks.SignatureIntegrity = false
		score += scoreBadAddress
		result.Warnings = append(result.Warnings, "malformed user address")
	}

	// History-backed checks: burst rate, duplicate intent, temporal anomaly.
	history, histErr := v.loadHistory(ctx, in.UserAddress)
	if histErr != nil {
		// Storage down: fail closed for validation.
		logger.Warn("validation history unavailable, rejecting", "error", histErr)
		metrics.ValidationsTotal.WithLabelValues("error").Inc()
		metrics.ValidationRejects.WithLabelValues("storage").Inc()
		v.noteRejection(100)
		v.mu.Lock()
		v.counters.RejectedRequests++
		v.mu.Unlock()
		return model.SecurityValidationResult{
			Valid:     false,
			Checks:    model.ValidationChecks{},
			RiskScore: 100,
			Warnings:  []string{"validation storage unavailable"},
		}
	}

	now := time.Now()
	matching := 0
	for _, rec := range history {
		if !rec.matches(in) {
			continue
		}
		age := now.Sub(rec.Timestamp)
		if age < -maxClockSkew {
			if result.Checks.TemporalValidation {
				result.Checks.TemporalValidation = false
				score += scoreTemporalAnomaly
				result.Warnings = append(result.Warnings, "request timestamp anomaly detected")
			}
			continue
		}
		if age <= v.burstWindow {
			matching++
		}
		if age <= v.duplicateWindow && result.Checks.IntentUniqueness {
			result.Checks.IntentUniqueness = false
			score += scoreDuplicateIntent
			result.Warnings = append(result.Warnings, "identical swap submitted moments ago")
		}
	}
	if matching > v.burstLimit {
		result.Checks.RateLimitCompliance = false
		score += scoreRateLimited
		result.Warnings = append(result.Warnings, "too many matching requests in the last minute")
	}

	if score > 100 {
		score = 100
	}
	result.RiskScore = score
	result.Valid = score < rejectThreshold && result.Checks.AllPassed()

	// Record this request for future rate-limit and duplicate checks.
	// Best effort: a failed append must not flip an otherwise valid verdict.
	v.appendHistory(ctx, in, now, history)

	if result.Valid {
		v.cacheResult(ctx, in, result)
		metrics.ValidationsTotal.WithLabelValues("valid").Inc()
	} else {
		metrics.ValidationsTotal.WithLabelValues("rejected").Inc()
		metrics.ValidationRejects.WithLabelValues(rejectReason(result)).Inc()
	}
	v.noteRejection(score)
	if !result.Valid {
		v.mu.Lock()
		v.counters.RejectedRequests++
		v.mu.Unlock()
	}

	return result
}

// Snapshot returns the current global tallies.
func (v *Validator) Snapshot() Counters {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counters
}

func (v *Validator) noteRejection(score int) {
	if score <= suspiciousThreshold {
		return
	}
	v.mu.Lock()
	v.counters.SuspiciousActivity++
	v.mu.Unlock()
}

func rejectReason(res model.SecurityValidationResult) string {
	switch {
	case !res.Checks.RateLimitCompliance:
		return "rate_limit"
	case !res.Checks.IntentUniqueness:
		return "duplicate_intent"
	case !res.Checks.SignatureIntegrity:
		return "bad_address"
	case !res.Checks.TemporalValidation:
		return "temporal"
	case !res.Checks.InputSanitization:
		return "bad_input"
	default:
		return "risk_score"
	}
}

// --- cache ---

func cacheKey(in Intent) string {
	return "validation:cache:" + in.fingerprint()
}

func (v *Validator) cachedResult(ctx context.Context, in Intent) (model.SecurityValidationResult, bool) {
	var res model.SecurityValidationResult
	if err := v.store.Get(ctx, cacheKey(in), &res); err != nil {
		return model.SecurityValidationResult{}, false
	}
	return res, true
}

func (v *Validator) cacheResult(ctx context.Context, in Intent, res model.SecurityValidationResult) {
	if err := v.store.Set(ctx, cacheKey(in), res); err != nil {
		return
	}

	v.mu.Lock()
	v.cacheKeys = append(v.cacheKeys, cacheKey(in))
	var evict []string
	for len(v.cacheKeys) > v.cacheSize {
		evict = append(evict, v.cacheKeys[0])
		v.cacheKeys = v.cacheKeys[1:]
	}
	v.mu.Unlock()

	for _, key := range evict {
		_ = v.store.Delete(ctx, key)
	}
}

// --- history ---

func historyKey(userAddress string) string {
	return "validation:history:" + userAddress
}

func (v *Validator) loadHistory(ctx context.Context, userAddress string) ([]requestRecord, error) {
	var history []requestRecord
	err := v.store.Get(ctx, historyKey(userAddress), &history)
	switch {
	case err == nil:
		return history, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	case errors.Is(err, repository.ErrCorrupt):
		// Unreadable history: start over rather than rejecting forever.
		logger.Warn("corrupt request history, resetting", "user", userAddress)
		return nil, nil
	default:
		return nil, err
	}
}

func (v *Validator) appendHistory(ctx context.Context, in Intent, now time.Time, history []requestRecord) {
	// Keep one hour of records, matching the widest rate-limit window.
	cutoff := now.Add(-time.Hour)
	trimmed := make([]requestRecord, 0, len(history)+1)
	for _, rec := range history {
		if rec.Timestamp.After(cutoff) {
			trimmed = append(trimmed, rec)
		}
	}
	trimmed = append(trimmed, requestRecord{
		FromToken: in.FromToken,
		ToToken:   in.ToToken,
		Amount:    in.Amount,
		Timestamp: now,
	})
	if err := v.store.Set(ctx, historyKey(in.UserAddress), trimmed); err != nil {
		logger.Warn("failed to persist request history", "error", err)
	}
}
