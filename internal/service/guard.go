package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/analytics"
	"github.com/GoSwapGuard/swapguard/internal/config"
	"github.com/GoSwapGuard/swapguard/internal/market"
	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/GoSwapGuard/swapguard/internal/poller"
	"github.com/GoSwapGuard/swapguard/internal/recovery"
	"github.com/GoSwapGuard/swapguard/internal/risk"
	"github.com/GoSwapGuard/swapguard/internal/validate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quotes older than this are not trusted for impact analysis.
const maxQuoteAge = 10 * time.Second

// Executor performs the actual swap submission and returns an external
// reference (e.g. a transaction hash).
type Executor = recovery.Operation[string]

// Confirmer is one confirmation poll attempt.
type Confirmer = poller.Operation[bool]

// SwapReceipt is the outcome of a fully guarded swap execution.
type SwapReceipt struct {
	SwapID     string                    `json:"swap_id"`
	RecoveryID string                    `json:"recovery_id"`
	TxRef      string                    `json:"tx_ref,omitempty"`
	Degraded   bool                      `json:"degraded,omitempty"`
	Analysis   model.PriceImpactAnalysis `json:"analysis"`
	Slippage   float64                   `json:"slippage_pct"`
}

// GuardService wires the risk, validation, polling, recovery and
// analytics components into the guarded swap path.
type GuardService struct {
	cfg       *config.Config
	scorer    *risk.Scorer
	advisor   *risk.Advisor
	validator *validate.Validator
	health    *poller.AdaptivePoller
	tracker   *recovery.PendingTracker
	agg       *analytics.Aggregator
	feed      *market.QuoteFeed
}

func NewGuardService(
	cfg *config.Config,
	scorer *risk.Scorer,
	advisor *risk.Advisor,
	validator *validate.Validator,
	health *poller.AdaptivePoller,
	tracker *recovery.PendingTracker,
	agg *analytics.Aggregator,
	feed *market.QuoteFeed,
) *GuardService {
	return &GuardService{
		cfg:       cfg,
		scorer:    scorer,
		advisor:   advisor,
		validator: validator,
		health:    health,
		tracker:   tracker,
		agg:       agg,
		feed:      feed,
	}
}

// Analyze scores a quote set. When the caller supplies no quotes, the
// live feed's book for the pair is used, provided it is fresh.
func (s *GuardService) Analyze(pair string, quotes []model.Quote) (model.PriceImpactAnalysis, float64) {
	if len(quotes) == 0 && s.feed != nil {
		if book := s.feed.Book(pair); book != nil && !book.Stale(maxQuoteAge) {
			quotes = book.Quotes()
		}
	}
	analysis := s.scorer.Analyze(quotes)
	return analysis, s.advisor.RecommendedSlippage(analysis)
}

// ValidateIntent runs the pre-submission checks.
func (s *GuardService) ValidateIntent(ctx context.Context, in validate.Intent) model.SecurityValidationResult {
	return s.validator.Validate(ctx, in)
}

// RateLimitStatus reports whether the user may submit another intent.
func (s *GuardService) RateLimitStatus(ctx context.Context, userAddress string) model.RateLimitStatus {
	return s.validator.CheckRateLimitStatus(ctx, userAddress)
}

// Execute runs the full guarded path: validate, analyze, persist
// resumable state, submit with retry, confirm with adaptive polling, and
// record every lifecycle event on the way.
func (s *GuardService) Execute(ctx context.Context, in validate.Intent, exec Executor, confirm Confirmer) (*SwapReceipt, error) {
	verdict := s.validator.Validate(ctx, in)
	if !verdict.Valid {
		return nil, apperrors.NewValidationReject(strings.Join(verdict.Warnings, "; "))
	}

	pair := fmt.Sprintf("%s/%s", in.FromToken, in.ToToken)
	analysis, slippage := s.Analyze(pair, nil)

	amount, _ := decimal.NewFromString(in.Amount)
	swapID := uuid.NewString()
	started := time.Now()

	s.agg.Record(ctx, model.InitiatedEvent{
		SwapID:    swapID,
		Amount:    amount,
		ImpactPct: analysis.ImpactPercentage,
		Timestamp: started,
	})

	recoveryID, err := s.tracker.SaveOperationState(ctx, map[string]string{
		"swap_id":    swapID,
		"from_token": in.FromToken,
		"to_token":   in.ToToken,
		"amount":     in.Amount,
		"user":       in.UserAddress,
	})
	if err != nil {
		// The swap can still run; it just cannot be resumed after a crash.
		logger.Warn("failed to persist pending operation", "swap_id", swapID, "error", err)
	}

	receipt := &SwapReceipt{
		SwapID:     swapID,
		RecoveryID: recoveryID,
		Analysis:   analysis,
		Slippage:   slippage,
	}

	mgr := recovery.NewManager(s.cfg.Recovery.MaxRetries, s.cfg.Recovery.BackoffMultiplier, model.StrategyAutomatic)
	result, err := recovery.Run(ctx, mgr, exec)
	if err != nil {
		s.recordFailure(ctx, swapID, analysis.ImpactPercentage, err)
		return nil, err
	}
	if result.Fallback {
		s.agg.Record(ctx, model.CancelledEvent{
			SwapID:    swapID,
			Reason:    "graceful_degradation",
			Timestamp: time.Now(),
		})
		receipt.Degraded = true
		return receipt, nil
	}
	receipt.TxRef = result.Value

	maxAttempts := s.cfg.Poller.MaxAttempts
	if _, err := poller.Poll(ctx, s.health, confirm, maxAttempts, nil); err != nil {
		s.recordFailure(ctx, swapID, analysis.ImpactPercentage, err)
		return nil, err
	}

	if recoveryID != "" {
		if err := s.tracker.Complete(ctx, recoveryID); err != nil {
			logger.Warn("failed to complete pending operation", "recovery_id", recoveryID, "error", err)
		}
	}

	s.agg.Record(ctx, model.CompletedEvent{
		SwapID:     swapID,
		Amount:     amount,
		DurationMs: time.Since(started).Milliseconds(),
		ImpactPct:  analysis.ImpactPercentage,
		SavingsUSD: decimal.Zero,
		Timestamp:  time.Now(),
	})
	return receipt, nil
}

// Recover resumes a previously saved operation.
func (s *GuardService) Recover(ctx context.Context, recoveryID string) (model.RecoveryAction, *model.PendingOperation, error) {
	return s.tracker.RecoverOperation(ctx, recoveryID)
}

// PendingOperations lists tracked operations, newest first.
func (s *GuardService) PendingOperations(ctx context.Context, limit int) ([]*model.PendingOperation, error) {
	return s.tracker.Pending(ctx, limit)
}

// Summary returns the analytics aggregates.
func (s *GuardService) Summary() model.AnalyticsSummary {
	return s.agg.Summary()
}

// BackendHealth returns the poller's view of backend responsiveness.
func (s *GuardService) BackendHealth() model.BackendHealthMetrics {
	return s.health.Health()
}

// MevConfig returns the active protection profile.
func (s *GuardService) MevConfig() model.MevProtectionConfig {
	return s.advisor.CurrentConfig()
}

// SetMevLevel switches the protection profile.
func (s *GuardService) SetMevLevel(level model.MevLevel, enabled bool) model.MevProtectionConfig {
	s.advisor.SetEnabled(enabled)
	s.advisor.SetLevel(level)
	return s.advisor.CurrentConfig()
}

func (s *GuardService) recordFailure(ctx context.Context, swapID string, impactPct float64, err error) {
	s.agg.Record(ctx, model.FailedEvent{
		SwapID:        swapID,
		ErrorCategory: categorize(err),
		ImpactPct:     impactPct,
		Timestamp:     time.Now(),
	})
}

func categorize(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrRetryExhausted:
			return "retry_exhausted"
		case apperrors.ErrPollExhausted:
			return "confirmation_timeout"
		case apperrors.ErrValidationReject:
			return "validation"
		}
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if recovery.IsTransient(err) {
		return "network"
	}
	return "unknown"
}
