package risk

import (
	"sync"

	"github.com/GoSwapGuard/swapguard/internal/model"
)

// Fixed protection profiles. No interpolation between levels.
var mevProfiles = map[model.MevLevel]struct {
	protectionPct float64
	latencyMs     int
}{
	model.MevBasic:    {protectionPct: 65, latencyMs: 1000},
	model.MevStandard: {protectionPct: 85, latencyMs: 2000},
	model.MevMaximum:  {protectionPct: 95, latencyMs: 4000},
}

const maxSlippagePct = 5.0

// Advisor holds the session's MEV-protection profile and derives a
// recommended slippage tolerance from it and a price-impact analysis.
type Advisor struct {
	mu     sync.RWMutex
	config model.MevProtectionConfig
}

func NewAdvisor(enabled bool, level model.MevLevel) *Advisor {
	a := &Advisor{}
	a.config.Enabled = enabled
	a.SetLevel(level)
	return a
}

// SetLevel switches to one of the three fixed profiles.
// Unknown levels fall back to standard.
func (a *Advisor) SetLevel(level model.MevLevel) {
	profile, ok := mevProfiles[level]
	if !ok {
		level = model.MevStandard
		profile = mevProfiles[level]
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Level = level
	a.config.EstimatedProtectionPct = profile.protectionPct
	a.config.AddedLatencyMs = profile.latencyMs
}

func (a *Advisor) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Enabled = enabled
}

func (a *Advisor) CurrentConfig() model.MevProtectionConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// RecommendedSlippage combines the analysis severity with the protection
// latency buffer. Result is a percentage, capped at 5.0.
func (a *Advisor) RecommendedSlippage(analysis model.PriceImpactAnalysis) float64 {
	var base float64
	switch analysis.Severity {
	case model.SeverityMinimal:
		base = 0.5
	case model.SeverityLow:
		base = 0.75
	case model.SeverityModerate:
		base = 1.0
	case model.SeverityHigh:
		base = 1.5
	case model.SeverityExtreme:
		base = 2.0
	default:
		base = 0.5
	}

	a.mu.RLock()
	cfg := a.config
	a.mu.RUnlock()

	slippage := base
	if cfg.Enabled {
		// Longer protection delay means more price drift to tolerate.
		slippage += float64(cfg.AddedLatencyMs) / 10000
	}
	if slippage > maxSlippagePct {
		slippage = maxSlippagePct
	}
	return slippage
}
