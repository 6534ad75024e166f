package risk

import (
	"fmt"
	"sort"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Bucket advisory strings attached to every analysis.
var recommendations = map[model.Severity]string{
	model.SeverityMinimal:  "Excellent price. Proceed with the selected route.",
	model.SeverityLow:      "Good price. Minor impact expected.",
	model.SeverityModerate: "Moderate price impact. Consider splitting the swap into smaller parts.",
	model.SeverityHigh:     "High price impact. Reduce the swap size or try a different fee tier.",
	model.SeverityExtreme:  "Extreme price impact. This swap size is strongly discouraged.",
}

// Scorer computes price-impact analyses from a set of fee-tier quotes.
// Pure aside from metrics; safe for concurrent use.
type Scorer struct {
	referenceFeeTier int
	maxRouteImpact   float64 // pct; routes at or above this are never selected
}

func NewScorer(referenceFeeTier int, maxRouteImpact float64) *Scorer {
	if referenceFeeTier <= 0 {
		referenceFeeTier = 3000
	}
	if maxRouteImpact <= 0 {
		maxRouteImpact = 2.0
	}
	return &Scorer{referenceFeeTier: referenceFeeTier, maxRouteImpact: maxRouteImpact}
}

// Analyze scores a quote set against the reference fee tier and picks the
// optimal route. It never fails: missing or unusable quotes produce a
// neutral result so a pricing glitch cannot block the swap flow.
func (s *Scorer) Analyze(quotes []model.Quote) model.PriceImpactAnalysis {
	ref, ok := s.referenceQuote(quotes)
	if !ok || ref.OutputAmount.Sign() <= 0 {
		return s.neutral()
	}

	type route struct {
		quote     model.Quote
		impactPct float64
	}

	routes := make([]route, 0, len(quotes))
	for _, q := range quotes {
		routes = append(routes, route{quote: q, impactPct: impactPct(q.OutputAmount, ref.OutputAmount)})
	}

	// Candidates are the non-reference routes below the impact ceiling.
	// The reference itself is the fallback, not a candidate.
	best := route{quote: ref, impactPct: 0}
	found := false
	for _, r := range routes {
		if r.quote.FeeTier == ref.FeeTier {
			continue
		}
		if r.impactPct >= s.maxRouteImpact {
			continue
		}
		if !found || r.quote.OutputAmount.GreaterThan(best.quote.OutputAmount) {
			best = r
			found = true
		}
	}

	severity := model.SeverityForImpact(best.impactPct)
	metrics.ImpactSeverity.WithLabelValues(string(severity)).Inc()

	alternatives := make([]string, 0, len(routes)-1)
	sort.Slice(routes, func(i, j int) bool { return routes[i].quote.FeeTier < routes[j].quote.FeeTier })
	for _, r := range routes {
		if r.quote.FeeTier == best.quote.FeeTier {
			continue
		}
		alternatives = append(alternatives, fmt.Sprintf("%s pool: %.2f%% impact, output %s",
			feeTierLabel(r.quote.FeeTier), r.impactPct, r.quote.OutputAmount.String()))
	}

	return model.PriceImpactAnalysis{
		ImpactPercentage:  best.impactPct,
		Severity:          severity,
		Recommendation:    recommendations[severity],
		OptimalFeeTier:    best.quote.FeeTier,
		AlternativeRoutes: alternatives,
	}
}

// referenceQuote picks the quote whose fee tier is nearest the reference tier.
func (s *Scorer) referenceQuote(quotes []model.Quote) (model.Quote, bool) {
	if len(quotes) == 0 {
		return model.Quote{}, false
	}
	best := quotes[0]
	bestDist := absInt(best.FeeTier - s.referenceFeeTier)
	for _, q := range quotes[1:] {
		if d := absInt(q.FeeTier - s.referenceFeeTier); d < bestDist {
			best = q
			bestDist = d
		}
	}
	return best, true
}

func (s *Scorer) neutral() model.PriceImpactAnalysis {
	metrics.ImpactSeverity.WithLabelValues(string(model.SeverityMinimal)).Inc()
	return model.PriceImpactAnalysis{
		ImpactPercentage:  0,
		Severity:          model.SeverityMinimal,
		Recommendation:    "Price data unavailable. Proceed with the default route.",
		OptimalFeeTier:    s.referenceFeeTier,
		AlternativeRoutes: []string{},
	}
}

func impactPct(output, reference decimal.Decimal) float64 {
	hundred := decimal.NewFromInt(100)
	pct := output.Sub(reference).Abs().Div(reference).Mul(hundred)
	return pct.InexactFloat64()
}

func feeTierLabel(bps int) string {
	return fmt.Sprintf("%.2f%%", float64(bps)/10000*100)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
