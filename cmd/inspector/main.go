// Command inspector scores a quote set from a JSON file (or stdin) and
// prints the impact analysis with the recommended slippage per
// protection level.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/risk"
)

func main() {
	file := flag.String("quotes", "-", "path to a JSON array of quotes, or - for stdin")
	referenceTier := flag.Int("reference", 3000, "reference fee tier in basis points")
	flag.Parse()

	var reader io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open quotes: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		reader = f
	}

	var quotes []model.Quote
	if err := json.NewDecoder(reader).Decode(&quotes); err != nil {
		fmt.Fprintf(os.Stderr, "decode quotes: %v\n", err)
		os.Exit(1)
	}

	scorer := risk.NewScorer(*referenceTier, 0)
	analysis := scorer.Analyze(quotes)

	fmt.Printf("Impact:    %.4f%% (%s)\n", analysis.ImpactPercentage, analysis.Severity)
	fmt.Printf("Route:     fee tier %d bps\n", analysis.OptimalFeeTier)
	fmt.Printf("Advice:    %s\n", analysis.Recommendation)
	for _, alt := range analysis.AlternativeRoutes {
		fmt.Printf("  alt:     %s\n", alt)
	}

	fmt.Println("\nRecommended slippage by protection level:")
	for _, level := range []model.MevLevel{model.MevBasic, model.MevStandard, model.MevMaximum} {
		advisor := risk.NewAdvisor(true, level)
		fmt.Printf("  %-8s %.2f%%\n", level, advisor.RecommendedSlippage(analysis))
	}
}
