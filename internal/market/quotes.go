package market

import (
	"sort"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/shopspring/decimal"
)

// QuoteBook holds the latest quote per fee tier for one trading pair.
type QuoteBook struct {
	Pair        string
	LastUpdated time.Time
	mu          sync.RWMutex
	quotes      map[int]model.Quote // keyed by fee tier (bps)
}

func NewQuoteBook(pair string) *QuoteBook {
	return &QuoteBook{
		Pair:   pair,
		quotes: make(map[int]model.Quote),
	}
}

// Update replaces the quote for one fee tier.
func (b *QuoteBook) Update(feeTier int, outputStr, liquidityStr string) error {
	output, err := decimal.NewFromString(outputStr)
	if err != nil {
		return err
	}
	liquidity, err := decimal.NewFromString(liquidityStr)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[feeTier] = model.Quote{
		FeeTier:       feeTier,
		OutputAmount:  output,
		PoolLiquidity: liquidity,
	}
	b.LastUpdated = time.Now()
	return nil
}

// Quotes returns a copy of the current quote set, ordered by fee tier.
func (b *QuoteBook) Quotes() []model.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Quote, 0, len(b.quotes))
	for _, q := range b.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeeTier < out[j].FeeTier })
	return out
}

// Stale reports whether the book has not been refreshed within maxAge.
func (b *QuoteBook) Stale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.LastUpdated.IsZero() || time.Since(b.LastUpdated) > maxAge
}
