// Package marketdata supplies closing prices used when a fill carries no price.
package marketdata

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceSource returns closing prices on or before date. Tickers without a
// price are absent from the map.
type PriceSource interface {
	ClosingPrices(ctx context.Context, tickers []string, date string) (map[string]decimal.Decimal, error)
}

// StaticSource serves fixed prices (paper trading, tests)
type StaticSource map[string]decimal.Decimal

// ClosingPrices implements PriceSource
func (s StaticSource) ClosingPrices(_ context.Context, tickers []string, _ string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		if p, ok := s[t]; ok {
			out[t] = p
		}
	}
	return out, nil
}

// uniqueTickers trims, dedupes and sorts tickers, dropping blanks and the
// placeholder row
func uniqueTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" || strings.HasPrefix(t, "_") {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
