// Package reporting writes a finished cycle to the spreadsheet store: order
// confirmations, input-sheet fills, per-strategy metrics and the combined
// detail workbook.
package reporting

import (
	"sort"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/strategyconfig"
)

// Round is an immutable copy of one cycle's results, taken once the ledgers
// are updated. The delayed round reads it and never touches the live ledgers.
type Round struct {
	RunID       string                    `json:"run_id"`
	Date        string                    `json:"date"`
	Strategies  []strategyconfig.Strategy `json:"strategies"`
	Combination *contracts.Combination    `json:"combination"`
	Fills       []contracts.FillResult    `json:"fills"`
	Ledgers     ledger.Snapshot           `json:"ledgers"`
	Account     contracts.AccountSummary  `json:"account"`
}

// FillsByTicker indexes the round's fills
func (r *Round) FillsByTicker() map[string]contracts.FillResult {
	return contracts.FillsByTicker(r.Fills)
}

// Executed returns the fills whose status counts as executed
func (r *Round) Executed() []contracts.FillResult {
	var out []contracts.FillResult
	for _, f := range r.Fills {
		if f.Executed() {
			out = append(out, f)
		}
	}
	return out
}

// Summary is what the full round produced
type Summary struct {
	Reports  []*contracts.StrategyReport `json:"reports"`
	Failures int                         `json:"failures"`
}

func sortedTickers(positions map[string]int64) []string {
	tickers := make([]string, 0, len(positions))
	for ticker := range positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
