package attribution

import (
	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
)

// AbsSharesAll sums |target - pre| per ticker over every strategy's rows dated today
func AbsSharesAll(combo *contracts.Combination) map[string]int64 {
	total := map[string]int64{}
	for idx := 0; idx < combo.StrategyCount(); idx++ {
		for _, row := range combo.TodayRows(idx) {
			total[row.Ticker] += row.AbsDelta()
		}
	}
	return total
}

// CommissionShares splits each ticker's commission by the strategy's share of
// the absolute shares traded across strategies. rows are the strategy's rows
// dated today. A ticker without a fill or with no cross-strategy volume gets zero.
func CommissionShares(rows []contracts.TargetRow, fills map[string]contracts.FillResult, absAll map[string]int64) map[string]decimal.Decimal {
	shares := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		fill, traded := fills[row.Ticker]
		total := absAll[row.Ticker]
		if !traded || total <= 0 {
			shares[row.Ticker] = decimal.Zero
			continue
		}

		// multiply first so 30/100 * 10 stays exact
		shares[row.Ticker] = fill.Commission.
			Mul(decimal.NewFromInt(row.AbsDelta())).
			Div(decimal.NewFromInt(total))
	}
	return shares
}
