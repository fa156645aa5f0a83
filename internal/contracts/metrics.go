package contracts

import "github.com/shopspring/decimal"

// PlaceholderTicker marks the single metrics row of a strategy with no positions
const PlaceholderTicker = "_placeholder_"

// StrategyMetric is one per-ticker metrics row for a strategy
// ⭐ SSOT: Attribution → Reporting 전략별 지표
type StrategyMetric struct {
	Date              string          `json:"date"`
	Ticker            string          `json:"ticker"`
	PreTradePosition  int64           `json:"pre_trade_position"`
	PostTradePosition int64           `json:"post_trade_position"`
	Price             decimal.Decimal `json:"price"`
	DeltaShares       int64           `json:"delta_shares"`
	Commission        decimal.Decimal `json:"commission"`
	Cash              decimal.Decimal `json:"cash"`
	NAV               decimal.Decimal `json:"nav"`
}

// IsPlaceholder reports whether the row stands in for an empty book
func (m StrategyMetric) IsPlaceholder() bool {
	return m.Ticker == PlaceholderTicker
}

// StrategyReport is one strategy's computed result for the cycle
type StrategyReport struct {
	Strategy int              `json:"strategy"`
	Name     string           `json:"name"`
	Cash     decimal.Decimal  `json:"cash"`
	NAV      decimal.Decimal  `json:"nav"`
	Metrics  []StrategyMetric `json:"metrics"`
	Targeted bool             `json:"targeted"` // the strategy had rows dated today
}
