package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one append-only row of the trade ledger
// ⭐ SSOT: trades 테이블 행
type TradeRecord struct {
	ID                int64           `json:"id"`
	Date              string          `json:"date"`
	Ticker            string          `json:"ticker"`
	NetUnits          int64           `json:"net_units"`
	TotalAbsUnits     int64           `json:"total_abs_units"`
	TradePrice        decimal.Decimal `json:"trade_price"`
	AdjClose          decimal.Decimal `json:"adj_close"`
	TradeType         string          `json:"trade_type"`
	PreTradePosition  int64           `json:"pre_trade_position"`
	DeltaShares       int64           `json:"delta_shares"`
	PostTradePosition int64           `json:"post_trade_position"`
	Commission        decimal.Decimal `json:"commission"`
	Interest          decimal.Decimal `json:"interest"`
	NAV               decimal.Decimal `json:"nav"`
	Timestamp         time.Time       `json:"timestamp"`
}

// CashRecord is one (strategy, date) cash carry-forward row
type CashRecord struct {
	StrategyIdx int             `json:"strategy_idx"`
	Date        string          `json:"date"`
	Cash        decimal.Decimal `json:"cash"`
}

// Account summary tags requested from the gateway
const (
	TagNetLiquidation = "NetLiquidation"
	TagAccruedCash    = "AccruedCash"
	TagAvailableFunds = "AvailableFunds"
	TagTotalCashValue = "TotalCashValue"
)

// AccountTags is the tag list sent with an account summary request
var AccountTags = []string{TagNetLiquidation, TagAccruedCash, TagAvailableFunds, TagTotalCashValue}

// AccountSummary holds the account values used for interest and NAV fallbacks
type AccountSummary struct {
	Account        string          `json:"account"`
	NetLiquidation decimal.Decimal `json:"net_liquidation"`
	AccruedCash    decimal.Decimal `json:"accrued_cash"`
	AvailableFunds decimal.Decimal `json:"available_funds"`
	TotalCashValue decimal.Decimal `json:"total_cash_value"`
}
