package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the order side
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ActionFor returns BUY for a positive delta and SELL otherwise
func ActionFor(delta int64) Action {
	if delta > 0 {
		return ActionBuy
	}
	return ActionSell
}

// OrderIntent is one order the planner wants placed
// ⭐ SSOT: Planner → Coordinator 주문 의도 (생성 후 불변)
type OrderIntent struct {
	Ticker           string `json:"ticker"`
	Action           Action `json:"action"`
	Quantity         int64  `json:"quantity"` // always positive
	PreTradePosition int64  `json:"pre_trade_position"`
	DeltaShares      int64  `json:"delta_shares"`
	TradeDate        string `json:"trade_date"`
	Strategies       []int  `json:"contributing_strategies"`
	Liquidation      bool   `json:"liquidation"`
}

// PlacedOrder pairs an intent with the gateway-assigned order id
type PlacedOrder struct {
	OrderID  int64       `json:"order_id"`
	Intent   OrderIntent `json:"intent"`
	PlacedAt time.Time   `json:"placed_at"`
}

// OrderStatus is the gateway-reported order state
type OrderStatus string

const (
	StatusFilled        OrderStatus = "Filled"
	StatusSubmitted     OrderStatus = "Submitted"
	StatusPreSubmitted  OrderStatus = "PreSubmitted"
	StatusPendingSubmit OrderStatus = "PendingSubmit"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusInactive      OrderStatus = "Inactive"
	StatusUnknown       OrderStatus = "Unknown"
)

// IsExecuted reports whether the status counts as executed for ledger purposes.
// Submitted and PreSubmitted count: market-on-close orders often still show them after the wait.
func (s OrderStatus) IsExecuted() bool {
	switch s {
	case StatusFilled, StatusSubmitted, StatusPreSubmitted:
		return true
	default:
		return false
	}
}

// FillResult is the resolved outcome of one placed order
// ⭐ SSOT: Coordinator → Attribution 체결 결과
type FillResult struct {
	OrderID             int64             `json:"order_id"`
	Ticker              string            `json:"ticker"`
	Action              Action            `json:"action"`
	Status              OrderStatus       `json:"status"`
	FillPrice           decimal.Decimal   `json:"fill_price"`
	Commission          decimal.Decimal   `json:"commission"`
	FilledQuantity      int64             `json:"filled_quantity"`
	RealizedDeltaShares int64             `json:"realized_delta_shares"`
	Intent              OrderIntent       `json:"intent"`
	IndividualDeltas    []IndividualDelta `json:"individual_deltas,omitempty"`
}

// Executed reports whether the fill changed positions
func (f FillResult) Executed() bool {
	return f.Status.IsExecuted()
}

// IndividualDelta is the share change booked to one strategy for one fill
type IndividualDelta struct {
	Strategy       int    `json:"strategy"`
	Ticker         string `json:"ticker"`
	PreTrade       int64  `json:"pre_trade"`
	StrategyTarget int64  `json:"strategy_target"`
	Delta          int64  `json:"delta"`
}

// FillsByTicker indexes fills by ticker (last one wins)
func FillsByTicker(fills []FillResult) map[string]FillResult {
	out := make(map[string]FillResult, len(fills))
	for _, f := range fills {
		out[f.Ticker] = f
	}
	return out
}
