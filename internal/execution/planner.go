package execution

import (
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/pkg/logger"
)

// Planner diffs the combined desired positions against the combined ledger
// ⭐ SSOT: 주문 계획 로직은 여기서만
type Planner struct {
	logger *logger.Logger
}

// NewPlanner creates a new order planner
func NewPlanner(log *logger.Logger) *Planner {
	return &Planner{logger: log.Component("planner")}
}

// Plan returns the cycle's order intents: first one per combined row dated
// today whose target differs from the held position (row order), then one
// full liquidation per held ticker missing from today's rows (sorted).
// Plan does not touch the ledgers.
func (p *Planner) Plan(combo *contracts.Combination, book *ledger.Book) []contracts.OrderIntent {
	intents := make([]contracts.OrderIntent, 0)
	today := combo.Today

	for _, row := range combo.Rows {
		if row.Date != today {
			p.logger.WithFields(map[string]interface{}{
				"ticker": row.Ticker,
				"date":   row.Date,
			}).Debug("Skipping stale target")
			continue
		}

		pre := book.Combined.Get(row.Ticker)
		delta := row.TargetPosition - pre
		if delta == 0 {
			p.logger.WithField("ticker", row.Ticker).Debug("No change in position required")
			continue
		}

		intents = append(intents, contracts.OrderIntent{
			Ticker:           row.Ticker,
			Action:           contracts.ActionFor(delta),
			Quantity:         abs(delta),
			PreTradePosition: pre,
			DeltaShares:      delta,
			TradeDate:        today,
			Strategies:       append([]int(nil), row.Strategies...),
		})
	}

	desired := combo.DesiredToday()
	liquidations := 0
	for _, ticker := range book.Combined.Held() {
		if desired[ticker] {
			continue
		}

		pre := book.Combined.Get(ticker)
		intents = append(intents, contracts.OrderIntent{
			Ticker:           ticker,
			Action:           contracts.ActionFor(-pre),
			Quantity:         abs(pre),
			PreTradePosition: pre,
			DeltaShares:      -pre,
			TradeDate:        today,
			Strategies:       book.HoldersOf(ticker),
			Liquidation:      true,
		})
		liquidations++
	}

	p.logger.WithFields(map[string]interface{}{
		"total_orders": len(intents),
		"liquidations": liquidations,
		"buy_orders":   countAction(intents, contracts.ActionBuy),
		"sell_orders":  countAction(intents, contracts.ActionSell),
	}).Info("Execution plan created")

	return intents
}

func countAction(intents []contracts.OrderIntent, action contracts.Action) int {
	n := 0
	for _, in := range intents {
		if in.Action == action {
			n++
		}
	}
	return n
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
