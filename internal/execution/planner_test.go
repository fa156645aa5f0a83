package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/pkg/logger"
)

const today = "2026-10-16"

func TestPlanNormalPass(t *testing.T) {
	book := ledger.NewMemoryBook(map[string]int64{"AAPL": 40, "SPY": 10}, map[string]int64{"AAPL": 40, "SPY": 10})
	combo := &contracts.Combination{
		Today: today,
		Rows: []contracts.DesiredPosition{
			{Ticker: "AAPL", TargetPosition: 100, Date: today, Strategies: []int{0}},
			{Ticker: "SPY", TargetPosition: 10, Date: today, Strategies: []int{0}},
			{Ticker: "TSLA", TargetPosition: -5, Date: today, Strategies: []int{0}},
		},
	}

	intents := NewPlanner(logger.Nop()).Plan(combo, book)
	require.Len(t, intents, 2, "SPY needs no change")

	assert.Equal(t, contracts.OrderIntent{
		Ticker:           "AAPL",
		Action:           contracts.ActionBuy,
		Quantity:         60,
		PreTradePosition: 40,
		DeltaShares:      60,
		TradeDate:        today,
		Strategies:       []int{0},
	}, intents[0])

	assert.Equal(t, contracts.ActionSell, intents[1].Action)
	assert.Equal(t, int64(5), intents[1].Quantity)
	assert.Equal(t, int64(-5), intents[1].DeltaShares)
}

func TestPlanLiquidatesMissingTickers(t *testing.T) {
	book := ledger.NewMemoryBook(
		map[string]int64{"MSFT": 30, "IBM": -4},
		map[string]int64{"MSFT": 20},
		map[string]int64{"MSFT": 10, "IBM": -4},
	)
	combo := &contracts.Combination{Today: today}

	intents := NewPlanner(logger.Nop()).Plan(combo, book)
	require.Len(t, intents, 2)

	// sorted by ticker
	assert.Equal(t, "IBM", intents[0].Ticker)
	assert.Equal(t, contracts.ActionBuy, intents[0].Action)
	assert.Equal(t, int64(4), intents[0].Quantity)
	assert.Equal(t, []int{1}, intents[0].Strategies)

	assert.Equal(t, contracts.OrderIntent{
		Ticker:           "MSFT",
		Action:           contracts.ActionSell,
		Quantity:         30,
		PreTradePosition: 30,
		DeltaShares:      -30,
		TradeDate:        today,
		Strategies:       []int{0, 1},
		Liquidation:      true,
	}, intents[1])
}

func TestPlanZeroTargetUsesNormalPath(t *testing.T) {
	book := ledger.NewMemoryBook(map[string]int64{"MSFT": 30}, map[string]int64{"MSFT": 30})
	combo := &contracts.Combination{
		Today: today,
		Rows:  []contracts.DesiredPosition{{Ticker: "MSFT", TargetPosition: 0, Date: today, Strategies: []int{0}}},
	}

	intents := NewPlanner(logger.Nop()).Plan(combo, book)
	require.Len(t, intents, 1)
	assert.False(t, intents[0].Liquidation)
	assert.Equal(t, int64(-30), intents[0].DeltaShares)
}

func TestPlanStaleRowIsLiquidated(t *testing.T) {
	book := ledger.NewMemoryBook(map[string]int64{"AAPL": 100}, map[string]int64{"AAPL": 100})
	combo := &contracts.Combination{
		Today: today,
		Rows:  []contracts.DesiredPosition{{Ticker: "AAPL", TargetPosition: 100, Date: "2026-10-15"}},
	}

	intents := NewPlanner(logger.Nop()).Plan(combo, book)
	require.Len(t, intents, 1)
	assert.True(t, intents[0].Liquidation)
	assert.Equal(t, int64(-100), intents[0].DeltaShares)
}

func TestPlanDoesNotMutateLedger(t *testing.T) {
	book := ledger.NewMemoryBook(map[string]int64{"MSFT": 30}, map[string]int64{"MSFT": 30})
	combo := &contracts.Combination{Today: today}

	NewPlanner(logger.Nop()).Plan(combo, book)
	assert.Equal(t, int64(30), book.Combined.Get("MSFT"))
}
