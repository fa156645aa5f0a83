package attribution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/marketdata"
	"github.com/wonny/stratbook/internal/tradelog"
	"github.com/wonny/stratbook/pkg/database"
	"github.com/wonny/stratbook/pkg/logger"
)

const today = "2024-01-05"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine(t *testing.T, prices marketdata.PriceSource) (*Engine, tradelog.Store) {
	t.Helper()

	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := tradelog.NewSQLiteStore(db.SQL)
	require.NoError(t, store.Migrate(context.Background()))

	if prices == nil {
		prices = marketdata.StaticSource{}
	}
	return NewEngine(store, prices, decimal.NewFromInt(100000), logger.Nop()), store
}

func filled(ticker string, pre, delta int64, price, commission string, strategies ...int) contracts.FillResult {
	return contracts.FillResult{
		OrderID:             1,
		Ticker:              ticker,
		Action:              contracts.ActionFor(delta),
		Status:              contracts.StatusFilled,
		FillPrice:           dec(price),
		Commission:          dec(commission),
		FilledQuantity:      delta,
		RealizedDeltaShares: delta,
		Intent: contracts.OrderIntent{
			Ticker:           ticker,
			Action:           contracts.ActionFor(delta),
			Quantity:         delta,
			PreTradePosition: pre,
			DeltaShares:      delta,
			TradeDate:        today,
			Strategies:       strategies,
		},
	}
}

func TestInitializeCash(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, nil)

	require.NoError(t, store.StoreCash(ctx, 1, "2024-01-04", dec("5000")))
	require.NoError(t, engine.InitializeCash(ctx, 3, today))

	cash, err := store.PreviousCash(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "100000", cash.String())

	cash, err = store.PreviousCash(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "5000", cash.String(), "existing cash is kept")

	history, err := store.CashHistory(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, today, history[0].Date)
}

func TestCommissionSharesSplitByVolume(t *testing.T) {
	combo := &contracts.Combination{
		Today: today,
		StrategyRows: [][]contracts.TargetRow{
			{{Ticker: "X", TargetPosition: 30, Date: today}},
			{{Ticker: "X", TargetPosition: 70, Date: today}},
		},
	}
	fills := map[string]contracts.FillResult{"X": {Ticker: "X", Commission: dec("10")}}
	absAll := AbsSharesAll(combo)
	assert.Equal(t, int64(100), absAll["X"])

	first := CommissionShares(combo.TodayRows(0), fills, absAll)["X"]
	second := CommissionShares(combo.TodayRows(1), fills, absAll)["X"]

	assert.Equal(t, "3", first.String())
	assert.Equal(t, "7", second.String())
	assert.True(t, first.Add(second).Equal(dec("10")))
}

func TestCommissionSharesZeroCases(t *testing.T) {
	rows := []contracts.TargetRow{
		{Ticker: "UNTRADED", TargetPosition: 5, Date: today},
		{Ticker: "FLAT", TargetPosition: 5, PreTradePosition: 5, Date: today},
	}
	fills := map[string]contracts.FillResult{"FLAT": {Commission: dec("1")}}

	shares := CommissionShares(rows, fills, map[string]int64{"UNTRADED": 5})
	assert.True(t, shares["UNTRADED"].IsZero())
	assert.True(t, shares["FLAT"].IsZero())
}

func TestApplyFillsMovesLedgers(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, nil)

	book := ledger.NewMemoryBook(
		map[string]int64{"MSFT": 30},
		map[string]int64{"MSFT": 20},
		map[string]int64{"MSFT": 10},
	)
	combo := &contracts.Combination{
		Today: today,
		Rows: []contracts.DesiredPosition{
			{Ticker: "AAPL", TargetPosition: 15, Date: today, Strategies: []int{0, 1}},
		},
		StrategyRows: [][]contracts.TargetRow{
			{{Ticker: "AAPL", TargetPosition: 10, Date: today}, {Ticker: "MSFT", Date: today, PreTradePosition: 20, Liquidation: true}},
			{{Ticker: "AAPL", TargetPosition: 5, Date: today}, {Ticker: "MSFT", Date: today, PreTradePosition: 10, Liquidation: true}},
		},
	}

	unfilled := filled("IBM", 0, 3, "0", "0", 0)
	unfilled.Status = contracts.StatusCancelled
	unfilled.RealizedDeltaShares = 0

	account := contracts.AccountSummary{NetLiquidation: dec("200000"), AccruedCash: dec("4.2")}
	out, err := engine.ApplyFills(ctx, []contracts.FillResult{
		filled("AAPL", 0, 15, "150", "1", 0, 1),
		filled("MSFT", 30, -30, "300", "1.5", 0, 1),
		unfilled,
	}, combo, book, account)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, map[string]int64{"AAPL": 15}, book.Combined.Positions())
	assert.Equal(t, map[string]int64{"AAPL": 10}, book.Strategies[0].Positions())
	assert.Equal(t, map[string]int64{"AAPL": 5}, book.Strategies[1].Positions())

	require.Len(t, out[1].IndividualDeltas, 2)
	assert.Equal(t, contracts.IndividualDelta{Strategy: 0, Ticker: "MSFT", PreTrade: 20, Delta: -20}, out[1].IndividualDeltas[0])
	assert.Empty(t, out[2].IndividualDeltas)

	trades, err := store.TradesOn(ctx, today)
	require.NoError(t, err)
	require.Len(t, trades, 2, "only executed fills are recorded")

	msft := trades[1]
	assert.Equal(t, "MSFT", msft.Ticker)
	assert.Equal(t, "SELL", msft.TradeType)
	assert.Equal(t, int64(30), msft.TotalAbsUnits)
	assert.Equal(t, int64(0), msft.PostTradePosition)
	assert.True(t, msft.AdjClose.Equal(dec("300")))
	assert.True(t, msft.Interest.Equal(dec("4.2")))
	assert.True(t, msft.NAV.Equal(dec("200000")))
}

func TestApplyFillsSkipsFailedStrategy(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	book := ledger.NewMemoryBook(
		map[string]int64{"MSFT": 30},
		map[string]int64{"MSFT": 30},
		map[string]int64{},
	)
	combo := &contracts.Combination{
		Today:        today,
		StrategyRows: [][]contracts.TargetRow{nil, nil},
		Failed:       []bool{true, false},
	}

	out, err := engine.ApplyFills(ctx, []contracts.FillResult{
		filled("MSFT", 30, -30, "400", "1", book.HoldersOf("MSFT")...),
	}, combo, book, contracts.AccountSummary{})
	require.NoError(t, err)

	assert.Empty(t, book.Combined.Positions())
	assert.Equal(t, map[string]int64{"MSFT": 30}, book.Strategies[0].Positions())
	require.Len(t, out, 1)
	assert.Empty(t, out[0].IndividualDeltas)

	// the kept position is still valued, so NAV does not drop
	report, err := engine.StrategyMetrics(ctx, StrategyInput{
		Strategy:  0,
		Date:      today,
		Positions: book.Strategies[0].Positions(),
		Fills:     contracts.FillsByTicker(out),
		AbsAll:    AbsSharesAll(combo),
	})
	require.NoError(t, err)
	assert.Equal(t, "100000", report.Cash.String())
	assert.Equal(t, "112000", report.NAV.String())
	require.Len(t, report.Metrics, 1)
	assert.False(t, report.Metrics[0].IsPlaceholder())
}

func TestEndToEndSingleStrategy(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, nil)

	book := ledger.NewMemoryBook(map[string]int64{}, map[string]int64{})
	combo := &contracts.Combination{
		Today:        today,
		Rows:         []contracts.DesiredPosition{{Ticker: "AAPL", TargetPosition: 10, Date: today, Strategies: []int{0}}},
		StrategyRows: [][]contracts.TargetRow{{{Ticker: "AAPL", TargetPosition: 10, Date: today}}},
	}

	fills, err := engine.ApplyFills(ctx, []contracts.FillResult{filled("AAPL", 0, 10, "150", "1", 0)}, combo, book, contracts.AccountSummary{})
	require.NoError(t, err)

	trades, err := store.TradesOn(ctx, today)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(10), trades[0].NetUnits)
	assert.True(t, trades[0].TradePrice.Equal(dec("150")))
	assert.True(t, trades[0].Commission.Equal(dec("1")))
	assert.Equal(t, int64(10), trades[0].PostTradePosition)
	assert.Equal(t, map[string]int64{"AAPL": 10}, book.Combined.Positions())

	report, err := engine.StrategyMetrics(ctx, StrategyInput{
		Strategy:  0,
		Date:      today,
		Rows:      combo.StrategyRows[0],
		Positions: book.Strategies[0].Positions(),
		Fills:     contracts.FillsByTicker(fills),
		AbsAll:    AbsSharesAll(combo),
	})
	require.NoError(t, err)

	assert.Equal(t, "98499", report.Cash.String())
	assert.Equal(t, "99999", report.NAV.String())
	require.Len(t, report.Metrics, 1)
	assert.Equal(t, int64(10), report.Metrics[0].DeltaShares)
	assert.True(t, report.Metrics[0].Commission.Equal(dec("1")))

	cash, err := store.PreviousCash(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "98499", cash.String())
}

func TestStrategyMetricsFlatShortCircuit(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, nil)
	require.NoError(t, store.StoreCash(ctx, 0, "2024-01-04", dec("90000")))

	fills := map[string]contracts.FillResult{"MSFT": {Ticker: "MSFT", FillPrice: dec("300"), Commission: dec("2")}}
	report, err := engine.StrategyMetrics(ctx, StrategyInput{
		Strategy: 0,
		Date:     today,
		Rows:     []contracts.TargetRow{{Ticker: "MSFT", TargetPosition: 0, PreTradePosition: 10, Date: today, Liquidation: true}},
		Fills:    fills,
		AbsAll:   map[string]int64{"MSFT": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, "92998", report.Cash.String())
	assert.True(t, report.NAV.Equal(report.Cash))
	require.Len(t, report.Metrics, 1)
	assert.True(t, report.Metrics[0].IsPlaceholder())
	assert.True(t, report.Metrics[0].NAV.Equal(report.Cash))
}

func TestStrategyMetricsNoTradesToday(t *testing.T) {
	ctx := context.Background()
	prices := marketdata.StaticSource{"AAPL": dec("190"), "SPY": dec("470.5")}
	engine, _ := newTestEngine(t, prices)

	report, err := engine.StrategyMetrics(ctx, StrategyInput{
		Strategy:  1,
		Date:      today,
		Rows:      []contracts.TargetRow{{Ticker: "AAPL", TargetPosition: 10, Date: "2024-01-04"}},
		Positions: map[string]int64{"AAPL": 10, "SPY": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "100000", report.Cash.String())
	assert.Equal(t, "102841", report.NAV.String())

	require.Len(t, report.Metrics, 2)
	for _, m := range report.Metrics {
		assert.Zero(t, m.DeltaShares)
		assert.True(t, m.Commission.IsZero())
		assert.Equal(t, m.PreTradePosition, m.PostTradePosition)
	}
	assert.Equal(t, "AAPL", report.Metrics[0].Ticker)
	assert.True(t, report.Metrics[1].Price.Equal(dec("470.5")))
}

func TestStrategyMetricsFallsBackToClose(t *testing.T) {
	ctx := context.Background()
	prices := marketdata.StaticSource{"IBM": dec("160")}
	engine, _ := newTestEngine(t, prices)

	// IBM moved in the strategy ledger but netted out in the combined book: no fill
	report, err := engine.StrategyMetrics(ctx, StrategyInput{
		Strategy:  0,
		Date:      today,
		Rows:      []contracts.TargetRow{{Ticker: "IBM", TargetPosition: 5, Date: today}},
		Positions: map[string]int64{"IBM": 5},
		AbsAll:    map[string]int64{"IBM": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, "100000", report.Cash.String(), "untraded ticker moves no cash")
	assert.Equal(t, "100800", report.NAV.String())
	assert.True(t, report.Metrics[0].Price.Equal(dec("160")))
}

func TestStrategyMetricsReplacesSameDayCash(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, nil)

	in := StrategyInput{Strategy: 0, Date: today}
	_, err := engine.StrategyMetrics(ctx, in)
	require.NoError(t, err)
	_, err = engine.StrategyMetrics(ctx, in)
	require.NoError(t, err)

	history, err := store.CashHistory(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
