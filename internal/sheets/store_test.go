package sheets

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/pkg/logger"
)

const testURL = "https://docs.google.com/spreadsheets/d/strat1/edit"

func newTestStore() (*Store, *MemoryClient) {
	mem := NewMemoryClient()
	return NewStore(mem, logger.Nop()), mem
}

func TestReadTargetPositions(t *testing.T) {
	store, mem := newTestStore()
	mem.SetValues("strat1", "Sheet1", [][]string{
		{"Date", "Ticker", "Target Position"},
		{"10/16/2026", "AAPL", "100"},
		{"2026-10-16", "", "5"},
		{"2026-10-16", "MSFT"},
	})

	rows, err := store.ReadTargetPositions(context.Background(), testURL, "Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, contracts.InputRow{Ticker: "AAPL", TargetPosition: "100", Date: "10/16/2026"}, rows[0])
	assert.Equal(t, "", rows[1].TargetPosition)
}

func TestReadTargetPositionsAlternateHeaders(t *testing.T) {
	store, mem := newTestStore()
	mem.SetValues("strat1", "Input", [][]string{
		{"Trade Date", "Ticker Symbol", "Target"},
		{"2026-10-16", "SPY", "7"},
	})

	rows, err := store.ReadTargetPositions(context.Background(), testURL, "Input")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].TargetPosition)
}

func TestReadTargetPositionsErrors(t *testing.T) {
	store, mem := newTestStore()
	mem.SetValues("strat1", "Sheet1", [][]string{{"Foo", "Bar"}, {"1", "2"}})

	_, err := store.ReadTargetPositions(context.Background(), testURL, "Sheet1")
	assert.Error(t, err)

	mem.FailSpreadsheet("strat1", errors.New("boom"))
	_, err = store.ReadTargetPositions(context.Background(), testURL, "Sheet1")
	assert.Error(t, err)
}

func TestWriteTradeDetails(t *testing.T) {
	store, mem := newTestStore()

	metrics := []contracts.StrategyMetric{
		{
			Date: "2026-10-16", Ticker: "AAPL",
			PreTradePosition: 0, PostTradePosition: 10, DeltaShares: 10,
			Price: decimal.NewFromInt(150), Commission: decimal.NewFromInt(1),
			Cash: decimal.NewFromInt(98499), NAV: decimal.NewFromInt(99999),
		},
		{
			Date: "2026-10-16", Ticker: "MSFT",
			PreTradePosition: 5, PostTradePosition: 5,
			Price: decimal.NewFromInt(400),
		},
	}

	require.NoError(t, store.WriteTradeDetails(context.Background(), testURL, metrics))
	require.NoError(t, store.WriteTradeDetails(context.Background(), testURL, metrics[:1]))

	values := mem.Values("strat1", TabTradeDetails)
	require.Len(t, values, 4, "one header, then rows")
	assert.Equal(t, tradeDetailsHeader, values[0])
	assert.Equal(t, []string{
		"2026-10-16", "AAPL", "10", "10", "150", "150", "BUY", "0", "10", "10", "1", "0", "99999", "98499",
	}, values[1])
	assert.Equal(t, "", values[2][6], "zero delta has no trade type")
}

func TestUpdateInputFills(t *testing.T) {
	store, mem := newTestStore()
	mem.SetValues("strat1", "Sheet1", [][]string{
		{"Date", "Ticker", "Target Position"},
		{"10/16/2026", "AAPL", "10"},
		{"2026-10-15", "AAPL", "5"},
	})

	fills := []InputFill{
		{Ticker: "AAPL", Date: "2026-10-16", DeltaShares: 10, Price: decimal.RequireFromString("150.25")},
		{Ticker: "MSFT", Date: "2026-10-16", DeltaShares: -30, Price: decimal.NewFromInt(400)},
	}
	require.NoError(t, store.UpdateInputFills(context.Background(), testURL, "Sheet1", fills))

	values := mem.Values("strat1", "Sheet1")
	require.Len(t, values, 4)
	assert.Equal(t, []string{"Date", "Ticker", "Target Position", "Shares bought/sold", "Price"}, values[0])
	assert.Equal(t, []string{"10/16/2026", "AAPL", "10", "10", "150.25"}, values[1])
	assert.Len(t, values[2], 3, "stale row untouched")
	assert.Equal(t, []string{"2026-10-16", "MSFT", "0", "-30", "400"}, values[3])
}

func TestUpsertBalanceRows(t *testing.T) {
	store, mem := newTestStore()
	ctx := context.Background()

	row := BalanceRow{
		Date: "2026-10-16", Time: "15:58:00", Ticker: "AAPL", Position: 10,
		Price: decimal.NewFromInt(150), MarketValue: decimal.NewFromInt(1500),
		Cash: decimal.NewFromInt(98499), NAV: decimal.NewFromInt(99999),
	}
	require.NoError(t, store.UpsertBalanceRows(ctx, testURL, []BalanceRow{row}))

	row.Position = 12
	row.MarketValue = decimal.NewFromInt(1800)
	require.NoError(t, store.UpsertBalanceRows(ctx, testURL, []BalanceRow{row}))

	values := mem.Values("strat1", TabBalanceSheet)
	require.Len(t, values, 2)
	assert.Equal(t, "12", values[1][3])
	assert.Equal(t, "1800", values[1][5])
	assert.Equal(t, "15:58:00", values[1][1])
}

func TestUpsertDailyNAV(t *testing.T) {
	store, mem := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertDailyNAV(ctx, testURL, "2026-10-15", decimal.NewFromInt(100000)))
	require.NoError(t, store.UpsertDailyNAV(ctx, testURL, "2026-10-16", decimal.NewFromInt(101000)))
	require.NoError(t, store.UpsertDailyNAV(ctx, testURL, "2026-10-16", decimal.RequireFromString("101500.5")))

	values := mem.Values("strat1", TabDailyNAV)
	assert.Equal(t, [][]string{
		{"Date", "Daily NAV"},
		{"2026-10-15", "100000"},
		{"2026-10-16", "101500.5"},
	}, values)

	nav, ok, err := store.LatestNAV(ctx, testURL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "101500.5", nav.String())
}

func TestLatestNAVEmpty(t *testing.T) {
	store, mem := newTestStore()
	mem.SetValues("strat1", TabDailyNAV, [][]string{{"Date", "Daily NAV"}})

	_, ok, err := store.LatestNAV(context.Background(), testURL)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendCombinedMetrics(t *testing.T) {
	store, mem := newTestStore()

	row := CombinedMetricsRow{
		Date:       "2026-10-16",
		NAVs:       []decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(200)},
		Cash:       []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(20)},
		BrokerNAV:  decimal.NewFromInt(305),
		BrokerCash: decimal.NewFromInt(31),
	}
	require.NoError(t, store.AppendCombinedMetrics(context.Background(), testURL, row))

	values := mem.Values("strat1", TabCombinedMetrics)
	require.Len(t, values, 2)
	assert.Equal(t, []string{
		"Date", "Strategy 1 NAV", "Strategy 2 NAV", "Strategy 1 Cash", "Strategy 2 Cash",
		"Sum of NAVs", "Sum of Cash", "NAV Broker", "Cash Broker",
	}, values[0])
	assert.Equal(t, []string{"2026-10-16", "100", "200", "10", "20", "300", "30", "305", "31"}, values[1])
}

func TestWritePortfolioBalance(t *testing.T) {
	store, mem := newTestStore()

	summary := PortfolioSummary{
		Date: "2026-10-16", Time: "16:10:00",
		Positions: []PortfolioPosition{
			{Ticker: "AAPL", Position: 10, Price: decimal.NewFromInt(150), MarketValue: decimal.NewFromInt(1500)},
			{Ticker: "MSFT", Position: 5},
		},
		Cash: decimal.NewFromInt(5000),
		NAV:  decimal.NewFromInt(6500),
	}
	require.NoError(t, store.WritePortfolioBalance(context.Background(), testURL, summary))

	values := mem.Values("strat1", TabPortfolioBalance)
	require.Len(t, values, 3)
	assert.Equal(t, "5000", values[1][6])
	assert.Equal(t, "", values[2][6])

	require.NoError(t, store.WritePortfolioBalance(context.Background(), testURL, PortfolioSummary{Date: "2026-10-17"}))
	values = mem.Values("strat1", TabPortfolioBalance)
	assert.Len(t, values, 4)
}

func TestExportTradesAndConfirmations(t *testing.T) {
	store, mem := newTestStore()
	ctx := context.Background()

	trades := []contracts.TradeRecord{{
		Date: "2026-10-16", Ticker: "AAPL", NetUnits: 10, TotalAbsUnits: 10,
		TradePrice: decimal.NewFromInt(150), AdjClose: decimal.NewFromInt(150), TradeType: "BUY",
		PostTradePosition: 10, DeltaShares: 10, Commission: decimal.NewFromInt(1),
	}}
	require.NoError(t, store.ExportTrades(ctx, testURL, trades))
	assert.Len(t, mem.Values("strat1", TabTradeLedger), 2)

	confirmations := []OrderConfirmation{{
		Timestamp: "2026-10-16 15:56:00", Ticker: "AAPL", Action: contracts.ActionBuy,
		Quantity: 10, Price: decimal.NewFromInt(150), Status: contracts.StatusFilled,
	}}
	require.NoError(t, store.AppendOrderConfirmations(ctx, testURL, confirmations))

	values := mem.Values("strat1", TabOrderConfirmations)
	require.Len(t, values, 2)
	assert.Equal(t, []string{"2026-10-16 15:56:00", "AAPL", "BUY", "10", "150", "Filled"}, values[1])
}
