package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratbook/internal/attribution"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/marketdata"
	"github.com/wonny/stratbook/internal/sheets"
	"github.com/wonny/stratbook/internal/strategyconfig"
	"github.com/wonny/stratbook/internal/tradelog"
	"github.com/wonny/stratbook/pkg/database"
	"github.com/wonny/stratbook/pkg/logger"
)

const today = "2026-10-16"

func sheetURL(id string) string {
	return "https://docs.google.com/spreadsheets/d/" + id + "/edit#gid=0"
}

type fixture struct {
	reporter *Reporter
	mem      *sheets.MemoryClient
	trades   tradelog.Store
}

func newFixture(t *testing.T, withSheets bool) *fixture {
	t.Helper()

	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	trades := tradelog.NewSQLiteStore(db.SQL)
	require.NoError(t, trades.Migrate(context.Background()))

	engine := attribution.NewEngine(trades, marketdata.StaticSource{"SPY": decimal.NewFromInt(500)}, decimal.NewFromInt(100000), logger.Nop())

	f := &fixture{trades: trades}
	var store *sheets.Store
	if withSheets {
		f.mem = sheets.NewMemoryClient()
		store = sheets.NewStore(f.mem, logger.Nop())
	}

	f.reporter = New(store, engine, trades, Config{
		DetailURL: sheetURL("detail"),
		OutputURL: sheetURL("output"),
	}, logger.Nop())
	f.reporter.now = func() time.Time { return time.Date(2026, 10, 16, 16, 5, 0, 0, time.UTC) }
	return f
}

// two strategies: both buy AAPL, strategy 2 also holds SPY from before
func testRound() *Round {
	combo := &contracts.Combination{
		Today: today,
		Rows: []contracts.DesiredPosition{
			{Ticker: "AAPL", TargetPosition: 15, Date: today, Strategies: []int{0, 1}},
		},
		StrategyRows: [][]contracts.TargetRow{
			{{Ticker: "AAPL", TargetPosition: 10, Date: today}},
			{{Ticker: "AAPL", TargetPosition: 5, Date: today}},
		},
		Failed: []bool{false, false},
	}

	fill := contracts.FillResult{
		OrderID:             1,
		Ticker:              "AAPL",
		Action:              contracts.ActionBuy,
		Status:              contracts.StatusFilled,
		FillPrice:           decimal.NewFromInt(150),
		Commission:          decimal.NewFromInt(3),
		FilledQuantity:      15,
		RealizedDeltaShares: 15,
		Intent:              contracts.OrderIntent{Ticker: "AAPL", Action: contracts.ActionBuy, Quantity: 15, DeltaShares: 15, TradeDate: today, Strategies: []int{0, 1}},
	}

	book := ledger.NewMemoryBook(
		map[string]int64{"AAPL": 15, "SPY": 2},
		map[string]int64{"AAPL": 10},
		map[string]int64{"AAPL": 5, "SPY": 2},
	)

	return &Round{
		RunID: "run-1",
		Date:  today,
		Strategies: []strategyconfig.Strategy{
			{Name: "momentum", SheetURL: sheetURL("s1")},
			{Name: "value", SheetURL: sheetURL("s2")},
		},
		Combination: combo,
		Fills:       []contracts.FillResult{fill},
		Ledgers:     book.Snapshot(),
		Account: contracts.AccountSummary{
			NetLiquidation: decimal.NewFromInt(201000),
			AvailableFunds: decimal.NewFromInt(197000),
			TotalCashValue: decimal.NewFromInt(197500),
		},
	}
}

func TestFullRoundWritesEverySheet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.mem.SetValues("s1", "Sheet1", [][]string{
		{"Date", "Ticker", "Target Position"},
		{today, "AAPL", "10"},
	})
	f.mem.SetValues("s2", "Sheet1", [][]string{
		{"Date", "Ticker", "Target Position"},
		{today, "AAPL", "5"},
	})

	summary := f.reporter.FullRound(ctx, testRound())
	require.Len(t, summary.Reports, 2)
	assert.Zero(t, summary.Failures)

	// strategy 1: 100000 - 1500 - 2 commission
	first := summary.Reports[0]
	assert.Equal(t, "98498", first.Cash.String())
	assert.Equal(t, "99998", first.NAV.String())

	// strategy 2: 100000 - 750 - 1, SPY valued at the close
	second := summary.Reports[1]
	assert.Equal(t, "99249", second.Cash.String())
	assert.Equal(t, "100999", second.NAV.String())

	details := f.mem.Values("s1", sheets.TabTradeDetails)
	require.Len(t, details, 2)
	assert.Equal(t, []string{today, "AAPL", "10", "10", "150", "150", "BUY", "0", "10", "10", "2", "0", "99998", "98498"}, details[1])

	input := f.mem.Values("s1", "Sheet1")
	assert.Equal(t, []string{"Date", "Ticker", "Target Position", "Shares bought/sold", "Price"}, input[0])
	assert.Equal(t, []string{today, "AAPL", "10", "10", "150"}, input[1])

	balance := f.mem.Values("s2", sheets.TabBalanceSheet)
	require.Len(t, balance, 2)
	assert.Equal(t, "16:05:00", balance[1][1])

	assert.Equal(t, [][]string{{"Date", "Daily NAV"}, {today, "100999"}}, f.mem.Values("s2", sheets.TabDailyNAV))

	combined := f.mem.Values("detail", sheets.TabCombinedMetrics)
	require.Len(t, combined, 2)
	assert.Equal(t, []string{today, "99998", "100999", "98498", "99249", "200997", "197747", "201000", "197500"}, combined[1])

	portfolio := f.mem.Values("detail", sheets.TabPortfolioBalance)
	require.Len(t, portfolio, 3)
	assert.Equal(t, []string{today, "16:05:00", "AAPL", "15", "150", "2250", "197000", "201000"}, portfolio[1])
	assert.Equal(t, []string{today, "16:05:00", "SPY", "2", "0", "0", "", ""}, portfolio[2])

	cash, err := f.trades.PreviousCash(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "99249", cash.String())
}

func TestFullRoundIsolatesStrategyFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.mem.SetValues("s1", "Sheet1", [][]string{{"Date", "Ticker", "Target Position"}, {today, "AAPL", "10"}})
	f.mem.FailSpreadsheet("s2", errors.New("quota exceeded"))

	summary := f.reporter.FullRound(ctx, testRound())
	assert.Equal(t, 1, summary.Failures)
	require.Len(t, summary.Reports, 2, "metrics are computed before sheets are written")

	assert.Len(t, f.mem.Values("s1", sheets.TabTradeDetails), 2)
	assert.Len(t, f.mem.Values("detail", sheets.TabCombinedMetrics), 2)

	cash, err := f.trades.PreviousCash(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "99249", cash.String(), "cash is stored even when the sheet fails")
}

func TestFullRoundWithoutSheets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	summary := f.reporter.FullRound(ctx, testRound())
	assert.Zero(t, summary.Failures)
	require.Len(t, summary.Reports, 2)

	latest, err := f.trades.LatestCash(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	assert.NoError(t, f.reporter.Immediate(ctx, testRound()))
}

func TestImmediate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.mem.SetValues("s1", "Sheet1", [][]string{{"Date", "Ticker", "Target Position"}, {today, "AAPL", "10"}})

	_, err := f.trades.InsertTrade(ctx, contracts.TradeRecord{
		Date: today, Ticker: "AAPL", NetUnits: 15, TotalAbsUnits: 15,
		TradePrice: decimal.NewFromInt(150), AdjClose: decimal.NewFromInt(150), TradeType: "BUY",
		DeltaShares: 15, PostTradePosition: 15, Commission: decimal.NewFromInt(3),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	round := testRound()
	cancelled := round.Fills[0]
	cancelled.Ticker = "IBM"
	cancelled.Status = contracts.StatusCancelled
	round.Fills = append(round.Fills, cancelled)

	require.NoError(t, f.reporter.Immediate(ctx, round))

	confirmations := f.mem.Values("output", sheets.TabOrderConfirmations)
	require.Len(t, confirmations, 2, "only executed orders are confirmed")
	assert.Equal(t, []string{"2026-10-16 16:05:00", "AAPL", "BUY", "15", "150", "Filled"}, confirmations[1])

	ledgerRows := f.mem.Values("detail", sheets.TabTradeLedger)
	require.Len(t, ledgerRows, 2)
	assert.Equal(t, "AAPL", ledgerRows[1][1])

	// the first sheet gets the combined fill, not the strategy's share
	input := f.mem.Values("s1", "Sheet1")
	assert.Equal(t, []string{today, "AAPL", "10", "15", "150"}, input[1])
}

func TestCombinedMetricsFallsBackForMissingReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.mem.SetValues("s2", sheets.TabDailyNAV, [][]string{{"Date", "Daily NAV"}, {"2026-10-15", "101234.5"}})
	require.NoError(t, f.trades.StoreCash(ctx, 1, "2026-10-15", decimal.NewFromInt(4000)))

	round := testRound()
	reports := []*contracts.StrategyReport{{Strategy: 0, NAV: decimal.NewFromInt(99000), Cash: decimal.NewFromInt(1000)}, nil}

	require.NoError(t, f.reporter.CombinedMetrics(ctx, round, reports))

	rows := f.mem.Values("detail", sheets.TabCombinedMetrics)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"Date", "Strategy 1 NAV", "Strategy 2 NAV", "Strategy 1 Cash", "Strategy 2 Cash",
		"Sum of NAVs", "Sum of Cash", "NAV Broker", "Cash Broker",
	}, rows[0])
	assert.Equal(t, []string{today, "99000", "101234.5", "1000", "4000", "200234.5", "5000", "201000", "197500"}, rows[1])
}
