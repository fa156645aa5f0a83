package sheets

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
)

// Tabs written by the store
const (
	TabTradeDetails       = "Trade Details"
	TabDailyNAV           = "Daily NAV"
	TabBalanceSheet       = "Balance Sheet"
	TabCombinedMetrics    = "Combined Metrics"
	TabPortfolioBalance   = "Portfolio Balance"
	TabTradeLedger        = "Trade Ledger"
	TabOrderConfirmations = "Order Confirmations"
)

var (
	tradeDetailsHeader = []string{
		"Date", "Ticker", "Net Units", "Total Abs Units", "Trade Price",
		"Adj_Close", "Trade Type", "Pre Trade Position", "Delta Shares",
		"Post Trade Position", "Commission", "Interest", "NAV", "Cash",
	}
	tradeLedgerHeader = []string{
		"Date", "Ticker", "Net Units", "Total Abs Units", "Trade Price",
		"Adj_Close", "Trade Type", "Pre Trade Position", "Delta Shares",
		"Post Trade Position", "Commission", "Interest", "NAV",
	}
	balanceHeader      = []string{"Date", "Time", "Ticker", "Position", "Price", "Market Value", "Cash", "NAV"}
	dailyNAVHeader     = []string{"Date", "Daily NAV"}
	portfolioHeader    = []string{"Date", "Timestamp", "Ticker", "Position", "Trade Price", "MKT Value", "Cash", "NAV"}
	confirmationHeader = []string{"Timestamp", "Ticker", "Action", "Quantity", "Price", "Status"}
)

const (
	inputSharesColumn = "Shares bought/sold"
	inputPriceColumn  = "Price"
)

// InputFill is the fill written back next to a strategy's input row
type InputFill struct {
	Ticker      string
	Date        string
	DeltaShares int64
	Price       decimal.Decimal
}

// BalanceRow is one "Balance Sheet" row, unique by (Date, Ticker)
type BalanceRow struct {
	Date        string
	Time        string
	Ticker      string
	Position    int64
	Price       decimal.Decimal
	MarketValue decimal.Decimal
	Cash        decimal.Decimal
	NAV         decimal.Decimal
}

// CombinedMetricsRow is one "Combined Metrics" row; NAVs and Cash are in strategy order
type CombinedMetricsRow struct {
	Date       string
	NAVs       []decimal.Decimal
	Cash       []decimal.Decimal
	BrokerNAV  decimal.Decimal
	BrokerCash decimal.Decimal
}

// PortfolioPosition is one combined holding
type PortfolioPosition struct {
	Ticker      string
	Position    int64
	Price       decimal.Decimal
	MarketValue decimal.Decimal
}

// PortfolioSummary is the combined book plus broker cash and NAV
type PortfolioSummary struct {
	Date      string
	Time      string
	Positions []PortfolioPosition
	Cash      decimal.Decimal
	NAV       decimal.Decimal
}

// OrderConfirmation is one executed order on the output sheet
type OrderConfirmation struct {
	Timestamp string
	Ticker    string
	Action    contracts.Action
	Quantity  int64
	Price     decimal.Decimal
	Status    contracts.OrderStatus
}

// money renders an amount as a sheet number
func money(d decimal.Decimal) interface{} {
	return d.Round(6).InexactFloat64()
}

// tradeType is BUY/SELL, or empty for a zero delta
func tradeType(delta int64) string {
	if delta == 0 {
		return ""
	}
	return string(contracts.ActionFor(delta))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func headerRow(cols []string) []interface{} {
	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}

// findColumn returns the 0-based column whose header equals exact
// (case-insensitive), else the first containing one of contains, else -1
func findColumn(header []string, exact string, contains ...string) int {
	if exact != "" {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), exact) {
				return i
			}
		}
	}
	for _, c := range contains {
		for i, h := range header {
			if strings.Contains(strings.ToLower(h), c) {
				return i
			}
		}
	}
	return -1
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// parseAmount reads a formatted sheet number ("$1,234.50")
func parseAmount(text string) (decimal.Decimal, bool) {
	text = strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(text))
	if text == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
