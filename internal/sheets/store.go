package sheets

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/dates"
	"github.com/wonny/stratbook/pkg/logger"
)

// Store maps trading records onto spreadsheet tabs
// ⭐ SSOT: 스프레드시트 행 형식은 여기서만 정의
type Store struct {
	client Client
	logger *logger.Logger
}

// NewStore creates a store over client
func NewStore(client Client, log *logger.Logger) *Store {
	return &Store{client: client, logger: log.Component("sheets")}
}

// prepareTab makes sure tab exists and has a header, returning its rows
func (s *Store) prepareTab(ctx context.Context, id, tab string, header []string) ([][]string, error) {
	if err := s.client.EnsureTab(ctx, id, tab); err != nil {
		return nil, err
	}

	values, err := s.client.ReadValues(ctx, id, tab)
	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		if err := s.client.AppendRows(ctx, id, tab, [][]interface{}{headerRow(header)}); err != nil {
			return nil, fmt.Errorf("failed to write %s header: %w", tab, err)
		}
		values = [][]string{header}
	}
	return values, nil
}

// ReadTargetPositions reads {Date, Ticker, Target Position} rows from a strategy's input tab.
// Rows without a ticker are skipped; cells are returned as text.
func (s *Store) ReadTargetPositions(ctx context.Context, url, tab string) ([]contracts.InputRow, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}

	values, err := s.client.ReadValues(ctx, id, tab)
	if err != nil {
		return nil, fmt.Errorf("failed to read target positions: %w", err)
	}
	if len(values) == 0 {
		return []contracts.InputRow{}, nil
	}

	header := values[0]
	dateCol := findColumn(header, "date", "date")
	tickerCol := findColumn(header, "ticker", "ticker")
	targetCol := findColumn(header, "target position", "target position", "target")
	if dateCol < 0 || tickerCol < 0 {
		return nil, fmt.Errorf("input tab %s has no Date/Ticker columns", tab)
	}

	rows := make([]contracts.InputRow, 0, len(values)-1)
	for _, row := range values[1:] {
		ticker := cellAt(row, tickerCol)
		if ticker == "" {
			continue
		}
		rows = append(rows, contracts.InputRow{
			Ticker:         ticker,
			TargetPosition: cellAt(row, targetCol),
			Date:           cellAt(row, dateCol),
		})
	}
	return rows, nil
}

// WriteTradeDetails appends one detail row per metric to "Trade Details"
func (s *Store) WriteTradeDetails(ctx context.Context, url string, metrics []contracts.StrategyMetric) error {
	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}
	if _, err := s.prepareTab(ctx, id, TabTradeDetails, tradeDetailsHeader); err != nil {
		return err
	}
	if len(metrics) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []interface{}{
			m.Date,
			m.Ticker,
			m.DeltaShares,
			abs64(m.DeltaShares),
			money(m.Price),
			money(m.Price),
			tradeType(m.DeltaShares),
			m.PreTradePosition,
			m.DeltaShares,
			m.PostTradePosition,
			money(m.Commission),
			0,
			money(m.NAV),
			money(m.Cash),
		})
	}

	if err := s.client.AppendRows(ctx, id, TabTradeDetails, rows); err != nil {
		return fmt.Errorf("failed to write trade details: %w", err)
	}
	return nil
}

// UpdateInputFills writes "Shares bought/sold" and "Price" next to the input
// row matching (date, ticker). A missing row (liquidation) is appended with target 0.
func (s *Store) UpdateInputFills(ctx context.Context, url, tab string, fills []InputFill) error {
	if len(fills) == 0 {
		return nil
	}

	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}

	values, err := s.client.ReadValues(ctx, id, tab)
	if err != nil {
		return fmt.Errorf("failed to read input tab: %w", err)
	}
	if len(values) == 0 {
		return fmt.Errorf("input tab %s is empty", tab)
	}

	header := values[0]
	dateCol := findColumn(header, "date", "date")
	tickerCol := findColumn(header, "ticker", "ticker")
	targetCol := findColumn(header, "target position", "target position", "target")
	if dateCol < 0 || tickerCol < 0 {
		return fmt.Errorf("input tab %s has no Date/Ticker columns", tab)
	}

	width := len(header)
	var headerCells []CellUpdate

	sharesCol := findColumn(header, "", "shares bought/sold") + 1
	if sharesCol == 0 {
		width++
		sharesCol = width
		headerCells = append(headerCells, CellUpdate{Row: 1, Col: sharesCol, Values: []interface{}{inputSharesColumn}})
	}
	priceCol := findColumn(header, "", "price") + 1
	if priceCol == 0 {
		width++
		priceCol = width
		headerCells = append(headerCells, CellUpdate{Row: 1, Col: priceCol, Values: []interface{}{inputPriceColumn}})
	}
	if len(headerCells) > 0 {
		if err := s.client.UpdateCells(ctx, id, tab, headerCells); err != nil {
			return fmt.Errorf("failed to add fill columns: %w", err)
		}
	}

	rowCount := len(values)
	updates := make([]CellUpdate, 0, 2*len(fills))
	for _, f := range fills {
		rowIndex := findRow(values, dateCol, tickerCol, f.Date, f.Ticker)
		if rowIndex == 0 {
			s.logger.WithFields(map[string]interface{}{
				"ticker": f.Ticker,
				"date":   f.Date,
			}).Info("No input row for fill, appending liquidation row")

			newRow := make([]interface{}, width)
			for i := range newRow {
				newRow[i] = ""
			}
			newRow[dateCol] = f.Date
			newRow[tickerCol] = f.Ticker
			if targetCol >= 0 {
				newRow[targetCol] = 0
			}
			if err := s.client.AppendRows(ctx, id, tab, [][]interface{}{newRow}); err != nil {
				return fmt.Errorf("failed to append liquidation row: %w", err)
			}
			rowCount++
			rowIndex = rowCount
		}

		updates = append(updates,
			CellUpdate{Row: rowIndex, Col: sharesCol, Values: []interface{}{f.DeltaShares}},
			CellUpdate{Row: rowIndex, Col: priceCol, Values: []interface{}{money(f.Price)}},
		)
	}

	if err := s.client.UpdateCells(ctx, id, tab, updates); err != nil {
		return fmt.Errorf("failed to write input fills: %w", err)
	}
	return nil
}

// findRow returns the 1-based sheet row matching (date, ticker), or 0.
// Dates compare after normalization since the sheet may reformat them.
func findRow(values [][]string, dateCol, tickerCol int, date, ticker string) int {
	want, _ := dates.Normalize(date)
	for i, row := range values[1:] {
		got, _ := dates.Normalize(cellAt(row, dateCol))
		if got == want && cellAt(row, tickerCol) == ticker {
			return i + 2
		}
	}
	return 0
}

// UpsertBalanceRows writes "Balance Sheet" rows, updating in place on a
// matching (date, ticker)
func (s *Store) UpsertBalanceRows(ctx context.Context, url string, rows []BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}

	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}
	values, err := s.prepareTab(ctx, id, TabBalanceSheet, balanceHeader)
	if err != nil {
		return err
	}

	header := values[0]
	dateCol := orDefault(findColumn(header, "date"), 0)
	tickerCol := orDefault(findColumn(header, "ticker"), 2)
	positionCol := orDefault(findColumn(header, "position"), 3)
	priceCol := orDefault(findColumn(header, "price"), 4)
	valueCol := orDefault(findColumn(header, "market value", "market value", "mkt value"), 5)
	cashCol := orDefault(findColumn(header, "cash"), 6)
	navCol := orDefault(findColumn(header, "nav"), 7)

	var updates []CellUpdate
	var appends [][]interface{}
	for _, r := range rows {
		rowIndex := findRow(values, dateCol, tickerCol, r.Date, r.Ticker)
		if rowIndex == 0 {
			appends = append(appends, []interface{}{
				r.Date, r.Time, r.Ticker, r.Position,
				money(r.Price), money(r.MarketValue), money(r.Cash), money(r.NAV),
			})
			continue
		}
		updates = append(updates,
			CellUpdate{Row: rowIndex, Col: positionCol + 1, Values: []interface{}{r.Position}},
			CellUpdate{Row: rowIndex, Col: priceCol + 1, Values: []interface{}{money(r.Price)}},
			CellUpdate{Row: rowIndex, Col: valueCol + 1, Values: []interface{}{money(r.MarketValue)}},
			CellUpdate{Row: rowIndex, Col: cashCol + 1, Values: []interface{}{money(r.Cash)}},
			CellUpdate{Row: rowIndex, Col: navCol + 1, Values: []interface{}{money(r.NAV)}},
		)
	}

	if len(updates) > 0 {
		if err := s.client.UpdateCells(ctx, id, TabBalanceSheet, updates); err != nil {
			return fmt.Errorf("failed to update balance sheet: %w", err)
		}
	}
	if len(appends) > 0 {
		if err := s.client.AppendRows(ctx, id, TabBalanceSheet, appends); err != nil {
			return fmt.Errorf("failed to append balance sheet: %w", err)
		}
	}
	return nil
}

func orDefault(col, fallback int) int {
	if col < 0 {
		return fallback
	}
	return col
}

// UpsertDailyNAV writes {date, nav} to "Daily NAV", replacing the NAV of an existing date
func (s *Store) UpsertDailyNAV(ctx context.Context, url, date string, nav decimal.Decimal) error {
	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}
	values, err := s.prepareTab(ctx, id, TabDailyNAV, dailyNAVHeader)
	if err != nil {
		return err
	}

	want, _ := dates.Normalize(date)
	for i, row := range values[1:] {
		if got, _ := dates.Normalize(cellAt(row, 0)); got == want {
			update := CellUpdate{Row: i + 2, Col: 2, Values: []interface{}{money(nav)}}
			if err := s.client.UpdateCells(ctx, id, TabDailyNAV, []CellUpdate{update}); err != nil {
				return fmt.Errorf("failed to update daily nav: %w", err)
			}
			return nil
		}
	}

	if err := s.client.AppendRows(ctx, id, TabDailyNAV, [][]interface{}{{date, money(nav)}}); err != nil {
		return fmt.Errorf("failed to append daily nav: %w", err)
	}
	return nil
}

// LatestNAV returns the NAV on the last "Daily NAV" row; ok is false when there is none
func (s *Store) LatestNAV(ctx context.Context, url string) (decimal.Decimal, bool, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return decimal.Zero, false, err
	}

	values, err := s.client.ReadValues(ctx, id, TabDailyNAV)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to read daily nav: %w", err)
	}
	if len(values) < 2 {
		return decimal.Zero, false, nil
	}

	nav, ok := parseAmount(cellAt(values[len(values)-1], 1))
	return nav, ok, nil
}

// AppendCombinedMetrics appends one row to "Combined Metrics" on the detail workbook
func (s *Store) AppendCombinedMetrics(ctx context.Context, url string, row CombinedMetricsRow) error {
	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}

	n := len(row.NAVs)
	header := make([]string, 0, 2*n+5)
	header = append(header, "Date")
	for i := 1; i <= n; i++ {
		header = append(header, fmt.Sprintf("Strategy %d NAV", i))
	}
	for i := 1; i <= n; i++ {
		header = append(header, fmt.Sprintf("Strategy %d Cash", i))
	}
	header = append(header, "Sum of NAVs", "Sum of Cash", "NAV Broker", "Cash Broker")

	if _, err := s.prepareTab(ctx, id, TabCombinedMetrics, header); err != nil {
		return err
	}

	navSum := decimal.Zero
	cashSum := decimal.Zero
	cells := make([]interface{}, 0, len(header))
	cells = append(cells, row.Date)
	for _, v := range row.NAVs {
		cells = append(cells, money(v))
		navSum = navSum.Add(v)
	}
	for _, v := range row.Cash {
		cells = append(cells, money(v))
		cashSum = cashSum.Add(v)
	}
	cells = append(cells, money(navSum), money(cashSum), money(row.BrokerNAV), money(row.BrokerCash))

	if err := s.client.AppendRows(ctx, id, TabCombinedMetrics, [][]interface{}{cells}); err != nil {
		return fmt.Errorf("failed to append combined metrics: %w", err)
	}
	return nil
}

// WritePortfolioBalance appends the combined book to "Portfolio Balance".
// Cash and NAV appear on the first row only.
func (s *Store) WritePortfolioBalance(ctx context.Context, url string, summary PortfolioSummary) error {
	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}
	if _, err := s.prepareTab(ctx, id, TabPortfolioBalance, portfolioHeader); err != nil {
		return err
	}

	var rows [][]interface{}
	for i, p := range summary.Positions {
		var cash, nav interface{} = "", ""
		if i == 0 {
			cash, nav = money(summary.Cash), money(summary.NAV)
		}
		rows = append(rows, []interface{}{
			summary.Date, summary.Time, p.Ticker, p.Position,
			money(p.Price), money(p.MarketValue), cash, nav,
		})
	}
	if len(rows) == 0 {
		rows = append(rows, []interface{}{
			summary.Date, summary.Time, "", "", "", "", money(summary.Cash), money(summary.NAV),
		})
	}

	if err := s.client.AppendRows(ctx, id, TabPortfolioBalance, rows); err != nil {
		return fmt.Errorf("failed to write portfolio balance: %w", err)
	}
	return nil
}

// ExportTrades appends trade-ledger rows to "Trade Ledger"
func (s *Store) ExportTrades(ctx context.Context, url string, trades []contracts.TradeRecord) error {
	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}
	if _, err := s.prepareTab(ctx, id, TabTradeLedger, tradeLedgerHeader); err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []interface{}{
			t.Date, t.Ticker, t.NetUnits, t.TotalAbsUnits,
			money(t.TradePrice), money(t.AdjClose), t.TradeType,
			t.PreTradePosition, t.DeltaShares, t.PostTradePosition,
			money(t.Commission), money(t.Interest), money(t.NAV),
		})
	}

	if err := s.client.AppendRows(ctx, id, TabTradeLedger, rows); err != nil {
		return fmt.Errorf("failed to export trades: %w", err)
	}
	return nil
}

// AppendOrderConfirmations appends executed orders to the output sheet
func (s *Store) AppendOrderConfirmations(ctx context.Context, url string, confirmations []OrderConfirmation) error {
	if len(confirmations) == 0 {
		return nil
	}

	id, err := SpreadsheetID(url)
	if err != nil {
		return err
	}
	if _, err := s.prepareTab(ctx, id, TabOrderConfirmations, confirmationHeader); err != nil {
		return err
	}

	rows := make([][]interface{}, 0, len(confirmations))
	for _, c := range confirmations {
		rows = append(rows, []interface{}{
			c.Timestamp, c.Ticker, string(c.Action), c.Quantity, money(c.Price), string(c.Status),
		})
	}

	if err := s.client.AppendRows(ctx, id, TabOrderConfirmations, rows); err != nil {
		return fmt.Errorf("failed to append order confirmations: %w", err)
	}
	return nil
}
