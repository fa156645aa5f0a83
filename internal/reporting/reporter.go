package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/attribution"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/metrics"
	"github.com/wonny/stratbook/internal/sheets"
	"github.com/wonny/stratbook/internal/strategyconfig"
	"github.com/wonny/stratbook/internal/tradelog"
	"github.com/wonny/stratbook/pkg/logger"
)

// Config locates the shared workbooks
type Config struct {
	DetailURL string // trade ledger export, combined metrics, portfolio balance
	OutputURL string // order confirmations
	Location  *time.Location
}

// Reporter runs the reporting stages of a cycle.
// A nil sheet store computes and stores strategy cash without writing sheets.
type Reporter struct {
	sheets *sheets.Store
	engine *attribution.Engine
	trades tradelog.Store
	config Config
	logger *logger.Logger
	now    func() time.Time
}

// New creates a reporter
func New(store *sheets.Store, engine *attribution.Engine, trades tradelog.Store, cfg Config, log *logger.Logger) *Reporter {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Reporter{
		sheets: store,
		engine: engine,
		trades: trades,
		config: cfg,
		logger: log.Component("reporting"),
		now:    time.Now,
	}
}

func (r *Reporter) clock() (date, clock, stamp string) {
	now := r.now().In(r.config.Location)
	return now.Format("2006-01-02"), now.Format("15:04:05"), now.Format("2006-01-02 15:04:05")
}

// failed logs a stage failure and counts it
func (r *Reporter) failed(stage string, strategy int, err error) {
	metrics.SheetFailures.WithLabelValues(stage).Inc()
	log := r.logger.WithError(err).WithField("stage", stage)
	if strategy >= 0 {
		log = log.WithField("strategy", strategy+1)
	}
	log.Error("Reporting stage failed")
}

// Immediate runs right after the main flow: order confirmations on the output
// sheet, today's trades on the detail workbook and fills on the first
// strategy's input tab. Stages fail independently.
func (r *Reporter) Immediate(ctx context.Context, round *Round) error {
	if r.sheets == nil {
		return nil
	}

	var errs []error
	if err := r.OrderConfirmations(ctx, round); err != nil {
		r.failed("confirmations", -1, err)
		errs = append(errs, err)
	}
	if err := r.ExportTrades(ctx, round); err != nil {
		r.failed("trade_export", -1, err)
		errs = append(errs, err)
	}
	if err := r.FirstInputFills(ctx, round); err != nil {
		r.failed("first_input", 0, err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// OrderConfirmations appends one row per executed order to the output sheet
func (r *Reporter) OrderConfirmations(ctx context.Context, round *Round) error {
	if r.sheets == nil || r.config.OutputURL == "" {
		return nil
	}

	_, _, stamp := r.clock()
	var rows []sheets.OrderConfirmation
	for _, f := range round.Executed() {
		rows = append(rows, sheets.OrderConfirmation{
			Timestamp: stamp,
			Ticker:    f.Ticker,
			Action:    f.Action,
			Quantity:  f.Intent.Quantity,
			Price:     f.FillPrice,
			Status:    f.Status,
		})
	}
	return r.sheets.AppendOrderConfirmations(ctx, r.config.OutputURL, rows)
}

// ExportTrades copies the trade ledger's rows for the round's date to the detail workbook
func (r *Reporter) ExportTrades(ctx context.Context, round *Round) error {
	if r.sheets == nil || r.config.DetailURL == "" {
		return nil
	}

	trades, err := r.trades.TradesOn(ctx, round.Date)
	if err != nil {
		return err
	}
	if err := r.sheets.ExportTrades(ctx, r.config.DetailURL, trades); err != nil {
		return err
	}

	r.logger.WithField("trades", len(trades)).Info("Exported trades to detail workbook")
	return nil
}

// FirstInputFills writes the combined fill (realized delta and price) next to
// the first strategy's rows dated today
func (r *Reporter) FirstInputFills(ctx context.Context, round *Round) error {
	if r.sheets == nil || len(round.Strategies) == 0 || round.Combination.StrategyCount() == 0 {
		return nil
	}

	fills := round.FillsByTicker()
	var updates []sheets.InputFill
	for _, row := range round.Combination.TodayRows(0) {
		fill, ok := fills[row.Ticker]
		if !ok {
			continue
		}
		updates = append(updates, sheets.InputFill{
			Ticker:      row.Ticker,
			Date:        round.Date,
			DeltaShares: fill.RealizedDeltaShares,
			Price:       fill.FillPrice,
		})
	}

	if len(updates) == 0 {
		r.logger.Info("No fills for the first input sheet")
		return nil
	}

	first := round.Strategies[0]
	return r.sheets.UpdateInputFills(ctx, first.SheetURL, first.Tab(), updates)
}

// FullRound computes every strategy's metrics (storing its cash) and writes
// the per-strategy and combined sheets. One strategy failing does not stop
// the others.
func (r *Reporter) FullRound(ctx context.Context, round *Round) *Summary {
	summary := &Summary{}
	fills := round.FillsByTicker()
	absAll := attribution.AbsSharesAll(round.Combination)

	reports := make([]*contracts.StrategyReport, len(round.Strategies))
	for idx, strategy := range round.Strategies {
		if ctx.Err() != nil {
			r.logger.WithField("remaining", len(round.Strategies)-idx).Warn("Reporting round cancelled")
			break
		}

		var rows []contracts.TargetRow
		if idx < round.Combination.StrategyCount() {
			rows = round.Combination.StrategyRows[idx]
		}

		report, err := r.engine.StrategyMetrics(ctx, attribution.StrategyInput{
			Strategy:  idx,
			Name:      strategy.Name,
			Date:      round.Date,
			Rows:      rows,
			Positions: round.Ledgers.Strategy(idx),
			Fills:     fills,
			AbsAll:    absAll,
		})
		if err != nil {
			r.failed("metrics", idx, err)
			summary.Failures++
		}
		if report == nil {
			continue
		}
		reports[idx] = report
		summary.Reports = append(summary.Reports, report)

		if err := r.strategySheets(ctx, strategy, report); err != nil {
			r.failed("strategy_sheets", idx, err)
			summary.Failures++
		}
	}

	if err := r.CombinedMetrics(ctx, round, reports); err != nil {
		r.failed("combined_metrics", -1, err)
		summary.Failures++
	}
	if err := r.PortfolioBalance(ctx, round); err != nil {
		r.failed("portfolio_balance", -1, err)
		summary.Failures++
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id":     round.RunID,
		"strategies": len(summary.Reports),
		"failures":   summary.Failures,
	}).Info("Reporting round completed")

	return summary
}

// strategySheets writes one strategy's detail rows, input fills, balance rows and daily NAV
func (r *Reporter) strategySheets(ctx context.Context, strategy strategyconfig.Strategy, report *contracts.StrategyReport) error {
	if r.sheets == nil || strategy.SheetURL == "" {
		return nil
	}

	if err := r.sheets.WriteTradeDetails(ctx, strategy.SheetURL, report.Metrics); err != nil {
		return err
	}

	date, clock, _ := r.clock()
	var fills []sheets.InputFill
	var balance []sheets.BalanceRow
	for _, m := range report.Metrics {
		if m.IsPlaceholder() {
			continue
		}
		// informational rows have no input row to fill
		if report.Targeted {
			fills = append(fills, sheets.InputFill{
				Ticker:      m.Ticker,
				Date:        m.Date,
				DeltaShares: m.DeltaShares,
				Price:       m.Price,
			})
		}
		balance = append(balance, sheets.BalanceRow{
			Date:        m.Date,
			Time:        clock,
			Ticker:      m.Ticker,
			Position:    m.PostTradePosition,
			Price:       m.Price,
			MarketValue: decimal.NewFromInt(m.PostTradePosition).Mul(m.Price),
			Cash:        m.Cash,
			NAV:         m.NAV,
		})
	}

	if err := r.sheets.UpdateInputFills(ctx, strategy.SheetURL, strategy.Tab(), fills); err != nil {
		return err
	}
	if err := r.sheets.UpsertBalanceRows(ctx, strategy.SheetURL, balance); err != nil {
		return err
	}

	navDate := date
	if len(report.Metrics) > 0 {
		navDate = report.Metrics[0].Date
	}
	return r.sheets.UpsertDailyNAV(ctx, strategy.SheetURL, navDate, report.NAV)
}

// CombinedMetrics appends per-strategy NAV and cash plus the broker's view.
// A strategy without a report falls back to its sheet's latest NAV and its
// stored cash, else the initial capital.
func (r *Reporter) CombinedMetrics(ctx context.Context, round *Round, reports []*contracts.StrategyReport) error {
	if r.sheets == nil || r.config.DetailURL == "" {
		return nil
	}

	row := sheets.CombinedMetricsRow{
		Date:       round.Date,
		BrokerNAV:  round.Account.NetLiquidation,
		BrokerCash: round.Account.TotalCashValue,
	}
	for idx, strategy := range round.Strategies {
		if idx < len(reports) && reports[idx] != nil {
			row.NAVs = append(row.NAVs, reports[idx].NAV)
			row.Cash = append(row.Cash, reports[idx].Cash)
			continue
		}

		nav := r.engine.InitialCash()
		if strategy.SheetURL != "" {
			if latest, ok, err := r.sheets.LatestNAV(ctx, strategy.SheetURL); err != nil {
				r.logger.WithError(err).WithField("strategy", idx+1).Warn("Latest NAV unavailable")
			} else if ok {
				nav = latest
			}
		}

		cash, err := r.trades.PreviousCash(ctx, idx)
		if err != nil {
			cash = r.engine.InitialCash()
		}

		row.NAVs = append(row.NAVs, nav)
		row.Cash = append(row.Cash, cash)
	}

	return r.sheets.AppendCombinedMetrics(ctx, r.config.DetailURL, row)
}

// PortfolioBalance writes the combined book valued at today's fill prices,
// with the broker's available funds and net liquidation
func (r *Reporter) PortfolioBalance(ctx context.Context, round *Round) error {
	if r.sheets == nil || r.config.DetailURL == "" {
		return nil
	}

	_, clock, _ := r.clock()
	fills := round.FillsByTicker()
	summary := sheets.PortfolioSummary{
		Date: round.Date,
		Time: clock,
		Cash: round.Account.AvailableFunds,
		NAV:  round.Account.NetLiquidation,
	}

	for _, ticker := range sortedTickers(round.Ledgers.Combined) {
		shares := round.Ledgers.Combined[ticker]
		price := decimal.Zero
		if fill, ok := fills[ticker]; ok {
			price = fill.FillPrice
		}
		summary.Positions = append(summary.Positions, sheets.PortfolioPosition{
			Ticker:      ticker,
			Position:    shares,
			Price:       price,
			MarketValue: decimal.NewFromInt(shares).Mul(price),
		})
	}

	return r.sheets.WritePortfolioBalance(ctx, r.config.DetailURL, summary)
}
