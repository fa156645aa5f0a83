package attribution

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/metrics"
	"github.com/wonny/stratbook/internal/tradelog"
)

// StrategyInput is everything one strategy's metrics are computed from
type StrategyInput struct {
	Strategy  int
	Name      string
	Date      string                          // the cycle's trade date
	Rows      []contracts.TargetRow           // the strategy's rows, liquidation rows included
	Positions map[string]int64                // the strategy ledger after fills
	Fills     map[string]contracts.FillResult // by ticker
	AbsAll    map[string]int64                // AbsSharesAll of the cycle
}

// StrategyMetrics computes a strategy's cash and NAV after the cycle's trades
// and stores the cash as the strategy's carry-forward for Date.
//
// Cash = prior cash - Σ(delta × fill price) - Σ commission share over the
// rows dated today. NAV adds every position valued at the fill price, else the
// closing price, else zero. A strategy left with no positions reports NAV =
// cash with a single placeholder metric. The report is returned even when
// storing the cash fails.
func (e *Engine) StrategyMetrics(ctx context.Context, in StrategyInput) (*contracts.StrategyReport, error) {
	log := e.logger.For(ctx).WithStrategy(in.Strategy).WithField("date", in.Date)

	prior, err := e.trades.PreviousCash(ctx, in.Strategy)
	switch {
	case errors.Is(err, tradelog.ErrNoCash):
		prior = e.initialCash
	case err != nil:
		return nil, fmt.Errorf("failed to read cash for strategy %d: %w", in.Strategy+1, err)
	}

	var today []contracts.TargetRow
	for _, row := range in.Rows {
		if row.Date == in.Date {
			today = append(today, row)
		}
	}

	commissions := CommissionShares(today, in.Fills, in.AbsAll)

	cash := prior
	for _, row := range today {
		price := decimal.Zero
		if fill, ok := in.Fills[row.Ticker]; ok {
			price = fill.FillPrice
		}
		cash = cash.Sub(decimal.NewFromInt(row.Delta()).Mul(price))
		cash = cash.Sub(commissions[row.Ticker])
	}

	// held positions, overridden by today's targets
	all := map[string]int64{}
	for ticker, shares := range in.Positions {
		if shares != 0 {
			all[ticker] = shares
		}
	}
	for _, row := range today {
		all[row.Ticker] = row.TargetPosition
	}

	report := &contracts.StrategyReport{
		Strategy: in.Strategy,
		Name:     in.Name,
		Cash:     cash,
		Targeted: len(today) > 0,
	}

	if flat(all) {
		report.NAV = cash
		report.Metrics = []contracts.StrategyMetric{{
			Date:   in.Date,
			Ticker: contracts.PlaceholderTicker,
			Price:  decimal.Zero,
			Cash:   cash,
			NAV:    cash,
		}}
		log.Info("Strategy holds no positions")
		return report, e.finish(ctx, report, in.Date)
	}

	tickers := make([]string, 0, len(all))
	for ticker := range all {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	closes, err := e.prices.ClosingPrices(ctx, tickers, in.Date)
	if err != nil {
		log.WithError(err).Warn("Closing prices unavailable, valuing untraded positions at zero")
		closes = map[string]decimal.Decimal{}
	}

	nav := cash
	for _, ticker := range tickers {
		shares := all[ticker]
		if shares == 0 {
			continue
		}
		price := decimal.Zero
		if fill, ok := in.Fills[ticker]; ok {
			price = fill.FillPrice
		}
		if price.IsZero() {
			price = closes[ticker]
		}
		nav = nav.Add(decimal.NewFromInt(shares).Mul(price))
	}
	report.NAV = nav

	if len(today) == 0 {
		// 오늘 거래 없음: 보유 종목별 정보 행
		for _, ticker := range tickers {
			report.Metrics = append(report.Metrics, contracts.StrategyMetric{
				Date:              in.Date,
				Ticker:            ticker,
				PreTradePosition:  all[ticker],
				PostTradePosition: all[ticker],
				Price:             closes[ticker],
				Commission:        decimal.Zero,
				Cash:              cash,
				NAV:               nav,
			})
		}
	} else {
		for _, row := range today {
			price := closes[row.Ticker]
			if fill, ok := in.Fills[row.Ticker]; ok {
				price = fill.FillPrice
			}
			report.Metrics = append(report.Metrics, contracts.StrategyMetric{
				Date:              in.Date,
				Ticker:            row.Ticker,
				PreTradePosition:  row.PreTradePosition,
				PostTradePosition: row.TargetPosition,
				Price:             price,
				DeltaShares:       row.Delta(),
				Commission:        commissions[row.Ticker],
				Cash:              cash,
				NAV:               nav,
			})
		}
	}

	log.WithFields(map[string]interface{}{
		"prior_cash": prior.String(),
		"cash":       cash.String(),
		"nav":        nav.String(),
		"rows":       len(report.Metrics),
	}).Info("Strategy metrics computed")

	return report, e.finish(ctx, report, in.Date)
}

// finish stores the carry-forward cash and publishes the gauges
func (e *Engine) finish(ctx context.Context, report *contracts.StrategyReport, date string) error {
	label := metrics.StrategyLabel(report.Strategy)
	metrics.StrategyCash.WithLabelValues(label).Set(report.Cash.InexactFloat64())
	metrics.StrategyNAV.WithLabelValues(label).Set(report.NAV.InexactFloat64())

	if err := e.trades.StoreCash(ctx, report.Strategy, date, report.Cash); err != nil {
		e.logger.For(ctx).WithError(err).WithStrategy(report.Strategy).Error("Failed to store strategy cash")
		return fmt.Errorf("failed to store cash for strategy %d: %w", report.Strategy+1, err)
	}
	return nil
}

func flat(positions map[string]int64) bool {
	for _, shares := range positions {
		if shares != 0 {
			return false
		}
	}
	return true
}
