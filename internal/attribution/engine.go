// Package attribution turns resolved fills into ledger updates, per-strategy
// commission shares, cash and NAV.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/marketdata"
	"github.com/wonny/stratbook/internal/tradelog"
	"github.com/wonny/stratbook/pkg/logger"
)

// Engine applies fills and computes strategy metrics
// ⭐ SSOT: 체결 귀속 / 현금 / NAV 계산은 여기서만
type Engine struct {
	trades      tradelog.Store
	prices      marketdata.PriceSource
	initialCash decimal.Decimal
	logger      *logger.Logger
	now         func() time.Time
}

// NewEngine creates an attribution engine
func NewEngine(trades tradelog.Store, prices marketdata.PriceSource, initialCash decimal.Decimal, log *logger.Logger) *Engine {
	return &Engine{
		trades:      trades,
		prices:      prices,
		initialCash: initialCash,
		logger:      log.Component("attribution"),
		now:         time.Now,
	}
}

// InitialCash returns the capital a strategy starts with
func (e *Engine) InitialCash() decimal.Decimal {
	return e.initialCash
}

// InitializeCash seeds the initial capital, dated date, for every strategy
// without a cash record
func (e *Engine) InitializeCash(ctx context.Context, strategies int, date string) error {
	for idx := 0; idx < strategies; idx++ {
		_, err := e.trades.PreviousCash(ctx, idx)
		if err == nil {
			continue
		}
		if !errors.Is(err, tradelog.ErrNoCash) {
			return fmt.Errorf("failed to read cash for strategy %d: %w", idx+1, err)
		}

		if err := e.trades.StoreCash(ctx, idx, date, e.initialCash); err != nil {
			return fmt.Errorf("failed to seed cash for strategy %d: %w", idx+1, err)
		}
		e.logger.For(ctx).WithStrategy(idx).
			WithField("cash", e.initialCash.String()).
			Info("Initialized strategy cash")
	}
	return nil
}

// ApplyFills records every executed fill and moves the ledgers.
//
// The combined ledger takes the order's delta. Each contributing strategy
// moves to its own sheet target for the ticker (0 when it has no row on the
// trade date), so strategy ledgers can drift from the combined one.
// Strategies whose input failed this cycle keep their ledger unchanged.
// Persistence failures are logged and returned joined; in-memory state is kept.
func (e *Engine) ApplyFills(ctx context.Context, fills []contracts.FillResult, combo *contracts.Combination, book *ledger.Book, account contracts.AccountSummary) ([]contracts.FillResult, error) {
	out := make([]contracts.FillResult, 0, len(fills))
	var errs []error

	for _, fill := range fills {
		if !fill.Executed() {
			out = append(out, fill)
			continue
		}

		intent := fill.Intent
		log := e.logger.For(ctx).WithFields(map[string]interface{}{
			logger.FieldTicker: fill.Ticker,
			"order_id": fill.OrderID,
		})

		rec := contracts.TradeRecord{
			Date:              intent.TradeDate,
			Ticker:            fill.Ticker,
			NetUnits:          intent.DeltaShares,
			TotalAbsUnits:     abs(intent.DeltaShares),
			TradePrice:        fill.FillPrice,
			AdjClose:          fill.FillPrice,
			TradeType:         string(fill.Action),
			PreTradePosition:  intent.PreTradePosition,
			DeltaShares:       intent.DeltaShares,
			PostTradePosition: intent.PreTradePosition + intent.DeltaShares,
			Commission:        fill.Commission,
			Interest:          account.AccruedCash,
			NAV:               account.NetLiquidation,
			Timestamp:         e.now(),
		}
		if _, err := e.trades.InsertTrade(ctx, rec); err != nil {
			log.WithError(err).Error("Failed to record trade")
			errs = append(errs, fmt.Errorf("record trade %s: %w", fill.Ticker, err))
		}

		if err := book.Combined.Apply(fill.Ticker, fill.RealizedDeltaShares); err != nil {
			log.WithError(err).Error("Failed to persist combined position")
			errs = append(errs, err)
		}

		fill.IndividualDeltas = nil
		for _, idx := range intent.Strategies {
			l := book.Strategy(idx)
			if l == nil || idx >= combo.StrategyCount() {
				continue
			}
			if combo.IsFailed(idx) {
				// 입력을 못 읽은 전략: 원장 유지, drift로 보고됨
				log.WithStrategy(idx).Warn("Strategy input unavailable, keeping its position")
				continue
			}

			target := combo.StrategyTarget(idx, fill.Ticker, intent.TradeDate)
			pre := l.Get(fill.Ticker)
			delta := target - pre
			if delta != 0 {
				if err := l.Apply(fill.Ticker, delta); err != nil {
					log.WithError(err).WithStrategy(idx).Error("Failed to persist strategy position")
					errs = append(errs, err)
				}
			}

			fill.IndividualDeltas = append(fill.IndividualDeltas, contracts.IndividualDelta{
				Strategy:       idx,
				Ticker:         fill.Ticker,
				PreTrade:       pre,
				StrategyTarget: target,
				Delta:          delta,
			})
		}

		log.WithFields(map[string]interface{}{
			"delta":    fill.RealizedDeltaShares,
			"combined": book.Combined.Get(fill.Ticker),
			"splits":   len(fill.IndividualDeltas),
		}).Info("Fill applied")

		out = append(out, fill)
	}

	return out, errors.Join(errs...)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
