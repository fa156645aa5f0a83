// Package combiner folds every strategy's target rows into one desired
// position per ticker.
package combiner

import (
	"math"
	"strconv"
	"strings"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/dates"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/pkg/logger"
)

// Combiner merges per-strategy inputs
type Combiner struct {
	logger *logger.Logger
}

// New creates a new Combiner
func New(log *logger.Logger) *Combiner {
	return &Combiner{logger: log.Component("combiner")}
}

// Combine parses each strategy's rows and folds them in strategy order.
//
// Merge policy for a ticker already seen:
//   - new row today, existing today: targets add
//   - new row today, existing stale: new row replaces
//   - both stale: targets add, later date kept
//   - new row stale, existing today: unchanged
//
// inputs[i] and failed[i] belong to strategy i. Synthetic liquidation rows are
// added afterwards (skipped for failed strategies) and feed the contributor sets.
func (c *Combiner) Combine(today string, inputs [][]contracts.InputRow, failed []bool, book *ledger.Book) *contracts.Combination {
	combo := &contracts.Combination{
		Today:        today,
		StrategyRows: make([][]contracts.TargetRow, len(inputs)),
		Contributors: map[string][]int{},
		Failed:       make([]bool, len(inputs)),
	}
	copy(combo.Failed, failed)

	for i, rows := range inputs {
		combo.StrategyRows[i] = c.parseRows(i, rows, book.Strategy(i))
	}

	index := map[string]int{}
	for _, rows := range combo.StrategyRows {
		for _, row := range rows {
			pos, seen := index[row.Ticker]
			if !seen {
				index[row.Ticker] = len(combo.Rows)
				combo.Rows = append(combo.Rows, contracts.DesiredPosition{
					Ticker:         row.Ticker,
					TargetPosition: row.TargetPosition,
					Date:           row.Date,
				})
				continue
			}
			merge(&combo.Rows[pos], row, today)
		}
	}

	AddLiquidationRows(combo, book)

	for i := range combo.StrategyRows {
		for _, row := range combo.TodayRows(i) {
			combo.Contributors[row.Ticker] = appendUnique(combo.Contributors[row.Ticker], i)
		}
	}
	for i := range combo.Rows {
		combo.Rows[i].Strategies = combo.Contributors[combo.Rows[i].Ticker]
	}

	c.logger.WithFields(map[string]interface{}{
		"today":      today,
		"strategies": len(inputs),
		"tickers":    len(combo.Rows),
	}).Info("Combined strategy targets")

	return combo
}

func merge(existing *contracts.DesiredPosition, row contracts.TargetRow, today string) {
	newToday := row.Date == today
	oldToday := existing.Date == today

	switch {
	case newToday && oldToday:
		existing.TargetPosition += row.TargetPosition
	case newToday:
		existing.TargetPosition = row.TargetPosition
		existing.Date = row.Date
	case !oldToday:
		existing.TargetPosition += row.TargetPosition
		if row.Date > existing.Date {
			existing.Date = row.Date
		}
	}
}

// AddLiquidationRows gives each strategy a {target 0} row dated today for every
// ticker it holds but did not list today, so its exposure is attributed.
func AddLiquidationRows(combo *contracts.Combination, book *ledger.Book) {
	for i := range combo.StrategyRows {
		if combo.IsFailed(i) {
			continue
		}
		l := book.Strategy(i)
		if l == nil {
			continue
		}

		listed := map[string]bool{}
		for _, row := range combo.TodayRows(i) {
			listed[row.Ticker] = true
		}

		for _, ticker := range l.Held() {
			if listed[ticker] {
				continue
			}
			combo.StrategyRows[i] = append(combo.StrategyRows[i], contracts.TargetRow{
				Ticker:           ticker,
				TargetPosition:   0,
				Date:             combo.Today,
				PreTradePosition: l.Get(ticker),
				Liquidation:      true,
			})
		}
	}
}

func (c *Combiner) parseRows(idx int, rows []contracts.InputRow, l *ledger.Ledger) []contracts.TargetRow {
	out := make([]contracts.TargetRow, 0, len(rows))
	for _, raw := range rows {
		ticker := strings.TrimSpace(raw.Ticker)
		if ticker == "" {
			continue
		}

		target, ok := ParseTarget(raw.TargetPosition)
		if !ok {
			c.logger.WithFields(map[string]interface{}{
				"strategy": idx + 1,
				"ticker":   ticker,
				"value":    raw.TargetPosition,
			}).Warn("Invalid target position, using 0")
		}

		var pre int64
		if l != nil {
			pre = l.Get(ticker)
		}

		out = append(out, contracts.TargetRow{
			Ticker:           ticker,
			TargetPosition:   target,
			Date:             dates.NormalizeOrWarn(c.logger, raw.Date),
			PreTradePosition: pre,
		})
	}
	return out
}

// ParseTarget reads a share count, allowing thousands separators and
// float text ("1,200", "15.0"). Fractions truncate toward zero. ok is false
// (and the result 0) when the text is not numeric.
func ParseTarget(text string) (int64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if s == "" {
		return 0, false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func appendUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
