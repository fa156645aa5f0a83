package contracts

// InputRow is one raw target-position row as read from a strategy's input tab
type InputRow struct {
	Ticker         string `json:"ticker"`
	TargetPosition string `json:"target_position"` // raw cell text
	Date           string `json:"date"`            // raw cell text
}

// TargetRow is a parsed target-position row for one strategy
// ⭐ SSOT: 전략별 목표 포지션 (정규화 완료)
type TargetRow struct {
	Ticker           string `json:"ticker"`
	TargetPosition   int64  `json:"target_position"`
	Date             string `json:"date"` // YYYY-MM-DD, or the raw text when normalization failed
	PreTradePosition int64  `json:"pre_trade_position"`
	Liquidation      bool   `json:"liquidation,omitempty"` // synthesized for a held ticker the strategy no longer lists
}

// Delta is the signed share change this row asks the strategy to make
func (r TargetRow) Delta() int64 {
	return r.TargetPosition - r.PreTradePosition
}

// AbsDelta is |Delta|
func (r TargetRow) AbsDelta() int64 {
	d := r.Delta()
	if d < 0 {
		return -d
	}
	return d
}

// DesiredPosition is one combined row per ticker
type DesiredPosition struct {
	Ticker         string `json:"ticker"`
	TargetPosition int64  `json:"target_position"`
	Date           string `json:"date"`
	Strategies     []int  `json:"contributing_strategies"`
}

// Combination is the output of one combine pass
// ⭐ SSOT: Combiner → Planner / Attribution 전달
type Combination struct {
	Today string `json:"today"`

	// Rows holds one row per ticker in first-seen order
	Rows []DesiredPosition `json:"rows"`

	// StrategyRows[i] holds strategy i's parsed rows, including synthetic liquidation rows
	StrategyRows [][]TargetRow `json:"strategy_rows"`

	// Contributors maps ticker to the sorted strategy indices with a today row for it
	Contributors map[string][]int `json:"contributors"`

	// Failed marks strategies whose input could not be read this cycle
	Failed []bool `json:"failed"`
}

// Empty reports whether nothing was combined
func (c *Combination) Empty() bool {
	return c == nil || len(c.Rows) == 0
}

// StrategyCount returns the number of strategies in the cycle
func (c *Combination) StrategyCount() int {
	return len(c.StrategyRows)
}

// TodayRows returns strategy idx's rows dated today
func (c *Combination) TodayRows(idx int) []TargetRow {
	if idx < 0 || idx >= len(c.StrategyRows) {
		return nil
	}
	var rows []TargetRow
	for _, r := range c.StrategyRows[idx] {
		if r.Date == c.Today {
			rows = append(rows, r)
		}
	}
	return rows
}

// StrategyTarget returns strategy idx's target for ticker on date (0 when absent)
func (c *Combination) StrategyTarget(idx int, ticker, date string) int64 {
	if idx < 0 || idx >= len(c.StrategyRows) {
		return 0
	}
	for _, r := range c.StrategyRows[idx] {
		if r.Ticker == ticker && r.Date == date {
			return r.TargetPosition
		}
	}
	return 0
}

// IsFailed reports whether strategy idx failed to load
func (c *Combination) IsFailed(idx int) bool {
	return idx >= 0 && idx < len(c.Failed) && c.Failed[idx]
}

// DesiredToday returns the set of tickers with a combined row dated today
func (c *Combination) DesiredToday() map[string]bool {
	set := make(map[string]bool, len(c.Rows))
	for _, r := range c.Rows {
		if r.Date == c.Today {
			set[r.Ticker] = true
		}
	}
	return set
}

// Drift is one ticker where the combined ledger disagrees with the sum of strategy ledgers
type Drift struct {
	Ticker     string `json:"ticker"`
	Combined   int64  `json:"combined"`
	Strategies int64  `json:"strategies_sum"`
	Difference int64  `json:"difference"` // combined - strategies_sum
}
