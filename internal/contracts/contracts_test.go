package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionFor(t *testing.T) {
	assert.Equal(t, ActionBuy, ActionFor(10))
	assert.Equal(t, ActionSell, ActionFor(-3))
}

func TestOrderStatus_IsExecuted(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{StatusFilled, true},
		{StatusSubmitted, true},
		{StatusPreSubmitted, true},
		{StatusPendingSubmit, false},
		{StatusCancelled, false},
		{StatusInactive, false},
		{StatusUnknown, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsExecuted())
		})
	}
}

func TestTargetRow_Delta(t *testing.T) {
	row := TargetRow{Ticker: "AAPL", TargetPosition: 20, PreTradePosition: 50}
	assert.Equal(t, int64(-30), row.Delta())
	assert.Equal(t, int64(30), row.AbsDelta())
}

func TestCombination_Lookups(t *testing.T) {
	combo := &Combination{
		Today: "2024-01-05",
		Rows: []DesiredPosition{
			{Ticker: "AAPL", TargetPosition: 150, Date: "2024-01-05"},
			{Ticker: "IBM", TargetPosition: 5, Date: "2024-01-04"},
		},
		StrategyRows: [][]TargetRow{
			{
				{Ticker: "AAPL", TargetPosition: 100, Date: "2024-01-05"},
				{Ticker: "IBM", TargetPosition: 5, Date: "2024-01-04"},
			},
			{
				{Ticker: "AAPL", TargetPosition: 50, Date: "2024-01-05"},
			},
		},
		Failed: []bool{false, true},
	}

	assert.False(t, combo.Empty())
	assert.Equal(t, 2, combo.StrategyCount())
	assert.Len(t, combo.TodayRows(0), 1)
	assert.Nil(t, combo.TodayRows(5))
	assert.Equal(t, int64(50), combo.StrategyTarget(1, "AAPL", "2024-01-05"))
	assert.Equal(t, int64(0), combo.StrategyTarget(1, "AAPL", "2024-01-04"))
	assert.Equal(t, int64(0), combo.StrategyTarget(9, "AAPL", "2024-01-05"))
	assert.True(t, combo.IsFailed(1))
	assert.False(t, combo.IsFailed(0))
	assert.Equal(t, map[string]bool{"AAPL": true}, combo.DesiredToday())

	var empty *Combination
	assert.True(t, empty.Empty())
}

func TestStrategyMetric_IsPlaceholder(t *testing.T) {
	assert.True(t, StrategyMetric{Ticker: PlaceholderTicker}.IsPlaceholder())
	assert.False(t, StrategyMetric{Ticker: "AAPL"}.IsPlaceholder())
}
