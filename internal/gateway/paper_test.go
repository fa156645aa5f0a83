package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stratbook/internal/contracts"
)

func TestPaperGatewayFill(t *testing.T) {
	p := NewPaperGateway()
	p.SetPrice("AAPL", dec("150"))
	ctx := context.Background()

	require.NoError(t, p.Connect(ctx))

	id, err := p.PlaceOrder(ctx, contracts.ActionBuy, 10, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	snap := p.Inbox().Snapshot()
	st, ok := snap.Status(id)
	require.True(t, ok)
	assert.Equal(t, contracts.StatusFilled, st.Status)
	assert.True(t, dec("150").Equal(st.AvgFillPrice.Decimal))
	// 10 * 0.005 is below the $1 minimum
	assert.True(t, dec("1").Equal(snap.CommissionFor(id)))
}

func TestPaperGatewaySplitExecutions(t *testing.T) {
	p := NewPaperGateway()
	p.SplitExecutions(3)
	p.SetCommission(dec("0.01"), decimal.Zero)

	id, err := p.PlaceOrder(context.Background(), contracts.ActionSell, 1000, "MSFT")
	require.NoError(t, err)

	snap := p.Inbox().Snapshot()
	execs := snap.ExecutionsFor(id)
	require.Len(t, execs, 3)

	total := decimal.Zero
	for _, e := range execs {
		total = total.Add(e.Shares.Decimal)
	}
	assert.True(t, dec("1000").Equal(total))
	assert.True(t, dec("10").Equal(snap.CommissionFor(id)))
}

func TestPaperGatewayForcedStatus(t *testing.T) {
	p := NewPaperGateway()
	p.SetStatus("TSLA", contracts.StatusCancelled)

	id, err := p.PlaceOrder(context.Background(), contracts.ActionBuy, 5, "TSLA")
	require.NoError(t, err)

	snap := p.Inbox().Snapshot()
	st, _ := snap.Status(id)
	assert.Equal(t, contracts.StatusCancelled, st.Status)
	assert.Empty(t, snap.ExecutionsFor(id))
}

func TestPaperGatewayFailOrders(t *testing.T) {
	p := NewPaperGateway()
	p.FailOrders("BAD")

	_, err := p.PlaceOrder(context.Background(), contracts.ActionBuy, 1, "BAD")
	assert.True(t, errors.Is(err, ErrNoOrderID))
	assert.Empty(t, p.Placed())
}

func TestPaperGatewayPriceFunc(t *testing.T) {
	p := NewPaperGateway()
	p.SetPriceFunc(func(symbol string) (decimal.Decimal, bool) {
		if symbol == "IBM" {
			return dec("190.5"), true
		}
		return decimal.Zero, false
	})

	id, _ := p.PlaceOrder(context.Background(), contracts.ActionBuy, 1, "IBM")
	other, _ := p.PlaceOrder(context.Background(), contracts.ActionBuy, 1, "XYZ")

	snap := p.Inbox().Snapshot()
	assert.True(t, dec("190.5").Equal(snap.LastExecutionPrice(id)))
	assert.True(t, dec("100").Equal(snap.LastExecutionPrice(other)))
}

func TestPaperGatewayAccountSummary(t *testing.T) {
	p := NewPaperGateway()
	p.SetAccountValue(contracts.TagNetLiquidation, dec("100500"))
	p.SetAccountValue(contracts.TagAccruedCash, dec("3.5"))

	require.NoError(t, p.RequestAccountSummary(context.Background(), contracts.AccountTags))

	summary := p.Inbox().Snapshot().AccountSummary()
	assert.Equal(t, PaperAccount, summary.Account)
	assert.True(t, dec("100500").Equal(summary.NetLiquidation))
	assert.True(t, dec("3.5").Equal(summary.AccruedCash))
}

func TestPaperGatewayUnavailable(t *testing.T) {
	p := NewPaperGateway()
	p.SetUnavailable()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Connect(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
}
