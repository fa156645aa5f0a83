package gateway

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stratbook/internal/contracts"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{`12.5`, "12.5", false},
		{`"12.5"`, "12.5", false},
		{`""`, "0", false},
		{`"  "`, "0", false},
		{`null`, "0", false},
		{`"1.7976931348623157E308"`, "1.7976931348623157E308", false},
		{`"abc"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.input), &a)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(a.Decimal), "got %s", a.String())
		})
	}
}

func TestInboxSnapshotIsCopy(t *testing.T) {
	in := NewInbox()
	in.RecordStatus(OrderStatus{OrderID: 1, Status: contracts.StatusSubmitted})

	snap := in.Snapshot()
	in.RecordStatus(OrderStatus{OrderID: 1, Status: contracts.StatusFilled})
	in.RecordStatus(OrderStatus{OrderID: 2, Status: contracts.StatusCancelled})

	st, ok := snap.Status(1)
	require.True(t, ok)
	assert.Equal(t, contracts.StatusSubmitted, st.Status)
	_, ok = snap.Status(2)
	assert.False(t, ok)
}

func TestInboxCommissionAcrossExecutions(t *testing.T) {
	in := NewInbox()
	in.RecordExecution(ExecutionDetail{OrderID: 7, ExecID: "e1", Price: NewAmount(dec("150.10"))})
	in.RecordExecution(ExecutionDetail{OrderID: 7, ExecID: "e2", Price: NewAmount(dec("150.30"))})
	in.RecordExecution(ExecutionDetail{OrderID: 8, ExecID: "e3", Price: NewAmount(dec("20"))})
	in.RecordCommission(CommissionReport{ExecID: "e1", Commission: NewAmount(dec("0.60"))})
	in.RecordCommission(CommissionReport{ExecID: "e2", Commission: NewAmount(dec("0.40"))})
	in.RecordCommission(CommissionReport{ExecID: "e3", Commission: NewAmount(dec("1"))})

	snap := in.Snapshot()

	assert.True(t, dec("1.00").Equal(snap.CommissionFor(7)))
	assert.True(t, dec("150.30").Equal(snap.LastExecutionPrice(7)))
	assert.True(t, snap.LastExecutionPrice(99).IsZero())
	assert.Len(t, snap.ExecutionsFor(7), 2)
}

func TestInboxCorrectedExecutionReplaces(t *testing.T) {
	in := NewInbox()
	in.RecordExecution(ExecutionDetail{OrderID: 1, ExecID: "e1", Price: NewAmount(dec("10"))})
	in.RecordExecution(ExecutionDetail{OrderID: 1, ExecID: "e1", Price: NewAmount(dec("11"))})

	snap := in.Snapshot()
	require.Len(t, snap.Executions, 1)
	assert.True(t, dec("11").Equal(snap.LastExecutionPrice(1)))
}

func TestAccountSummary(t *testing.T) {
	in := NewInbox()
	assert.Equal(t, contracts.AccountSummary{}, in.Snapshot().AccountSummary())

	in.RecordAccount(AccountTag{Account: "U2", Tag: contracts.TagNetLiquidation, Value: "999"})
	in.RecordAccount(AccountTag{Account: "U1", Tag: contracts.TagNetLiquidation, Value: "250000.50"})
	in.RecordAccount(AccountTag{Account: "U1", Tag: contracts.TagAccruedCash, Value: "12.25"})
	in.RecordAccount(AccountTag{Account: "U1", Tag: contracts.TagAvailableFunds, Value: ""})

	summary := in.Snapshot().AccountSummary()

	assert.Equal(t, "U1", summary.Account)
	assert.True(t, dec("250000.50").Equal(summary.NetLiquidation))
	assert.True(t, dec("12.25").Equal(summary.AccruedCash))
	assert.True(t, summary.AvailableFunds.IsZero())
	assert.True(t, summary.TotalCashValue.IsZero())
}

func TestInboxReadyOnce(t *testing.T) {
	in := NewInbox()
	in.MarkReady()
	in.MarkReady()

	select {
	case <-in.Ready():
	default:
		t.Fatal("expected ready channel to be closed")
	}
}

func TestInboxResetReadyKeepsEvents(t *testing.T) {
	in := NewInbox()
	in.MarkReady()
	in.RecordStatus(OrderStatus{OrderID: 3, Status: contracts.StatusFilled})

	in.resetReady()
	select {
	case <-in.Ready():
		t.Fatal("expected a fresh ready signal after reset")
	default:
	}

	in.MarkReady()
	<-in.Ready()
	_, ok := in.Snapshot().Status(3)
	assert.True(t, ok)
}

func TestInboxConcurrentWriters(t *testing.T) {
	in := NewInbox()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			in.RecordStatus(OrderStatus{OrderID: id, Status: contracts.StatusFilled})
			_ = in.Snapshot()
		}(int64(i))
	}
	wg.Wait()

	assert.Len(t, in.Snapshot().Statuses, 50)
}
