package sheets

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/retry"
)

func TestColumnName(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{14, "N"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{703, "AAA"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnName(tt.col), "col %d", tt.col)
	}
}

func TestCellUpdateRange(t *testing.T) {
	single := CellUpdate{Row: 3, Col: 2, Values: []interface{}{1}}
	assert.Equal(t, "'Daily NAV'!B3", single.Range("Daily NAV"))

	wide := CellUpdate{Row: 5, Col: 1, Values: []interface{}{1, 2, 3}}
	assert.Equal(t, "'Sheet1'!A5:C5", wide.Range("Sheet1"))

	assert.Equal(t, "'Bob''s'", TabRange("Bob's", ""))
}

func TestSpreadsheetID(t *testing.T) {
	id, err := SpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_9", id)

	id, err = SpreadsheetID("1AbC-d_9")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_9", id)

	_, err = SpreadsheetID("https://example.com/not/a/sheet")
	assert.Error(t, err)

	_, err = SpreadsheetID("")
	assert.Error(t, err)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, IsRateLimited(errors.New("googleapi: Error 429: Quota exceeded for quota metric")))
	assert.False(t, IsRateLimited(&googleapi.Error{Code: http.StatusForbidden, Message: "permission denied"}))
	assert.False(t, IsRateLimited(nil))
}

type countingWaiter struct{ n int }

func (w *countingWaiter) Wait(context.Context) error {
	w.n++
	return nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestLimitedClientRetriesRateLimit(t *testing.T) {
	mem := NewMemoryClient()
	mem.SetValues("sheet", "Sheet1", [][]string{{"Date", "Ticker"}})
	mem.FailNext(2, &googleapi.Error{Code: http.StatusTooManyRequests})

	waiter := &countingWaiter{}
	client := NewLimitedClient(mem, waiter, logger.Nop()).WithPolicy(fastPolicy())

	rows, err := client.ReadValues(context.Background(), "sheet", "Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, mem.Calls())
	assert.Equal(t, 3, waiter.n, "every attempt is paced")
}

func TestLimitedClientDoesNotRetryOtherErrors(t *testing.T) {
	mem := NewMemoryClient()
	mem.FailNext(1, &googleapi.Error{Code: http.StatusForbidden})

	client := NewLimitedClient(mem, nil, logger.Nop()).WithPolicy(fastPolicy())

	err := client.EnsureTab(context.Background(), "sheet", "Sheet1")
	require.Error(t, err)
	assert.Equal(t, 1, mem.Calls())
}

func TestLimitedClientGivesUp(t *testing.T) {
	mem := NewMemoryClient()
	mem.FailNext(10, &googleapi.Error{Code: http.StatusTooManyRequests})

	client := NewLimitedClient(mem, LocalLimiter(0), logger.Nop()).WithPolicy(fastPolicy())

	err := client.AppendRows(context.Background(), "sheet", "Sheet1", [][]interface{}{{"x"}})
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 5, mem.Calls())
}
