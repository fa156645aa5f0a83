package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/cycle"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/reporting"
	"github.com/wonny/stratbook/pkg/logger"
)

type fakeRunner struct {
	result  *cycle.Result
	err     error
	summary *reporting.Summary
	rounds  []*reporting.Round
	started chan struct{}
	block   chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, opts cycle.Options) (*cycle.Result, error) {
	if f.block != nil {
		close(f.started)
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeRunner) RunDelayed(ctx context.Context, round *reporting.Round) *reporting.Summary {
	f.rounds = append(f.rounds, round)
	return f.summary
}

type deferred struct {
	name  string
	delay time.Duration
	fn    func(ctx context.Context) error
}

type fakeDeferrer struct {
	calls []deferred
}

func (f *fakeDeferrer) After(name string, delay time.Duration, fn func(ctx context.Context) error) {
	f.calls = append(f.calls, deferred{name, delay, fn})
}

func TestTradingCycleSchedulesReport(t *testing.T) {
	round := &reporting.Round{Date: "2026-10-16"}
	runner := &fakeRunner{
		result:  &cycle.Result{RunID: "r1", Round: round},
		summary: &reporting.Summary{},
	}
	deferrer := &fakeDeferrer{}
	job := NewTradingCycleJob(runner, deferrer, "0 45 15 * * 1-5", 12*time.Minute, cycle.Options{}, logger.Nop())

	assert.Equal(t, "trading_cycle", job.Name())
	assert.Equal(t, "0 45 15 * * 1-5", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, deferrer.calls, 1)
	assert.Equal(t, DelayedReportJob, deferrer.calls[0].name)
	assert.Equal(t, 12*time.Minute, deferrer.calls[0].delay)

	require.NoError(t, deferrer.calls[0].fn(context.Background()))
	require.Len(t, runner.rounds, 1)
	assert.Same(t, round, runner.rounds[0])

	runner.summary = &reporting.Summary{Failures: 2}
	assert.Error(t, deferrer.calls[0].fn(context.Background()))
}

func TestTradingCycleWithoutRound(t *testing.T) {
	deferrer := &fakeDeferrer{}
	job := NewTradingCycleJob(&fakeRunner{result: &cycle.Result{}}, deferrer, "@daily", time.Minute, cycle.Options{}, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, deferrer.calls)
}

func TestTradingCycleFailure(t *testing.T) {
	deferrer := &fakeDeferrer{}
	runner := &fakeRunner{result: &cycle.Result{}, err: errors.New("gateway down")}
	job := NewTradingCycleJob(runner, deferrer, "@daily", time.Minute, cycle.Options{}, logger.Nop())

	assert.Error(t, job.Run(context.Background()))
	assert.Empty(t, deferrer.calls)
}

func TestTradingCycleRejectsOverlap(t *testing.T) {
	runner := &fakeRunner{result: &cycle.Result{}, started: make(chan struct{}), block: make(chan struct{})}
	job := NewTradingCycleJob(runner, &fakeDeferrer{}, "@daily", time.Minute, cycle.Options{}, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- job.Run(context.Background()) }()

	<-runner.started
	assert.ErrorIs(t, job.Run(context.Background()), ErrCycleRunning)

	close(runner.block)
	assert.NoError(t, <-done)
}

func TestLedgerDriftJob(t *testing.T) {
	book := ledger.NewMemoryBook(
		map[string]int64{"AAPL": 15, "MSFT": 3},
		map[string]int64{"AAPL": 10},
		map[string]int64{"AAPL": 5},
	)
	job := NewLedgerDriftJob(book, logger.Nop())

	assert.Equal(t, "ledger_drift", job.Name())
	assert.True(t, job.Idempotent())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []contracts.Drift{{Ticker: "MSFT", Combined: 3, Strategies: 0, Difference: 3}}, book.Drift())
}
