package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/stratbook/internal/cycle"
	"github.com/wonny/stratbook/internal/reporting"
	"github.com/wonny/stratbook/pkg/logger"
)

// DelayedReportJob is the name the reporting round runs under
const DelayedReportJob = "delayed_report"

// ErrCycleRunning is returned when a trigger arrives while a cycle is in flight
var ErrCycleRunning = errors.New("trading cycle already running")

// CycleRunner runs the main flow and the reporting round
type CycleRunner interface {
	Run(ctx context.Context, opts cycle.Options) (*cycle.Result, error)
	RunDelayed(ctx context.Context, round *reporting.Round) *reporting.Summary
}

// Deferrer schedules a one-shot run
type Deferrer interface {
	After(name string, delay time.Duration, fn func(ctx context.Context) error)
}

// TradingCycleJob runs the trading cycle and schedules its reporting round.
// Never retried: a second run would place orders and move cash again.
// ⭐ SSOT: 매매 사이클 스케줄은 이 Job에서만
type TradingCycleJob struct {
	runner   CycleRunner
	deferrer Deferrer
	schedule string
	delay    time.Duration
	options  cycle.Options
	logger   *logger.Logger

	running sync.Mutex
}

// NewTradingCycleJob creates the trading cycle job
func NewTradingCycleJob(runner CycleRunner, deferrer Deferrer, schedule string, delay time.Duration, opts cycle.Options, log *logger.Logger) *TradingCycleJob {
	return &TradingCycleJob{
		runner:   runner,
		deferrer: deferrer,
		schedule: schedule,
		delay:    delay,
		options:  opts,
		logger:   log.WithField(logger.FieldJob, "trading_cycle"),
	}
}

// Name returns the job name
func (j *TradingCycleJob) Name() string {
	return "trading_cycle"
}

// Schedule returns the cron schedule (weekdays before the close by default)
func (j *TradingCycleJob) Schedule() string {
	return j.schedule
}

// Run executes one cycle and defers the reporting round
func (j *TradingCycleJob) Run(ctx context.Context) error {
	if !j.running.TryLock() {
		return ErrCycleRunning
	}
	defer j.running.Unlock()

	result, err := j.runner.Run(ctx, j.options)
	if err != nil {
		return fmt.Errorf("trading cycle: %w", err)
	}
	if result.Round == nil {
		j.logger.WithRunID(result.RunID).Info("Nothing executed, no reporting round")
		return nil
	}

	round := result.Round
	j.deferrer.After(DelayedReportJob, j.delay, func(ctx context.Context) error {
		summary := j.runner.RunDelayed(ctx, round)
		if summary.Failures > 0 {
			return fmt.Errorf("reporting round for %s: %d strategy updates failed", round.Date, summary.Failures)
		}
		return nil
	})
	return nil
}
