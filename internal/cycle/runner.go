package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/stratbook/internal/attribution"
	"github.com/wonny/stratbook/internal/combiner"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/dates"
	"github.com/wonny/stratbook/internal/execution"
	"github.com/wonny/stratbook/internal/metrics"
	"github.com/wonny/stratbook/internal/reporting"
	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/retry"
)

// Options tune a single run
type Options struct {
	DryRun     bool          // plan and log, place nothing
	SettleWait time.Duration // overrides SETTLE_WAIT when > 0
}

// Result is what one run produced
type Result struct {
	RunID    string                   `json:"run_id"`
	Date     string                   `json:"date"`
	DryRun   bool                     `json:"dry_run"`
	Intents  []contracts.OrderIntent  `json:"intents"`
	Placed   int                      `json:"placed"`
	Fills    []contracts.FillResult   `json:"fills"`
	Account  contracts.AccountSummary `json:"account"`
	Drift    []contracts.Drift        `json:"drift,omitempty"`
	Round    *reporting.Round         `json:"-"` // input to the delayed round; nil for dry runs, aborted runs and cycles without targets
	Duration time.Duration            `json:"duration"`
}

// Runner executes trading cycles
// ⭐ SSOT: 매매 사이클 흐름은 여기서만
type Runner struct {
	deps     Deps
	combiner *combiner.Combiner
	planner  *execution.Planner
	engine   *attribution.Engine
	reporter *reporting.Reporter
	location *time.Location
	now      func() time.Time
}

// NewRunner wires a runner from deps
func NewRunner(deps Deps) (*Runner, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid cycle deps: %w", err)
	}

	loc, err := deps.Config.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone: %w", err)
	}

	engine := attribution.NewEngine(deps.Trades, deps.Prices, decimal.NewFromFloat(deps.Config.Cycle.InitialCash), deps.Logger)
	reporter := reporting.New(deps.Sheets, engine, deps.Trades, reporting.Config{
		DetailURL: deps.Config.Sheets.DetailURL,
		OutputURL: deps.Config.Sheets.OutputURL,
		Location:  loc,
	}, deps.Logger)

	return &Runner{
		deps:     deps,
		combiner: combiner.New(deps.Logger),
		planner:  execution.NewPlanner(deps.Logger),
		engine:   engine,
		reporter: reporter,
		location: loc,
		now:      time.Now,
	}, nil
}

func (r *Runner) coordinator(opts Options) *execution.Coordinator {
	cfg := r.deps.Config
	settle := cfg.Cycle.SettleWait
	if opts.SettleWait > 0 {
		settle = opts.SettleWait
	}
	return execution.NewCoordinator(r.deps.Gateway, execution.CoordinatorConfig{
		ConnectTimeout: cfg.Gateway.ConnectTimeout,
		SettleWait:     settle,
		AccountWait:    cfg.Cycle.AccountWait,
		PollInterval:   time.Minute,
	}, r.deps.Logger)
}

// Run executes the main flow: connect, read targets, combine, plan, place,
// settle, resolve, apply fills and persist, then the immediate reports.
// Only a gateway connection failure (or ctx) aborts it before orders go out.
func (r *Runner) Run(ctx context.Context, opts Options) (result *Result, err error) {
	start := r.now()
	result = &Result{
		RunID:  uuid.New().String(),
		Date:   dates.TodayAt(start, r.location),
		DryRun: opts.DryRun,
	}
	ctx = logger.ContextWithRunID(ctx, result.RunID)
	log := r.deps.Logger.Component("cycle").WithRunID(result.RunID).WithFields(map[string]interface{}{
		"date":    result.Date,
		"dry_run": opts.DryRun,
	})

	defer func() {
		result.Duration = r.now().Sub(start)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.CycleDuration.WithLabelValues(outcome).Observe(result.Duration.Seconds())
	}()

	log.Info("Trading cycle started")
	coord := r.coordinator(opts)
	strategies := r.deps.Strategies.Strategies

	if !opts.DryRun {
		if err := coord.Connect(ctx); err != nil {
			log.WithError(err).Error("Gateway unavailable, aborting cycle")
			return result, err
		}
		if err := r.engine.InitializeCash(ctx, len(strategies), result.Date); err != nil {
			log.WithError(err).Warn("Failed to initialize strategy cash")
		}
	}

	inputs, failed := r.readInputs(ctx)
	combo := r.combiner.Combine(result.Date, inputs, failed, r.deps.Book)
	if combo.Empty() {
		log.Info("No positions to trade")
		return result, nil
	}

	result.Intents = r.planner.Plan(combo, r.deps.Book)
	if opts.DryRun {
		for _, in := range result.Intents {
			log.WithFields(map[string]interface{}{
				"ticker":      in.Ticker,
				"action":      in.Action,
				"quantity":    in.Quantity,
				"pre":         in.PreTradePosition,
				"liquidation": in.Liquidation,
				"strategies":  in.Strategies,
			}).Info("Dry run: order not placed")
		}
		return result, nil
	}

	exec, err := coord.Execute(ctx, result.Intents)
	if exec != nil {
		result.Placed = len(exec.Placed)
	}
	if err != nil {
		log.WithError(err).WithField("placed", result.Placed).Error("Cycle interrupted after placing orders")
		return result, fmt.Errorf("execution interrupted: %w", err)
	}
	result.Account = exec.Account

	fills, err := r.engine.ApplyFills(ctx, exec.Fills, combo, r.deps.Book, exec.Account)
	if err != nil {
		log.WithError(err).Error("Some fills were not persisted, continuing with in-memory state")
	}
	result.Fills = fills

	if err := r.deps.Book.SaveAll(); err != nil {
		log.WithError(err).Error("Failed to save position ledgers")
	}

	result.Drift = r.deps.Book.Drift()
	metrics.LedgerDrift.Set(float64(len(result.Drift)))
	if len(result.Drift) > 0 {
		log.WithField("tickers", len(result.Drift)).Warn("Strategy ledgers drifted from the combined ledger")
	}

	result.Round = &reporting.Round{
		RunID:       result.RunID,
		Date:        result.Date,
		Strategies:  append(strategies[:0:0], strategies...),
		Combination: combo,
		Fills:       fills,
		Ledgers:     r.deps.Book.Snapshot(),
		Account:     exec.Account,
	}

	if err := r.reporter.Immediate(ctx, result.Round); err != nil {
		log.WithError(err).Warn("Immediate reports incomplete")
	}

	log.WithFields(map[string]interface{}{
		"intents": len(result.Intents),
		"placed":  result.Placed,
		"fills":   len(result.Fills),
	}).Info("Trading cycle main flow completed")

	return result, nil
}

// readInputs fetches every strategy's target rows in order. A strategy that
// cannot be read is marked failed and contributes nothing.
func (r *Runner) readInputs(ctx context.Context) ([][]contracts.InputRow, []bool) {
	strategies := r.deps.Strategies.Strategies
	inputs := make([][]contracts.InputRow, len(strategies))
	failed := make([]bool, len(strategies))

	for i, s := range strategies {
		rows, err := r.deps.Sheets.ReadTargetPositions(ctx, s.SheetURL, s.Tab())
		if err != nil {
			failed[i] = true
			metrics.SheetFailures.WithLabelValues("read_input").Inc()
			r.deps.Logger.WithError(err).WithFields(map[string]interface{}{
				"strategy": i + 1,
				"name":     s.Name,
			}).Warn("Failed to read strategy targets")
			continue
		}
		inputs[i] = rows
	}
	return inputs, failed
}

// RunDelayed is the reporting round. It reads round (an immutable snapshot)
// and never mutates the position ledgers.
func (r *Runner) RunDelayed(ctx context.Context, round *reporting.Round) *reporting.Summary {
	if round == nil {
		return &reporting.Summary{}
	}
	return r.reporter.FullRound(logger.ContextWithRunID(ctx, round.RunID), round)
}

// RunAndReport runs the main flow and then, after delay, the reporting round
// (immediately when delay <= 0)
func (r *Runner) RunAndReport(ctx context.Context, opts Options, delay time.Duration) (*Result, *reporting.Summary, error) {
	result, err := r.Run(ctx, opts)
	if err != nil || result.Round == nil {
		return result, nil, err
	}

	if delay > 0 {
		r.deps.Logger.WithField("delay", delay.String()).Info("Waiting before the reporting round")
		if err := retry.Sleep(ctx, delay); err != nil {
			return result, nil, err
		}
	}
	return result, r.RunDelayed(ctx, result.Round), nil
}
