package jobs

import (
	"context"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/metrics"
	"github.com/wonny/stratbook/pkg/logger"
)

// DriftSource reports where the combined ledger disagrees with the strategy ledgers
type DriftSource interface {
	Drift() []contracts.Drift
}

// LedgerDriftJob publishes ledger drift between cycles
type LedgerDriftJob struct {
	book   DriftSource
	logger *logger.Logger
}

// NewLedgerDriftJob creates a new ledger drift job
func NewLedgerDriftJob(book DriftSource, log *logger.Logger) *LedgerDriftJob {
	return &LedgerDriftJob{
		book:   book,
		logger: log.WithField(logger.FieldJob, "ledger_drift"),
	}
}

// Name returns the job name
func (j *LedgerDriftJob) Name() string {
	return "ledger_drift"
}

// Schedule returns the cron schedule (every hour)
func (j *LedgerDriftJob) Schedule() string {
	return "0 0 * * * *"
}

// Idempotent marks the job safe to retry
func (j *LedgerDriftJob) Idempotent() bool {
	return true
}

// Run executes the drift check
func (j *LedgerDriftJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled ledger drift check")

	drift := j.book.Drift()
	metrics.LedgerDrift.Set(float64(len(drift)))

	for _, d := range drift {
		j.logger.WithFields(map[string]interface{}{
			"ticker":     d.Ticker,
			"combined":   d.Combined,
			"strategies": d.Strategies,
			"difference": d.Difference,
		}).Warn("Ledger drift detected")
	}

	return nil
}
