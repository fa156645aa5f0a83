package execution

import (
	"context"
	"time"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/gateway"
	"github.com/wonny/stratbook/pkg/logger"
)

// Monitor waits out the settle window, logging order progress from the inbox.
// It never resolves orders early: end-of-day orders keep changing until the close.
// ⭐ SSOT: 체결 대기 로직은 여기서만
type Monitor struct {
	inbox        *gateway.Inbox
	pollInterval time.Duration
	logger       *logger.Logger
}

// NewMonitor creates a settle monitor; pollInterval <= 0 disables progress logs
func NewMonitor(inbox *gateway.Inbox, pollInterval time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{
		inbox:        inbox,
		pollInterval: pollInterval,
		logger:       log,
	}
}

// Await blocks for wait, or until ctx is done
func (m *Monitor) Await(ctx context.Context, placed []contracts.PlacedOrder, wait time.Duration) error {
	if wait <= 0 {
		return ctx.Err()
	}

	m.logger.WithFields(map[string]interface{}{
		"orders": len(placed),
		"wait":   wait.String(),
	}).Info("Waiting for orders to settle")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	var tick <-chan time.Time
	if m.pollInterval > 0 {
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Warn("Settle wait cancelled")
			return ctx.Err()

		case <-timer.C:
			m.report(placed).Info("Settle window elapsed")
			return nil

		case <-tick:
			m.report(placed).Debug("Settle progress")
		}
	}
}

// report returns a logger carrying the current status counts
func (m *Monitor) report(placed []contracts.PlacedOrder) *logger.Logger {
	snap := m.inbox.Snapshot()

	counts := map[contracts.OrderStatus]int{}
	for _, p := range placed {
		status := contracts.StatusUnknown
		if st, ok := snap.Status(p.OrderID); ok {
			status = st.Status
		}
		counts[status]++
	}

	fields := map[string]interface{}{
		"orders":     len(placed),
		"executions": len(snap.Executions),
	}
	for status, n := range counts {
		fields[string(status)] = n
	}
	return m.logger.WithFields(fields)
}
