package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/gateway"
	"github.com/wonny/stratbook/internal/metrics"
	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/retry"
)

// CoordinatorConfig defines execution timing
type CoordinatorConfig struct {
	ConnectTimeout time.Duration // 게이트웨이 연결 대기
	SettleWait     time.Duration // 주문 후 고정 대기
	AccountWait    time.Duration // 계좌 요약 수신 대기
	PollInterval   time.Duration // 대기 중 진행 로그 주기
}

// Coordinator submits orders, waits out the settle window and resolves fills
// ⭐ SSOT: 주문 제출 / 체결 확정은 여기서만
type Coordinator struct {
	gateway gateway.Gateway
	monitor *Monitor
	config  CoordinatorConfig
	logger  *logger.Logger
	now     func() time.Time
}

// Execution is everything one coordinator pass produced
type Execution struct {
	Placed  []contracts.PlacedOrder
	Fills   []contracts.FillResult
	Account contracts.AccountSummary
}

// NewCoordinator creates a new coordinator
func NewCoordinator(gw gateway.Gateway, config CoordinatorConfig, log *logger.Logger) *Coordinator {
	return &Coordinator{
		gateway: gw,
		monitor: NewMonitor(gw.Inbox(), config.PollInterval, log),
		config:  config,
		logger:  log.Component("execution"),
		now:     time.Now,
	}
}

// Connect waits for the gateway session. Failing here must abort the cycle
// before any order is placed.
func (c *Coordinator) Connect(ctx context.Context) error {
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	if err := c.gateway.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}

	c.logger.Info("Gateway connected")
	return nil
}

// PlaceAll submits intents one by one. A failed submission is logged and the
// ticker skipped for this cycle.
func (c *Coordinator) PlaceAll(ctx context.Context, intents []contracts.OrderIntent) []contracts.PlacedOrder {
	placed := make([]contracts.PlacedOrder, 0, len(intents))
	runLog := c.logger.For(ctx)

	for i, intent := range intents {
		if ctx.Err() != nil {
			runLog.WithField("remaining", len(intents)-i).Warn("Order placement cancelled")
			break
		}

		log := runLog.WithFields(map[string]interface{}{
			logger.FieldTicker: intent.Ticker,
			"action":      intent.Action,
			"quantity":    intent.Quantity,
			"liquidation": intent.Liquidation,
			"strategies":  intent.Strategies,
		})

		orderID, err := c.gateway.PlaceOrder(ctx, intent.Action, intent.Quantity, intent.Ticker)
		if err != nil {
			metrics.OrdersFailed.WithLabelValues(string(intent.Action)).Inc()
			log.WithError(err).Warn("Failed to place order")
			continue
		}

		metrics.OrdersPlaced.WithLabelValues(string(intent.Action)).Inc()
		placed = append(placed, contracts.PlacedOrder{
			OrderID:  orderID,
			Intent:   intent,
			PlacedAt: c.now(),
		})
		log.WithField("order_id", orderID).Info("Order placed")
	}

	return placed
}

// AwaitSettle blocks for the settle window (cancellable)
func (c *Coordinator) AwaitSettle(ctx context.Context, placed []contracts.PlacedOrder) error {
	return c.monitor.Await(ctx, placed, c.config.SettleWait)
}

// RefreshAccount requests the account summary tags and gives them time to arrive
func (c *Coordinator) RefreshAccount(ctx context.Context) error {
	if err := c.gateway.RequestAccountSummary(ctx, contracts.AccountTags); err != nil {
		return fmt.Errorf("failed to request account summary: %w", err)
	}
	return retry.Sleep(ctx, c.config.AccountWait)
}

// Resolve reads one inbox snapshot and builds a fill result per placed order.
//
// Price is the average fill price, else the last execution price. Commission
// sums every execution of the order. Only executed statuses realize the
// intended delta; anything else realizes zero even when partially filled.
func (c *Coordinator) Resolve(placed []contracts.PlacedOrder) ([]contracts.FillResult, contracts.AccountSummary) {
	snap := c.gateway.Inbox().Snapshot()
	fills := make([]contracts.FillResult, 0, len(placed))

	for _, p := range placed {
		status := contracts.StatusUnknown
		fill := contracts.FillResult{
			OrderID: p.OrderID,
			Ticker:  p.Intent.Ticker,
			Action:  p.Intent.Action,
			Intent:  p.Intent,
		}

		if st, ok := snap.Status(p.OrderID); ok {
			status = st.Status
			fill.FillPrice = st.AvgFillPrice.Decimal
			fill.FilledQuantity = st.Filled.IntPart()
		}
		if fill.FillPrice.IsZero() {
			fill.FillPrice = snap.LastExecutionPrice(p.OrderID)
		}
		fill.Commission = snap.CommissionFor(p.OrderID)
		fill.Status = status

		if status.IsExecuted() {
			fill.RealizedDeltaShares = p.Intent.DeltaShares
		} else if fill.FilledQuantity > 0 {
			// 부분 체결 후 취소: 원장에는 반영하지 않음
			c.logger.WithFields(map[string]interface{}{
				"order_id": p.OrderID,
				"ticker":   fill.Ticker,
				"status":   status,
				"filled":   fill.FilledQuantity,
			}).Warn("Partial fill not applied to ledger")
		}

		metrics.Fills.WithLabelValues(string(status)).Inc()
		c.logger.WithFields(map[string]interface{}{
			"order_id":   p.OrderID,
			"ticker":     fill.Ticker,
			"status":     status,
			"price":      fill.FillPrice.String(),
			"commission": fill.Commission.String(),
			"realized":   fill.RealizedDeltaShares,
		}).Info("Order resolved")

		fills = append(fills, fill)
	}

	return fills, snap.AccountSummary()
}

// Execute places intents, waits, refreshes the account and resolves fills.
// With nothing placed the settle wait is skipped.
func (c *Coordinator) Execute(ctx context.Context, intents []contracts.OrderIntent) (*Execution, error) {
	placed := c.PlaceAll(ctx, intents)
	result := &Execution{Placed: placed}

	if len(placed) > 0 {
		if err := c.AwaitSettle(ctx, placed); err != nil {
			return result, err
		}
	}

	if err := c.RefreshAccount(ctx); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		c.logger.WithError(err).Warn("Account summary unavailable")
	}

	result.Fills, result.Account = c.Resolve(placed)
	return result, nil
}
