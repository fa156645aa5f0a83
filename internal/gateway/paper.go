package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
)

// PaperAccount is the account id reported by PaperGateway
const PaperAccount = "PAPER"

// PaperGateway simulates the execution gateway in-process. Orders fill
// immediately at the configured price; used by --paper runs and tests.
// ⭐ 실제 운영에서는 BridgeGateway 사용
type PaperGateway struct {
	mu    sync.Mutex
	inbox *Inbox

	nextID       int64
	prices       map[string]decimal.Decimal
	defaultPrice decimal.Decimal
	priceFunc    func(symbol string) (decimal.Decimal, bool)
	statuses     map[string]contracts.OrderStatus
	failing      map[string]bool
	splits       int

	commissionPerShare decimal.Decimal
	minCommission      decimal.Decimal
	account            map[string]decimal.Decimal

	unavailable bool
	placed      []PaperOrder
}

// PaperOrder is an order the paper gateway accepted
type PaperOrder struct {
	OrderID  int64
	Action   contracts.Action
	Quantity int64
	Symbol   string
}

// NewPaperGateway creates a paper session with IB-like tiered-free pricing
// ($0.005/share, $1 minimum)
func NewPaperGateway() *PaperGateway {
	return &PaperGateway{
		inbox:              NewInbox(),
		nextID:             1,
		prices:             map[string]decimal.Decimal{},
		defaultPrice:       decimal.NewFromInt(100),
		statuses:           map[string]contracts.OrderStatus{},
		failing:            map[string]bool{},
		splits:             1,
		commissionPerShare: decimal.RequireFromString("0.005"),
		minCommission:      decimal.NewFromInt(1),
		account:            map[string]decimal.Decimal{},
	}
}

// SetPrice sets the fill price for a symbol
func (p *PaperGateway) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// SetPriceFunc supplies prices for symbols without an explicit price
func (p *PaperGateway) SetPriceFunc(fn func(symbol string) (decimal.Decimal, bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priceFunc = fn
}

// SetStatus forces the reported status for a symbol's orders
func (p *PaperGateway) SetStatus(symbol string, status contracts.OrderStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[symbol] = status
}

// FailOrders makes orders for symbol come back without an order id
func (p *PaperGateway) FailOrders(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[symbol] = true
}

// SetCommission sets per-share commission and minimum per execution
func (p *PaperGateway) SetCommission(perShare, minimum decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commissionPerShare = perShare
	p.minCommission = minimum
}

// SplitExecutions fills each order across n executions
func (p *PaperGateway) SplitExecutions(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 1 {
		n = 1
	}
	p.splits = n
}

// SetAccountValue sets an account summary tag value
func (p *PaperGateway) SetAccountValue(tag string, value decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account[tag] = value
}

// SetUnavailable makes Connect wait until its context expires
func (p *PaperGateway) SetUnavailable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = true
}

// Placed returns every accepted order
func (p *PaperGateway) Placed() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaperOrder(nil), p.placed...)
}

// Inbox returns the session's event store
func (p *PaperGateway) Inbox() *Inbox {
	return p.inbox
}

// Connect marks the session ready
func (p *PaperGateway) Connect(ctx context.Context) error {
	p.mu.Lock()
	unavailable := p.unavailable
	p.mu.Unlock()

	if unavailable {
		<-ctx.Done()
		return fmt.Errorf("%w: %v", ErrNotConnected, ctx.Err())
	}
	p.inbox.MarkReady()
	return nil
}

// PlaceOrder records the order and immediately reports its fill
func (p *PaperGateway) PlaceOrder(ctx context.Context, action contracts.Action, quantity int64, symbol string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failing[symbol] {
		return 0, fmt.Errorf("place %s %d %s: %w", action, quantity, symbol, ErrNoOrderID)
	}

	id := p.nextID
	p.nextID++
	p.placed = append(p.placed, PaperOrder{OrderID: id, Action: action, Quantity: quantity, Symbol: symbol})

	price := p.priceLocked(symbol)
	status, forced := p.statuses[symbol]
	if !forced {
		status = contracts.StatusFilled
	}

	if status != contracts.StatusFilled {
		p.inbox.RecordStatus(OrderStatus{
			OrderID:   id,
			Status:    status,
			Remaining: NewAmount(decimal.NewFromInt(quantity)),
		})
		return id, nil
	}

	remaining := quantity
	for i := 0; i < p.splits && remaining > 0; i++ {
		shares := quantity / int64(p.splits)
		if i == p.splits-1 || shares == 0 {
			shares = remaining
		}
		remaining -= shares

		execID := fmt.Sprintf("paper-%d.%d", id, i+1)
		p.inbox.RecordExecution(ExecutionDetail{
			OrderID: id,
			ExecID:  execID,
			Symbol:  symbol,
			Shares:  NewAmount(decimal.NewFromInt(shares)),
			Price:   NewAmount(price),
		})

		commission := p.commissionPerShare.Mul(decimal.NewFromInt(shares))
		if commission.LessThan(p.minCommission) {
			commission = p.minCommission
		}
		p.inbox.RecordCommission(CommissionReport{ExecID: execID, Commission: NewAmount(commission)})
	}

	p.inbox.RecordStatus(OrderStatus{
		OrderID:      id,
		Status:       contracts.StatusFilled,
		Filled:       NewAmount(decimal.NewFromInt(quantity)),
		AvgFillPrice: NewAmount(price),
	})
	return id, nil
}

func (p *PaperGateway) priceLocked(symbol string) decimal.Decimal {
	if price, ok := p.prices[symbol]; ok {
		return price
	}
	if p.priceFunc != nil {
		if price, ok := p.priceFunc(symbol); ok {
			return price
		}
	}
	return p.defaultPrice
}

// RequestAccountSummary publishes the configured account values
func (p *PaperGateway) RequestAccountSummary(ctx context.Context, tags []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tag := range tags {
		value, ok := p.account[tag]
		if !ok {
			continue
		}
		p.inbox.RecordAccount(AccountTag{
			Account:  PaperAccount,
			Tag:      tag,
			Value:    value.String(),
			Currency: "USD",
		})
	}
	return nil
}

// Close is a no-op
func (p *PaperGateway) Close() error {
	return nil
}
