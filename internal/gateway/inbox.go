package gateway

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
)

// Inbox collects gateway events. Writers are the event stream callbacks;
// the coordinator reads one consistent Snapshot after the settle wait.
// ⭐ SSOT: 게이트웨이 이벤트는 이 inbox 하나에만 기록
type Inbox struct {
	mu          sync.Mutex
	ready       chan struct{}
	statuses    map[int64]OrderStatus
	executions  map[string]ExecutionDetail
	execOrder   []string
	commissions map[string]CommissionReport
	accounts    map[string]map[string]AccountTag
	errors      []ErrorEvent
}

// NewInbox creates an empty inbox
func NewInbox() *Inbox {
	return &Inbox{
		ready:       make(chan struct{}),
		statuses:    map[int64]OrderStatus{},
		executions:  map[string]ExecutionDetail{},
		commissions: map[string]CommissionReport{},
		accounts:    map[string]map[string]AccountTag{},
	}
}

// MarkReady signals that the session can accept orders
func (in *Inbox) MarkReady() {
	in.mu.Lock()
	defer in.mu.Unlock()
	select {
	case <-in.ready:
	default:
		close(in.ready)
	}
}

// Ready is closed once the current session is ready
func (in *Inbox) Ready() <-chan struct{} {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.ready
}

// resetReady arms a fresh ready signal for a new session.
// Recorded events are kept: fills from the previous session stay readable.
func (in *Inbox) resetReady() {
	in.mu.Lock()
	defer in.mu.Unlock()
	select {
	case <-in.ready:
		in.ready = make(chan struct{})
	default:
	}
}

// RecordStatus keeps the latest status per order
func (in *Inbox) RecordStatus(s OrderStatus) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.statuses[s.OrderID] = s
}

// RecordExecution stores an execution, replacing a corrected one with the same id
func (in *Inbox) RecordExecution(e ExecutionDetail) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.executions[e.ExecID]; !ok {
		in.execOrder = append(in.execOrder, e.ExecID)
	}
	in.executions[e.ExecID] = e
}

// RecordCommission stores the commission for an execution
func (in *Inbox) RecordCommission(c CommissionReport) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.commissions[c.ExecID] = c
}

// RecordAccount stores one account summary value
func (in *Inbox) RecordAccount(a AccountTag) {
	in.mu.Lock()
	defer in.mu.Unlock()
	tags, ok := in.accounts[a.Account]
	if !ok {
		tags = map[string]AccountTag{}
		in.accounts[a.Account] = tags
	}
	tags[a.Tag] = a
}

// RecordError keeps a gateway error notice
func (in *Inbox) RecordError(e ErrorEvent) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.errors = append(in.errors, e)
}

// Snapshot copies everything under one lock
func (in *Inbox) Snapshot() InboxSnapshot {
	in.mu.Lock()
	defer in.mu.Unlock()

	snap := InboxSnapshot{
		Statuses:    make(map[int64]OrderStatus, len(in.statuses)),
		Executions:  make([]ExecutionDetail, 0, len(in.execOrder)),
		Commissions: make(map[string]CommissionReport, len(in.commissions)),
		Accounts:    make(map[string]map[string]AccountTag, len(in.accounts)),
		Errors:      append([]ErrorEvent(nil), in.errors...),
	}
	for id, s := range in.statuses {
		snap.Statuses[id] = s
	}
	for _, id := range in.execOrder {
		snap.Executions = append(snap.Executions, in.executions[id])
	}
	for id, c := range in.commissions {
		snap.Commissions[id] = c
	}
	for account, tags := range in.accounts {
		copied := make(map[string]AccountTag, len(tags))
		for tag, v := range tags {
			copied[tag] = v
		}
		snap.Accounts[account] = copied
	}
	return snap
}

// InboxSnapshot is an immutable copy of the inbox
type InboxSnapshot struct {
	Statuses    map[int64]OrderStatus
	Executions  []ExecutionDetail
	Commissions map[string]CommissionReport
	Accounts    map[string]map[string]AccountTag
	Errors      []ErrorEvent
}

// Status returns the last reported status for an order
func (s InboxSnapshot) Status(orderID int64) (OrderStatus, bool) {
	st, ok := s.Statuses[orderID]
	return st, ok
}

// ExecutionsFor returns an order's executions in arrival order
func (s InboxSnapshot) ExecutionsFor(orderID int64) []ExecutionDetail {
	var out []ExecutionDetail
	for _, e := range s.Executions {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

// LastExecutionPrice returns the price of the order's latest execution (zero if none)
func (s InboxSnapshot) LastExecutionPrice(orderID int64) decimal.Decimal {
	execs := s.ExecutionsFor(orderID)
	if len(execs) == 0 {
		return decimal.Zero
	}
	return execs[len(execs)-1].Price.Decimal
}

// CommissionFor sums the commission over every execution of the order
func (s InboxSnapshot) CommissionFor(orderID int64) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.ExecutionsFor(orderID) {
		if c, ok := s.Commissions[e.ExecID]; ok {
			total = total.Add(c.Commission.Decimal)
		}
	}
	return total
}

// AccountSummary returns the summary of the first account (sorted by id).
// Missing or non-numeric values are zero.
func (s InboxSnapshot) AccountSummary() contracts.AccountSummary {
	if len(s.Accounts) == 0 {
		return contracts.AccountSummary{}
	}

	accounts := make([]string, 0, len(s.Accounts))
	for account := range s.Accounts {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	tags := s.Accounts[accounts[0]]
	value := func(tag string) decimal.Decimal {
		v, ok := tags[tag]
		if !ok {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(v.Value)
		if err != nil {
			return decimal.Zero
		}
		return d
	}

	return contracts.AccountSummary{
		Account:        accounts[0],
		NetLiquidation: value(contracts.TagNetLiquidation),
		AccruedCash:    value(contracts.TagAccruedCash),
		AvailableFunds: value(contracts.TagAvailableFunds),
		TotalCashValue: value(contracts.TagTotalCashValue),
	}
}
