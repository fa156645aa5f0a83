// Package gateway talks to the brokerage execution gateway: order placement,
// account summary requests and the asynchronous event stream.
package gateway

import (
	"context"
	"errors"

	"github.com/wonny/stratbook/internal/contracts"
)

var (
	// ErrNotConnected is returned when the session is not ready in time
	ErrNotConnected = errors.New("gateway not connected")

	// ErrNoOrderID is returned when an order was not acknowledged with an id
	ErrNoOrderID = errors.New("gateway returned no order id")
)

// Gateway is an execution session
type Gateway interface {
	// Connect blocks until the session is ready or ctx is done
	Connect(ctx context.Context) error

	// PlaceOrder submits a market-on-close order and returns its id
	PlaceOrder(ctx context.Context, action contracts.Action, quantity int64, symbol string) (int64, error)

	// RequestAccountSummary asks for the given tags; values arrive on the inbox
	RequestAccountSummary(ctx context.Context, tags []string) error

	// Inbox returns the event store fed by the session
	Inbox() *Inbox

	Close() error
}
