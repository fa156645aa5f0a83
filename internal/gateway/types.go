package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
)

// Amount is a decimal that decodes from a JSON number, a numeric string,
// "" or null (the last two as zero)
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalJSON accepts 12.5, "12.5", "" and null
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}

	text := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}
	if text == "" {
		a.Decimal = decimal.Zero
		return nil
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", text, err)
	}
	a.Decimal = d
	return nil
}

// MarshalJSON writes the amount as a JSON number
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// OrderStatus is the latest status the gateway reported for one order
type OrderStatus struct {
	OrderID      int64                 `json:"order_id"`
	Status       contracts.OrderStatus `json:"status"`
	Filled       Amount                `json:"filled"`
	Remaining    Amount                `json:"remaining"`
	AvgFillPrice Amount                `json:"avg_fill_price"`
}

// ExecutionDetail is one execution (partial or full fill) of an order
type ExecutionDetail struct {
	OrderID int64  `json:"order_id"`
	ExecID  string `json:"exec_id"`
	Symbol  string `json:"symbol"`
	Shares  Amount `json:"shares"`
	Price   Amount `json:"price"`
}

// CommissionReport is the commission charged for one execution
type CommissionReport struct {
	ExecID      string `json:"exec_id"`
	Commission  Amount `json:"commission"`
	RealizedPNL Amount `json:"realized_pnl"`
}

// AccountTag is one account summary value
type AccountTag struct {
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Event types on the gateway stream
const (
	EventReady            = "ready"
	EventOrderStatus      = "order_status"
	EventExecutionDetail  = "execution_detail"
	EventCommissionReport = "commission_report"
	EventAccountSummary   = "account_summary"
	EventError            = "error"
)

// Event is one message on the gateway stream
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorEvent is a gateway-side error notice
type ErrorEvent struct {
	OrderID int64  `json:"order_id"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// orderRequest is the body of POST /orders
type orderRequest struct {
	Action      contracts.Action `json:"action"`
	Quantity    int64            `json:"quantity"`
	Symbol      string           `json:"symbol"`
	SecType     string           `json:"sec_type"`
	Exchange    string           `json:"exchange"`
	Currency    string           `json:"currency"`
	OrderType   string           `json:"order_type"`
	TimeInForce string           `json:"tif"`
}

type orderResponse struct {
	OrderID int64 `json:"order_id"`
}

// accountSummaryRequest is the body of POST /account/summary
type accountSummaryRequest struct {
	Group string `json:"group"`
	Tags  string `json:"tags"`
}
