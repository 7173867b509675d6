package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide mirrors the broker-facing buy/sell distinction, derived from an
// Action at submission time.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

func SideFor(a Action) OrderSide {
	if a.IsBuy() {
		return SideBuy
	}
	return SideSell
}

// OrderIntent is the executor's input: what to submit, not yet tied to a
// broker order id.
type OrderIntent struct {
	ClientOrderID string // google/uuid-derived idempotency token
	PlayID        string
	ContractSymbol string
	Side          OrderSide
	Quantity      int
	Type          OrderTypePolicy
	LimitPrice    decimal.Decimal // populated only for limit order types
	TimeInForce   string          // "DAY" for equity options
}

// OrderResult is what the broker hands back immediately after submission.
type OrderResult struct {
	BrokerOrderID string
	State         OrderState
	SubmittedAt   time.Time
}

// BrokerOrder is the polled representation of a previously submitted order.
type BrokerOrder struct {
	BrokerOrderID string
	ClientOrderID string
	State         OrderState
	FilledPrice   decimal.Decimal
	FilledQty     int
	UpdatedAt     time.Time
}
