// Package broker defines the abstract brokerage contract (§6). It is kept
// narrow and split into capability interfaces — the same break-circular-
// dependencies idiom as the teacher's internal/domain/interfaces.go, where
// BrokerClient is composed of small single-purpose methods rather than one
// monolithic SDK surface.
package broker

import (
	"context"

	"github.com/aristath/goldcore/internal/domain"
)

// AccountReader is what the capital manager needs once per cycle.
type AccountReader interface {
	GetAccount(ctx context.Context) (domain.AccountSnapshot, error)
}

// OrderSubmitter is what the order executor needs to place and poll orders.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error)
	GetOrder(ctx context.Context, brokerOrderID string) (domain.BrokerOrder, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	GetPendingOrders(ctx context.Context) ([]domain.BrokerOrder, error)
}

// PositionReader lets strategies confirm a play's entry has backing
// inventory before attempting to close it.
type PositionReader interface {
	GetOpenPosition(ctx context.Context, symbol string) (domain.Position, bool, error)
}

// Client is the full brokerage contract composed from the narrower
// capability interfaces above. Components should depend on the narrowest
// interface that satisfies their needs rather than on Client directly.
type Client interface {
	AccountReader
	OrderSubmitter
	PositionReader
}
