// Package marketdata composes the abstract provider contract (C2) with a
// per-cycle cache and fallback ordering (C3/C4).
package marketdata

import (
	"context"
	"time"

	"github.com/aristath/goldcore/internal/domain"
)

// OptionChain groups standardized call/put rows for one underlying.
type OptionChain struct {
	Calls []domain.Quote
	Puts  []domain.Quote
}

// Provider is the abstract market-data contract every vendor adapter
// implements. It is intentionally narrow, following the BrokerClient-style
// interfaces the teacher composes its DI container from, so the manager
// never depends on a concrete vendor SDK.
type Provider interface {
	Name() string
	StockPrice(ctx context.Context, symbol string) (float64, error)
	OptionQuote(ctx context.Context, contractSymbol string) (domain.Quote, error)
	OptionChain(ctx context.Context, symbol string, expiration *time.Time) (OptionChain, error)
	OptionExpirations(ctx context.Context, symbol string) ([]time.Time, error)
	HistoricalBars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]domain.Bar, error)
}

// EarningsProvider is an optional capability some providers support; the
// manager type-asserts for it rather than widening the base interface for a
// feature most adapters won't have.
type EarningsProvider interface {
	NextEarningsDate(ctx context.Context, symbol string) (*time.Time, error)
}
