// Package streamprovider is a reference streaming-quote Provider that
// subscribes to a symbol list over a websocket and keeps its own last-price
// table, served through StockPrice when the manager tries this provider. It
// does not write into the manager's per-cycle cache. Option quotes, chains,
// expirations and bars return ErrProviderConfig so the manager falls through
// to a pull-based provider for them; NextEarningsDate is not implemented.
package streamprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/marketdata"
)

// Config configures the websocket endpoint and symbol subscription list.
type Config struct {
	Name    string
	URL     string
	Symbols []string
}

type tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Time   string  `json:"time"`
}

// Provider maintains a live symbol->last-price table fed by a background
// read loop, started by Run.
type Provider struct {
	cfg  Config
	mu   sync.RWMutex
	last map[string]float64
}

func New(cfg Config) *Provider {
	return &Provider{cfg: cfg, last: make(map[string]float64)}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Run connects and reads ticks until ctx is canceled, updating the in-memory
// last-price table. Callers run this in a background goroutine; it is not
// part of the synchronous Provider contract itself.
func (p *Provider) Run(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, p.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("streamprovider(%s): dial: %w: %v", p.cfg.Name, domain.ErrProviderTransient, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	sub := map[string]any{"action": "subscribe", "symbols": p.cfg.Symbols}
	if err := wsjson.Write(ctx, conn, sub); err != nil {
		return fmt.Errorf("streamprovider(%s): subscribe: %w", p.cfg.Name, err)
	}

	for {
		var t tick
		if err := wsjson.Read(ctx, conn, &t); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("streamprovider(%s): read: %w: %v", p.cfg.Name, domain.ErrProviderTransient, err)
		}
		p.mu.Lock()
		p.last[t.Symbol] = t.Price
		p.mu.Unlock()
	}
}

func (p *Provider) StockPrice(ctx context.Context, symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.last[symbol]
	if !ok {
		return 0, fmt.Errorf("streamprovider(%s): no tick yet for %s: %w", p.cfg.Name, symbol, domain.ErrQuoteNotFound)
	}
	return v, nil
}

func (p *Provider) OptionQuote(ctx context.Context, contractSymbol string) (domain.Quote, error) {
	return domain.Quote{}, fmt.Errorf("streamprovider(%s): option quotes unsupported: %w", p.cfg.Name, domain.ErrProviderConfig)
}

func (p *Provider) OptionChain(ctx context.Context, symbol string, expiration *time.Time) (marketdata.OptionChain, error) {
	return marketdata.OptionChain{}, fmt.Errorf("streamprovider(%s): chains unsupported: %w", p.cfg.Name, domain.ErrProviderConfig)
}

func (p *Provider) OptionExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	return nil, fmt.Errorf("streamprovider(%s): expirations unsupported: %w", p.cfg.Name, domain.ErrProviderConfig)
}

func (p *Provider) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]domain.Bar, error) {
	return nil, fmt.Errorf("streamprovider(%s): bars unsupported: %w", p.cfg.Name, domain.ErrProviderConfig)
}
