package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/goldcore/internal/config"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/metrics"
)

// Manager composes a primary provider with an ordered fallback list and
// routes every public operation through the per-cycle Cache (C4).
type Manager struct {
	log       zerolog.Logger
	cache     *Cache
	providers map[string]Provider
	primary   string
	fallback  []string
	maxAttempts int
	fallbackOn  bool
	metrics     *metrics.Collectors
}

// WithMetrics attaches a Prometheus collector set, returning the same
// Manager for chaining at construction time.
func (m *Manager) WithMetrics(c *metrics.Collectors) *Manager {
	m.metrics = c
	return m
}

// NewManager builds a Manager from a set of named providers and the
// fallback-ordering config.
func NewManager(log zerolog.Logger, cfg config.MarketDataConfig, providers map[string]Provider) (*Manager, error) {
	if _, ok := providers[cfg.PrimaryProvider]; !ok {
		return nil, fmt.Errorf("marketdata: primary provider %q is not registered: %w", cfg.PrimaryProvider, domain.ErrProviderConfig)
	}
	var maxItems int
	if cfg.CacheEnabled {
		maxItems = cfg.CacheMaxItems
	} else {
		maxItems = -1 // sentinel; Cache.Set refuses every insert, so Get always misses
	}
	return &Manager{
		log:         log.With().Str("component", "marketdata.manager").Logger(),
		cache:       NewCache(maxItems),
		providers:   providers,
		primary:     cfg.PrimaryProvider,
		fallback:    cfg.FallbackOrder,
		maxAttempts: cfg.MaxAttempts,
		fallbackOn:  cfg.FallbackEnabled,
	}, nil
}

// StartNewCycle resets the per-cycle cache; call once at the top of every
// orchestrator cycle.
func (m *Manager) StartNewCycle() uint64 {
	return m.cache.StartNewCycle()
}

// attemptOrder returns the ordered provider names to try: primary first, then
// the configured fallback order (skipping the primary and any unregistered
// name), bounded by maxAttempts.
func (m *Manager) attemptOrder() []string {
	order := []string{m.primary}
	if !m.fallbackOn {
		return order
	}
	for _, name := range m.fallback {
		if name == m.primary {
			continue
		}
		if _, ok := m.providers[name]; !ok {
			continue
		}
		order = append(order, name)
		if len(order) >= m.maxAttempts {
			break
		}
	}
	return order
}

func withFallback[T any](m *Manager, ctx context.Context, cacheKind, cacheID string, fetch func(Provider) (T, error)) (T, error) {
	var zero T
	if cached, ok := m.cache.Get(cacheKind, cacheID); ok {
		return cached.(T), nil
	}

	var lastErr error
	for i, name := range m.attemptOrder() {
		p := m.providers[name]
		v, err := fetch(p)
		if err == nil {
			if i > 0 && m.metrics != nil {
				m.metrics.ProviderFallbacks.WithLabelValues(cacheKind).Inc()
			}
			m.cache.Set(cacheKind, cacheID, v)
			return v, nil
		}
		lastErr = err
		m.log.Warn().Err(err).Str("provider", name).Str("kind", cacheKind).Msg("provider call failed, trying fallback")
	}
	m.log.Error().Err(lastErr).Str("kind", cacheKind).Str("id", cacheID).Msg("all providers exhausted")
	return zero, fmt.Errorf("marketdata: %s(%s) unavailable: %w", cacheKind, cacheID, lastErr)
}

func (m *Manager) StockPrice(ctx context.Context, symbol string) (float64, error) {
	return withFallback(m, ctx, "stock_price", symbol, func(p Provider) (float64, error) {
		return p.StockPrice(ctx, symbol)
	})
}

func (m *Manager) OptionQuote(ctx context.Context, contractSymbol string) (domain.Quote, error) {
	return withFallback(m, ctx, "option_quote", contractSymbol, func(p Provider) (domain.Quote, error) {
		q, err := p.OptionQuote(ctx, contractSymbol)
		if err != nil {
			return domain.Quote{}, err
		}
		q.ComputeMid()
		return q, nil
	})
}

func (m *Manager) OptionChain(ctx context.Context, symbol string, expiration *time.Time) (OptionChain, error) {
	id := symbol
	if expiration != nil {
		id = fmt.Sprintf("%s@%s", symbol, expiration.Format("2006-01-02"))
	}
	return withFallback(m, ctx, "option_chain", id, func(p Provider) (OptionChain, error) {
		return p.OptionChain(ctx, symbol, expiration)
	})
}

func (m *Manager) OptionExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	return withFallback(m, ctx, "expirations", symbol, func(p Provider) ([]time.Time, error) {
		return p.OptionExpirations(ctx, symbol)
	})
}

func (m *Manager) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]domain.Bar, error) {
	id := fmt.Sprintf("%s@%s..%s@%s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), interval)
	return withFallback(m, ctx, "historical_bars", id, func(p Provider) ([]domain.Bar, error) {
		return p.HistoricalBars(ctx, symbol, start, end, interval)
	})
}

// PreviousClose derives the prior trading day's close from a week of daily
// bars, taking the second-to-last close (the last bar may be today's
// in-progress session).
func (m *Manager) PreviousClose(ctx context.Context, symbol string, today time.Time) (float64, error) {
	bars, err := m.HistoricalBars(ctx, symbol, today.AddDate(0, 0, -7), today, 24*time.Hour)
	if err != nil {
		return 0, err
	}
	if len(bars) < 2 {
		return 0, fmt.Errorf("marketdata: insufficient history for previous_close(%s): %w", symbol, domain.ErrQuoteNotFound)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	prev := bars[len(bars)-2]
	f, _ := prev.Close.Float64()
	return f, nil
}

func (m *Manager) NextEarningsDate(ctx context.Context, symbol string) (*time.Time, error) {
	p, ok := m.providers[m.primary].(EarningsProvider)
	if !ok {
		return nil, nil // optional capability; not every provider implements it
	}
	return p.NextEarningsDate(ctx, symbol)
}
