// Package httpprovider is a reference Provider implementation that polls a
// REST market-data vendor over a retryable HTTP client, throttled to the
// vendor's published rate limit.
package httpprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/marketdata"
)

// Config configures one HTTP provider instance.
type Config struct {
	Name          string
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	Burst         int
}

// Provider implements marketdata.Provider against a generic REST vendor.
// Transport-level retry (up to 2 retries, grounded on NimbleMarkets/dbn-go's use
// of the same retryablehttp client) handles transient connection failures
// within a single call; it is unrelated to the manager's cross-provider
// fallback, which is the spec's "no provider-level retry inside a cycle"
// rule.
type Provider struct {
	cfg     Config
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

// New builds an HTTP provider with a bounded-retry client and a token-bucket
// limiter sized to the vendor's rate limit.
func New(cfg Config) *Provider {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil

	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Provider{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) get(ctx context.Context, path string, out any) error {
	if !p.limiter.Allow() {
		return fmt.Errorf("httpprovider(%s): %w", p.cfg.Name, domain.ErrRateLimitExceeded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("httpprovider(%s): building request: %w", p.cfg.Name, err)
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpprovider(%s): %w: %v", p.cfg.Name, domain.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("httpprovider(%s): %w", p.cfg.Name, domain.ErrRateLimitExceeded)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("httpprovider(%s): status %d: %w", p.cfg.Name, resp.StatusCode, domain.ErrProviderTransient)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("httpprovider(%s): status %d: %w", p.cfg.Name, resp.StatusCode, domain.ErrQuoteNotFound)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpprovider(%s): reading body: %w", p.cfg.Name, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpprovider(%s): decoding response: %w", p.cfg.Name, err)
	}
	return nil
}

type stockPriceResponse struct {
	Price float64 `json:"price"`
}

func (p *Provider) StockPrice(ctx context.Context, symbol string) (float64, error) {
	var out stockPriceResponse
	if err := p.get(ctx, "/v1/quote/"+symbol, &out); err != nil {
		return 0, err
	}
	return out.Price, nil
}

type quoteResponse struct {
	Bid, Ask, Last                 float64
	Volume, OpenInterest           int64
	IV, Delta, Gamma, Theta, Vega, Rho float64
}

func (p *Provider) OptionQuote(ctx context.Context, contractSymbol string) (domain.Quote, error) {
	occ, err := domain.ParseOCC(contractSymbol)
	if err != nil {
		return domain.Quote{}, err
	}
	var out quoteResponse
	if err := p.get(ctx, "/v1/options/"+contractSymbol, &out); err != nil {
		return domain.Quote{}, err
	}
	q := domain.Quote{
		Symbol:       occ.Root,
		Strike:       occ.Strike,
		Type:         occ.Type,
		Expiration:   occ.Expiration,
		Bid:          decimal.NewFromFloat(out.Bid),
		Ask:          decimal.NewFromFloat(out.Ask),
		Last:         decimal.NewFromFloat(out.Last),
		Volume:       out.Volume,
		OpenInterest: out.OpenInterest,
		ImpliedVol:   decimal.NewFromFloat(out.IV),
		Greeks: domain.Greeks{
			Delta: decimal.NewFromFloat(out.Delta),
			Gamma: decimal.NewFromFloat(out.Gamma),
			Theta: decimal.NewFromFloat(out.Theta),
			Vega:  decimal.NewFromFloat(out.Vega),
			Rho:   decimal.NewFromFloat(out.Rho),
		},
	}
	q.ComputeMid()
	return q, nil
}

type chainRow struct {
	Strike                   float64 `json:"strike"`
	Type                     string  `json:"type"`
	Expiration               string  `json:"expiration"`
	Bid, Ask, Last           float64
	Volume, OpenInterest     int64
	IV, Delta, Gamma, Theta, Vega, Rho float64
}

type chainResponse struct {
	Symbol string     `json:"symbol"`
	Rows   []chainRow `json:"rows"`
}

func (p *Provider) OptionChain(ctx context.Context, symbol string, expiration *time.Time) (marketdata.OptionChain, error) {
	path := "/v1/chains/" + symbol
	if expiration != nil {
		path += "?expiration=" + expiration.Format("2006-01-02")
	}
	var out chainResponse
	if err := p.get(ctx, path, &out); err != nil {
		return marketdata.OptionChain{}, err
	}

	var chain marketdata.OptionChain
	for _, row := range out.Rows {
		exp, err := time.Parse("2006-01-02", row.Expiration)
		if err != nil {
			continue
		}
		q := domain.Quote{
			Symbol:       symbol,
			Strike:       decimal.NewFromFloat(row.Strike),
			Expiration:   exp,
			Bid:          decimal.NewFromFloat(row.Bid),
			Ask:          decimal.NewFromFloat(row.Ask),
			Last:         decimal.NewFromFloat(row.Last),
			Volume:       row.Volume,
			OpenInterest: row.OpenInterest,
			ImpliedVol:   decimal.NewFromFloat(row.IV),
			Greeks: domain.Greeks{
				Delta: decimal.NewFromFloat(row.Delta),
				Gamma: decimal.NewFromFloat(row.Gamma),
				Theta: decimal.NewFromFloat(row.Theta),
				Vega:  decimal.NewFromFloat(row.Vega),
				Rho:   decimal.NewFromFloat(row.Rho),
			},
		}
		q.ComputeMid()
		if row.Type == "C" {
			q.Type = domain.Call
			chain.Calls = append(chain.Calls, q)
		} else {
			q.Type = domain.Put
			chain.Puts = append(chain.Puts, q)
		}
	}
	return chain, nil
}

type expirationsResponse struct {
	Dates []string `json:"dates"`
}

func (p *Provider) OptionExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	var out expirationsResponse
	if err := p.get(ctx, "/v1/expirations/"+symbol, &out); err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(out.Dates))
	for _, d := range out.Dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	return dates, nil
}

type barsResponse struct {
	Bars []struct {
		Time                     string `json:"time"`
		Open, High, Low, Close   float64
		Volume                   int64
	} `json:"bars"`
}

func (p *Provider) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]domain.Bar, error) {
	path := fmt.Sprintf("/v1/bars/%s?start=%s&end=%s&interval=%s",
		symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), interval)
	var out barsResponse
	if err := p.get(ctx, path, &out); err != nil {
		return nil, err
	}
	bars := make([]domain.Bar, 0, len(out.Bars))
	for _, b := range out.Bars {
		t, err := time.Parse(time.RFC3339, b.Time)
		if err != nil {
			continue
		}
		bars = append(bars, domain.Bar{
			Time:   t,
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: b.Volume,
		})
	}
	return bars, nil
}

type earningsResponse struct {
	NextDate string `json:"next_date"`
}

// NextEarningsDate implements the optional marketdata.EarningsProvider
// capability.
func (p *Provider) NextEarningsDate(ctx context.Context, symbol string) (*time.Time, error) {
	var out earningsResponse
	if err := p.get(ctx, "/v1/earnings/"+symbol, &out); err != nil {
		return nil, err
	}
	if out.NextDate == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", out.NextDate)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}
