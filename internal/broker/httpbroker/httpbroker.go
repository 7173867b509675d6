// Package httpbroker is a reference broker.Client implementation against a
// generic REST brokerage API, grounded on the teacher's
// TradernetBrokerAdapter: a thin transport client plus an adapter that
// satisfies the domain-facing interface, rather than exposing the vendor's
// own request/response shapes to the rest of the core.
package httpbroker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/domain"
)

// Config configures the brokerage HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client implements broker.Client (AccountReader, OrderSubmitter,
// PositionReader) against Config.BaseURL.
type Client struct {
	cfg    Config
	client *retryablehttp.Client
}

func New(cfg Config) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.Logger = nil
	return &Client{cfg: cfg, client: c}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpbroker: encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("httpbroker: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpbroker: %w: %v", domain.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("httpbroker: %w", domain.ErrRateLimitExceeded)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("httpbroker: status %d: %w", resp.StatusCode, domain.ErrProviderTransient)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("httpbroker: status 404: %w", domain.ErrQuoteNotFound)
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("httpbroker: status %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrOrderReject)
	}
	if out == nil {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpbroker: reading response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("httpbroker: decoding response: %w", err)
	}
	return nil
}

type accountResponse struct {
	BuyingPower        float64 `json:"buying_power"`
	OptionsBuyingPower float64 `json:"options_buying_power"`
	Equity             float64 `json:"equity"`
	PortfolioValue     float64 `json:"portfolio_value"`
}

func (c *Client) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	var out accountResponse
	if err := c.do(ctx, http.MethodGet, "/v1/account", nil, &out); err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("httpbroker: getting account: %w", err)
	}
	return domain.AccountSnapshot{
		BuyingPower:        decimal.NewFromFloat(out.BuyingPower),
		OptionsBuyingPower: decimal.NewFromFloat(out.OptionsBuyingPower),
		Equity:             decimal.NewFromFloat(out.Equity),
		PortfolioValue:     decimal.NewFromFloat(out.PortfolioValue),
		LoadedOK:           true,
		SnapshotInstant:    time.Now(),
	}, nil
}

type submitOrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      int     `json:"qty"`
	Type          string  `json:"type"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
	TimeInForce   string  `json:"time_in_force"`
}

type orderResponse struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_order_id"`
	Status    string `json:"status"`
	FilledQty int    `json:"filled_qty"`
	FilledAvg float64 `json:"filled_avg_price"`
	UpdatedAt string `json:"updated_at"`
}

func translateStatus(vendorStatus string) domain.OrderState {
	switch vendorStatus {
	case "new", "pending":
		return domain.OrderPendingNew
	case "accepted", "open":
		return domain.OrderAccepted
	case "partially_filled":
		return domain.OrderPartiallyFilled
	case "filled":
		return domain.OrderFilled
	case "canceled":
		return domain.OrderCanceled
	case "rejected":
		return domain.OrderRejected
	case "expired":
		return domain.OrderExpired
	default:
		return domain.OrderNew
	}
}

func (c *Client) SubmitOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	limit, _ := intent.LimitPrice.Float64()
	req := submitOrderRequest{
		ClientOrderID: intent.ClientOrderID,
		Symbol:        intent.ContractSymbol,
		Side:          string(intent.Side),
		Quantity:      intent.Quantity,
		Type:          string(intent.Type),
		LimitPrice:    limit,
		TimeInForce:   intent.TimeInForce,
	}
	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &out); err != nil {
		return domain.OrderResult{}, fmt.Errorf("httpbroker: submitting order: %w", err)
	}
	return domain.OrderResult{
		BrokerOrderID: out.ID,
		State:         translateStatus(out.Status),
		SubmittedAt:   time.Now(),
	}, nil
}

func (c *Client) GetOrder(ctx context.Context, brokerOrderID string) (domain.BrokerOrder, error) {
	var out orderResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+brokerOrderID, nil, &out); err != nil {
		return domain.BrokerOrder{}, fmt.Errorf("httpbroker: getting order %s: %w", brokerOrderID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339, out.UpdatedAt)
	if err != nil {
		updatedAt = time.Now()
	}
	return domain.BrokerOrder{
		BrokerOrderID: out.ID,
		ClientOrderID: out.ClientID,
		State:         translateStatus(out.Status),
		FilledPrice:   decimal.NewFromFloat(out.FilledAvg),
		FilledQty:     out.FilledQty,
		UpdatedAt:     updatedAt,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/orders/"+brokerOrderID, nil, nil); err != nil {
		return fmt.Errorf("httpbroker: canceling order %s: %w", brokerOrderID, err)
	}
	return nil
}

type pendingOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}

func (c *Client) GetPendingOrders(ctx context.Context) ([]domain.BrokerOrder, error) {
	var out pendingOrdersResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders?status=open", nil, &out); err != nil {
		return nil, fmt.Errorf("httpbroker: listing pending orders: %w", err)
	}
	orders := make([]domain.BrokerOrder, 0, len(out.Orders))
	for _, o := range out.Orders {
		updatedAt, err := time.Parse(time.RFC3339, o.UpdatedAt)
		if err != nil {
			updatedAt = time.Now()
		}
		orders = append(orders, domain.BrokerOrder{
			BrokerOrderID: o.ID,
			ClientOrderID: o.ClientID,
			State:         translateStatus(o.Status),
			FilledPrice:   decimal.NewFromFloat(o.FilledAvg),
			FilledQty:     o.FilledQty,
			UpdatedAt:     updatedAt,
		})
	}
	return orders, nil
}

type positionResponse struct {
	Symbol   string  `json:"symbol"`
	Quantity int     `json:"qty"`
	AvgPrice float64 `json:"avg_entry_price"`
}

func (c *Client) GetOpenPosition(ctx context.Context, symbol string) (domain.Position, bool, error) {
	var out positionResponse
	err := c.do(ctx, http.MethodGet, "/v1/positions/"+symbol, nil, &out)
	if err != nil {
		if errors.Is(err, domain.ErrQuoteNotFound) {
			return domain.Position{}, false, nil
		}
		return domain.Position{}, false, fmt.Errorf("httpbroker: getting position %s: %w", symbol, err)
	}
	return domain.Position{Symbol: out.Symbol, Quantity: out.Quantity, AvgPrice: decimal.NewFromFloat(out.AvgPrice)}, true, nil
}
