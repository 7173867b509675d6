// Package executor translates strategy decisions into broker orders,
// resolving limit prices per policy and handling CONTINGENCY stop-loss
// escalation (C10).
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/broker"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/marketdata"
	"github.com/aristath/goldcore/internal/metrics"
)

// Executor submits and escalates orders on behalf of the orchestrator.
type Executor struct {
	log     zerolog.Logger
	broker  broker.OrderSubmitter
	md      *marketdata.Manager
	metrics *metrics.Collectors
}

func New(log zerolog.Logger, b broker.OrderSubmitter, md *marketdata.Manager) *Executor {
	return &Executor{log: log.With().Str("component", "executor").Logger(), broker: b, md: md}
}

// WithMetrics attaches a Prometheus collector set, returning the same
// Executor for chaining at construction time. Left unattached, every
// instrumentation call below is a no-op.
func (e *Executor) WithMetrics(c *metrics.Collectors) *Executor {
	e.metrics = c
	return e
}

func (e *Executor) recordSubmission(side domain.OrderSide, orderType domain.OrderTypePolicy, err error) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		e.metrics.OrderSubmitErrors.WithLabelValues(classifyOrderError(err)).Inc()
		return
	}
	e.metrics.OrdersSubmitted.WithLabelValues(string(side), string(orderType)).Inc()
}

func classifyOrderError(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, domain.ErrProviderTransient):
		return "transient"
	case errors.Is(err, domain.ErrOrderReject):
		return "rejected"
	default:
		return "unknown"
	}
}

// resolveLimitPrice picks a price per policy from the latest quote. A
// limit-at-mid requires both bid and ask to be positive; otherwise it falls
// back to last, per §4.6.
func resolveLimitPrice(policy domain.OrderTypePolicy, q domain.Quote) decimal.Decimal {
	switch policy {
	case domain.OrderTypeLimitAtBid:
		return q.Bid
	case domain.OrderTypeLimitAtAsk:
		return q.Ask
	case domain.OrderTypeLimitAtMid:
		if q.Bid.GreaterThan(decimal.Zero) && q.Ask.GreaterThan(decimal.Zero) {
			return q.Mid
		}
		return q.Last
	case domain.OrderTypeLimitAtLast:
		return q.Last
	default:
		return decimal.Zero
	}
}

// SubmitEntry submits a play's opening order. It is idempotent per play: if
// play already has a live order id, no new order is submitted.
func (e *Executor) SubmitEntry(ctx context.Context, play *domain.Play) (domain.OrderResult, error) {
	if play.Status.OrderID != "" && !play.Status.OrderState.IsTerminalReject() {
		return domain.OrderResult{BrokerOrderID: play.Status.OrderID, State: play.Status.OrderState}, nil
	}

	quote, err := e.md.OptionQuote(ctx, play.OptionContractSymbol)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: fetching quote for entry %s: %w", play.PlayID, err)
	}

	intent := domain.OrderIntent{
		ClientOrderID:  uuid.NewString(),
		PlayID:         play.PlayID,
		ContractSymbol: play.OptionContractSymbol,
		Side:           domain.SideFor(play.Action),
		Quantity:       play.Contracts,
		Type:           play.EntryPoint.OrderType,
		TimeInForce:    "DAY",
	}
	if play.EntryPoint.OrderType != domain.OrderTypeMarket {
		intent.LimitPrice = resolveLimitPrice(play.EntryPoint.OrderType, quote)
	}

	result, err := e.broker.SubmitOrder(ctx, intent)
	e.recordSubmission(intent.Side, intent.Type, err)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: submitting entry for %s: %w: %v", play.PlayID, domain.ErrOrderReject, err)
	}
	return result, nil
}

// SubmitExit submits a play's closing order using the exit order-type policy
// the caller chose for this exit.
func (e *Executor) SubmitExit(ctx context.Context, play *domain.Play, exitAction domain.Action, orderType domain.OrderTypePolicy) (domain.OrderResult, error) {
	if play.Status.ClosingOrderID != "" && !play.Status.ClosingOrderState.IsTerminalReject() {
		return domain.OrderResult{BrokerOrderID: play.Status.ClosingOrderID, State: play.Status.ClosingOrderState}, nil
	}

	quote, err := e.md.OptionQuote(ctx, play.OptionContractSymbol)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: fetching quote for exit %s: %w", play.PlayID, err)
	}

	intent := domain.OrderIntent{
		ClientOrderID:  uuid.NewString(),
		PlayID:         play.PlayID,
		ContractSymbol: play.OptionContractSymbol,
		Side:           domain.SideFor(exitAction),
		Quantity:       play.Contracts,
		Type:           orderType,
		TimeInForce:    "DAY",
	}
	if orderType != domain.OrderTypeMarket {
		intent.LimitPrice = resolveLimitPrice(orderType, quote)
	}

	result, err := e.broker.SubmitOrder(ctx, intent)
	e.recordSubmission(intent.Side, intent.Type, err)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: submitting exit for %s: %w: %v", play.PlayID, domain.ErrOrderReject, err)
	}
	return result, nil
}

// ShouldEscalateContingency reports whether a CONTINGENCY primary limit
// exit has waited longer than its configured max-wait, or the market has
// moved beyond the contingency trigger gap, and should be replaced with a
// backup market order.
func (e *Executor) ShouldEscalateContingency(ctx context.Context, play *domain.Play, submittedAt time.Time) (bool, error) {
	if play.StopLoss.Mode != domain.SLContingency {
		return false, nil
	}
	maxWait := play.StopLoss.MaxWait
	if maxWait <= 0 {
		maxWait = 15 * time.Minute // Open Question #3 default
	}
	if time.Since(submittedAt) >= maxWait {
		return true, nil
	}

	quote, err := e.md.OptionQuote(ctx, play.OptionContractSymbol)
	if err != nil {
		return false, err
	}
	// For a short play being bought to close, an ask that has moved beyond
	// the contingency gap past the entry credit means the primary limit is
	// unlikely to fill; for a long play, the mirrored bid check applies.
	gap := play.StopLoss.ContingencyGap
	if gap.IsZero() {
		return false, nil
	}
	if play.Action.IsShort() {
		trigger := play.EntryPoint.FilledPremium.Add(gap)
		return quote.Ask.GreaterThanOrEqual(trigger), nil
	}
	trigger := play.EntryPoint.FilledPremium.Sub(gap)
	return quote.Bid.LessThanOrEqual(trigger), nil
}

// SubmitContingencyMarket cancels the live primary limit order and submits a
// market order for the remaining quantity.
func (e *Executor) SubmitContingencyMarket(ctx context.Context, play *domain.Play, exitAction domain.Action) (domain.OrderResult, error) {
	qty := play.Contracts
	if play.Status.ClosingOrderID != "" {
		if err := e.broker.CancelOrder(ctx, play.Status.ClosingOrderID); err != nil {
			e.log.Warn().Err(err).Str("play_id", play.PlayID).Msg("failed to cancel primary contingency limit order")
		}
		if bo, err := e.broker.GetOrder(ctx, play.Status.ClosingOrderID); err == nil && bo.FilledQty > 0 && bo.FilledQty < qty {
			qty -= bo.FilledQty
		}
	}
	intent := domain.OrderIntent{
		ClientOrderID:  uuid.NewString(),
		PlayID:         play.PlayID,
		ContractSymbol: play.OptionContractSymbol,
		Side:           domain.SideFor(exitAction),
		Quantity:       qty,
		Type:           domain.OrderTypeMarket,
		TimeInForce:    "DAY",
	}
	result, err := e.broker.SubmitOrder(ctx, intent)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("executor: submitting contingency backup for %s: %w: %v", play.PlayID, domain.ErrOrderReject, err)
	}
	return result, nil
}
