// Package lifecycle enforces the play status transition table (C6):
// NEW -> PENDING_OPENING -> OPEN -> PENDING_CLOSING -> {CLOSED | EXPIRED},
// plus TEMP for OTO children, OCO/OTO fan-out, and OCC symbol validation.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/store"
)

// OrderCanceler is the narrow broker capability the engine needs to cancel a
// still-live order when an OCO sibling fires. Modeled on the teacher's habit
// of depending on narrow single-method interfaces (internal/domain/interfaces.go)
// rather than a full broker SDK.
type OrderCanceler interface {
	CancelOrder(ctx context.Context, brokerOrderID string) error
}

// Engine enforces play transitions against a Store.
type Engine struct {
	log    zerolog.Logger
	store  store.Store
	broker OrderCanceler
	clock  clock.Clock
}

func NewEngine(log zerolog.Logger, st store.Store, broker OrderCanceler, clk clock.Clock) *Engine {
	return &Engine{
		log:    log.With().Str("component", "lifecycle.engine").Logger(),
		store:  st,
		broker: broker,
		clock:  clk,
	}
}

// ValidatePlay checks the OCC invariant (P2), tagging the play INVALID on a
// symbol mismatch rather than allowing any transition (scenario 3). It does
// not check the GTD invariant (P1); ExpireIfPastGTD handles that.
func (e *Engine) ValidatePlay(ctx context.Context, p *domain.Play) error {
	if err := domain.ValidateOCC(p.Symbol, p.OptionContractSymbol, p.ExpirationDate, p.StrikePrice, p.TradeType); err != nil {
		e.log.Error().Err(err).Str("play_id", p.PlayID).Msg("OCC validation failed, tagging play INVALID")
		if moveErr := e.store.Move(ctx, p, domain.StatusInvalid); moveErr != nil {
			return fmt.Errorf("lifecycle: tagging %s INVALID: %w", p.PlayID, moveErr)
		}
		return err
	}
	return nil
}

// SubmitEntry records the primary order id/state against a NEW play and
// advances it to PENDING_OPENING.
func (e *Engine) SubmitEntry(ctx context.Context, p *domain.Play, orderID string, state domain.OrderState) error {
	if p.Status.Lifecycle != domain.StatusNew {
		return fmt.Errorf("lifecycle: SubmitEntry requires NEW, got %s: %w", p.Status.Lifecycle, domain.ErrInvalidTransition)
	}
	p.Status.OrderID = orderID
	p.Status.OrderState = state
	return e.store.Move(ctx, p, domain.StatusPendingOpening)
}

// AdvanceOnFill handles a broker FILLED report for either the primary order
// (PENDING_OPENING -> OPEN) or the closing order (PENDING_CLOSING -> CLOSED).
func (e *Engine) AdvanceOnFill(ctx context.Context, p *domain.Play, fillPrice decimal.Decimal, greeks domain.Greeks) error {
	now := e.clock.Now()
	switch p.Status.Lifecycle {
	case domain.StatusPendingOpening:
		p.Status.OrderState = domain.OrderFilled
		p.Status.PositionExists = true
		p.EntryPoint.FilledPremium = fillPrice
		p.Logging.OpenedAt = now
		p.Logging.PremiumAtOpen = fillPrice
		p.Logging.GreeksAtOpen = greeks
		return e.store.Move(ctx, p, domain.StatusOpen)
	case domain.StatusPendingClosing:
		p.Status.ClosingOrderState = domain.OrderFilled
		p.Status.PositionExists = false
		p.Logging.ClosedAt = now
		p.Logging.PremiumAtClose = fillPrice
		return e.store.Move(ctx, p, domain.StatusClosed)
	default:
		return fmt.Errorf("lifecycle: AdvanceOnFill called on play in status %s: %w", p.Status.Lifecycle, domain.ErrInvalidTransition)
	}
}

// AdvanceOnReject handles a broker REJECTED/CANCELED report for the primary
// order, reverting PENDING_OPENING back to NEW.
func (e *Engine) AdvanceOnReject(ctx context.Context, p *domain.Play) error {
	if p.Status.Lifecycle != domain.StatusPendingOpening {
		return fmt.Errorf("lifecycle: AdvanceOnReject requires PENDING_OPENING, got %s: %w", p.Status.Lifecycle, domain.ErrInvalidTransition)
	}
	p.Status.OrderID = ""
	p.Status.OrderState = ""
	return e.store.Move(ctx, p, domain.StatusNew)
}

// SubmitExit records the closing order id/state against an OPEN play and
// advances it to PENDING_CLOSING.
func (e *Engine) SubmitExit(ctx context.Context, p *domain.Play, orderID string, state domain.OrderState) error {
	if p.Status.Lifecycle != domain.StatusOpen {
		return fmt.Errorf("lifecycle: SubmitExit requires OPEN, got %s: %w", p.Status.Lifecycle, domain.ErrInvalidTransition)
	}
	p.Status.ClosingOrderID = orderID
	p.Status.ClosingOrderState = state
	return e.store.Move(ctx, p, domain.StatusPendingClosing)
}

// SubmitContingencyBackup records a backup market order on a play whose
// primary limit exit timed out, without changing its lifecycle status.
func (e *Engine) SubmitContingencyBackup(ctx context.Context, p *domain.Play, orderID string, state domain.OrderState) error {
	if p.Status.Lifecycle != domain.StatusPendingClosing {
		return fmt.Errorf("lifecycle: SubmitContingencyBackup requires PENDING_CLOSING, got %s: %w", p.Status.Lifecycle, domain.ErrInvalidTransition)
	}
	p.Status.ContingencyOrderID = orderID
	p.Status.ContingencyOrderState = state
	return e.store.Save(ctx, p)
}

// ExpireIfPastGTD moves a NEW play whose play_expiration_date has passed to
// EXPIRED (P1).
func (e *Engine) ExpireIfPastGTD(ctx context.Context, p *domain.Play) (bool, error) {
	if p.Status.Lifecycle != domain.StatusNew {
		return false, nil
	}
	if !clock.IsExpired(e.clock.Today(), p.PlayExpirationDate) {
		return false, nil
	}
	return true, e.store.Move(ctx, p, domain.StatusExpired)
}

// ForceCloseAtExpiration moves an OPEN play whose play_expiration_date has
// passed into PENDING_CLOSING so the orchestrator can submit a market exit.
func (e *Engine) ForceCloseAtExpiration(ctx context.Context, p *domain.Play) (bool, error) {
	if p.Status.Lifecycle != domain.StatusOpen {
		return false, nil
	}
	if !clock.IsExpired(e.clock.Today(), p.PlayExpirationDate) {
		return false, nil
	}
	return true, e.store.Move(ctx, p, domain.StatusPendingClosing)
}

// HandleOCO implements the OCO fan-out: once p reaches OPEN or CLOSED, every
// sibling listed in its OCO_triggers that is still NEW or PENDING_OPENING is
// canceled (broker cancel if an order is live) and moved to EXPIRED (I8).
func (e *Engine) HandleOCO(ctx context.Context, p *domain.Play) error {
	if p.Status.Lifecycle != domain.StatusOpen && p.Status.Lifecycle != domain.StatusClosed {
		return nil
	}
	for _, siblingID := range p.Conditionals.OCOTriggers {
		sibling, err := e.store.Get(ctx, siblingID)
		if err != nil {
			e.log.Warn().Err(err).Str("play_id", siblingID).Msg("OCO sibling not found")
			continue
		}
		if sibling.Status.Lifecycle != domain.StatusNew && sibling.Status.Lifecycle != domain.StatusPendingOpening {
			continue
		}
		if sibling.Status.Lifecycle == domain.StatusPendingOpening && sibling.Status.OrderID != "" && e.broker != nil {
			if err := e.broker.CancelOrder(ctx, sibling.Status.OrderID); err != nil {
				e.log.Warn().Err(err).Str("play_id", sibling.PlayID).Msg("failed to cancel OCO sibling order")
			}
		}
		if err := e.store.Move(ctx, sibling, domain.StatusExpired); err != nil {
			return fmt.Errorf("lifecycle: expiring OCO sibling %s: %w", sibling.PlayID, err)
		}
	}
	return nil
}

// HandleOTO implements the OTO fan-out: once parent reaches OPEN, each child
// listed in OTO_triggers moves TEMP -> NEW exactly once, gated by
// conditionals_handled (I9).
func (e *Engine) HandleOTO(ctx context.Context, parent *domain.Play) error {
	if parent.Status.Lifecycle != domain.StatusOpen || parent.Status.ConditionalsHandled {
		return nil
	}
	for _, childID := range parent.Conditionals.OTOTriggers {
		child, err := e.store.Get(ctx, childID)
		if err != nil {
			e.log.Warn().Err(err).Str("play_id", childID).Msg("OTO child not found")
			continue
		}
		if child.Status.Lifecycle != domain.StatusTemp {
			continue
		}
		if err := e.store.Move(ctx, child, domain.StatusNew); err != nil {
			return fmt.Errorf("lifecycle: activating OTO child %s: %w", child.PlayID, err)
		}
	}
	parent.Status.ConditionalsHandled = true
	return e.store.Save(ctx, parent)
}
