// Package cashsecuredput implements the short-put strategy: STO entries,
// TP on premium decay (buy back cheaper), SL on premium rise by a multiple
// of credit received, plus a DTE-based forced close independent of P&L.
package cashsecuredput

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/strategy"
)

const Name = "cash_secured_put"

func init() {
	strategy.Register(Name, New)
}

// Runner implements strategy.Runner for cash-secured short puts.
type Runner struct {
	strategy.BaseRunner
	md             strategy.MarketDataReader
	playbooks      strategy.PlaybookLookup
	clk            clock.Clock
	closeAtDTE     int
	entryBufferPct decimal.Decimal
}

// New constructs the cash-secured-put Runner.
func New(deps strategy.Deps) strategy.Runner {
	return &Runner{
		BaseRunner:     strategy.BaseRunner{Name: Name, Priority: 20, Enabled: true},
		md:             deps.MarketData,
		playbooks:      deps.Playbooks,
		clk:            clock.NewSystem(nil),
		closeAtDTE:     21,
		entryBufferPct: decimal.NewFromFloat(0.5),
	}
}

func (r *Runner) GetDefaultEntryAction() domain.Action { return domain.STO }

func (r *Runner) GetExitActionForPlay(p *domain.Play) (domain.Action, error) {
	return p.ExitAction()
}

func (r *Runner) OnCycleStart(ctx context.Context) error { return nil }
func (r *Runner) OnCycleEnd(ctx context.Context) error   { return nil }

func (r *Runner) ValidatePlay(p *domain.Play) bool {
	return p.Action == domain.STO && p.Contracts > 0
}

func (r *Runner) EvaluateNewPlays(ctx context.Context, plays []*domain.Play) ([]*domain.Play, error) {
	var ready []*domain.Play
	for _, p := range plays {
		if p.StrategyName != Name {
			continue
		}
		current, err := r.md.StockPrice(ctx, p.Symbol)
		if err != nil {
			continue
		}
		target := p.EntryPoint.TargetStockPrice
		if target.IsZero() {
			continue
		}
		diffPct := decimal.NewFromFloat(current).Sub(target).Div(target).Abs().Mul(decimal.New(100, 0))
		if diffPct.LessThanOrEqual(r.entryBufferPct) {
			ready = append(ready, p)
		}
	}
	return ready, nil
}

// EvaluateOpenPlays closes a short put when its premium has decayed enough
// to take profit, when it has risen by a stop-loss multiple of the credit
// received, or when DTE has fallen to closeAtDTE regardless of P&L.
func (r *Runner) EvaluateOpenPlays(ctx context.Context, plays []*domain.Play) ([]strategy.OpenPlayDecision, error) {
	today := r.clk.Today()
	var decisions []strategy.OpenPlayDecision
	for _, p := range plays {
		if p.StrategyName != Name {
			continue
		}

		dte := clock.DaysToExpiration(today, p.ExpirationDate)
		if dte <= r.closeAtDTE {
			decisions = append(decisions, strategy.OpenPlayDecision{
				Play: p,
				Conditions: strategy.CloseConditions{ShouldClose: true, IsTimeExit: true, ExitReason: "dte_close"},
			})
			continue
		}

		quote, err := r.md.OptionQuote(ctx, p.OptionContractSymbol)
		if err != nil {
			continue
		}
		credit := p.EntryPoint.FilledPremium
		current := quote.Mid

		// TP: premium has fallen by the configured percentage of credit
		// received (buy back cheaper than sold).
		tpFraction := percentOf(p.TakeProfit.Trigger)
		if credit.GreaterThan(decimal.Zero) && tpFraction.GreaterThan(decimal.Zero) &&
			current.LessThanOrEqual(credit.Mul(decimal.NewFromFloat(1).Sub(tpFraction))) {
			decisions = append(decisions, strategy.OpenPlayDecision{
				Play: p,
				Conditions: strategy.CloseConditions{ShouldClose: true, IsProfit: true, ExitReason: "take_profit", SLMode: p.StopLoss.Mode},
			})
			continue
		}

		// SL: premium has risen to a multiple of credit received.
		if credit.GreaterThan(decimal.Zero) {
			slMultiple := p.StopLoss.Trigger.PctValue // repurposed as a multiple (e.g. 2.0 = 200% of credit) for short-premium SL
			if slMultiple.GreaterThan(decimal.Zero) && current.GreaterThanOrEqual(credit.Mul(slMultiple)) {
				decisions = append(decisions, strategy.OpenPlayDecision{
					Play: p,
					Conditions: strategy.CloseConditions{ShouldClose: true, IsPrimaryLoss: true, ExitReason: "stop_loss", SLMode: p.StopLoss.Mode},
				})
			}
		}
	}
	return decisions, nil
}

// percentOf extracts a TP pct value as a 0..1 fraction, defaulting to 0 for
// non-percentage trigger kinds (the fallback comparison above only applies
// when the playbook expresses TP as a premium percentage).
func percentOf(t domain.TriggerSpec) decimal.Decimal {
	if t.Kind != domain.TriggerPremiumPct {
		return decimal.Zero
	}
	return t.PctValue.Div(decimal.New(100, 0))
}
