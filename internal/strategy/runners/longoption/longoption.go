// Package longoption implements the long calls/puts strategy: BTO entries,
// TP on premium rise, SL on premium fall.
package longoption

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/strategy"
)

const Name = "long_option"

func init() {
	strategy.Register(Name, New)
}

// Runner implements strategy.Runner for long calls/puts.
type Runner struct {
	strategy.BaseRunner
	md        strategy.MarketDataReader
	playbooks strategy.PlaybookLookup
	entryBufferPct decimal.Decimal
}

// New constructs the long-option Runner; it is registered as this package's
// Constructor in init().
func New(deps strategy.Deps) strategy.Runner {
	return &Runner{
		BaseRunner:     strategy.BaseRunner{Name: Name, Priority: 10, Enabled: true},
		md:             deps.MarketData,
		playbooks:      deps.Playbooks,
		entryBufferPct: decimal.NewFromFloat(0.5), // target price tolerance band
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

// EvaluateNewPlays selects NEW plays whose current stock price has reached
// within entryBufferPct of their target entry price (scenario 1).
func (r *Runner) EvaluateNewPlays(ctx context.Context, plays []*domain.Play) ([]*domain.Play, error) {
	var ready []*domain.Play
	for _, p := range plays {
		if p.StrategyName != Name {
			continue
		}
		current, err := r.md.StockPrice(ctx, p.Symbol)
		if err != nil {
			continue // provider unavailable this cycle; try again next cycle
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

// EvaluateOpenPlays checks each OPEN play's TP/SL triggers against the
// latest option quote.
func (r *Runner) EvaluateOpenPlays(ctx context.Context, plays []*domain.Play) ([]strategy.OpenPlayDecision, error) {
	var decisions []strategy.OpenPlayDecision
	for _, p := range plays {
		if p.StrategyName != Name {
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
			EntryPremium:  p.EntryPoint.FilledPremium,
			CurrentPremium: quote.Mid,
			EntryStock:    p.Logging.StockPriceAtOpen,
			CurrentStock:  decimal.NewFromFloat(stockPrice),
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
		}
	}
	return decisions, nil
}
