package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/domain"
)

// TriggerInputs carries the entry/current readings an EvaluateFavorable or
// EvaluateAdverse call
// needs to resolve any trigger basis.
type TriggerInputs struct {
	EntryPremium, CurrentPremium decimal.Decimal
	EntryStock, CurrentStock     decimal.Decimal
}

// pctMove returns the signed percentage change from `from` to `to`; 0 if
// `from` is zero (avoids a division-by-zero before a play has a recorded
// entry price).
func pctMove(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(decimal.New(100, 0))
}

// EvaluateFavorable reports whether t has triggered in the "favorable"
// direction (price moved toward profit). For TriggerCombination, any member
// triggering is sufficient (first-to-trigger semantics, §4.5/§4.8).
func EvaluateFavorable(t domain.TriggerSpec, in TriggerInputs) bool {
	switch t.Kind {
	case domain.TriggerCombination:
		for _, c := range t.Combination {
			if EvaluateFavorable(c, in) {
				return true
			}
		}
		return false
	case domain.TriggerAbsolute:
		if t.Basis == domain.BasisStock {
			return in.CurrentStock.GreaterThanOrEqual(t.AbsoluteValue)
		}
		return in.CurrentPremium.GreaterThanOrEqual(t.AbsoluteValue)
	case domain.TriggerStockPct:
		return pctMove(in.EntryStock, in.CurrentStock).GreaterThanOrEqual(t.PctValue)
	case domain.TriggerPremiumPct:
		return pctMove(in.EntryPremium, in.CurrentPremium).GreaterThanOrEqual(t.PctValue)
	default:
		return false
	}
}

// EvaluateAdverse reports whether t has triggered in the "adverse" direction
// (price moved toward loss) — used for stop-loss triggers, where an
// unfavorable percentage move is a negative pctMove in magnitude terms.
func EvaluateAdverse(t domain.TriggerSpec, in TriggerInputs) bool {
	switch t.Kind {
	case domain.TriggerCombination:
		for _, c := range t.Combination {
			if EvaluateAdverse(c, in) {
				return true
			}
		}
		return false
	case domain.TriggerAbsolute:
		if t.Basis == domain.BasisStock {
			return in.CurrentStock.LessThanOrEqual(t.AbsoluteValue)
		}
		return in.CurrentPremium.LessThanOrEqual(t.AbsoluteValue)
	case domain.TriggerStockPct:
		return pctMove(in.EntryStock, in.CurrentStock).LessThanOrEqual(t.PctValue.Neg())
	case domain.TriggerPremiumPct:
		return pctMove(in.EntryPremium, in.CurrentPremium).LessThanOrEqual(t.PctValue.Neg())
	default:
		return false
	}
}
