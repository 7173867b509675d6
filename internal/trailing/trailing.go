// Package trailing implements the trailing stop engine (C12): per-play
// high-water-mark tracking, an activation gate, and two premium levels
// (TP1 floor, TP2 ceiling) that ratchet in the play's favorable direction
// only, never loosening (I7).
package trailing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/metrics"
)

const defaultMaxWait = 15 * time.Minute

// Engine updates one play's TrailingState per cycle.
type Engine struct {
	log     zerolog.Logger
	clk     clock.Clock
	cal     *clock.Calendar
	metrics *metrics.Collectors
}

func New(log zerolog.Logger, clk clock.Clock, cal *clock.Calendar) *Engine {
	return &Engine{log: log.With().Str("component", "trailing.engine").Logger(), clk: clk, cal: cal}
}

// WithMetrics attaches a Prometheus collector set, returning the same Engine
// for chaining at construction time.
func (e *Engine) WithMetrics(c *metrics.Collectors) *Engine {
	e.metrics = c
	return e
}

// sign returns +1 for a long play (premium rising is favorable) and -1 for
// a short play (premium falling is favorable), so the floor/ceiling math
// below can be written once instead of duplicated per direction.
func sign(a domain.Action) decimal.Decimal {
	if a.IsShort() {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// moreFavorable returns whichever of a, b is further in the play's
// favorable direction — the max for a long play, the min for a short one.
func moreFavorable(a, b decimal.Decimal, s decimal.Decimal) decimal.Decimal {
	if s.IsNegative() {
		if a.LessThan(b) {
			return a
		}
		return b
	}
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Evaluate updates p.TakeProfit.Trailing in place for the current premium
// reading. isEOD gates the once-per-day profit_capture ratchet. cfg.UpdateMode
// is not read: distance_from_current recomputes on every call and
// profit_capture ratchets only when isEOD, whatever update_mode is set to.
func (e *Engine) Evaluate(ctx context.Context, p *domain.Play, currentPremium decimal.Decimal, cfg domain.TrailingDefaults, isEOD bool) {
	if !cfg.Enabled {
		return
	}
	ts := &p.TakeProfit.Trailing
	ts.Enabled = true
	s := sign(p.Action)
	entry := p.EntryPoint.FilledPremium
	if entry.IsZero() {
		return // not yet filled; nothing to trail against
	}

	e.updateHighWaterMark(ts, currentPremium, s)
	e.updateActivation(ts, entry, currentPremium, cfg.ActivationThresholdPct, s)
	if !ts.Activated {
		return
	}

	e.updateTP1(ts, entry, currentPremium, cfg, s, isEOD)
	e.updateTP2(ts, p.TakeProfit.Trigger.AbsoluteValue, entry, currentPremium, cfg, s)
}

func (e *Engine) updateHighWaterMark(ts *domain.TrailingState, current decimal.Decimal, s decimal.Decimal) {
	if ts.HighWaterMark.IsZero() {
		ts.HighWaterMark = current
		return
	}
	ts.HighWaterMark = moreFavorable(ts.HighWaterMark, current, s)
}

func (e *Engine) updateActivation(ts *domain.TrailingState, entry, current decimal.Decimal, thresholdPct decimal.Decimal, s decimal.Decimal) {
	if ts.Activated {
		return
	}
	gainPct := current.Sub(entry).Div(entry).Mul(decimal.New(100, 0)).Mul(s)
	if gainPct.GreaterThanOrEqual(thresholdPct) {
		ts.Activated = true
	}
}

// updateTP1 maintains the floor level: distance_from_current recomputes
// every cycle; profit_capture only moves at end of day, via
// ratchetProfitCapture.
func (e *Engine) updateTP1(ts *domain.TrailingState, entry, current decimal.Decimal, cfg domain.TrailingDefaults, s decimal.Decimal, isEOD bool) {
	switch cfg.TP1Basis {
	case "distance_from_current":
		candidate := current.Sub(current.Mul(cfg.TP1DistancePct).Div(decimal.New(100, 0)).Mul(s))
		if ts.TP1Level.IsZero() {
			ts.TP1Level = candidate
			return
		}
		ts.TP1Level = moreFavorable(ts.TP1Level, candidate, s)
	default: // "profit_capture"
		if ts.TP1Level.IsZero() {
			ts.TP1Level = entry.Add(entry.Mul(cfg.TP1ProfitCaptureStartPct).Div(decimal.New(100, 0)).Mul(s))
		}
		if isEOD {
			e.ratchetProfitCapture(ts, entry, current, cfg, s)
		}
	}
}

// ratchetProfitCapture implements §4.8 rule 4: propose a new capture level
// once per day if premium has risen enough since the last ratchet, keep it
// only if it stays a configured gap behind the current premium, and record
// the outcome in an append-only history regardless of acceptance.
func (e *Engine) ratchetProfitCapture(ts *domain.TrailingState, entry, current decimal.Decimal, cfg domain.TrailingDefaults, s decimal.Decimal) {
	today := e.clk.Today()
	if sameDay(ts.LastRatchetAt, today) {
		return
	}

	base := ts.LastRatchetPremium
	if base.IsZero() {
		base = entry
	}
	risePct := current.Sub(base).Div(base).Mul(decimal.New(100, 0)).Mul(s)
	if risePct.LessThan(cfg.RatchetMinRisePct) {
		ts.LastRatchetAt = e.clk.Now()
		return
	}

	// Smooth against the last few accepted rises so a single noisy cycle
	// doesn't drive the floor — the average of accepted historical rise
	// percentages (gonum/stat) must itself clear the minimum rise bar,
	// not just the latest reading.
	if hist := acceptedRisePcts(ts.History); len(hist) > 0 {
		avg := stat.Mean(hist, nil)
		if avg < 0 {
			avg = 0
		}
		avgDecimal := decimal.NewFromFloat(avg)
		if risePct.LessThan(avgDecimal) && risePct.LessThan(cfg.RatchetMinRisePct.Mul(decimal.NewFromFloat(1.5))) {
			e.recordRatchet(ts, ts.TP1Level, ts.TP1Level, false, "rise below smoothed historical average")
			ts.LastRatchetAt = e.clk.Now()
			return
		}
	}

	startPct := cfg.TP1ProfitCaptureStartPct
	proposedCapturePct := startPct.Add(cfg.RatchetFactor.Mul(risePct))
	currentCapturePct := ts.TP1Level.Sub(entry).Div(entry).Mul(decimal.New(100, 0)).Mul(s)
	if proposedCapturePct.LessThan(currentCapturePct) {
		proposedCapturePct = currentCapturePct
	}

	proposedLevel := entry.Add(entry.Mul(proposedCapturePct).Div(decimal.New(100, 0)).Mul(s))
	maxAllowed := current.Sub(current.Mul(cfg.RatchetMinGapBelowCurrentPct).Div(decimal.New(100, 0)).Mul(s))

	accepted := false
	if favorableOrEqual(maxAllowed, proposedLevel, s) && favorableOrEqual(proposedLevel, ts.TP1Level, s) {
		accepted = true
	}

	old := ts.TP1Level
	newLevel := old
	reason := "rise below min_rise_since_last_pct"
	if accepted {
		newLevel = proposedLevel
		reason = "ratcheted on end-of-day profit_capture rise"
	} else if !favorableOrEqual(maxAllowed, proposedLevel, s) {
		reason = "proposed level violates min_gap_below_current_pct"
	}

	ts.TP1Level = newLevel
	ts.LastRatchetAt = e.clk.Now()
	ts.LastRatchetPremium = current
	e.recordRatchet(ts, old, newLevel, accepted, reason)
}

// favorableOrEqual reports whether a is at least as favorable as b (a >= b
// for a long play, a <= b for a short one).
func favorableOrEqual(a, b decimal.Decimal, s decimal.Decimal) bool {
	if s.IsNegative() {
		return a.LessThanOrEqual(b)
	}
	return a.GreaterThanOrEqual(b)
}

func (e *Engine) recordRatchet(ts *domain.TrailingState, old, newLevel decimal.Decimal, accepted bool, reason string) {
	ts.History = append(ts.History, domain.TrailingRatchetEvent{
		At:       e.clk.Now(),
		OldLevel: old,
		NewLevel: newLevel,
		Accepted: accepted,
		Reason:   reason,
	})
	if e.metrics != nil {
		e.metrics.TrailingRatchets.WithLabelValues(boolLabel(accepted)).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// acceptedRisePcts extracts the rise percentage implied by each accepted
// ratchet event (relative to its own prior level) for the smoothing check
// above.
func acceptedRisePcts(history []domain.TrailingRatchetEvent) []float64 {
	var out []float64
	for _, h := range history {
		if !h.Accepted || h.OldLevel.IsZero() {
			continue
		}
		pct, _ := h.NewLevel.Sub(h.OldLevel).Div(h.OldLevel).Mul(decimal.New(100, 0)).Abs().Float64()
		out = append(out, pct)
	}
	return out
}

// updateTP2 maintains the ceiling: starts at the original take-profit level
// if configured, otherwise at a distance from current; it never becomes
// less favorable than the original TP.
func (e *Engine) updateTP2(ts *domain.TrailingState, originalTP decimal.Decimal, entry, current decimal.Decimal, cfg domain.TrailingDefaults, s decimal.Decimal) {
	var candidate decimal.Decimal
	if ts.TP2Level.IsZero() && cfg.TP2StartAtOriginalTP && !originalTP.IsZero() {
		candidate = originalTP
	} else {
		candidate = current.Add(current.Mul(cfg.TP2DistancePct).Div(decimal.New(100, 0)).Mul(s))
	}

	if ts.TP2Level.IsZero() {
		ts.TP2Level = candidate
	} else {
		ts.TP2Level = moreFavorable(ts.TP2Level, candidate, s)
	}

	if !originalTP.IsZero() && !favorableOrEqual(ts.TP2Level, originalTP, s) {
		ts.TP2Level = originalTP
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
