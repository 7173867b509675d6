package trailing_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/config"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/trailing"
)

// fixedClock lets each EOD ratchet call land on a distinct day, required by
// ratchetProfitCapture's once-per-day gate.
type fixedClock struct {
	now time.Time
}

func (f *fixedClock) Now() time.Time   { return f.now }
func (f *fixedClock) Today() time.Time { y, m, d := f.now.Date(); return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func pct(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// TestRatchetProfitCapture_WorkedExample reproduces spec.md's own worked
// example (entry $2.00, TP1 profit_capture start=10%, min_rise=30%,
// factor=1.0, min_gap_below_current=20%): both proposed Day 1 and Day 2
// levels violate the gap check and must be rejected, leaving TP1 at its
// prior level each time (I7's gap-safety invariant).
func TestRatchetProfitCapture_WorkedExample(t *testing.T) {
	clk := &fixedClock{now: time.Date(2025, 1, 1, 16, 0, 0, 0, time.UTC)}
	cal := clock.NewCalendar(clk, config.MarketHoursConfig{RegularStart: "09:30", RegularEnd: "16:00"}, nil)
	e := trailing.New(zerolog.Nop(), clk, cal)

	cfg := domain.TrailingDefaults{
		Enabled:                  true,
		ActivationThresholdPct:   pct(0),
		TP1Basis:                 "profit_capture",
		TP1ProfitCaptureStartPct: pct(10),
		RatchetMinRisePct:        pct(30),
		RatchetFactor:            pct(1.0),
		RatchetMinGapBelowCurrentPct: pct(20),
	}

	p := &domain.Play{Action: domain.BTO}
	p.EntryPoint.FilledPremium = decimal.NewFromFloat(2.00)

	// Day 1: EOD premium $2.60. proposed level = $2.80; maxAllowed = $2.08.
	// $2.08 is less favorable than $2.80 for a long, so the ratchet must be
	// rejected and TP1 stays at its initial profit_capture start level ($2.20).
	clk.now = time.Date(2025, 1, 1, 16, 0, 0, 0, time.UTC)
	e.Evaluate(context.Background(), p, decimal.NewFromFloat(2.60), cfg, true)
	require.True(t, p.TakeProfit.Trailing.TP1Level.Equal(decimal.NewFromFloat(2.20)),
		"day 1: expected rejected ratchet to keep TP1 at entry+10%%, got %s", p.TakeProfit.Trailing.TP1Level)
	require.False(t, p.TakeProfit.Trailing.History[len(p.TakeProfit.Trailing.History)-1].Accepted)

	// Day 2: EOD premium $3.50. proposed level = $2.892; maxAllowed = $2.80.
	// Still rejected; TP1 unchanged again.
	clk.now = time.Date(2025, 1, 2, 16, 0, 0, 0, time.UTC)
	e.Evaluate(context.Background(), p, decimal.NewFromFloat(3.50), cfg, true)
	require.True(t, p.TakeProfit.Trailing.TP1Level.Equal(decimal.NewFromFloat(2.20)),
		"day 2: expected rejected ratchet to keep TP1 at entry+10%%, got %s", p.TakeProfit.Trailing.TP1Level)
	require.False(t, p.TakeProfit.Trailing.History[len(p.TakeProfit.Trailing.History)-1].Accepted)
}

// TestRatchetProfitCapture_AcceptsWithinGap checks the accept path: a rise
// large enough that the proposed level still clears min_gap_below_current_pct.
func TestRatchetProfitCapture_AcceptsWithinGap(t *testing.T) {
	clk := &fixedClock{now: time.Date(2025, 1, 1, 16, 0, 0, 0, time.UTC)}
	cal := clock.NewCalendar(clk, config.MarketHoursConfig{RegularStart: "09:30", RegularEnd: "16:00"}, nil)
	e := trailing.New(zerolog.Nop(), clk, cal)

	cfg := domain.TrailingDefaults{
		Enabled:                      true,
		ActivationThresholdPct:       pct(0),
		TP1Basis:                     "profit_capture",
		TP1ProfitCaptureStartPct:     pct(5),
		RatchetMinRisePct:            pct(10),
		RatchetFactor:                pct(0.5),
		RatchetMinGapBelowCurrentPct: pct(5),
	}

	p := &domain.Play{Action: domain.BTO}
	p.EntryPoint.FilledPremium = decimal.NewFromFloat(2.00)

	// rise = 50% -> proposed capture = 5 + 25 = 30% -> level = $2.60.
	// maxAllowed = $3.00 * 0.95 = $2.85, which is more favorable than $2.60,
	// so the ratchet is accepted.
	e.Evaluate(context.Background(), p, decimal.NewFromFloat(3.00), cfg, true)
	got := p.TakeProfit.Trailing.TP1Level
	require.True(t, got.Equal(decimal.NewFromFloat(2.60)), "expected accepted ratchet to $2.60, got %s", got)
	require.True(t, p.TakeProfit.Trailing.History[len(p.TakeProfit.Trailing.History)-1].Accepted)
}

func TestMoreFavorable_NeverLoosens(t *testing.T) {
	clk := &fixedClock{now: time.Now()}
	cal := clock.NewCalendar(clk, config.MarketHoursConfig{RegularStart: "09:30", RegularEnd: "16:00"}, nil)
	e := trailing.New(zerolog.Nop(), clk, cal)

	cfg := domain.TrailingDefaults{
		Enabled:                true,
		ActivationThresholdPct: pct(0),
		TP1Basis:               "distance_from_current",
		TP1DistancePct:         pct(10),
	}

	p := &domain.Play{Action: domain.BTO}
	p.EntryPoint.FilledPremium = decimal.NewFromFloat(2.00)

	e.Evaluate(context.Background(), p, decimal.NewFromFloat(3.00), cfg, false)
	first := p.TakeProfit.Trailing.TP1Level

	// premium drops; TP1 (a long's floor) must not follow it down.
	e.Evaluate(context.Background(), p, decimal.NewFromFloat(2.50), cfg, false)
	require.True(t, p.TakeProfit.Trailing.TP1Level.GreaterThanOrEqual(first),
		"TP1 loosened from %s to %s on a premium pullback", first, p.TakeProfit.Trailing.TP1Level)
}
