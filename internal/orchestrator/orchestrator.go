// Package orchestrator drives the cycle loop (C11): reset the per-cycle
// cache, refresh the capital snapshot, run every enabled strategy in
// priority order (sequential or bounded-parallel), poll live orders for
// fills, and fan out OCO/OTO consequences.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/goldcore/internal/archive"
	"github.com/aristath/goldcore/internal/broker"
	"github.com/aristath/goldcore/internal/capital"
	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/config"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/executor"
	"github.com/aristath/goldcore/internal/lifecycle"
	"github.com/aristath/goldcore/internal/marketdata"
	"github.com/aristath/goldcore/internal/metrics"
	"github.com/aristath/goldcore/internal/store"
	"github.com/aristath/goldcore/internal/strategy"
	"github.com/aristath/goldcore/internal/trailing"
)

// StrategyPanic wraps a recovered panic from a strategy's evaluation call so
// one misbehaving strategy cannot take down the rest of a cycle.
type StrategyPanic struct {
	Strategy string
	Value    any
}

func (e *StrategyPanic) Error() string {
	return fmt.Sprintf("orchestrator: strategy %s panicked: %v", e.Strategy, e.Value)
}

// CycleReport summarizes one cycle's outcome for logging and the operator
// HTTP surface.
type CycleReport struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	EntriesOpened  int
	ExitsSubmitted int
	GatesRejected  int
	Errors         []string
}

// Orchestrator wires every core component together and runs the cycle loop.
type Orchestrator struct {
	log     zerolog.Logger
	cfg     config.OrchestrationConfig
	clk     clock.Clock
	cal     *clock.Calendar
	md      *marketdata.Manager
	capital *capital.Manager
	store   store.Store
	engine  *lifecycle.Engine
	exec    *executor.Executor
	brk     broker.OrderSubmitter
	trail   *trailing.Engine
	archiver *archive.Archiver
	metrics *metrics.Collectors
	runners []strategy.Runner
	pbooks  strategy.PlaybookLookup

	mu        sync.Mutex
	lastCycle CycleReport

	cron *cron.Cron
}

func New(
	log zerolog.Logger,
	cfg config.OrchestrationConfig,
	clk clock.Clock,
	cal *clock.Calendar,
	md *marketdata.Manager,
	capitalMgr *capital.Manager,
	st store.Store,
	engine *lifecycle.Engine,
	exec *executor.Executor,
	brk broker.OrderSubmitter,
	trail *trailing.Engine,
	archiver *archive.Archiver,
	metricsCollectors *metrics.Collectors,
	runners []strategy.Runner,
	pbooks strategy.PlaybookLookup,
) *Orchestrator {
	return &Orchestrator{
		log:      log.With().Str("component", "orchestrator").Logger(),
		cfg:      cfg,
		clk:      clk,
		cal:      cal,
		md:       md,
		capital:  capitalMgr,
		store:    st,
		engine:   engine,
		exec:     exec,
		brk:      brk,
		trail:    trail,
		archiver: archiver,
		metrics:  metricsCollectors,
		runners:  runners,
		pbooks:   pbooks,
	}
}

// archiveIfEnabled fires a best-effort background upload of a play that has
// just reached a terminal status, when its playbook opted into archival and
// an archiver is configured (archival is optional and off by default).
func (o *Orchestrator) archiveIfEnabled(p *domain.Play) {
	if o.archiver == nil {
		return
	}
	pb, ok := o.pbooks.Get(p.PlaybookName)
	if !ok || !pb.Archive.Enabled {
		return
	}
	o.archiver.ArchivePlayAsync(context.Background(), p, 30*time.Second)
}

// LastCycle returns a copy of the most recently completed cycle's report.
func (o *Orchestrator) LastCycle() CycleReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastCycle
}

// RunForever starts a blocking cron-scheduled loop that calls RunCycle on
// every tick until ctx is canceled, matching the teacher's
// scheduler.New/Scheduler.AddJob shape over robfig/cron/v3. It returns once
// the cron has been stopped, any in-flight cycle has drained, and every
// runner has had one final OnCycleEnd call.
func (o *Orchestrator) RunForever(ctx context.Context) error {
	if !o.cal.IsMarketOpen(o.clk.Now()) {
		o.log.Info().Msg("market closed at startup; waiting for next scheduled tick")
	}

	o.cron = cron.New(cron.WithSeconds())
	_, err := o.cron.AddFunc(o.cronExpr(), func() {
		if !o.cal.IsMarketOpen(o.clk.Now()) {
			return
		}
		report := o.RunCycle(ctx)
		if len(report.Errors) > 0 {
			o.log.Error().Strs("errors", report.Errors).Msg("cycle completed with errors")
		}
	})
	if err != nil {
		return fmt.Errorf("orchestrator: scheduling cron job %q: %w", o.cfg.CycleCron, err)
	}

	o.cron.Start()
	<-ctx.Done()
	stopCtx := o.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		o.log.Warn().Msg("timed out waiting for in-flight cycle to drain")
	}
	for _, r := range o.runners {
		if err := r.OnCycleEnd(context.Background()); err != nil {
			o.log.Warn().Err(err).Str("strategy", r.GetName()).Msg("final OnCycleEnd failed")
		}
	}
	return nil
}

// cronExpr prefixes a seconds field of 0 onto the configured 5-field cron
// expression since cron.WithSeconds() expects 6 fields.
func (o *Orchestrator) cronExpr() string {
	return "0 " + o.cfg.CycleCron
}

// RunCycle executes exactly one cycle: cache reset, capital refresh,
// expiration sweep, order-fill poll, per-strategy evaluation, and OCO/OTO
// fan-out. It never returns an error directly — partial failures are
// collected into the returned CycleReport so one bad strategy or one bad
// play doesn't abort the rest of the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{StartedAt: o.clk.Now()}
	o.md.StartNewCycle()

	if err := o.capital.Refresh(ctx); err != nil {
		report.Errors = append(report.Errors, err.Error())
		report.FinishedAt = o.clk.Now()
		o.recordCycle(report)
		return report
	}

	o.sweepExpirations(ctx, &report)
	o.pollLiveOrders(ctx, &report)
	if err := o.EscalateContingencies(ctx); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	o.updateTrailingStops(ctx, &report)
	o.refreshOpenPlaysGauge(ctx)

	for _, r := range o.runners {
		if err := r.OnCycleStart(ctx); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s.OnCycleStart: %v", r.GetName(), err))
		}
	}

	if o.cfg.Mode == config.ModeParallel {
		o.runParallel(ctx, &report)
	} else {
		o.runSequential(ctx, &report)
	}

	for _, r := range o.runners {
		if err := r.OnCycleEnd(ctx); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s.OnCycleEnd: %v", r.GetName(), err))
		}
	}

	report.FinishedAt = o.clk.Now()
	o.observeMetrics(report)
	o.recordCycle(report)
	return report
}

func (o *Orchestrator) recordCycle(report CycleReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastCycle = report
}

// observeMetrics feeds one cycle's report into the Prometheus collectors, a
// no-op when metrics weren't wired (nil-safe so tests and dry runs don't
// need a registry).
func (o *Orchestrator) observeMetrics(report CycleReport) {
	if o.metrics == nil {
		return
	}
	mode := "sequential"
	if o.cfg.Mode == config.ModeParallel {
		mode = "parallel"
	}
	o.metrics.CycleDuration.WithLabelValues(mode).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	o.metrics.CycleEntries.Add(float64(report.EntriesOpened))
	o.metrics.CycleExits.Add(float64(report.ExitsSubmitted))
	if report.GatesRejected > 0 {
		o.metrics.GatesRejected.WithLabelValues("capital").Add(float64(report.GatesRejected))
	}
}

// sweepExpirations moves NEW plays past their GTD into EXPIRED and OPEN
// plays past expiration into PENDING_CLOSING with a market exit submitted
// immediately (P1).
func (o *Orchestrator) sweepExpirations(ctx context.Context, report *CycleReport) {
	newPlays, err := o.store.List(ctx, domain.StatusNew)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("listing NEW plays: %v", err))
		return
	}
	for _, p := range newPlays {
		expired, err := o.engine.ExpireIfPastGTD(ctx, p)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("expiring %s: %v", p.PlayID, err))
			continue
		}
		if expired {
			o.archiveIfEnabled(p)
		}
	}

	openPlays, err := o.store.List(ctx, domain.StatusOpen)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("listing OPEN plays: %v", err))
		return
	}
	for _, p := range openPlays {
		closed, err := o.engine.ForceCloseAtExpiration(ctx, p)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("force-closing %s: %v", p.PlayID, err))
			continue
		}
		if !closed {
			continue
		}
		exitAction, err := p.ExitAction()
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("exit action for %s: %v", p.PlayID, err))
			continue
		}
		result, err := o.exec.SubmitExit(ctx, p, exitAction, domain.OrderTypeMarket)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("submitting expiration exit for %s: %v", p.PlayID, err))
			continue
		}
		// ForceCloseAtExpiration has already moved p to PENDING_CLOSING, so the
		// closing order is recorded in place rather than via engine.SubmitExit,
		// which only accepts OPEN plays.
		p.Status.ClosingOrderID = result.BrokerOrderID
		p.Status.ClosingOrderState = result.State
		if err := o.store.Save(ctx, p); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("recording expiration exit for %s: %v", p.PlayID, err))
			continue
		}
		report.ExitsSubmitted++
	}
}

// pollLiveOrders checks every PENDING_OPENING/PENDING_CLOSING play's order
// against the broker and advances its lifecycle on terminal states, then
// runs the OCO/OTO fan-out for plays that just reached OPEN or CLOSED.
func (o *Orchestrator) pollLiveOrders(ctx context.Context, report *CycleReport) {
	for _, status := range []domain.Status{domain.StatusPendingOpening, domain.StatusPendingClosing} {
		plays, err := o.store.List(ctx, status)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("listing %s plays: %v", status, err))
			continue
		}
		for _, p := range plays {
			orderID := p.Status.OrderID
			if status == domain.StatusPendingClosing {
				orderID = p.Status.ClosingOrderID
			}
			if orderID == "" {
				continue
			}
			bo, err := o.brk.GetOrder(ctx, orderID)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("polling order for %s: %v", p.PlayID, err))
				continue
			}
			switch bo.State {
			case domain.OrderFilled:
				if err := o.engine.AdvanceOnFill(ctx, p, bo.FilledPrice, domain.Greeks{}); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("advancing fill for %s: %v", p.PlayID, err))
					continue
				}
				if p.Status.Lifecycle == domain.StatusClosed {
					o.archiveIfEnabled(p)
				}
				if err := o.engine.HandleOCO(ctx, p); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("OCO fan-out for %s: %v", p.PlayID, err))
				}
				if err := o.engine.HandleOTO(ctx, p); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("OTO fan-out for %s: %v", p.PlayID, err))
				}
			case domain.OrderRejected, domain.OrderCanceled, domain.OrderExpired:
				if status == domain.StatusPendingOpening {
					if err := o.engine.AdvanceOnReject(ctx, p); err != nil {
						report.Errors = append(report.Errors, fmt.Sprintf("advancing reject for %s: %v", p.PlayID, err))
					}
				}
			}
		}
	}
}

// updateTrailingStops evaluates the trailing engine against every OPEN
// play's latest option quote, using that playbook's trailing defaults, and
// persists whichever plays actually changed state.
func (o *Orchestrator) updateTrailingStops(ctx context.Context, report *CycleReport) {
	if o.trail == nil {
		return
	}
	openPlays, err := o.store.List(ctx, domain.StatusOpen)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("listing OPEN plays for trailing: %v", err))
		return
	}
	isEOD := o.cal.IsEndOfDay(o.clk.Now(), 15)
	for _, p := range openPlays {
		pb, ok := o.pbooks.Get(p.PlaybookName)
		if !ok || !pb.Trailing.Enabled {
			continue
		}
		quote, err := o.md.OptionQuote(ctx, p.OptionContractSymbol)
		if err != nil {
			continue
		}
		before := p.TakeProfit.Trailing
		o.trail.Evaluate(ctx, p, quote.Mid, pb.Trailing, isEOD)
		if trailingChanged(before, p.TakeProfit.Trailing) {
			if err := o.store.Save(ctx, p); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("saving trailing state for %s: %v", p.PlayID, err))
			}
		}
	}
}

// refreshOpenPlaysGauge recomputes the per-playbook OPEN play count so the
// gauge reflects reality even across restarts, rather than tracking deltas.
func (o *Orchestrator) refreshOpenPlaysGauge(ctx context.Context) {
	if o.metrics == nil {
		return
	}
	openPlays, err := o.store.List(ctx, domain.StatusOpen)
	if err != nil {
		return
	}
	counts := map[string]int{}
	for _, p := range openPlays {
		counts[p.PlaybookName]++
	}
	o.metrics.OpenPlays.Reset()
	for playbook, n := range counts {
		o.metrics.OpenPlays.WithLabelValues(playbook).Set(float64(n))
	}
}

func trailingChanged(a, b domain.TrailingState) bool {
	return a.Activated != b.Activated ||
		!a.HighWaterMark.Equal(b.HighWaterMark) ||
		!a.LastRatchetAt.Equal(b.LastRatchetAt) ||
		!a.TP1Level.Equal(b.TP1Level) ||
		!a.TP2Level.Equal(b.TP2Level) ||
		len(a.History) != len(b.History)
}

func (o *Orchestrator) runSequential(ctx context.Context, report *CycleReport) {
	newPlays, _ := o.store.List(ctx, domain.StatusNew)
	openPlays, _ := o.store.List(ctx, domain.StatusOpen)
	for _, r := range o.runners {
		o.runStrategy(ctx, r, newPlays, openPlays, report)
	}
}

// runParallel fans strategies out across a bounded worker pool (semaphore +
// sync.WaitGroup), matching the evaluation-workers shape elsewhere in the
// pack. A mutex serializes report mutation since strategies run
// concurrently.
func (o *Orchestrator) runParallel(ctx context.Context, report *CycleReport) {
	newPlays, _ := o.store.List(ctx, domain.StatusNew)
	openPlays, _ := o.store.List(ctx, domain.StatusOpen)

	workers := o.cfg.MaxParallelWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, r := range o.runners {
		r := r
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			local := CycleReport{}
			o.runStrategy(ctx, r, newPlays, openPlays, &local)
			mu.Lock()
			report.EntriesOpened += local.EntriesOpened
			report.ExitsSubmitted += local.ExitsSubmitted
			report.GatesRejected += local.GatesRejected
			report.Errors = append(report.Errors, local.Errors...)
			mu.Unlock()
		}()
	}
	wg.Wait()
}

// runStrategy evaluates one strategy's candidate new plays and open plays,
// recovering from a panic in either call so the cycle continues for the
// remaining strategies.
func (o *Orchestrator) runStrategy(ctx context.Context, r strategy.Runner, newPlays, openPlays []*domain.Play, report *CycleReport) {
	defer func() {
		if rec := recover(); rec != nil {
			report.Errors = append(report.Errors, (&StrategyPanic{Strategy: r.GetName(), Value: rec}).Error())
		}
	}()

	ready, err := r.EvaluateNewPlays(ctx, newPlays)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s.EvaluateNewPlays: %v", r.GetName(), err))
	}
	for _, p := range ready {
		o.openPlay(ctx, p, report)
	}

	decisions, err := r.EvaluateOpenPlays(ctx, openPlays)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s.EvaluateOpenPlays: %v", r.GetName(), err))
	}
	for _, d := range decisions {
		o.closePlay(ctx, r, d, report)
	}
}

// openPlay validates OCC, checks the capital gate, submits the entry order,
// and advances the play to PENDING_OPENING.
func (o *Orchestrator) openPlay(ctx context.Context, p *domain.Play, report *CycleReport) {
	if err := o.engine.ValidatePlay(ctx, p); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("validating %s: %v", p.PlayID, err))
		return
	}

	quote, err := o.md.OptionQuote(ctx, p.OptionContractSymbol)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("quoting %s: %v", p.PlayID, err))
		return
	}

	risk := domain.RiskConfig{}
	if pb, ok := o.pbooks.Get(p.PlaybookName); ok {
		risk = pb.RiskConfig
	}
	allowed, reason := o.capital.CheckTrade(p, risk, quote.Mid)
	if !allowed {
		o.log.Info().Str("play_id", p.PlayID).Str("reason", reason).Msg("capital gate rejected play")
		report.GatesRejected++
		return
	}

	if o.cfg.DryRun {
		o.log.Info().Str("play_id", p.PlayID).Msg("dry run: skipping order submission")
		return
	}

	result, err := o.exec.SubmitEntry(ctx, p)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("submitting entry for %s: %v", p.PlayID, err))
		return
	}
	if err := o.engine.SubmitEntry(ctx, p, result.BrokerOrderID, result.State); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("recording entry for %s: %v", p.PlayID, err))
		return
	}
	report.EntriesOpened++
}

// closePlay submits the closing order per the strategy's decision and
// advances the play to PENDING_CLOSING. CONTINGENCY stop losses submit a
// limit order first; escalation to a backup market order happens on a
// subsequent cycle's EscalateContingencies call, driven by
// ShouldEscalateContingency.
func (o *Orchestrator) closePlay(ctx context.Context, r strategy.Runner, d strategy.OpenPlayDecision, report *CycleReport) {
	p := d.Play
	exitAction, err := r.GetExitActionForPlay(p)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("exit action for %s: %v", p.PlayID, err))
		return
	}

	orderType := domain.OrderTypeLimitAtMid
	if d.Conditions.SLMode == domain.SLContingency && d.Conditions.IsPrimaryLoss {
		orderType = domain.OrderTypeLimitAtBid
		if exitAction.IsBuy() {
			orderType = domain.OrderTypeLimitAtAsk
		}
	}

	if o.cfg.DryRun {
		o.log.Info().Str("play_id", p.PlayID).Str("reason", d.Conditions.ExitReason).Msg("dry run: skipping exit submission")
		return
	}

	result, err := o.exec.SubmitExit(ctx, p, exitAction, orderType)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("submitting exit for %s: %v", p.PlayID, err))
		return
	}
	if err := o.engine.SubmitExit(ctx, p, result.BrokerOrderID, result.State); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("recording exit for %s: %v", p.PlayID, err))
		return
	}
	report.ExitsSubmitted++
}

// EscalateContingencies checks every PENDING_CLOSING play with a
// CONTINGENCY stop loss and replaces a stalled primary limit with a backup
// market order.
func (o *Orchestrator) EscalateContingencies(ctx context.Context) error {
	plays, err := o.store.List(ctx, domain.StatusPendingClosing)
	if err != nil {
		return fmt.Errorf("orchestrator: listing PENDING_CLOSING plays: %w", err)
	}
	for _, p := range plays {
		if p.StopLoss.Mode != domain.SLContingency || p.Status.ContingencyOrderID != "" {
			continue
		}
		bo, err := o.brk.GetOrder(ctx, p.Status.ClosingOrderID)
		if err != nil {
			o.log.Warn().Err(err).Str("play_id", p.PlayID).Msg("failed to poll closing order for contingency check")
			continue
		}
		escalate, err := o.exec.ShouldEscalateContingency(ctx, p, bo.UpdatedAt)
		if err != nil {
			o.log.Warn().Err(err).Str("play_id", p.PlayID).Msg("failed to evaluate contingency escalation")
			continue
		}
		if !escalate {
			continue
		}
		exitAction, err := p.ExitAction()
		if err != nil {
			continue
		}
		result, err := o.exec.SubmitContingencyMarket(ctx, p, exitAction)
		if err != nil {
			o.log.Error().Err(err).Str("play_id", p.PlayID).Msg("failed to submit contingency backup order")
			continue
		}
		if err := o.engine.SubmitContingencyBackup(ctx, p, result.BrokerOrderID, result.State); err != nil {
			o.log.Error().Err(err).Str("play_id", p.PlayID).Msg("failed to record contingency backup order")
		}
	}
	return nil
}
