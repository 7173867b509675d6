// Package capital implements the pre-trade gate (C7): a per-cycle account
// snapshot plus nine ordered checks, first-failure-wins, directly modeled on
// the teacher's TradeSafetyService.ValidateTrade layered-check design
// (internal/modules/trading/safety_service.go).
package capital

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/broker"
	"github.com/aristath/goldcore/internal/config"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/store"
)

// Manager snapshots account state once per cycle and gates new trades
// against it.
type Manager struct {
	log    zerolog.Logger
	broker broker.AccountReader
	store  store.Store
	cfg    config.CapitalConfig

	snapshot domain.AccountSnapshot
	// counted once per cycle in refresh(), reused by every check_trade call
	totalOpenOrPending int
	bySymbol           map[string]int
	byPlaybook         map[string]int
	deployedCapital    decimal.Decimal
}

func NewManager(log zerolog.Logger, b broker.AccountReader, st store.Store, cfg config.CapitalConfig) *Manager {
	return &Manager{
		log:    log.With().Str("component", "capital.manager").Logger(),
		broker: b,
		store:  st,
		cfg:    cfg,
	}
}

// Refresh reloads the account snapshot and recomputes the per-cycle open/
// pending counts and deployed-capital total. Call once at the start of every
// cycle, before any check_trade calls.
func (m *Manager) Refresh(ctx context.Context) error {
	snap, err := m.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("capital: refreshing account snapshot: %w", err)
	}
	m.snapshot = snap

	m.bySymbol = make(map[string]int)
	m.byPlaybook = make(map[string]int)
	m.totalOpenOrPending = 0
	m.deployedCapital = decimal.Zero

	for _, status := range []domain.Status{domain.StatusOpen, domain.StatusPendingOpening} {
		plays, err := m.store.List(ctx, status)
		if err != nil {
			return fmt.Errorf("capital: listing %s plays: %w", status, err)
		}
		for _, p := range plays {
			m.totalOpenOrPending++
			m.bySymbol[p.Symbol]++
			m.byPlaybook[p.PlaybookName]++
			m.deployedCapital = m.deployedCapital.Add(p.EstimatedCost(p.EntryPoint.FilledPremium))
		}
	}
	return nil
}

// CheckTrade runs the nine ordered gates against play and returns
// (allowed, reason). The first failing gate wins; no further gates run
// (I4: no order is submitted for a play that fails here).
func (m *Manager) CheckTrade(play *domain.Play, risk domain.RiskConfig, quotedPremium decimal.Decimal) (bool, string) {
	if !m.cfg.Enabled {
		return true, ""
	}

	// Gate 2: global max open positions.
	if m.totalOpenOrPending >= m.cfg.MaxTotalOpenPositions {
		return false, fmt.Sprintf("max_total_open_positions=%d reached (currently %d)", m.cfg.MaxTotalOpenPositions, m.totalOpenOrPending)
	}

	// Gate 3: per-symbol limit (playbook override else global default).
	perSymbolLimit := m.cfg.PerSymbolMaxOpenPositions
	if risk.MaxOpenPlaysPerSymbol > 0 {
		perSymbolLimit = risk.MaxOpenPlaysPerSymbol
	}
	if perSymbolLimit > 0 && m.bySymbol[play.Symbol] >= perSymbolLimit {
		return false, fmt.Sprintf("per_symbol_max_open_positions=%d reached for %s (currently %d)", perSymbolLimit, play.Symbol, m.bySymbol[play.Symbol])
	}

	// Gate 4: per-playbook max_open_plays.
	if risk.MaxOpenPlays > 0 && m.byPlaybook[play.PlaybookName] >= risk.MaxOpenPlays {
		return false, fmt.Sprintf("playbook %s max_open_plays=%d reached (currently %d)", play.PlaybookName, risk.MaxOpenPlays, m.byPlaybook[play.PlaybookName])
	}

	// Gate 5: per-trade max contracts.
	if risk.MaxContractsPerTrade > 0 && play.Contracts > risk.MaxContractsPerTrade {
		return false, fmt.Sprintf("contracts=%d exceeds max_contracts_per_trade=%d", play.Contracts, risk.MaxContractsPerTrade)
	}

	estimatedCost := play.EstimatedCost(quotedPremium)

	// Gate 6: per-trade fixed dollar limit.
	if risk.MaxCapitalPerTradeFixed.GreaterThan(decimal.Zero) && estimatedCost.GreaterThan(risk.MaxCapitalPerTradeFixed) {
		return false, fmt.Sprintf("estimated_cost=$%s exceeds max_capital_per_trade_fixed=$%s", estimatedCost.StringFixed(2), risk.MaxCapitalPerTradeFixed.StringFixed(2))
	}

	// Gate 7: per-trade % equity limit.
	if risk.MaxCapitalPerTradePctEq.GreaterThan(decimal.Zero) && m.snapshot.Equity.GreaterThan(decimal.Zero) {
		pct := estimatedCost.Div(m.snapshot.Equity).Mul(decimal.New(100, 0))
		if pct.GreaterThan(risk.MaxCapitalPerTradePctEq) {
			return false, fmt.Sprintf("estimated_cost is %s%% of equity, exceeds max_capital_per_trade_pct_equity=%s%%", pct.StringFixed(2), risk.MaxCapitalPerTradePctEq.StringFixed(2))
		}
	}

	// Gate 8: global deployed-capital percentage.
	if m.cfg.MaxCapitalDeployedPct > 0 && m.snapshot.Equity.GreaterThan(decimal.Zero) {
		projected := m.deployedCapital.Add(estimatedCost)
		pct := projected.Div(m.snapshot.Equity).Mul(decimal.New(100, 0))
		maxPct := decimal.NewFromFloat(m.cfg.MaxCapitalDeployedPct)
		if pct.GreaterThanOrEqual(maxPct) {
			return false, fmt.Sprintf("projected deployed capital would be %s%% of equity, at or above max_capital_deployed_pct=%s%%", pct.StringFixed(2), maxPct.StringFixed(2))
		}
	}

	// Gate 9: buying-power headroom.
	bp := m.snapshot.EffectiveBuyingPower()
	reserve := decimal.NewFromFloat(1.0 - m.cfg.BuyingPowerReservePct/100.0)
	headroom := bp.Mul(reserve)
	if estimatedCost.GreaterThan(headroom) {
		return false, fmt.Sprintf("estimated_cost=$%s exceeds available buying power headroom=$%s (reserve=%.1f%%)", estimatedCost.StringFixed(2), headroom.StringFixed(2), m.cfg.BuyingPowerReservePct)
	}

	return true, ""
}

// Snapshot exposes the last-refreshed account snapshot, for metrics and the
// operator HTTP surface.
func (m *Manager) Snapshot() domain.AccountSnapshot {
	return m.snapshot
}
