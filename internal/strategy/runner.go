// Package strategy defines the pluggable StrategyRunner contract (C9) and a
// registry strategies register themselves into (C8).
package strategy

import (
	"context"

	"github.com/aristath/goldcore/internal/domain"
)

// CloseConditions is what evaluate_open_plays reports back for a play it
// wants closed.
type CloseConditions struct {
	ShouldClose        bool
	IsProfit           bool
	IsPrimaryLoss      bool
	IsContingencyLoss  bool
	IsTimeExit         bool
	ExitReason         string
	SLMode             domain.SLMode
}

// Runner is the strategy contract every pluggable strategy implements
// (C9). Modeled directly on the teacher's OpportunityCalculator interface
// (internal/modules/opportunities/calculators/base.go): Name/Category/Calculate
// become GetName/GetPriority/EvaluateNewPlays etc., replacing inheritance
// from a BaseStrategy with an interface plus config-struct fields for
// per-strategy defaults.
type Runner interface {
	GetName() string
	GetPriority() int
	IsEnabled() bool
	GetDefaultEntryAction() domain.Action
	GetExitActionForPlay(p *domain.Play) (domain.Action, error)

	OnCycleStart(ctx context.Context) error
	OnCycleEnd(ctx context.Context) error

	EvaluateNewPlays(ctx context.Context, plays []*domain.Play) ([]*domain.Play, error)
	EvaluateOpenPlays(ctx context.Context, plays []*domain.Play) ([]OpenPlayDecision, error)
	ValidatePlay(p *domain.Play) bool
}

// OpenPlayDecision pairs a play the strategy wants to act on with its close
// conditions.
type OpenPlayDecision struct {
	Play       *domain.Play
	Conditions CloseConditions
}

// Constructor builds a Runner from shared core services. Strategy packages
// register a Constructor via Register in their init().
type Constructor func(deps Deps) Runner

// Deps bundles the shared resources a strategy constructor needs. Kept as a
// single struct (rather than a long parameter list) so adding a dependency
// later doesn't change every strategy's constructor signature.
type Deps struct {
	MarketData MarketDataReader
	Broker     PositionReader
	Playbooks  PlaybookLookup
}

// MarketDataReader is the narrow slice of the market-data manager strategies
// need.
type MarketDataReader interface {
	StockPrice(ctx context.Context, symbol string) (float64, error)
	OptionQuote(ctx context.Context, contractSymbol string) (domain.Quote, error)
}

// PositionReader lets a strategy confirm a play's entry has backing
// inventory.
type PositionReader interface {
	GetOpenPosition(ctx context.Context, symbol string) (domain.Position, bool, error)
}

// PlaybookLookup resolves a play's named playbook.
type PlaybookLookup interface {
	Get(name string) (domain.Playbook, bool)
}
