// Package domain holds the typed records that replace the source system's
// dynamic attribute trees: plays, playbooks, orders, account snapshots, and
// the OCC symbol codec. Dict-shaped data is confined to the persistence
// boundary (see internal/store).
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is a play's lifecycle state.
type Status string

const (
	StatusNew            Status = "NEW"
	StatusTemp           Status = "TEMP"
	StatusPendingOpening Status = "PENDING_OPENING"
	StatusOpen           Status = "OPEN"
	StatusPendingClosing Status = "PENDING_CLOSING"
	StatusClosed         Status = "CLOSED"
	StatusExpired        Status = "EXPIRED"
	StatusInvalid        Status = "INVALID"
)

// OrderState mirrors the broker order statuses the lifecycle engine reacts to.
type OrderState string

const (
	OrderNew             OrderState = "NEW"
	OrderPendingNew      OrderState = "PENDING_NEW"
	OrderAccepted        OrderState = "ACCEPTED"
	OrderPartiallyFilled OrderState = "PARTIALLY_FILLED"
	OrderFilled          OrderState = "FILLED"
	OrderCanceled        OrderState = "CANCELED"
	OrderRejected        OrderState = "REJECTED"
	OrderExpired         OrderState = "EXPIRED"
)

func (s OrderState) IsTerminalReject() bool {
	return s == OrderCanceled || s == OrderRejected || s == OrderExpired
}

// TriggerKind distinguishes the ways a TP/SL level can be expressed. This
// replaces the source's coexisting TP_option_prem / premium_pct /
// stock_price_pct dict shapes with one tagged sum type (Open Question #1).
type TriggerKind string

const (
	TriggerAbsolute    TriggerKind = "absolute"     // absolute stock or premium price
	TriggerStockPct    TriggerKind = "stock_pct"    // % move in underlying
	TriggerPremiumPct  TriggerKind = "premium_pct"  // % move in option premium
	TriggerCombination TriggerKind = "combination"  // first-to-trigger of several
)

// TriggerBasis distinguishes whether a trigger's absolute/pct value is
// measured against the option premium or the underlying stock price.
type TriggerBasis string

const (
	BasisPremium TriggerBasis = "premium"
	BasisStock   TriggerBasis = "stock"
)

// TriggerSpec is a single take-profit or stop-loss trigger definition.
type TriggerSpec struct {
	Kind          TriggerKind
	Basis         TriggerBasis
	AbsoluteValue decimal.Decimal
	PctValue      decimal.Decimal // percentage, e.g. 20 means 20%
	Combination   []TriggerSpec   // only populated when Kind == TriggerCombination
}

// SLMode selects how a stop loss is executed once triggered.
type SLMode string

const (
	SLStop        SLMode = "STOP"
	SLLimit       SLMode = "LIMIT"
	SLContingency SLMode = "CONTINGENCY"
)

// OrderTypePolicy selects how the executor prices a submitted order.
type OrderTypePolicy string

const (
	OrderTypeMarket       OrderTypePolicy = "market"
	OrderTypeLimitAtBid   OrderTypePolicy = "limit_at_bid"
	OrderTypeLimitAtAsk   OrderTypePolicy = "limit_at_ask"
	OrderTypeLimitAtMid   OrderTypePolicy = "limit_at_mid"
	OrderTypeLimitAtLast  OrderTypePolicy = "limit_at_last"
)

// EntryPoint describes the desired entry conditions and, once filled, the
// observed fill price.
type EntryPoint struct {
	TargetStockPrice decimal.Decimal
	OrderType        OrderTypePolicy
	FilledPremium    decimal.Decimal // zero until filled
}

// TrailingRatchetEvent is one append-only history entry recorded whenever the
// trailing engine proposes (and accepts or rejects) a new capture level.
type TrailingRatchetEvent struct {
	At        time.Time
	OldLevel  decimal.Decimal
	NewLevel  decimal.Decimal
	Accepted  bool
	Reason    string
}

// TrailingState is the mutable trailing-stop bookkeeping carried on an open
// play (C12).
type TrailingState struct {
	Enabled             bool
	Activated           bool
	HighWaterMark       decimal.Decimal
	TP1Level            decimal.Decimal
	TP2Level            decimal.Decimal
	LastRatchetAt       time.Time
	LastRatchetPremium  decimal.Decimal
	History             []TrailingRatchetEvent
}

// TakeProfit bundles the TP trigger with its trailing configuration.
type TakeProfit struct {
	Trigger  TriggerSpec
	Trailing TrailingState
}

// StopLoss bundles the SL trigger with its execution mode and, for
// CONTINGENCY mode, the backup trigger levels.
type StopLoss struct {
	Trigger        TriggerSpec
	Mode           SLMode
	ContingencyGap decimal.Decimal // extra adverse move required to fire the backup market order
	MaxWait        time.Duration   // how long the primary limit is given before escalating
}

// PlayStatus is the status sub-record: lifecycle state plus order
// correlation fields.
type PlayStatus struct {
	Lifecycle            Status
	OrderID              string
	OrderState           OrderState
	ClosingOrderID       string
	ClosingOrderState    OrderState
	ContingencyOrderID   string
	ContingencyOrderState OrderState
	PositionExists       bool
	ConditionalsHandled  bool
}

// Conditionals records a play's OCO/OTO linkage by filename/play-id.
type Conditionals struct {
	OCOTriggers []string
	OTOTriggers []string
	OTOParent   string
}

// LogEntry captures timestamps/prices/greeks observed at open and close.
type LogEntry struct {
	OpenedAt      time.Time
	ClosedAt      time.Time
	PremiumAtOpen decimal.Decimal
	PremiumAtClose decimal.Decimal
	StockPriceAtOpen decimal.Decimal
	StockPriceAtClose decimal.Decimal
	GreeksAtOpen  Greeks
}

// Greeks is a snapshot of an option's risk sensitivities.
type Greeks struct {
	Delta, Gamma, Theta, Vega, Rho decimal.Decimal
}

// Play is the system's primary unit of work (§3).
type Play struct {
	PlayID               string
	Symbol               string
	TradeType            OptionType
	OptionContractSymbol string
	StrikePrice          decimal.Decimal
	ExpirationDate       time.Time
	Contracts            int
	Action               Action
	StrategyName         string
	PlaybookName         string

	EntryPoint EntryPoint
	TakeProfit TakeProfit
	StopLoss   StopLoss
	Status     PlayStatus

	Conditionals Conditionals
	Logging      LogEntry

	PlayExpirationDate time.Time
	CreationDate       time.Time
	Creator            string
}

// ExitAction returns the closing action paired with this play's opening
// action.
func (p *Play) ExitAction() (Action, error) {
	return ExitActionFor(p.Action)
}

// EstimatedCost implements §4.4's estimated_cost(play): for BTO, entry
// premium times contracts times 100; for STO, strike times contracts times
// 100 as a cash-secured-collateral proxy. quotedPremium is used whenever the
// play has not yet filled (FilledPremium is zero); once filled the recorded
// fill price is authoritative. Missing fields yield zero, deliberately
// deferring to the broker for the final rejection.
func (p *Play) EstimatedCost(quotedPremium decimal.Decimal) decimal.Decimal {
	hundred := decimal.New(100, 0)
	contracts := decimal.New(int64(p.Contracts), 0)
	switch p.Action {
	case BTO:
		premium := p.EntryPoint.FilledPremium
		if premium.IsZero() {
			premium = quotedPremium
		}
		return premium.Mul(contracts).Mul(hundred)
	case STO:
		return p.StrikePrice.Mul(contracts).Mul(hundred)
	default:
		return decimal.Zero
	}
}
