package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/goldcore/internal/domain"
)

// wirePlay is the on-disk JSON shape for a play. Keeping this separate from
// domain.Play confines dict/JSON-shaped concerns to the persistence
// boundary, per the Design Notes' "replace dynamic attribute trees with
// typed records; dict-shaped I/O confined to load/save."
type wirePlay struct {
	PlayID               string `json:"play_id"`
	Symbol               string `json:"symbol"`
	TradeType            string `json:"trade_type"`
	OptionContractSymbol string `json:"option_contract_symbol"`
	StrikePrice          string `json:"strike_price"`
	ExpirationDate       string `json:"expiration_date"`
	Contracts            int    `json:"contracts"`
	Action               string `json:"action"`
	StrategyName         string `json:"strategy_name"`
	PlaybookName         string `json:"playbook_name"`

	EntryPoint wireEntryPoint `json:"entry_point"`
	TakeProfit wireTakeProfit `json:"take_profit"`
	StopLoss   wireStopLoss   `json:"stop_loss"`
	Status     wireStatus     `json:"status"`

	Conditionals wireConditionals `json:"conditional_plays"`
	Logging      wireLogEntry     `json:"logging"`

	PlayExpirationDate string `json:"play_expiration_date"`
	CreationDate       string `json:"creation_date"`
	Creator            string `json:"creator"`
}

type wireEntryPoint struct {
	TargetStockPrice string `json:"target_stock_price"`
	OrderType        string `json:"order_type"`
	FilledPremium    string `json:"filled_premium"`
}

type wireTrigger struct {
	Kind          string        `json:"kind"`
	Basis         string        `json:"basis,omitempty"`
	AbsoluteValue string        `json:"absolute_value,omitempty"`
	PctValue      string        `json:"pct_value,omitempty"`
	Combination   []wireTrigger `json:"combination,omitempty"`
}

type wireTrailingEvent struct {
	At       string `json:"at"`
	OldLevel string `json:"old_level"`
	NewLevel string `json:"new_level"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

type wireTrailingState struct {
	Enabled            bool                `json:"enabled"`
	Activated          bool                `json:"activated"`
	HighWaterMark      string              `json:"high_water_mark"`
	TP1Level           string              `json:"tp1_level"`
	TP2Level           string              `json:"tp2_level"`
	LastRatchetAt      string              `json:"last_ratchet_at"`
	LastRatchetPremium string              `json:"last_ratchet_premium"`
	History            []wireTrailingEvent `json:"history"`
}

type wireTakeProfit struct {
	Trigger  wireTrigger       `json:"trigger"`
	Trailing wireTrailingState `json:"trailing"`
}

type wireStopLoss struct {
	Trigger        wireTrigger `json:"trigger"`
	Mode           string      `json:"mode"`
	ContingencyGap string      `json:"contingency_gap"`
	MaxWaitSeconds int64       `json:"max_wait_seconds"`
}

type wireStatus struct {
	Lifecycle             string `json:"lifecycle"`
	OrderID               string `json:"order_id"`
	OrderState            string `json:"order_state"`
	ClosingOrderID        string `json:"closing_order_id"`
	ClosingOrderState     string `json:"closing_order_state"`
	ContingencyOrderID    string `json:"contingency_order_id"`
	ContingencyOrderState string `json:"contingency_order_state"`
	PositionExists        bool   `json:"position_exists"`
	ConditionalsHandled   bool   `json:"conditionals_handled"`
}

type wireConditionals struct {
	OCOTriggers []string `json:"oco_triggers"`
	OTOTriggers []string `json:"oto_triggers"`
	OTOParent   string   `json:"oto_parent"`
}

type wireGreeks struct {
	Delta, Gamma, Theta, Vega, Rho string
}

type wireLogEntry struct {
	OpenedAt          string     `json:"opened_at"`
	ClosedAt          string     `json:"closed_at"`
	PremiumAtOpen     string     `json:"premium_at_open"`
	PremiumAtClose    string     `json:"premium_at_close"`
	StockPriceAtOpen  string     `json:"stock_price_at_open"`
	StockPriceAtClose string     `json:"stock_price_at_close"`
	GreeksAtOpen      wireGreeks `json:"greeks_at_open"`
}

const dateLayout = "2006-01-02"

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decStr(d decimal.Decimal) string {
	return d.String()
}

func triggerToWire(t domain.TriggerSpec) wireTrigger {
	w := wireTrigger{Kind: string(t.Kind), Basis: string(t.Basis), AbsoluteValue: decStr(t.AbsoluteValue), PctValue: decStr(t.PctValue)}
	for _, c := range t.Combination {
		w.Combination = append(w.Combination, triggerToWire(c))
	}
	return w
}

func triggerFromWire(w wireTrigger) domain.TriggerSpec {
	t := domain.TriggerSpec{Kind: domain.TriggerKind(w.Kind), Basis: domain.TriggerBasis(w.Basis), AbsoluteValue: dec(w.AbsoluteValue), PctValue: dec(w.PctValue)}
	for _, c := range w.Combination {
		t.Combination = append(t.Combination, triggerFromWire(c))
	}
	return t
}

func toWire(p *domain.Play) wirePlay {
	w := wirePlay{
		PlayID:               p.PlayID,
		Symbol:               p.Symbol,
		TradeType:            string(p.TradeType),
		OptionContractSymbol: p.OptionContractSymbol,
		StrikePrice:          decStr(p.StrikePrice),
		ExpirationDate:       fmtDate(p.ExpirationDate),
		Contracts:            p.Contracts,
		Action:               string(p.Action),
		StrategyName:         p.StrategyName,
		PlaybookName:         p.PlaybookName,
		EntryPoint: wireEntryPoint{
			TargetStockPrice: decStr(p.EntryPoint.TargetStockPrice),
			OrderType:        string(p.EntryPoint.OrderType),
			FilledPremium:    decStr(p.EntryPoint.FilledPremium),
		},
		TakeProfit: wireTakeProfit{
			Trigger: triggerToWire(p.TakeProfit.Trigger),
			Trailing: wireTrailingState{
				Enabled:            p.TakeProfit.Trailing.Enabled,
				Activated:          p.TakeProfit.Trailing.Activated,
				HighWaterMark:      decStr(p.TakeProfit.Trailing.HighWaterMark),
				TP1Level:           decStr(p.TakeProfit.Trailing.TP1Level),
				TP2Level:           decStr(p.TakeProfit.Trailing.TP2Level),
				LastRatchetAt:      fmtTime(p.TakeProfit.Trailing.LastRatchetAt),
				LastRatchetPremium: decStr(p.TakeProfit.Trailing.LastRatchetPremium),
			},
		},
		StopLoss: wireStopLoss{
			Trigger:        triggerToWire(p.StopLoss.Trigger),
			Mode:           string(p.StopLoss.Mode),
			ContingencyGap: decStr(p.StopLoss.ContingencyGap),
			MaxWaitSeconds: int64(p.StopLoss.MaxWait.Seconds()),
		},
		Status: wireStatus{
			Lifecycle:             string(p.Status.Lifecycle),
			OrderID:               p.Status.OrderID,
			OrderState:            string(p.Status.OrderState),
			ClosingOrderID:        p.Status.ClosingOrderID,
			ClosingOrderState:     string(p.Status.ClosingOrderState),
			ContingencyOrderID:    p.Status.ContingencyOrderID,
			ContingencyOrderState: string(p.Status.ContingencyOrderState),
			PositionExists:        p.Status.PositionExists,
			ConditionalsHandled:   p.Status.ConditionalsHandled,
		},
		Conditionals: wireConditionals{
			OCOTriggers: p.Conditionals.OCOTriggers,
			OTOTriggers: p.Conditionals.OTOTriggers,
			OTOParent:   p.Conditionals.OTOParent,
		},
		Logging: wireLogEntry{
			OpenedAt:          fmtTime(p.Logging.OpenedAt),
			ClosedAt:          fmtTime(p.Logging.ClosedAt),
			PremiumAtOpen:     decStr(p.Logging.PremiumAtOpen),
			PremiumAtClose:    decStr(p.Logging.PremiumAtClose),
			StockPriceAtOpen:  decStr(p.Logging.StockPriceAtOpen),
			StockPriceAtClose: decStr(p.Logging.StockPriceAtClose),
			GreeksAtOpen: wireGreeks{
				Delta: decStr(p.Logging.GreeksAtOpen.Delta),
				Gamma: decStr(p.Logging.GreeksAtOpen.Gamma),
				Theta: decStr(p.Logging.GreeksAtOpen.Theta),
				Vega:  decStr(p.Logging.GreeksAtOpen.Vega),
				Rho:   decStr(p.Logging.GreeksAtOpen.Rho),
			},
		},
		PlayExpirationDate: fmtDate(p.PlayExpirationDate),
		CreationDate:       fmtTime(p.CreationDate),
		Creator:            p.Creator,
	}
	for _, e := range p.TakeProfit.Trailing.History {
		w.TakeProfit.Trailing.History = append(w.TakeProfit.Trailing.History, wireTrailingEvent{
			At:       fmtTime(e.At),
			OldLevel: decStr(e.OldLevel),
			NewLevel: decStr(e.NewLevel),
			Accepted: e.Accepted,
			Reason:   e.Reason,
		})
	}
	return w
}

func fromWire(w wirePlay) *domain.Play {
	p := &domain.Play{
		PlayID:               w.PlayID,
		Symbol:               w.Symbol,
		TradeType:            domain.OptionType(w.TradeType),
		OptionContractSymbol: w.OptionContractSymbol,
		StrikePrice:          dec(w.StrikePrice),
		ExpirationDate:       parseDate(w.ExpirationDate),
		Contracts:            w.Contracts,
		Action:               domain.Action(w.Action),
		StrategyName:         w.StrategyName,
		PlaybookName:         w.PlaybookName,
		EntryPoint: domain.EntryPoint{
			TargetStockPrice: dec(w.EntryPoint.TargetStockPrice),
			OrderType:        domain.OrderTypePolicy(w.EntryPoint.OrderType),
			FilledPremium:    dec(w.EntryPoint.FilledPremium),
		},
		TakeProfit: domain.TakeProfit{
			Trigger: triggerFromWire(w.TakeProfit.Trigger),
			Trailing: domain.TrailingState{
				Enabled:            w.TakeProfit.Trailing.Enabled,
				Activated:          w.TakeProfit.Trailing.Activated,
				HighWaterMark:      dec(w.TakeProfit.Trailing.HighWaterMark),
				TP1Level:           dec(w.TakeProfit.Trailing.TP1Level),
				TP2Level:           dec(w.TakeProfit.Trailing.TP2Level),
				LastRatchetAt:      parseTime(w.TakeProfit.Trailing.LastRatchetAt),
				LastRatchetPremium: dec(w.TakeProfit.Trailing.LastRatchetPremium),
			},
		},
		StopLoss: domain.StopLoss{
			Trigger:        triggerFromWire(w.StopLoss.Trigger),
			Mode:           domain.SLMode(w.StopLoss.Mode),
			ContingencyGap: dec(w.StopLoss.ContingencyGap),
			MaxWait:        time.Duration(w.StopLoss.MaxWaitSeconds) * time.Second,
		},
		Status: domain.PlayStatus{
			Lifecycle:             domain.Status(w.Status.Lifecycle),
			OrderID:               w.Status.OrderID,
			OrderState:            domain.OrderState(w.Status.OrderState),
			ClosingOrderID:        w.Status.ClosingOrderID,
			ClosingOrderState:     domain.OrderState(w.Status.ClosingOrderState),
			ContingencyOrderID:    w.Status.ContingencyOrderID,
			ContingencyOrderState: domain.OrderState(w.Status.ContingencyOrderState),
			PositionExists:        w.Status.PositionExists,
			ConditionalsHandled:   w.Status.ConditionalsHandled,
		},
		Conditionals: domain.Conditionals{
			OCOTriggers: w.Conditionals.OCOTriggers,
			OTOTriggers: w.Conditionals.OTOTriggers,
			OTOParent:   w.Conditionals.OTOParent,
		},
		Logging: domain.LogEntry{
			OpenedAt:          parseTime(w.Logging.OpenedAt),
			ClosedAt:          parseTime(w.Logging.ClosedAt),
			PremiumAtOpen:     dec(w.Logging.PremiumAtOpen),
			PremiumAtClose:    dec(w.Logging.PremiumAtClose),
			StockPriceAtOpen:  dec(w.Logging.StockPriceAtOpen),
			StockPriceAtClose: dec(w.Logging.StockPriceAtClose),
			GreeksAtOpen: domain.Greeks{
				Delta: dec(w.Logging.GreeksAtOpen.Delta),
				Gamma: dec(w.Logging.GreeksAtOpen.Gamma),
				Theta: dec(w.Logging.GreeksAtOpen.Theta),
				Vega:  dec(w.Logging.GreeksAtOpen.Vega),
				Rho:   dec(w.Logging.GreeksAtOpen.Rho),
			},
		},
		PlayExpirationDate: parseDate(w.PlayExpirationDate),
		CreationDate:       parseTime(w.CreationDate),
		Creator:            w.Creator,
	}
	for _, e := range w.TakeProfit.Trailing.History {
		p.TakeProfit.Trailing.History = append(p.TakeProfit.Trailing.History, domain.TrailingRatchetEvent{
			At:       parseTime(e.At),
			OldLevel: dec(e.OldLevel),
			NewLevel: dec(e.NewLevel),
			Accepted: e.Accepted,
			Reason:   e.Reason,
		})
	}
	return p
}

// MarshalPlay renders play as indented JSON, the on-disk play-file format.
func MarshalPlay(p *domain.Play) ([]byte, error) {
	b, err := json.MarshalIndent(toWire(p), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("store: marshaling play %s: %w", p.PlayID, err)
	}
	return b, nil
}

// UnmarshalPlay parses a play file's JSON bytes.
func UnmarshalPlay(b []byte) (*domain.Play, error) {
	var w wirePlay
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("store: unmarshaling play: %w", err)
	}
	return fromWire(w), nil
}
