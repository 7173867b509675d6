package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot is the capital manager's once-per-cycle read of account
// state (§3, Account Snapshot entity).
type AccountSnapshot struct {
	BuyingPower          decimal.Decimal
	OptionsBuyingPower   decimal.Decimal // preferred over BuyingPower when > 0
	Equity               decimal.Decimal
	PortfolioValue       decimal.Decimal
	LoadedOK             bool
	SnapshotInstant      time.Time
}

// EffectiveBuyingPower prefers options buying power when the broker reports
// one, per §4.4's "prefer options_buying_power" note.
func (a AccountSnapshot) EffectiveBuyingPower() decimal.Decimal {
	if a.OptionsBuyingPower.GreaterThan(decimal.Zero) {
		return a.OptionsBuyingPower
	}
	return a.BuyingPower
}

// Position is a broker-reported open position, used by strategies to confirm
// a play's entry actually has backing inventory before attempting to close.
type Position struct {
	Symbol   string
	Quantity int
	AvgPrice decimal.Decimal
}

// Quote is the canonical standardized option-quote row every provider must
// emit (§4.1's column-standardization contract).
type Quote struct {
	Symbol          string
	Strike          decimal.Decimal
	Type            OptionType
	Expiration      time.Time
	Bid, Ask, Last  decimal.Decimal
	Mid             decimal.Decimal
	Volume          int64
	OpenInterest    int64
	ImpliedVol      decimal.Decimal
	Greeks          Greeks
}

// ComputeMid fills Mid = (Bid+Ask)/2 only when both are positive, else 0, as
// required by §4.2.
func (q *Quote) ComputeMid() {
	if q.Bid.GreaterThan(decimal.Zero) && q.Ask.GreaterThan(decimal.Zero) {
		q.Mid = q.Bid.Add(q.Ask).Div(decimal.New(2, 0))
		return
	}
	q.Mid = decimal.Zero
}

// Bar is one OHLCV historical bar.
type Bar struct {
	Time   time.Time
	Open, High, Low, Close decimal.Decimal
	Volume int64
}
