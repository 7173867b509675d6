package domain

import "github.com/shopspring/decimal"

// RiskConfig bounds how much capital a playbook's plays may consume,
// enforced by the capital manager's gates 3-7.
type RiskConfig struct {
	MaxOpenPlays             int
	MaxContractsPerTrade     int
	MaxCapitalPerTradeFixed  decimal.Decimal
	MaxCapitalPerTradePctEq  decimal.Decimal
	MaxOpenPlaysPerSymbol    int // 0 means "use the global default"
}

// EntryFilters constrains which underlying/expiration/strike combinations a
// strategy may propose for this playbook.
type EntryFilters struct {
	MinDTE, MaxDTE   int
	MinDelta, MaxDelta decimal.Decimal
	MinIV, MaxIV       decimal.Decimal
}

// ExitThresholds are the default TP/SL percentages a strategy falls back to
// when a play does not specify its own.
type ExitThresholds struct {
	TakeProfitPct   decimal.Decimal
	StopLossPct     decimal.Decimal
	MaxLossMultiple decimal.Decimal
	CloseAtDTE      int
}

// TrailingDefaults mirrors the `trailing` config section, scoped per
// playbook so different playbooks can run different trailing behavior.
type TrailingDefaults struct {
	Enabled                bool
	ActivationThresholdPct decimal.Decimal
	UpdateMode             string
	TP1ProfitCaptureStartPct decimal.Decimal
	TP1DistancePct           decimal.Decimal
	TP1Basis                 string // "profit_capture" | "distance_from_current"
	TP2StartAtOriginalTP      bool
	TP2DistancePct            decimal.Decimal
	RatchetMinRisePct         decimal.Decimal
	RatchetFactor             decimal.Decimal
	RatchetMinGapBelowCurrentPct decimal.Decimal
}

// ArchiveConfig toggles S3 archival of terminal plays for this playbook.
type ArchiveConfig struct {
	Enabled bool
}

// Playbook is an immutable named parameter set referenced by plays, loaded
// once at startup from a YAML file (one file per playbook, see
// internal/config and the playbook loader).
type Playbook struct {
	Name           string
	EntryFilters   EntryFilters
	ExitThresholds ExitThresholds
	RiskConfig     RiskConfig
	Trailing       TrailingDefaults
	Archive        ArchiveConfig
}
