package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aristath/goldcore/internal/domain"
)

// playbookYAML mirrors one playbook file's on-disk shape. Decimal fields are
// read as plain YAML floats and converted via decimal.NewFromFloat, keeping
// the YAML format human-editable while the rest of the core only ever
// handles decimal.Decimal.
type playbookYAML struct {
	EntryFilters struct {
		MinDTE, MaxDTE     int
		MinDelta, MaxDelta float64
		MinIV, MaxIV       float64
	} `yaml:"entry_filters"`
	ExitThresholds struct {
		TakeProfitPct   float64 `yaml:"take_profit_pct"`
		StopLossPct     float64 `yaml:"stop_loss_pct"`
		MaxLossMultiple float64 `yaml:"max_loss_multiple"`
		CloseAtDTE      int     `yaml:"close_at_dte"`
	} `yaml:"exit_thresholds"`
	RiskConfig struct {
		MaxOpenPlays            int     `yaml:"max_open_plays"`
		MaxContractsPerTrade    int     `yaml:"max_contracts_per_trade"`
		MaxCapitalPerTradeFixed float64 `yaml:"max_capital_per_trade_fixed"`
		MaxCapitalPerTradePctEq float64 `yaml:"max_capital_per_trade_pct_equity"`
		MaxOpenPlaysPerSymbol   int     `yaml:"max_open_plays_per_symbol"`
	} `yaml:"risk_config"`
	Trailing struct {
		Enabled                      bool    `yaml:"enabled"`
		ActivationThresholdPct       float64 `yaml:"activation_threshold_pct"`
		UpdateMode                   string  `yaml:"update_mode"`
		TP1ProfitCaptureStartPct     float64 `yaml:"tp1_profit_capture_start_pct"`
		TP1DistancePct               float64 `yaml:"tp1_distance_pct"`
		TP1Basis                     string  `yaml:"tp1_basis"`
		TP2StartAtOriginalTP         bool    `yaml:"tp2_start_at_original_tp"`
		TP2DistancePct               float64 `yaml:"tp2_distance_pct"`
		RatchetMinRisePct            float64 `yaml:"ratchet_min_rise_pct"`
		RatchetFactor                float64 `yaml:"ratchet_factor"`
		RatchetMinGapBelowCurrentPct float64 `yaml:"ratchet_min_gap_below_current_pct"`
	} `yaml:"trailing"`
	Archive struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"archive"`
}

// LoadPlaybooks reads every *.yaml/*.yml file directly under dir, one
// playbook per file named after the file's base name (without extension).
func LoadPlaybooks(dir string) (map[string]domain.Playbook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config: reading playbook dir %s: %w", dir, err)
	}

	playbooks := make(map[string]domain.Playbook)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		pb, err := loadOne(filepath.Join(dir, entry.Name()), name)
		if err != nil {
			return nil, fmt.Errorf("config: loading playbook %s: %w", name, err)
		}
		playbooks[name] = pb
	}
	return playbooks, nil
}

func loadOne(path, name string) (domain.Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Playbook{}, err
	}
	var raw playbookYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.Playbook{}, fmt.Errorf("parsing YAML: %w", err)
	}

	return domain.Playbook{
		Name: name,
		EntryFilters: domain.EntryFilters{
			MinDTE:    raw.EntryFilters.MinDTE,
			MaxDTE:    raw.EntryFilters.MaxDTE,
			MinDelta:  decimal.NewFromFloat(raw.EntryFilters.MinDelta),
			MaxDelta:  decimal.NewFromFloat(raw.EntryFilters.MaxDelta),
			MinIV:     decimal.NewFromFloat(raw.EntryFilters.MinIV),
			MaxIV:     decimal.NewFromFloat(raw.EntryFilters.MaxIV),
		},
		ExitThresholds: domain.ExitThresholds{
			TakeProfitPct:   decimal.NewFromFloat(raw.ExitThresholds.TakeProfitPct),
			StopLossPct:     decimal.NewFromFloat(raw.ExitThresholds.StopLossPct),
			MaxLossMultiple: decimal.NewFromFloat(raw.ExitThresholds.MaxLossMultiple),
			CloseAtDTE:      raw.ExitThresholds.CloseAtDTE,
		},
		RiskConfig: domain.RiskConfig{
			MaxOpenPlays:            raw.RiskConfig.MaxOpenPlays,
			MaxContractsPerTrade:    raw.RiskConfig.MaxContractsPerTrade,
			MaxCapitalPerTradeFixed: decimal.NewFromFloat(raw.RiskConfig.MaxCapitalPerTradeFixed),
			MaxCapitalPerTradePctEq: decimal.NewFromFloat(raw.RiskConfig.MaxCapitalPerTradePctEq),
			MaxOpenPlaysPerSymbol:   raw.RiskConfig.MaxOpenPlaysPerSymbol,
		},
		Trailing: domain.TrailingDefaults{
			Enabled:                      raw.Trailing.Enabled,
			ActivationThresholdPct:       decimal.NewFromFloat(raw.Trailing.ActivationThresholdPct),
			UpdateMode:                   raw.Trailing.UpdateMode,
			TP1ProfitCaptureStartPct:     decimal.NewFromFloat(raw.Trailing.TP1ProfitCaptureStartPct),
			TP1DistancePct:               decimal.NewFromFloat(raw.Trailing.TP1DistancePct),
			TP1Basis:                     raw.Trailing.TP1Basis,
			TP2StartAtOriginalTP:         raw.Trailing.TP2StartAtOriginalTP,
			TP2DistancePct:               decimal.NewFromFloat(raw.Trailing.TP2DistancePct),
			RatchetMinRisePct:            decimal.NewFromFloat(raw.Trailing.RatchetMinRisePct),
			RatchetFactor:                decimal.NewFromFloat(raw.Trailing.RatchetFactor),
			RatchetMinGapBelowCurrentPct: decimal.NewFromFloat(raw.Trailing.RatchetMinGapBelowCurrentPct),
		},
		Archive: domain.ArchiveConfig{Enabled: raw.Archive.Enabled},
	}, nil
}

// PlaybookSet is the strategy.PlaybookLookup implementation backing the
// loaded playbook map.
type PlaybookSet struct {
	playbooks map[string]domain.Playbook
}

func NewPlaybookSet(playbooks map[string]domain.Playbook) *PlaybookSet {
	return &PlaybookSet{playbooks: playbooks}
}

func (s *PlaybookSet) Get(name string) (domain.Playbook, bool) {
	pb, ok := s.playbooks[name]
	return pb, ok
}
