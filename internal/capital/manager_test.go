package capital_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/goldcore/internal/capital"
	"github.com/aristath/goldcore/internal/config"
	"github.com/aristath/goldcore/internal/domain"
)

type fakeAccountReader struct {
	snap domain.AccountSnapshot
}

func (f fakeAccountReader) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	return f.snap, nil
}

type fakeStore struct {
	byStatus map[domain.Status][]*domain.Play
}

func (f fakeStore) List(ctx context.Context, status domain.Status) ([]*domain.Play, error) {
	return f.byStatus[status], nil
}
func (f fakeStore) Get(ctx context.Context, playID string) (*domain.Play, error) { return nil, nil }
func (f fakeStore) Save(ctx context.Context, p *domain.Play) error               { return nil }
func (f fakeStore) Move(ctx context.Context, p *domain.Play, s domain.Status) error {
	return nil
}

func newPlay(symbol, playbook string, contracts int) *domain.Play {
	return &domain.Play{
		PlayID:       symbol + "-test",
		Symbol:       symbol,
		PlaybookName: playbook,
		Contracts:    contracts,
		Action:       domain.BTO,
	}
}

func TestCheckTrade_GateOrdering(t *testing.T) {
	capCfg := config.CapitalConfig{
		Enabled:                   true,
		MaxTotalOpenPositions:     10,
		PerSymbolMaxOpenPositions: 2,
		MaxCapitalDeployedPct:     60,
		BuyingPowerReservePct:     10,
	}
	risk := domain.RiskConfig{
		MaxOpenPlays:            5,
		MaxContractsPerTrade:    3,
		MaxCapitalPerTradeFixed: decimal.NewFromInt(150),
	}

	cases := []struct {
		name          string
		snapshot      domain.AccountSnapshot
		existing      map[domain.Status][]*domain.Play
		play          *domain.Play
		quotedPremium decimal.Decimal
		wantAllowed   bool
		wantReasonHas string
	}{
		{
			name:          "allowed within all gates",
			snapshot:      domain.AccountSnapshot{BuyingPower: decimal.NewFromInt(100000), Equity: decimal.NewFromInt(100000)},
			play:          newPlay("SPY", "default", 1),
			quotedPremium: decimal.NewFromFloat(1.00),
			wantAllowed:   true,
		},
		{
			name:          "rejected on fixed capital gate (scenario 2)",
			snapshot:      domain.AccountSnapshot{BuyingPower: decimal.NewFromInt(100000), Equity: decimal.NewFromInt(100000)},
			play:          newPlay("SPY", "default", 1),
			quotedPremium: decimal.NewFromFloat(2.00), // $200 > $150 fixed cap
			wantAllowed:   false,
			wantReasonHas: "max_capital_per_trade_fixed",
		},
		{
			name:     "rejected on per-symbol limit before fixed-capital check",
			snapshot: domain.AccountSnapshot{BuyingPower: decimal.NewFromInt(100000), Equity: decimal.NewFromInt(100000)},
			existing: map[domain.Status][]*domain.Play{
				domain.StatusOpen: {newPlay("SPY", "default", 1), newPlay("SPY", "default", 1)},
			},
			play:          newPlay("SPY", "default", 1),
			quotedPremium: decimal.NewFromFloat(0.50), // would pass the fixed-capital gate
			wantAllowed:   false,
			wantReasonHas: "per_symbol_max_open_positions",
		},
		{
			name:          "rejected on buying power headroom",
			snapshot:      domain.AccountSnapshot{BuyingPower: decimal.NewFromInt(100), Equity: decimal.NewFromInt(100000)},
			play:          newPlay("SPY", "default", 1),
			quotedPremium: decimal.NewFromFloat(1.50),
			wantAllowed:   false,
			wantReasonHas: "buying power headroom",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := fakeStore{byStatus: tc.existing}
			m := capital.NewManager(zerolog.Nop(), fakeAccountReader{snap: tc.snapshot}, st, capCfg)
			require.NoError(t, m.Refresh(context.Background()))

			allowed, reason := m.CheckTrade(tc.play, risk, tc.quotedPremium)
			require.Equal(t, tc.wantAllowed, allowed, "reason: %s", reason)
			if tc.wantReasonHas != "" {
				require.Contains(t, reason, tc.wantReasonHas)
			}
		})
	}
}
