package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aristath/goldcore/internal/domain"
)

// TestExitActionFor_ValidPairs covers I10: BTO pairs with STC, STO pairs
// with BTC.
func TestExitActionFor_ValidPairs(t *testing.T) {
	got, err := domain.ExitActionFor(domain.BTO)
	require.NoError(t, err)
	require.Equal(t, domain.STC, got)

	got, err = domain.ExitActionFor(domain.STO)
	require.NoError(t, err)
	require.Equal(t, domain.BTC, got)
}

// TestExitActionFor_RejectsClosingActions ensures attempting to derive an
// exit for an already-closing action is a validation error, not a silent
// pass-through.
func TestExitActionFor_RejectsClosingActions(t *testing.T) {
	for _, a := range []domain.Action{domain.STC, domain.BTC, domain.Action("BOGUS")} {
		_, err := domain.ExitActionFor(a)
		require.Error(t, err, "expected %q to be rejected as an opening action", a)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestIsValidPair(t *testing.T) {
	cases := []struct {
		entry, exit domain.Action
		want        bool
	}{
		{domain.BTO, domain.STC, true},
		{domain.STO, domain.BTC, true},
		{domain.BTO, domain.BTC, false},
		{domain.STO, domain.STC, false},
		{domain.STC, domain.BTO, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, domain.IsValidPair(tc.entry, tc.exit), "IsValidPair(%s, %s)", tc.entry, tc.exit)
	}
}

// TestActionPredicates_ArePureFunctionsOfAction checks is_buy/is_sell/
// is_open/is_long/is_short per §4.9.
func TestActionPredicates_ArePureFunctionsOfAction(t *testing.T) {
	require.True(t, domain.BTO.IsBuy())
	require.True(t, domain.BTO.IsOpen())
	require.True(t, domain.BTO.IsLong())
	require.False(t, domain.BTO.IsSell())
	require.False(t, domain.BTO.IsShort())

	require.True(t, domain.STO.IsSell())
	require.True(t, domain.STO.IsOpen())
	require.True(t, domain.STO.IsShort())
	require.False(t, domain.STO.IsBuy())
	require.False(t, domain.STO.IsLong())

	require.True(t, domain.STC.IsSell())
	require.False(t, domain.STC.IsOpen())
	require.True(t, domain.STC.IsLong())
	require.False(t, domain.STC.IsShort())

	require.True(t, domain.BTC.IsBuy())
	require.False(t, domain.BTC.IsOpen())
	require.False(t, domain.BTC.IsLong())
	require.True(t, domain.BTC.IsShort())
}
