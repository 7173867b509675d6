package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/goldcore/internal/domain"
)

// TestOCCRoundTrip covers I6: ParseOCC(FormatOCC(x)) == x for a spread of
// roots, strikes, and expirations.
func TestOCCRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		root       string
		expiration time.Time
		optType    domain.OptionType
		strike     decimal.Decimal
	}{
		{"single-letter root, whole strike", "F", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), domain.Call, decimal.NewFromInt(15)},
		{"six-letter root, fractional strike", "GOOGLE", time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC), domain.Put, decimal.NewFromFloat(142.5)},
		{"three-decimal strike", "AAPL", time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), domain.Call, decimal.NewFromFloat(195.125)},
		{"near-term expiration", "SPY", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), domain.Put, decimal.NewFromInt(550)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			symbol := domain.FormatOCC(tc.root, tc.expiration, tc.optType, tc.strike)
			require.Len(t, symbol, len(tc.root)+6+1+8)

			parsed, err := domain.ParseOCC(symbol)
			require.NoError(t, err)
			require.Equal(t, tc.root, parsed.Root)
			require.Equal(t, tc.optType, parsed.Type)
			require.True(t, tc.strike.Equal(parsed.Strike), "strike round-trip: want %s got %s", tc.strike, parsed.Strike)
			gy, gm, gd := parsed.Expiration.Date()
			wy, wm, wd := tc.expiration.Date()
			require.Equal(t, [3]int{wy, int(wm), wd}, [3]int{gy, int(gm), gd})
		})
	}
}

func TestParseOCC_RejectsMalformedSymbol(t *testing.T) {
	cases := []string{
		"",
		"AAPL",
		"aapl260320C00015000",  // lowercase root
		"AAPL2603200C00015000", // wrong digit grouping
		"AAPL260320X00015000",  // invalid type char
		"AAPL260320C0001500",   // short strike field
	}
	for _, symbol := range cases {
		_, err := domain.ParseOCC(symbol)
		require.Error(t, err, "expected %q to be rejected", symbol)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

// TestValidateOCC_DetectsEachMismatchIndependently covers scenario 3: root,
// expiration, type, and strike are each checked, and a play failing exactly
// one of them still fails validation.
func TestValidateOCC_DetectsEachMismatchIndependently(t *testing.T) {
	expiration := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	strike := decimal.NewFromInt(150)
	occ := domain.FormatOCC("AAPL", expiration, domain.Call, strike)

	require.NoError(t, domain.ValidateOCC("AAPL", occ, expiration, strike, domain.Call))

	t.Run("root mismatch", func(t *testing.T) {
		err := domain.ValidateOCC("MSFT", occ, expiration, strike, domain.Call)
		require.ErrorIs(t, err, domain.ErrValidation)
	})
	t.Run("expiration mismatch", func(t *testing.T) {
		wrongExp := expiration.AddDate(0, 0, 7)
		err := domain.ValidateOCC("AAPL", occ, wrongExp, strike, domain.Call)
		require.ErrorIs(t, err, domain.ErrValidation)
	})
	t.Run("type mismatch", func(t *testing.T) {
		err := domain.ValidateOCC("AAPL", occ, expiration, strike, domain.Put)
		require.ErrorIs(t, err, domain.ErrValidation)
	})
	t.Run("strike mismatch", func(t *testing.T) {
		err := domain.ValidateOCC("AAPL", occ, expiration, decimal.NewFromInt(160), domain.Call)
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}
