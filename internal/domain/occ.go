package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// occPattern matches the 21-character OCC option symbol: root (1-6 chars,
// padded conventionally but here taken as-is), YYMMDD, C|P, 8-digit strike
// in thousandths of a dollar.
var occPattern = regexp.MustCompile(`^([A-Z]{1,6})(\d{6})([CP])(\d{8})$`)

// OCCSymbol is the parsed form of an option contract symbol.
type OCCSymbol struct {
	Root       string
	Expiration time.Time
	Type       OptionType
	Strike     decimal.Decimal
}

// OptionType is CALL or PUT, matching the play's trade_type field.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ParseOCC parses a 21-character OCC symbol into its components. It is the
// inverse of FormatOCC: ParseOCC(FormatOCC(x)) == x for all valid x (I6).
func ParseOCC(symbol string) (OCCSymbol, error) {
	m := occPattern.FindStringSubmatch(symbol)
	if m == nil {
		return OCCSymbol{}, fmt.Errorf("domain: %q is not a valid OCC symbol: %w", symbol, ErrValidation)
	}
	root, dateStr, typeChar, strikeStr := m[1], m[2], m[3], m[4]

	exp, err := time.Parse("060102", dateStr)
	if err != nil {
		return OCCSymbol{}, fmt.Errorf("domain: OCC symbol %q has invalid date: %w", symbol, ErrValidation)
	}

	optType := Call
	if typeChar == "P" {
		optType = Put
	}

	strikeThousandths, err := strconv.ParseInt(strikeStr, 10, 64)
	if err != nil {
		return OCCSymbol{}, fmt.Errorf("domain: OCC symbol %q has invalid strike: %w", symbol, ErrValidation)
	}
	strike := decimal.New(strikeThousandths, -3)

	return OCCSymbol{Root: root, Expiration: exp, Type: optType, Strike: strike}, nil
}

// FormatOCC renders the canonical 21-character OCC symbol for the given
// components.
func FormatOCC(root string, expiration time.Time, optType OptionType, strike decimal.Decimal) string {
	typeChar := "C"
	if optType == Put {
		typeChar = "P"
	}
	strikeThousandths := strike.Mul(decimal.New(1000, 0)).Round(0).IntPart()
	return fmt.Sprintf("%s%s%s%08d", root, expiration.Format("060102"), typeChar, strikeThousandths)
}

// ValidateOCC checks that a play's option_contract_symbol agrees with its four
// top-level fields (symbol, expiration_date, strike_price, trade_type). A
// mismatch is the FATAL validation error described for scenario 3 in the
// testable-properties section.
func ValidateOCC(symbol, optionContractSymbol string, expiration time.Time, strike decimal.Decimal, tradeType OptionType) error {
	parsed, err := ParseOCC(optionContractSymbol)
	if err != nil {
		return err
	}
	if parsed.Root != symbol {
		return fmt.Errorf("domain: option_contract_symbol root %q does not match symbol %q: %w", parsed.Root, symbol, ErrValidation)
	}
	if !sameDate(parsed.Expiration, expiration) {
		return fmt.Errorf("domain: option_contract_symbol expiration %s does not match play expiration %s: %w", parsed.Expiration.Format("2006-01-02"), expiration.Format("2006-01-02"), ErrValidation)
	}
	if parsed.Type != tradeType {
		return fmt.Errorf("domain: option_contract_symbol type %s does not match trade_type %s: %w", parsed.Type, tradeType, ErrValidation)
	}
	if !parsed.Strike.Equal(strike) {
		return fmt.Errorf("domain: option_contract_symbol strike %s does not match strike_price %s: %w", parsed.Strike, strike, ErrValidation)
	}
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
