package main

import (
	"context"
	"fmt"

	"github.com/aristath/goldcore/internal/di"
	"github.com/aristath/goldcore/internal/domain"
)

var allStatuses = []domain.Status{
	domain.StatusNew,
	domain.StatusTemp,
	domain.StatusPendingOpening,
	domain.StatusOpen,
	domain.StatusPendingClosing,
	domain.StatusClosed,
	domain.StatusExpired,
	domain.StatusInvalid,
}

// runValidation loads every stored play across every lifecycle partition and
// checks that its OCC contract symbol agrees with the play's symbol,
// expiration, strike and option type, and that its playbook reference
// resolves, reporting every problem found rather than stopping at the first.
func runValidation(c *di.Container) error {
	ctx := context.Background()
	var problems int

	for _, status := range allStatuses {
		plays, err := c.Store.List(ctx, status)
		if err != nil {
			return fmt.Errorf("listing %s plays: %w", status, err)
		}
		for _, p := range plays {
			if err := domain.ValidateOCC(p.Symbol, p.OptionContractSymbol, p.ExpirationDate, p.StrikePrice, p.TradeType); err != nil {
				c.Log.Warn().Str("play_id", p.PlayID).Str("symbol", p.OptionContractSymbol).Err(err).
					Msg("play has an invalid OCC contract symbol")
				problems++
			}
			if _, ok := c.Playbooks.Get(p.PlaybookName); !ok {
				c.Log.Warn().Str("play_id", p.PlayID).Str("playbook", p.PlaybookName).
					Msg("play references an unknown playbook")
				problems++
			}
		}
	}

	if problems > 0 {
		return fmt.Errorf("validate-plays: found %d problem(s)", problems)
	}
	c.Log.Info().Msg("validate-plays: all stored plays are valid")
	return nil
}
