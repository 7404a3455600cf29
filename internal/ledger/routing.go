package ledger

import (
	"fmt"

	"github.com/congo-pay/bitledger/internal/money"
)

// Route picks the amount posted on each side of a transfer from sender to
// receiver currency:
//
//	BTC -> BTC  debit btc, credit btc
//	USD -> USD  debit usd, credit usd
//	USD -> BTC  debit usd, credit btc
//	BTC -> USD  debit btc, credit usd
//
// Cross-currency transfers must carry both sides of the pair. Rate
// correctness is the caller's concern.
func Route(sender, receiver money.Currency, amount money.Transfer) (debit, credit money.PaymentAmount, err error) {
	if err := sender.Validate(); err != nil {
		return debit, credit, err
	}
	if err := receiver.Validate(); err != nil {
		return debit, credit, err
	}

	switch {
	case sender == money.BTC && receiver == money.BTC,
		sender == money.USD && receiver == money.USD:
		a, ok := amount.In(sender)
		if !ok {
			return debit, credit, fmt.Errorf("%w: %s transfer has no %s amount", ErrMissingConversionAmount, sender, sender)
		}
		return a, a, nil
	case sender == money.USD && receiver == money.BTC,
		sender == money.BTC && receiver == money.USD:
		if !amount.IsPair() {
			return debit, credit, fmt.Errorf("%w: %s to %s transfer needs both usd and btc", ErrMissingConversionAmount, sender, receiver)
		}
		debit, _ = amount.In(sender)
		credit, _ = amount.In(receiver)
		return debit, credit, nil
	default:
		return debit, credit, fmt.Errorf("%w: %s to %s", money.ErrUnsupportedCurrency, sender, receiver)
	}
}
