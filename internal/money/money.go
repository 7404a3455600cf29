// Package money models currency-tagged payment amounts in minor units.
package money

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

// Currency identifies the denomination of a wallet or posting.
type Currency string

const (
	// BTC amounts are expressed in satoshis.
	BTC Currency = "BTC"
	// USD amounts are expressed in cents.
	USD Currency = "USD"
)

var (
	// ErrUnsupportedCurrency is returned for any currency outside {BTC, USD}.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrCurrencyMismatch is returned when combining amounts of different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrNegativeAmount is returned when a payment amount would drop below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Validate reports whether c is a supported currency.
func (c Currency) Validate() error {
	switch c {
	case BTC, USD:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, string(c))
	}
}

// PaymentAmount is an immutable amount in the minor unit of its currency.
type PaymentAmount struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

// New builds a validated, non-negative payment amount.
func New(amount int64, currency Currency) (PaymentAmount, error) {
	if err := currency.Validate(); err != nil {
		return PaymentAmount{}, err
	}
	if amount < 0 {
		return PaymentAmount{}, fmt.Errorf("%w: %d", ErrNegativeAmount, amount)
	}
	return PaymentAmount{Amount: amount, Currency: currency}, nil
}

// Sats returns a BTC amount. It panics on a negative value.
func Sats(n int64) PaymentAmount { return mustNew(n, BTC) }

// Cents returns a USD amount. It panics on a negative value.
func Cents(n int64) PaymentAmount { return mustNew(n, USD) }

// Zero returns a zero amount tagged with currency.
func Zero(currency Currency) PaymentAmount { return PaymentAmount{Currency: currency} }

func mustNew(n int64, c Currency) PaymentAmount {
	a, err := New(n, c)
	if err != nil {
		panic(fmt.Sprintf("money: %v", err))
	}
	return a
}

// IsZero reports whether the amount is zero.
func (a PaymentAmount) IsZero() bool { return a.Amount == 0 }

// Add sums two amounts of the same currency.
func (a PaymentAmount) Add(other PaymentAmount) (PaymentAmount, error) {
	if a.Currency != other.Currency {
		return PaymentAmount{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, a.Currency, other.Currency)
	}
	return PaymentAmount{Amount: a.Amount + other.Amount, Currency: a.Currency}, nil
}

// Sub subtracts other from a. The result may not be negative.
func (a PaymentAmount) Sub(other PaymentAmount) (PaymentAmount, error) {
	if a.Currency != other.Currency {
		return PaymentAmount{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, a.Currency, other.Currency)
	}
	if other.Amount > a.Amount {
		return PaymentAmount{}, fmt.Errorf("%w: %d - %d", ErrNegativeAmount, a.Amount, other.Amount)
	}
	return PaymentAmount{Amount: a.Amount - other.Amount, Currency: a.Currency}, nil
}

// Major returns the amount in major units (BTC or dollars).
func (a PaymentAmount) Major() decimal.Decimal {
	switch a.Currency {
	case BTC:
		return decimal.New(a.Amount, -8)
	default:
		return decimal.New(a.Amount, -2)
	}
}

// String renders the amount for logs, e.g. "0.00010000 BTC" or "2.00 USD".
func (a PaymentAmount) String() string {
	switch a.Currency {
	case BTC:
		return btcutil.Amount(a.Amount).String()
	case USD:
		return a.Major().StringFixed(2) + " USD"
	default:
		return fmt.Sprintf("%d %s", a.Amount, a.Currency)
	}
}
