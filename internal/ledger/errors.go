package ledger

import (
	"errors"
	"fmt"

	"github.com/congo-pay/bitledger/internal/money"
)

var (
	// ErrUnbalancedTransaction marks a transaction whose debits and credits
	// differ for some currency. It never reaches the store.
	ErrUnbalancedTransaction = errors.New("unbalanced transaction")

	// ErrMissingConversionAmount indicates a cross-currency transfer that lacks
	// its usd or btc side.
	ErrMissingConversionAmount = errors.New("missing conversion amount")

	// ErrDuplicateTransaction indicates the idempotency hash was already
	// committed, so the operation should be treated as already recorded.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrMissingHash is returned when metadata carries no idempotency hash.
	ErrMissingHash = errors.New("missing idempotency hash")

	// ErrEmptyTransaction is returned when a builder holds no postings.
	ErrEmptyTransaction = errors.New("transaction has no postings")

	// ErrInvalidFee is returned for a fee that is not denominated in BTC.
	ErrInvalidFee = errors.New("fee must be denominated in BTC")

	// ErrJournalNotFound is returned when no journal carries the hash.
	ErrJournalNotFound = errors.New("journal not found")

	// ErrAmountOverflow is returned when posting totals or balances would
	// exceed the int64 range.
	ErrAmountOverflow = errors.New("amount overflows int64")

	// ErrNothingToBalance is returned when an inferred posting has no
	// opposite-side posting to balance against.
	ErrNothingToBalance = errors.New("no opposite posting to balance")
)

// UnbalancedError details the first currency found out of balance.
type UnbalancedError struct {
	Currency money.Currency
	Debits   int64
	Credits  int64
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("%s: %s debits %d != credits %d", ErrUnbalancedTransaction, e.Currency, e.Debits, e.Credits)
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalancedTransaction }

// UnknownLedgerError wraps any store failure that has no dedicated class.
type UnknownLedgerError struct {
	Op  string
	Err error
}

func (e *UnknownLedgerError) Error() string {
	return fmt.Sprintf("unknown ledger error during %s: %v", e.Op, e.Err)
}

func (e *UnknownLedgerError) Unwrap() error { return e.Err }

// Severity classifies ledger errors for logging and alerting.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityWarning  Severity = "warning"
	SeverityFatal    Severity = "fatal"
	SeverityCritical Severity = "critical"
)

// SeverityOf maps err onto the ledger error taxonomy.
func SeverityOf(err error) Severity {
	var unknown *UnknownLedgerError
	switch {
	case err == nil:
		return SeverityNone
	case errors.Is(err, ErrDuplicateTransaction):
		return SeverityWarning
	case errors.As(err, &unknown):
		return SeverityCritical
	default:
		return SeverityFatal
	}
}

// IsRetryable reports whether the caller may replay with the same hash and
// treat the result as already recorded.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDuplicateTransaction)
}
