package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/bitledger/internal/money"
)

// Notifier is told about every committed journal. Failures are logged and
// never fail the recording.
type Notifier interface {
	JournalRecorded(ctx context.Context, journal Journal) error
}

// Observer receives the outcome of each recording attempt.
type Observer interface {
	ObserveRecord(txType TransactionType, outcome string, elapsed time.Duration)
}

// Recording outcomes reported to the Observer.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Facade turns payment intents into balanced journals and submits them.
type Facade struct {
	store    Store
	accounts StaticAccountsProvider
	logger   *slog.Logger
	notifier Notifier
	observer Observer
}

// Option customises a Facade.
type Option func(*Facade)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) { f.logger = logger }
}

// WithNotifier registers a post-commit notifier.
func WithNotifier(n Notifier) Option {
	return func(f *Facade) { f.notifier = n }
}

// WithObserver registers a recording observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(f *Facade) { f.observer = o }
}

// NewFacade builds a facade over store. accounts supplies the cached system
// account ids.
func NewFacade(store Store, accounts StaticAccountsProvider, opts ...Option) *Facade {
	f := &Facade{store: store, accounts: accounts, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SendArgs describes value leaving a hosted wallet for the outside world.
type SendArgs struct {
	Description string
	Sender      WalletDescriptor
	// Amount is a BTC amount for BTC wallets and a {usd, btc} pair otherwise.
	Amount   money.Transfer
	Metadata SendMetadata
	// Fee is optional; a zero fee records no fee posting.
	Fee money.PaymentAmount
}

// RecordSend debits the sender and credits the settlement account, less the
// fee which goes to the bank owner.
func (f *Facade) RecordSend(ctx context.Context, args SendArgs) (Journal, error) {
	debit, credit, err := Route(args.Sender.Currency, money.BTC, args.Amount)
	if err == nil {
		err = validateFee(args.Fee)
	}
	return f.record(ctx, args.Metadata, err, func(accounts StaticAccounts) (Transaction, error) {
		return NewEntryBuilder(args.Description, accounts, args.Metadata).
			WithFee(args.Fee).
			DebitAccount(args.Sender.AccountID(), debit).
			Convert(credit).
			CreditLndRemainder().
			Build()
	})
}

// ReceiveArgs describes value entering a hosted wallet from outside.
type ReceiveArgs struct {
	Description string
	Receiver    WalletDescriptor
	// Amount is a BTC amount for BTC wallets and a {usd, btc} pair otherwise.
	Amount   money.Transfer
	Metadata ReceiveMetadata
	Fee      money.PaymentAmount
}

// RecordReceive debits the settlement account and credits the receiver, less
// the fee which goes to the bank owner.
func (f *Facade) RecordReceive(ctx context.Context, args ReceiveArgs) (Journal, error) {
	debit, credit, err := Route(money.BTC, args.Receiver.Currency, args.Amount)
	if err == nil {
		err = validateFee(args.Fee)
	}
	return f.record(ctx, args.Metadata, err, func(accounts StaticAccounts) (Transaction, error) {
		return NewEntryBuilder(args.Description, accounts, args.Metadata).
			WithFee(args.Fee).
			DebitLnd(debit).
			Convert(credit).
			CreditAccountRemainder(args.Receiver.AccountID()).
			Build()
	})
}

// IntraledgerArgs describes a transfer between two hosted wallets.
type IntraledgerArgs struct {
	Description string
	Sender      WalletDescriptor
	Receiver    WalletDescriptor
	// Amount is a single amount for same-currency wallets and a {usd, btc}
	// pair otherwise.
	Amount   money.Transfer
	Metadata IntraledgerMetadata
}

// RecordIntraledger moves value between two wallets without touching the
// settlement account.
func (f *Facade) RecordIntraledger(ctx context.Context, args IntraledgerArgs) (Journal, error) {
	debit, credit, err := Route(args.Sender.Currency, args.Receiver.Currency, args.Amount)
	return f.record(ctx, args.Metadata, err, func(accounts StaticAccounts) (Transaction, error) {
		return NewEntryBuilder(args.Description, accounts, args.Metadata).
			WithoutFee().
			DebitAccount(args.Sender.AccountID(), debit).
			Convert(credit).
			CreditAccountRemainder(args.Receiver.AccountID()).
			Build()
	})
}

// ColdStorageArgs describes an on-chain rebalance between hot and cold wallets.
// The on-chain fee is paid by the bank owner.
type ColdStorageArgs struct {
	Description string
	Amount      money.PaymentAmount
	Fee         money.PaymentAmount
	Metadata    ColdStorageMetadata
}

// RecordColdStorageDeposit moves Amount from the settlement account to cold storage.
func (f *Facade) RecordColdStorageDeposit(ctx context.Context, args ColdStorageArgs) (Journal, error) {
	return f.record(ctx, args.Metadata, validateColdStorage(args), func(accounts StaticAccounts) (Transaction, error) {
		return NewEntryBuilder(args.Description, accounts, args.Metadata).
			DebitAccount(ColdStorageAccountID, args.Amount).
			DebitAccount(accounts.BankOwner, args.Fee).
			CreditLndRemainder().
			Build()
	})
}

// RecordColdStorageWithdrawal moves Amount from cold storage back to the settlement account.
func (f *Facade) RecordColdStorageWithdrawal(ctx context.Context, args ColdStorageArgs) (Journal, error) {
	return f.record(ctx, args.Metadata, validateColdStorage(args), func(accounts StaticAccounts) (Transaction, error) {
		return NewEntryBuilder(args.Description, accounts, args.Metadata).
			DebitLnd(args.Amount).
			DebitAccount(accounts.BankOwner, args.Fee).
			CreditAccountRemainder(ColdStorageAccountID).
			Build()
	})
}

// Balance returns the wallet balance in the wallet's currency.
func (f *Facade) Balance(ctx context.Context, wallet WalletDescriptor) (money.PaymentAmount, error) {
	balance, err := f.store.Balance(ctx, wallet.AccountID())
	if err != nil {
		return money.PaymentAmount{}, &UnknownLedgerError{Op: "balance", Err: err}
	}
	return money.PaymentAmount{Amount: balance, Currency: wallet.Currency}, nil
}

// JournalByHash returns the journal recorded under hash.
func (f *Facade) JournalByHash(ctx context.Context, hash string) (Journal, error) {
	if hash == "" {
		return Journal{}, ErrMissingHash
	}
	journal, err := f.store.JournalByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrJournalNotFound) {
			return Journal{}, err
		}
		return Journal{}, &UnknownLedgerError{Op: "lookup", Err: err}
	}
	return journal, nil
}

// record validates, builds and submits one transaction. precheck carries any
// routing or fee error found by the caller; it is returned before any I/O.
func (f *Facade) record(ctx context.Context, md Metadata, precheck error, build func(StaticAccounts) (Transaction, error)) (Journal, error) {
	start := time.Now()
	txType := TransactionType("")
	if md != nil {
		txType = md.Type()
	}

	if precheck != nil {
		f.observe(txType, OutcomeRejected, start)
		return Journal{}, precheck
	}
	if md == nil || md.IdempotencyHash() == "" {
		f.observe(txType, OutcomeRejected, start)
		return Journal{}, ErrMissingHash
	}

	accounts, err := f.accounts.StaticAccounts(ctx)
	if err != nil {
		f.observe(txType, OutcomeFailed, start)
		return Journal{}, fmt.Errorf("resolve static accounts: %w", err)
	}

	tx, err := build(accounts)
	if err != nil {
		f.observe(txType, OutcomeRejected, start)
		f.logger.Error("ledger transaction rejected", "hash", md.IdempotencyHash(), "type", txType, "error", err)
		return Journal{}, err
	}

	journal, err := f.store.Append(ctx, tx)
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			f.observe(txType, OutcomeDuplicate, start)
			f.logger.Warn("ledger transaction already recorded", "hash", md.IdempotencyHash(), "type", txType)
			return Journal{}, fmt.Errorf("record %s %s: %w", txType, md.IdempotencyHash(), ErrDuplicateTransaction)
		}
		f.observe(txType, OutcomeFailed, start)
		f.logger.Error("ledger append failed", "hash", md.IdempotencyHash(), "type", txType, "error", err)
		return Journal{}, &UnknownLedgerError{Op: "append", Err: err}
	}

	f.observe(txType, OutcomeRecorded, start)
	f.logger.Debug("ledger transaction recorded", "hash", md.IdempotencyHash(), "type", txType, "journal_id", journal.ID)

	if f.notifier != nil {
		if err := f.notifier.JournalRecorded(ctx, journal); err != nil {
			f.logger.Warn("journal notification failed", "journal_id", journal.ID, "error", err)
		}
	}
	return journal, nil
}

func (f *Facade) observe(txType TransactionType, outcome string, start time.Time) {
	if f.observer != nil {
		f.observer.ObserveRecord(txType, outcome, time.Since(start))
	}
}

func validateFee(fee money.PaymentAmount) error {
	if fee.IsZero() {
		return nil
	}
	if fee.Currency != money.BTC {
		return fmt.Errorf("%w: got %s", ErrInvalidFee, fee.Currency)
	}
	if fee.Amount < 0 {
		return fmt.Errorf("%w: fee %d", money.ErrNegativeAmount, fee.Amount)
	}
	return nil
}

func validateColdStorage(args ColdStorageArgs) error {
	if args.Amount.Currency != money.BTC {
		return fmt.Errorf("cold storage amount must be BTC: %w", money.ErrCurrencyMismatch)
	}
	return validateFee(args.Fee)
}
