package ledger

import (
	"fmt"
	"math"

	"github.com/congo-pay/bitledger/internal/money"
)

// EntryBuilder accumulates the postings of one transaction. Calls chain; the
// first error sticks and is returned by Build. Build refuses to hand out a
// transaction whose debits and credits differ in any currency.
//
// The builder keeps the running imbalance per currency and the index of the
// latest posting per direction, so a remainder posting can balance the
// opposite side without the caller repeating arithmetic.
type EntryBuilder struct {
	description string
	accounts    StaticAccounts
	metadata    Metadata

	postings []Posting
	// debits minus credits per currency
	net  map[money.Currency]int64
	last map[Direction]int
	err  error
}

// NewEntryBuilder opens an empty transaction.
func NewEntryBuilder(description string, accounts StaticAccounts, metadata Metadata) *EntryBuilder {
	return &EntryBuilder{
		description: description,
		accounts:    accounts,
		metadata:    metadata,
		net:         make(map[money.Currency]int64),
		last:        make(map[Direction]int),
	}
}

// WithFee credits the bank owner with fee. A zero fee adds no posting.
func (b *EntryBuilder) WithFee(fee money.PaymentAmount) *EntryBuilder {
	if fee.IsZero() {
		return b
	}
	if fee.Currency != money.BTC {
		return b.fail(fmt.Errorf("%w: got %s", ErrInvalidFee, fee.Currency))
	}
	return b.add(b.accounts.BankOwner, Credit, fee)
}

// WithoutFee marks the transaction as fee-free.
func (b *EntryBuilder) WithoutFee() *EntryBuilder { return b }

// DebitAccount appends a debit of amount against account.
func (b *EntryBuilder) DebitAccount(account AccountID, amount money.PaymentAmount) *EntryBuilder {
	return b.add(account, Debit, amount)
}

// CreditAccount appends a credit of amount against account.
func (b *EntryBuilder) CreditAccount(account AccountID, amount money.PaymentAmount) *EntryBuilder {
	return b.add(account, Credit, amount)
}

// DebitAccountRemainder debits account by whatever balances the latest credit's currency.
func (b *EntryBuilder) DebitAccountRemainder(account AccountID) *EntryBuilder {
	return b.remainder(account, Debit)
}

// CreditAccountRemainder credits account by whatever balances the latest debit's currency.
func (b *EntryBuilder) CreditAccountRemainder(account AccountID) *EntryBuilder {
	return b.remainder(account, Credit)
}

// DebitLnd debits the settlement account.
func (b *EntryBuilder) DebitLnd(amount money.PaymentAmount) *EntryBuilder {
	return b.DebitAccount(LndAccountID, amount)
}

// CreditLnd credits the settlement account.
func (b *EntryBuilder) CreditLnd(amount money.PaymentAmount) *EntryBuilder {
	return b.CreditAccount(LndAccountID, amount)
}

// DebitLndRemainder debits the settlement account by the open remainder.
func (b *EntryBuilder) DebitLndRemainder() *EntryBuilder {
	return b.DebitAccountRemainder(LndAccountID)
}

// CreditLndRemainder credits the settlement account by the open remainder.
func (b *EntryBuilder) CreditLndRemainder() *EntryBuilder {
	return b.CreditAccountRemainder(LndAccountID)
}

// Convert moves the outstanding imbalance in the currency of the latest
// posting into target, through the dealer accounts. For a debit-heavy source
// the source dealer is credited and the target dealer debited by target; the
// reverse for a credit-heavy source.
func (b *EntryBuilder) Convert(target money.PaymentAmount) *EntryBuilder {
	if b.err != nil {
		return b
	}
	if len(b.postings) == 0 {
		return b.fail(fmt.Errorf("%w: convert before any posting", ErrNothingToBalance))
	}
	source := b.postings[len(b.postings)-1].Amount.Currency
	if source == target.Currency {
		return b
	}
	sourceDealer, err := b.accounts.Dealer(source)
	if err != nil {
		return b.fail(err)
	}
	targetDealer, err := b.accounts.Dealer(target.Currency)
	if err != nil {
		return b.fail(err)
	}

	open := b.net[source]
	switch {
	case open > 0:
		b.add(sourceDealer, Credit, money.PaymentAmount{Amount: open, Currency: source})
		b.add(targetDealer, Debit, target)
	case open < 0:
		b.add(sourceDealer, Debit, money.PaymentAmount{Amount: -open, Currency: source})
		b.add(targetDealer, Credit, target)
	default:
		return b.fail(fmt.Errorf("%w: nothing open in %s to convert", ErrNothingToBalance, source))
	}
	return b
}

// Build returns the finished transaction.
func (b *EntryBuilder) Build() (Transaction, error) {
	if b.err != nil {
		return Transaction{}, b.err
	}
	if len(b.postings) == 0 {
		return Transaction{}, ErrEmptyTransaction
	}
	if err := checkBalanced(b.postings); err != nil {
		return Transaction{}, err
	}

	postings := make([]Posting, len(b.postings))
	copy(postings, b.postings)
	return Transaction{
		Description: b.description,
		Postings:    postings,
		Metadata:    b.metadata,
	}, nil
}

func (b *EntryBuilder) remainder(account AccountID, dir Direction) *EntryBuilder {
	if b.err != nil {
		return b
	}
	idx, ok := b.last[dir.Opposite()]
	if !ok {
		return b.fail(fmt.Errorf("%w: no %s posting before %s on %s", ErrNothingToBalance, dir.Opposite(), dir, account))
	}
	currency := b.postings[idx].Amount.Currency
	open := b.net[currency]
	if dir == Debit {
		open = -open
	}
	if open < 0 {
		return b.fail(fmt.Errorf("%w: %s remainder on %s is %d %s", ErrNothingToBalance, dir, account, open, currency))
	}
	return b.add(account, dir, money.PaymentAmount{Amount: open, Currency: currency})
}

func (b *EntryBuilder) add(account AccountID, dir Direction, amount money.PaymentAmount) *EntryBuilder {
	if b.err != nil {
		return b
	}
	if err := amount.Currency.Validate(); err != nil {
		return b.fail(err)
	}
	if amount.Amount < 0 {
		return b.fail(fmt.Errorf("%w: %s %d on %s", money.ErrNegativeAmount, dir, amount.Amount, account))
	}
	if amount.Amount == 0 {
		return b
	}

	delta := amount.Amount
	if dir == Credit {
		delta = -delta
	}
	net, ok := addInt64(b.net[amount.Currency], delta)
	if !ok {
		return b.fail(fmt.Errorf("%w: %s %d %s on %s", ErrAmountOverflow, dir, amount.Amount, amount.Currency, account))
	}

	b.postings = append(b.postings, Posting{AccountID: account, Direction: dir, Amount: amount})
	b.last[dir] = len(b.postings) - 1
	b.net[amount.Currency] = net
	return b
}

func (b *EntryBuilder) fail(err error) *EntryBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// checkBalanced verifies debits equal credits for every currency, in order of
// first appearance.
func checkBalanced(postings []Posting) error {
	type totals struct{ debits, credits int64 }
	var order []money.Currency
	sums := make(map[money.Currency]*totals)
	for _, p := range postings {
		t, ok := sums[p.Amount.Currency]
		if !ok {
			t = &totals{}
			sums[p.Amount.Currency] = t
			order = append(order, p.Amount.Currency)
		}
		if p.Amount.Amount < 0 {
			return fmt.Errorf("%w: %s %d on %s", money.ErrNegativeAmount, p.Direction, p.Amount.Amount, p.AccountID)
		}
		var sum *int64
		switch p.Direction {
		case Debit:
			sum = &t.debits
		case Credit:
			sum = &t.credits
		default:
			return fmt.Errorf("%w: posting on %s has no direction", ErrUnbalancedTransaction, p.AccountID)
		}
		next, ok := addInt64(*sum, p.Amount.Amount)
		if !ok {
			return fmt.Errorf("%w: %s %s total on %s", ErrAmountOverflow, p.Amount.Currency, p.Direction, p.AccountID)
		}
		*sum = next
	}
	for _, c := range order {
		if t := sums[c]; t.debits != t.credits {
			return &UnbalancedError{Currency: c, Debits: t.debits, Credits: t.credits}
		}
	}
	return nil
}

// addInt64 returns a+b and false when the sum leaves the int64 range.
func addInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}
