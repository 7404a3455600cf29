package ledger

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/congo-pay/bitledger/internal/money"
)

// AccountID is the store key of a ledger account.
type AccountID string

const (
	// LndAccountID is the settlement account holding the node's on-chain and
	// channel liquidity. It is the counterparty of every send and receive.
	LndAccountID AccountID = "Assets:Reserve:Lightning"
	// ColdStorageAccountID holds funds moved to the cold-storage wallet.
	ColdStorageAccountID AccountID = "Assets:Reserve:Bitcoind"

	walletAccountPrefix = "Liabilities:"
)

// AccountIDForWallet derives the ledger account of a wallet. The mapping is
// stable and one-way.
func AccountIDForWallet(walletID string) AccountID {
	sum := blake2b.Sum256([]byte(walletID))
	return AccountID(walletAccountPrefix + hex.EncodeToString(sum[:20]))
}

// StaticAccounts are the system account ids shared by every transaction.
type StaticAccounts struct {
	BankOwner AccountID
	DealerBTC AccountID
	DealerUSD AccountID
}

// Dealer returns the dealer account for currency c.
func (s StaticAccounts) Dealer(c money.Currency) (AccountID, error) {
	switch c {
	case money.BTC:
		return s.DealerBTC, nil
	case money.USD:
		return s.DealerUSD, nil
	default:
		return "", c.Validate()
	}
}

// StaticAccountsProvider resolves the system accounts, usually from a cache.
type StaticAccountsProvider interface {
	StaticAccounts(ctx context.Context) (StaticAccounts, error)
}

// WalletDescriptor identifies a wallet taking part in a transaction.
type WalletDescriptor struct {
	ID       string
	Currency money.Currency
}

// AccountID returns the ledger account of the wallet.
func (w WalletDescriptor) AccountID() AccountID { return AccountIDForWallet(w.ID) }

// Direction is the side of a posting.
type Direction int

const (
	Debit Direction = iota + 1
	Credit
)

func (d Direction) String() string {
	switch d {
	case Debit:
		return "debit"
	case Credit:
		return "credit"
	default:
		return "unknown"
	}
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

// Posting is a single debit or credit against one account.
type Posting struct {
	AccountID AccountID
	Direction Direction
	Amount    money.PaymentAmount
}

// Transaction is a balanced set of postings ready for the store.
type Transaction struct {
	Description string
	Postings    []Posting
	Metadata    Metadata
}

// Hash returns the idempotency hash carried by the metadata.
func (t Transaction) Hash() string {
	if t.Metadata == nil {
		return ""
	}
	return t.Metadata.IdempotencyHash()
}

// Journal is the handle of a persisted transaction.
type Journal struct {
	ID          string
	Transaction Transaction
	RecordedAt  time.Time
}

// Store is the durable double-entry engine.
//
// Append persists every posting of tx atomically and returns
// ErrDuplicateTransaction when the idempotency hash was already committed.
// Balance returns sum(credits) - sum(debits) for the account; an account
// without postings has a zero balance. JournalByHash returns
// ErrJournalNotFound for an unknown hash.
type Store interface {
	Append(ctx context.Context, tx Transaction) (Journal, error)
	Balance(ctx context.Context, account AccountID) (int64, error)
	JournalByHash(ctx context.Context, hash string) (Journal, error)
}
