package wallet

import (
	"time"

	"github.com/congo-pay/bitledger/internal/accounts"
	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/money"
)

// Wallet is a hosted balance in one currency, backed by a ledger account.
type Wallet struct {
	ID       string
	OwnerID  string
	Currency money.Currency
	// Role is set for system wallets only.
	Role      accounts.Role
	Status    string
	CreatedAt time.Time
}

// AccountID returns the ledger account backing the wallet.
func (w Wallet) AccountID() ledger.AccountID { return ledger.AccountIDForWallet(w.ID) }

// Descriptor returns the view of the wallet the ledger works with.
func (w Wallet) Descriptor() ledger.WalletDescriptor {
	return ledger.WalletDescriptor{ID: w.ID, Currency: w.Currency}
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   money.PaymentAmount
	AsOf     time.Time
}
