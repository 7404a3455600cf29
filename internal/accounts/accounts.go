// Package accounts resolves and caches the system accounts shared by every
// ledger transaction.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/congo-pay/bitledger/internal/ledger"
)

// Role names a system wallet.
type Role string

const (
	RoleBankOwner Role = "bank_owner"
	RoleDealerBTC Role = "dealer_btc"
	RoleDealerUSD Role = "dealer_usd"
)

// Roles lists every system wallet the ledger needs.
var Roles = []Role{RoleBankOwner, RoleDealerBTC, RoleDealerUSD}

// ErrSystemWalletNotFound is returned when no wallet holds a system role.
var ErrSystemWalletNotFound = errors.New("system wallet not found")

// SystemWalletResolver looks up the wallet id holding a system role.
type SystemWalletResolver interface {
	ResolveSystemWallet(ctx context.Context, role Role) (string, error)
}

// Forgetter is implemented by resolvers holding their own cache of system
// wallets.
type Forgetter interface {
	Forget(ctx context.Context) error
}

// StaticCache memoises the system accounts for the life of the process.
// Concurrent first calls may each resolve; the results are identical so the
// last store wins.
type StaticCache struct {
	resolver SystemWalletResolver
	logger   *slog.Logger
	cached   atomic.Pointer[ledger.StaticAccounts]
}

// NewStaticCache wraps resolver with a process-wide cache.
func NewStaticCache(resolver SystemWalletResolver, logger *slog.Logger) *StaticCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticCache{resolver: resolver, logger: logger}
}

// StaticAccounts implements ledger.StaticAccountsProvider.
func (c *StaticCache) StaticAccounts(ctx context.Context) (ledger.StaticAccounts, error) {
	if cached := c.cached.Load(); cached != nil {
		return *cached, nil
	}

	ids := make(map[Role]ledger.AccountID, len(Roles))
	for _, role := range Roles {
		walletID, err := c.resolver.ResolveSystemWallet(ctx, role)
		if err != nil {
			return ledger.StaticAccounts{}, fmt.Errorf("resolve %s wallet: %w", role, err)
		}
		ids[role] = ledger.AccountIDForWallet(walletID)
	}

	accounts := ledger.StaticAccounts{
		BankOwner: ids[RoleBankOwner],
		DealerBTC: ids[RoleDealerBTC],
		DealerUSD: ids[RoleDealerUSD],
	}
	c.cached.Store(&accounts)
	c.logger.Info("system accounts resolved",
		slog.String("bank_owner", string(accounts.BankOwner)),
		slog.String("dealer_btc", string(accounts.DealerBTC)),
		slog.String("dealer_usd", string(accounts.DealerUSD)),
	)
	return accounts, nil
}

// Invalidate drops the cached accounts so the next call resolves again.
func (c *StaticCache) Invalidate() {
	c.cached.Store(nil)
}

// Refresh drops every cached layer and resolves the system accounts again.
// A resolver implementing Forgetter is cleared before the lookup.
func (c *StaticCache) Refresh(ctx context.Context) (ledger.StaticAccounts, error) {
	if f, ok := c.resolver.(Forgetter); ok {
		if err := f.Forget(ctx); err != nil {
			c.logger.Warn("system wallet cache flush failed", slog.Any("error", err))
		}
	}
	c.Invalidate()
	return c.StaticAccounts(ctx)
}
