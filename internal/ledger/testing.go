package ledger

import "context"

// SeedBalance is a test helper that sets the balance of an account when using
// the in-memory store. It records no journal.
func SeedBalance(s Store, account AccountID, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[account] = amount
	}
}

// StaticAccountsFunc adapts a function to StaticAccountsProvider.
type StaticAccountsFunc func() (StaticAccounts, error)

func (f StaticAccountsFunc) StaticAccounts(_ context.Context) (StaticAccounts, error) { return f() }

// FixedAccounts returns a provider that always yields accounts.
func FixedAccounts(accounts StaticAccounts) StaticAccountsProvider {
	return StaticAccountsFunc(func() (StaticAccounts, error) { return accounts, nil })
}
