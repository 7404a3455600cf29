package wallet

import (
	"context"
	"sync"

	"github.com/congo-pay/bitledger/internal/accounts"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
	roles   map[accounts.Role]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[string]Wallet),
		roles:   make(map[accounts.Role]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[wallet.ID]; exists {
		return ErrExists
	}
	if wallet.Role != "" {
		if _, taken := r.roles[wallet.Role]; taken {
			return ErrExists
		}
		r.roles[wallet.Role] = wallet.ID
	}
	r.storage[wallet.ID] = wallet
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return wallet, nil
}

func (r *memoryRepository) FindByRole(_ context.Context, role accounts.Role) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.roles[role]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return r.storage[id], nil
}
