package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu       sync.RWMutex
	journals map[string]Journal
	balances map[AccountID]int64
	now      func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development.
func NewInMemory() Store {
	return &inMemoryStore{
		journals: make(map[string]Journal),
		balances: make(map[AccountID]int64),
		now:      time.Now,
	}
}

func (s *inMemoryStore) Append(_ context.Context, tx Transaction) (Journal, error) {
	hash := tx.Hash()
	if hash == "" {
		return Journal{}, ErrMissingHash
	}
	if len(tx.Postings) == 0 {
		return Journal{}, ErrEmptyTransaction
	}
	if err := checkBalanced(tx.Postings); err != nil {
		return Journal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.journals[hash]; exists {
		return Journal{}, ErrDuplicateTransaction
	}

	next := make(map[AccountID]int64, len(tx.Postings))
	for _, p := range tx.Postings {
		current, ok := next[p.AccountID]
		if !ok {
			current = s.balances[p.AccountID]
		}
		delta := p.Amount.Amount
		if p.Direction == Debit {
			delta = -delta
		}
		updated, ok := addInt64(current, delta)
		if !ok {
			return Journal{}, fmt.Errorf("%w: balance of %s", ErrAmountOverflow, p.AccountID)
		}
		next[p.AccountID] = updated
	}
	for account, balance := range next {
		s.balances[account] = balance
	}

	journal := Journal{
		ID:          uuid.NewString(),
		Transaction: tx,
		RecordedAt:  s.now().UTC(),
	}
	s.journals[hash] = journal
	return journal, nil
}

func (s *inMemoryStore) Balance(_ context.Context, account AccountID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

func (s *inMemoryStore) JournalByHash(_ context.Context, hash string) (Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	journal, ok := s.journals[hash]
	if !ok {
		return Journal{}, ErrJournalNotFound
	}
	return journal, nil
}
