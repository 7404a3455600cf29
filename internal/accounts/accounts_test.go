package accounts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/logging"
)

type countingResolver struct {
	calls   atomic.Int64
	wallets map[Role]string
	err     error
}

func (r *countingResolver) ResolveSystemWallet(_ context.Context, role Role) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	id, ok := r.wallets[role]
	if !ok {
		return "", ErrSystemWalletNotFound
	}
	return id, nil
}

func newCountingResolver() *countingResolver {
	return &countingResolver{wallets: map[Role]string{
		RoleBankOwner: "wallet-bank",
		RoleDealerBTC: "wallet-dealer-btc",
		RoleDealerUSD: "wallet-dealer-usd",
	}}
}

func TestStaticCache_ResolvesOnce(t *testing.T) {
	resolver := newCountingResolver()
	cache := NewStaticCache(resolver, logging.Discard())
	ctx := context.Background()

	first, err := cache.StaticAccounts(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.BankOwner != ledger.AccountIDForWallet("wallet-bank") ||
		first.DealerBTC != ledger.AccountIDForWallet("wallet-dealer-btc") ||
		first.DealerUSD != ledger.AccountIDForWallet("wallet-dealer-usd") {
		t.Fatalf("unexpected accounts %+v", first)
	}

	for i := 0; i < 5; i++ {
		again, err := cache.StaticAccounts(ctx)
		if err != nil {
			t.Fatalf("cached resolve: %v", err)
		}
		if again != first {
			t.Fatalf("cached accounts changed")
		}
	}
	if got := resolver.calls.Load(); got != int64(len(Roles)) {
		t.Fatalf("expected %d directory lookups, got %d", len(Roles), got)
	}
}

func TestStaticCache_ConcurrentFirstUse(t *testing.T) {
	cache := NewStaticCache(newCountingResolver(), logging.Discard())

	var wg sync.WaitGroup
	results := make([]ledger.StaticAccounts, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			accounts, err := cache.StaticAccounts(context.Background())
			if err != nil {
				t.Errorf("resolve: %v", err)
			}
			results[i] = accounts
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatalf("concurrent callers saw different accounts")
		}
	}
}

func TestStaticCache_ErrorIsNotCached(t *testing.T) {
	resolver := newCountingResolver()
	resolver.err = errors.New("directory offline")
	cache := NewStaticCache(resolver, logging.Discard())

	if _, err := cache.StaticAccounts(context.Background()); err == nil {
		t.Fatalf("expected error")
	}

	resolver.err = nil
	if _, err := cache.StaticAccounts(context.Background()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestStaticCache_Invalidate(t *testing.T) {
	resolver := newCountingResolver()
	cache := NewStaticCache(resolver, logging.Discard())
	ctx := context.Background()

	if _, err := cache.StaticAccounts(ctx); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	resolver.wallets[RoleBankOwner] = "wallet-bank-2"
	cache.Invalidate()

	accounts, err := cache.StaticAccounts(ctx)
	if err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if accounts.BankOwner != ledger.AccountIDForWallet("wallet-bank-2") {
		t.Fatalf("expected refreshed bank owner, got %s", accounts.BankOwner)
	}
}

func TestRedisResolver_ReadThrough(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	directory := newCountingResolver()
	resolver := NewRedisResolver(client, directory, time.Minute, logging.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := resolver.ResolveSystemWallet(ctx, RoleDealerUSD)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if id != "wallet-dealer-usd" {
			t.Fatalf("unexpected wallet %s", id)
		}
	}
	if got := directory.calls.Load(); got != 1 {
		t.Fatalf("expected one directory lookup, got %d", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := resolver.ResolveSystemWallet(ctx, RoleDealerUSD); err != nil {
		t.Fatalf("resolve after expiry: %v", err)
	}
	if got := directory.calls.Load(); got != 2 {
		t.Fatalf("expected lookup after ttl expiry, got %d", got)
	}

	if err := resolver.Forget(ctx); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if mr.Exists(systemWalletPrefix + string(RoleDealerUSD)) {
		t.Fatalf("forget left the key behind")
	}
}

func TestRedisResolver_FallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	resolver := NewRedisResolver(client, newCountingResolver(), time.Minute, logging.Discard())
	id, err := resolver.ResolveSystemWallet(context.Background(), RoleBankOwner)
	if err != nil {
		t.Fatalf("expected fallback to directory, got %v", err)
	}
	if id != "wallet-bank" {
		t.Fatalf("unexpected wallet %s", id)
	}
}

func TestRedisResolver_DirectoryMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	resolver := NewRedisResolver(client, &countingResolver{wallets: map[Role]string{}}, time.Minute, logging.Discard())
	if _, err := resolver.ResolveSystemWallet(context.Background(), RoleBankOwner); !errors.Is(err, ErrSystemWalletNotFound) {
		t.Fatalf("expected ErrSystemWalletNotFound, got %v", err)
	}
}

func TestStaticCache_RefreshFlushesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	directory := newCountingResolver()
	cache := NewStaticCache(NewRedisResolver(client, directory, time.Hour, logging.Discard()), logging.Discard())
	ctx := context.Background()

	if _, err := cache.StaticAccounts(ctx); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	directory.wallets[RoleDealerBTC] = "wallet-dealer-btc-2"

	accounts, err := cache.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if accounts.DealerBTC != ledger.AccountIDForWallet("wallet-dealer-btc-2") {
		t.Fatalf("refresh served a stale dealer account %s", accounts.DealerBTC)
	}
	if got, _ := mr.Get(systemWalletPrefix + string(RoleDealerBTC)); got != "wallet-dealer-btc-2" {
		t.Fatalf("redis not repopulated, got %q", got)
	}
}
