package wallet

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/bitledger/internal/accounts"
	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/logging"
	"github.com/congo-pay/bitledger/internal/money"
)

func newTestService(t *testing.T) (*Service, ledger.Store) {
	t.Helper()
	store := ledger.NewInMemory()
	repo := NewMemoryRepository()
	svc := NewService(repo, nil, logging.Discard())
	cache := accounts.NewStaticCache(svc, logging.Discard())
	svc.ledger = ledger.NewFacade(store, cache, ledger.WithLogger(logging.Discard()))
	return svc, store
}

func TestServiceCreateAndBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ownerID := uuid.NewString()
	wallet, err := svc.Create(ctx, CreateInput{OwnerID: ownerID, Currency: "USD"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	fetched, err := svc.Get(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if fetched.ID != wallet.ID || fetched.OwnerID != ownerID || fetched.Currency != money.USD {
		t.Fatalf("unexpected wallet %+v", fetched)
	}

	ledger.SeedBalance(store, wallet.AccountID(), 2_500)

	balance, err := svc.Balance(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != money.Cents(2_500) {
		t.Fatalf("expected 2500 cents, got %v", balance.Amount)
	}
}

func TestServiceCreateValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{OwnerID: "not-a-uuid"}); err == nil {
		t.Fatalf("expected invalid owner error")
	}
	if _, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), Currency: "XAF"}); !errors.Is(err, money.ErrUnsupportedCurrency) {
		t.Fatalf("expected unsupported currency, got %v", err)
	}

	w, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Currency != money.BTC {
		t.Fatalf("expected BTC default, got %s", w.Currency)
	}
}

func TestServiceUnknownWallet(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Balance(context.Background(), uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureSystemWalletsIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ResolveSystemWallet(ctx, accounts.RoleBankOwner); !errors.Is(err, accounts.ErrSystemWalletNotFound) {
		t.Fatalf("expected missing system wallet, got %v", err)
	}

	if err := svc.EnsureSystemWallets(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	first := map[accounts.Role]string{}
	for _, role := range accounts.Roles {
		id, err := svc.ResolveSystemWallet(ctx, role)
		if err != nil {
			t.Fatalf("resolve %s: %v", role, err)
		}
		first[role] = id
	}

	if err := svc.EnsureSystemWallets(ctx); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	for _, role := range accounts.Roles {
		id, _ := svc.ResolveSystemWallet(ctx, role)
		if id != first[role] {
			t.Fatalf("%s wallet changed from %s to %s", role, first[role], id)
		}
	}

	dealerUSD, err := svc.Get(ctx, first[accounts.RoleDealerUSD])
	if err != nil {
		t.Fatalf("get dealer: %v", err)
	}
	if dealerUSD.Currency != money.USD {
		t.Fatalf("dealer usd wallet has currency %s", dealerUSD.Currency)
	}
}

func TestHandlerBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	w, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), Currency: "BTC"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ledger.SeedBalance(store, w.AccountID(), 10_000)

	app := fiber.New()
	h := NewHandler(svc)
	app.Get("/wallets/:walletId/balance", h.Balance)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/wallets/"+w.ID+"/balance", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/wallets/"+uuid.NewString()+"/balance", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
