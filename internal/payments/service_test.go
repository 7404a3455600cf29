package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/bitledger/internal/accounts"
	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/logging"
	"github.com/congo-pay/bitledger/internal/money"
	"github.com/congo-pay/bitledger/internal/wallet"
)

type fixture struct {
	svc     *Service
	store   ledger.Store
	wallets *wallet.Service
	facade  *ledger.Facade
	system  ledger.StaticAccounts
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	walletSvc := wallet.NewService(wallet.NewMemoryRepository(), nil, logging.Discard())
	if err := walletSvc.EnsureSystemWallets(ctx); err != nil {
		t.Fatalf("ensure system wallets: %v", err)
	}
	cache := accounts.NewStaticCache(walletSvc, logging.Discard())
	facade := ledger.NewFacade(store, cache, ledger.WithLogger(logging.Discard()))
	system, err := cache.StaticAccounts(ctx)
	if err != nil {
		t.Fatalf("static accounts: %v", err)
	}
	return fixture{
		svc:     NewService(facade, walletSvc),
		store:   store,
		wallets: walletSvc,
		facade:  facade,
		system:  system,
	}
}

func (f fixture) newWallet(t *testing.T, currency string) wallet.Wallet {
	t.Helper()
	w, err := f.wallets.Create(context.Background(), wallet.CreateInput{OwnerID: uuid.NewString(), Currency: currency})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func (f fixture) balance(t *testing.T, account ledger.AccountID) int64 {
	t.Helper()
	b, err := f.store.Balance(context.Background(), account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func TestTransferSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, "BTC")
	to := f.newWallet(t, "BTC")
	ledger.SeedBalance(f.store, from.AccountID(), 10_000)

	res, err := f.svc.Transfer(ctx, TransferInput{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		Amount:       Amount{Sats: 2_000},
		ClientTxID:   "abc",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if res.Balance == nil || res.Balance.Amount != 8_000 {
		t.Fatalf("unexpected sender balance: %+v", res.Balance)
	}
	if res.Type != ledger.TypeIntraLedger || res.AlreadyRecorded {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.balance(t, to.AccountID()); got != 2_000 {
		t.Fatalf("expected receiver balance 2000, got %d", got)
	}
}

func TestTransferReplayIsAlreadyRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, "BTC")
	to := f.newWallet(t, "BTC")
	ledger.SeedBalance(f.store, from.AccountID(), 2_000)

	input := TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, Amount: Amount{Sats: 2_000}, ClientTxID: "once"}
	first, err := f.svc.Transfer(ctx, input)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// the wallet is now empty, so the replay also fails the funds check
	again, err := f.svc.Transfer(ctx, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.AlreadyRecorded || again.JournalID != first.JournalID {
		t.Fatalf("expected original journal %s, got %+v", first.JournalID, again)
	}
	if got := f.balance(t, to.AccountID()); got != 2_000 {
		t.Fatalf("replay moved funds again, receiver has %d", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	from := f.newWallet(t, "BTC")
	to := f.newWallet(t, "BTC")

	_, err := f.svc.Transfer(context.Background(), TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, Amount: Amount{Sats: 1_000}, ClientTxID: "abc"})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestTransferCrossCurrency(t *testing.T) {
	f := newFixture(t)
	from := f.newWallet(t, "USD")
	to := f.newWallet(t, "BTC")
	ledger.SeedBalance(f.store, from.AccountID(), 500)

	_, err := f.svc.Transfer(context.Background(), TransferInput{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		Amount:       Amount{Cents: 200},
		ClientTxID:   "needs-pair",
	})
	if !errors.Is(err, ledger.ErrMissingConversionAmount) {
		t.Fatalf("expected missing conversion amount, got %v", err)
	}

	if _, err := f.svc.Transfer(context.Background(), TransferInput{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		Amount:       Amount{Cents: 200, Sats: 3_000},
		ClientTxID:   "with-pair",
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := f.balance(t, from.AccountID()); got != 300 {
		t.Fatalf("expected 300 cents left, got %d", got)
	}
	if got := f.balance(t, to.AccountID()); got != 3_000 {
		t.Fatalf("expected 3000 sats received, got %d", got)
	}
	if got := f.balance(t, f.system.DealerUSD); got != 200 {
		t.Fatalf("expected usd dealer credited 200, got %d", got)
	}
	if got := f.balance(t, f.system.DealerBTC); got != -3_000 {
		t.Fatalf("expected btc dealer debited 3000, got %d", got)
	}
}

func TestSendLightningWithFee(t *testing.T) {
	f := newFixture(t)
	sender := f.newWallet(t, "BTC")
	ledger.SeedBalance(f.store, sender.AccountID(), 100_000)

	res, err := f.svc.Send(context.Background(), SendInput{
		WalletID: sender.ID,
		Rail:     RailLightning,
		Amount:   Amount{Sats: 10_000},
		FeeSats:  50,
		Hash:     "ln-hash-1",
		Pubkey:   "02abc",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Pending || res.Type != ledger.TypePayment {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Balance.Amount != 90_000 {
		t.Fatalf("expected 90000 left, got %d", res.Balance.Amount)
	}
	if got := f.balance(t, f.system.BankOwner); got != 50 {
		t.Fatalf("expected bank owner fee 50, got %d", got)
	}
	if got := f.balance(t, ledger.LndAccountID); got != 9_950 {
		t.Fatalf("expected settlement credit 9950, got %d", got)
	}
}

func TestSendRejectsUnknownRail(t *testing.T) {
	f := newFixture(t)
	sender := f.newWallet(t, "BTC")

	_, err := f.svc.Send(context.Background(), SendInput{WalletID: sender.ID, Rail: "carrier-pigeon", Amount: Amount{Sats: 1}, Hash: "x"})
	if !errors.Is(err, ErrUnknownRail) {
		t.Fatalf("expected ErrUnknownRail, got %v", err)
	}
}

func TestReceiveOnChainIntoUSDWallet(t *testing.T) {
	f := newFixture(t)
	receiver := f.newWallet(t, "USD")

	res, err := f.svc.Receive(context.Background(), ReceiveInput{
		WalletID: receiver.ID,
		Rail:     RailOnChain,
		Amount:   Amount{Sats: 3_000, Cents: 200},
		FeeSats:  20,
		Hash:     "onchain-1",
		Display:  Display{Amount: decimal.RequireFromString("2.00"), Fee: decimal.RequireFromString("0.013")},
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if res.Type != ledger.TypeOnchainReceipt || res.Pending {
		t.Fatalf("unexpected result %+v", res)
	}
	if *res.Balance != money.Cents(200) {
		t.Fatalf("expected 200 cents, got %v", res.Balance)
	}
}

func TestReimburseFee(t *testing.T) {
	f := newFixture(t)
	w := f.newWallet(t, "BTC")

	res, err := f.svc.ReimburseFee(context.Background(), ReimburseInput{
		WalletID:       w.ID,
		Amount:         Amount{Sats: 12},
		Hash:           "ln-hash-1:reimburse",
		RelatedJournal: "journal-1",
	})
	if err != nil {
		t.Fatalf("reimburse: %v", err)
	}
	if res.Type != ledger.TypeLnFeeReimbursement || res.Balance.Amount != 12 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestColdStorageRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.DepositToColdStorage(ctx, ColdStorageInput{Sats: 500_000, FeeSats: 400, TxHash: "cold-tx-1"}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.svc.WithdrawFromColdStorage(ctx, ColdStorageInput{Sats: 100_000, FeeSats: 200, TxHash: "cold-tx-2"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.balance(t, ledger.ColdStorageAccountID); got != -(500_000 - 100_200) {
		t.Fatalf("unexpected cold storage balance %d", got)
	}
	if _, err := f.svc.DepositToColdStorage(ctx, ColdStorageInput{Sats: 0, TxHash: "cold-tx-3"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func setupApp(t *testing.T) (*fiber.App, fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.svc)
	app := fiber.New()
	app.Post("/payments/send", h.Send)
	app.Post("/payments/receive", h.Receive)
	app.Post("/payments/p2p", h.P2P)
	app.Get("/journals/:hash", h.Journal)
	return app, f
}

func post(t *testing.T, app *fiber.App, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHandlerReceiveStatusCodes(t *testing.T) {
	app, f := setupApp(t)
	w := f.newWallet(t, "BTC")

	body := map[string]any{
		"wallet_id": w.ID,
		"rail":      "lightning",
		"amount":    map[string]any{"sats": 1_500},
		"hash":      "invoice-http-1",
	}
	status, out := post(t, app, "/payments/receive", body)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", status, out)
	}
	if out["already_recorded"] != false {
		t.Fatalf("first receive flagged as replay")
	}

	status, out = post(t, app, "/payments/receive", body)
	if status != fiber.StatusOK || out["already_recorded"] != true {
		t.Fatalf("expected 200 already_recorded, got %d (%v)", status, out)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/journals/invoice-http-1", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected journal lookup 200, got %d", resp.StatusCode)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	app, f := setupApp(t)
	usd := f.newWallet(t, "USD")

	tests := []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{
			name: "missing conversion amount",
			path: "/payments/receive",
			body: map[string]any{"wallet_id": usd.ID, "rail": "lightning", "amount": map[string]any{"sats": 100}, "hash": "h1"},
			want: fiber.StatusBadRequest,
		},
		{
			name: "missing hash",
			path: "/payments/receive",
			body: map[string]any{"wallet_id": usd.ID, "rail": "lightning", "amount": map[string]any{"sats": 100, "cents": 7}},
			want: fiber.StatusBadRequest,
		},
		{
			name: "unknown wallet",
			path: "/payments/send",
			body: map[string]any{"wallet_id": uuid.NewString(), "rail": "lightning", "amount": map[string]any{"sats": 100}, "hash": "h2"},
			want: fiber.StatusNotFound,
		},
		{
			name: "zero amount",
			path: "/payments/p2p",
			body: map[string]any{"from_wallet_id": usd.ID, "to_wallet_id": uuid.NewString()},
			want: fiber.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if status, out := post(t, app, tc.path, tc.body); status != tc.want {
				t.Fatalf("expected %d, got %d (%v)", tc.want, status, out)
			}
		})
	}
}
