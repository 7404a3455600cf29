package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/bitledger/internal/accounts"
	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/money"
)

const (
	statusActive = "active"
)

// systemOwnerID owns every system wallet.
var systemOwnerID = uuid.Nil.String()

var systemWalletCurrency = map[accounts.Role]money.Currency{
	accounts.RoleBankOwner: money.BTC,
	accounts.RoleDealerBTC: money.BTC,
	accounts.RoleDealerUSD: money.USD,
}

// BalanceReader reads wallet balances from the ledger.
type BalanceReader interface {
	Balance(ctx context.Context, wallet ledger.WalletDescriptor) (money.PaymentAmount, error)
}

// Service is the wallet directory. It also resolves system wallets for the
// account cache.
type Service struct {
	repo   Repository
	ledger BalanceReader
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger BalanceReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID  string
	Currency string
}

// Create registers a wallet. Its ledger account exists implicitly from the
// first posting.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}

	currency := money.Currency(input.Currency)
	if currency == "" {
		currency = money.BTC
	}
	if err := currency.Validate(); err != nil {
		return Wallet{}, err
	}

	return s.create(ctx, input.OwnerID, currency, "")
}

func (s *Service) create(ctx context.Context, ownerID string, currency money.Currency, role accounts.Role) (Wallet, error) {
	wallet := Wallet{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Currency:  currency,
		Role:      role,
		Status:    statusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// Balance returns the ledger balance for the wallet in its own currency.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, wallet.Descriptor())
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: wallet.ID, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// ResolveSystemWallet implements accounts.SystemWalletResolver.
func (s *Service) ResolveSystemWallet(ctx context.Context, role accounts.Role) (string, error) {
	wallet, err := s.repo.FindByRole(ctx, role)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: %s", accounts.ErrSystemWalletNotFound, role)
		}
		return "", err
	}
	return wallet.ID, nil
}

// EnsureSystemWallets creates the bank owner and dealer wallets when missing.
// It is safe to run on every start.
func (s *Service) EnsureSystemWallets(ctx context.Context) error {
	for _, role := range accounts.Roles {
		_, err := s.repo.FindByRole(ctx, role)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("lookup %s wallet: %w", role, err)
		}

		wallet, err := s.create(ctx, systemOwnerID, systemWalletCurrency[role], role)
		if errors.Is(err, ErrExists) {
			// another replica won the race
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s wallet: %w", role, err)
		}
		s.logger.Info("system wallet created", slog.String("role", string(role)), slog.String("wallet_id", wallet.ID))
	}
	return nil
}
