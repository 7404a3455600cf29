package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/bitledger/internal/accounts"
	"github.com/congo-pay/bitledger/internal/money"
)

var (
	// ErrNotFound is returned when no wallet matches the lookup.
	ErrNotFound = errors.New("wallet not found")
	// ErrExists is returned when creating a wallet whose id or role is taken.
	ErrExists = errors.New("wallet exists")
)

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	FindByRole(ctx context.Context, role accounts.Role) (Wallet, error)
}

const walletSchema = `
CREATE TABLE IF NOT EXISTS wallets (
    id         UUID PRIMARY KEY,
    owner_id   UUID NOT NULL,
    currency   TEXT NOT NULL,
    role       TEXT UNIQUE,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the wallets table if it is missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, walletSchema); err != nil {
		return fmt.Errorf("migrate wallet schema: %w", err)
	}
	return nil
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(wallet.OwnerID)
	if err != nil {
		return err
	}
	var role *string
	if wallet.Role != "" {
		v := string(wallet.Role)
		role = &v
	}
	tag, err := r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, currency, role, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT DO NOTHING`, walletID, ownerID, string(wallet.Currency), role, wallet.Status, wallet.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

// Get fetches wallet metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletUUID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return r.scanOne(ctx, `SELECT id, owner_id, currency, role, status, created_at
        FROM wallets WHERE id = $1`, walletUUID)
}

// FindByRole fetches the system wallet holding role.
func (r *PostgresRepository) FindByRole(ctx context.Context, role accounts.Role) (Wallet, error) {
	return r.scanOne(ctx, `SELECT id, owner_id, currency, role, status, created_at
        FROM wallets WHERE role = $1`, string(role))
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, arg any) (Wallet, error) {
	var (
		w         Wallet
		idVal     uuid.UUID
		ownerID   uuid.UUID
		currency  string
		role      *string
		createdAt time.Time
	)
	if err := r.db.QueryRow(ctx, query, arg).Scan(&idVal, &ownerID, &currency, &role, &w.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = idVal.String()
	w.OwnerID = ownerID.String()
	w.Currency = money.Currency(currency)
	if role != nil {
		w.Role = accounts.Role(*role)
	}
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
