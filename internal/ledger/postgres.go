package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/bitledger/internal/money"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_journals (
    id          UUID PRIMARY KEY,
    hash        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL,
    type        TEXT NOT NULL,
    pending     BOOLEAN NOT NULL,
    metadata    JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_postings (
    id          UUID PRIMARY KEY,
    journal_id  UUID NOT NULL REFERENCES ledger_journals(id),
    position    INT NOT NULL,
    account_id  TEXT NOT NULL,
    currency    TEXT NOT NULL,
    debit       BIGINT NOT NULL DEFAULT 0,
    credit      BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_ledger_postings_account ON ledger_postings (account_id);
`

// PostgresStore persists journals in PostgreSQL. Every journal and its
// postings are written in one database transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the journal and posting tables if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// Append records tx. A hash already present yields ErrDuplicateTransaction and
// leaves the database untouched.
func (s *PostgresStore) Append(ctx context.Context, tx Transaction) (Journal, error) {
	hash := tx.Hash()
	if hash == "" {
		return Journal{}, ErrMissingHash
	}
	if err := checkBalanced(tx.Postings); err != nil {
		return Journal{}, err
	}
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return Journal{}, fmt.Errorf("encode metadata: %w", err)
	}

	dbTx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Journal{}, err
	}
	defer dbTx.Rollback(ctx) // nolint:errcheck

	journalID := uuid.New()
	var recordedAt time.Time
	err = dbTx.QueryRow(ctx, `
        INSERT INTO ledger_journals (id, hash, description, type, pending, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (hash) DO NOTHING
        RETURNING created_at`,
		journalID, hash, tx.Description, string(tx.Metadata.Type()), tx.Metadata.IsPending(), metadata,
	).Scan(&recordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrDuplicateTransaction
		}
		return Journal{}, fmt.Errorf("insert journal: %w", err)
	}

	rows := make([][]any, 0, len(tx.Postings))
	for i, p := range tx.Postings {
		var debit, credit int64
		if p.Direction == Debit {
			debit = p.Amount.Amount
		} else {
			credit = p.Amount.Amount
		}
		rows = append(rows, []any{uuid.New(), journalID, i, string(p.AccountID), string(p.Amount.Currency), debit, credit})
	}
	_, err = dbTx.CopyFrom(ctx, pgx.Identifier{"ledger_postings"},
		[]string{"id", "journal_id", "position", "account_id", "currency", "debit", "credit"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return Journal{}, fmt.Errorf("insert postings: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return Journal{}, err
	}

	return Journal{ID: journalID.String(), Transaction: tx, RecordedAt: recordedAt.UTC()}, nil
}

// Balance returns credits minus debits for account.
func (s *PostgresStore) Balance(ctx context.Context, account AccountID) (int64, error) {
	const query = `SELECT COALESCE(SUM(credit - debit), 0) FROM ledger_postings WHERE account_id = $1`
	var balance int64
	if err := s.db.QueryRow(ctx, query, string(account)).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// JournalByHash loads a journal with its postings. The metadata comes back as
// StoredMetadata since the concrete variant is not persisted.
func (s *PostgresStore) JournalByHash(ctx context.Context, hash string) (Journal, error) {
	var (
		id          uuid.UUID
		description string
		raw         []byte
		recordedAt  time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, description, metadata, created_at FROM ledger_journals WHERE hash = $1`, hash,
	).Scan(&id, &description, &raw, &recordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, err
	}

	md := StoredMetadata{Raw: raw}
	if err := json.Unmarshal(raw, &md.BaseMetadata); err != nil {
		return Journal{}, fmt.Errorf("decode metadata: %w", err)
	}

	rows, err := s.db.Query(ctx, `
        SELECT account_id, currency, debit, credit
        FROM ledger_postings
        WHERE journal_id = $1
        ORDER BY position`, id)
	if err != nil {
		return Journal{}, err
	}
	defer rows.Close()

	var postings []Posting
	for rows.Next() {
		var (
			account, currency string
			debit, credit     int64
		)
		if err := rows.Scan(&account, &currency, &debit, &credit); err != nil {
			return Journal{}, err
		}
		p := Posting{AccountID: AccountID(account), Direction: Credit, Amount: money.PaymentAmount{Amount: credit, Currency: money.Currency(currency)}}
		if debit > 0 {
			p.Direction = Debit
			p.Amount.Amount = debit
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return Journal{}, err
	}

	return Journal{
		ID:          id.String(),
		Transaction: Transaction{Description: description, Postings: postings, Metadata: md},
		RecordedAt:  recordedAt.UTC(),
	}, nil
}

// StoredMetadata is metadata read back from storage. The common fields are
// decoded; the variant-specific ones stay in Raw.
type StoredMetadata struct {
	BaseMetadata
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON re-emits the stored document unchanged.
func (m StoredMetadata) MarshalJSON() ([]byte, error) {
	if len(m.Raw) == 0 {
		return json.Marshal(m.BaseMetadata)
	}
	return m.Raw, nil
}
