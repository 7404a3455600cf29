package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/congo-pay/bitledger/internal/ledger"
)

// PostingEvent is one posting of a published journal.
type PostingEvent struct {
	AccountID string `json:"account_id"`
	Direction string `json:"direction"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// JournalEvent describes a committed journal to downstream systems.
type JournalEvent struct {
	JournalID   string          `json:"journal_id"`
	Hash        string          `json:"hash"`
	Type        string          `json:"type"`
	Pending     bool            `json:"pending"`
	Description string          `json:"description"`
	Metadata    ledger.Metadata `json:"metadata"`
	Postings    []PostingEvent  `json:"postings"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// NewJournalEvent flattens journal into its wire form.
func NewJournalEvent(journal ledger.Journal) JournalEvent {
	tx := journal.Transaction
	event := JournalEvent{
		JournalID:   journal.ID,
		Hash:        tx.Hash(),
		Description: tx.Description,
		Metadata:    tx.Metadata,
		Postings:    make([]PostingEvent, 0, len(tx.Postings)),
		RecordedAt:  journal.RecordedAt,
	}
	if tx.Metadata != nil {
		event.Type = string(tx.Metadata.Type())
		event.Pending = tx.Metadata.IsPending()
	}
	for _, p := range tx.Postings {
		event.Postings = append(event.Postings, PostingEvent{
			AccountID: string(p.AccountID),
			Direction: p.Direction.String(),
			Amount:    p.Amount.Amount,
			Currency:  string(p.Amount.Currency),
		})
	}
	return event
}

// LoggerNotifier writes journal events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// JournalRecorded implements ledger.Notifier.
func (n *LoggerNotifier) JournalRecorded(_ context.Context, journal ledger.Journal) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("journal recorded",
		"journal_id", journal.ID,
		"hash", journal.Transaction.Hash(),
		"postings", len(journal.Transaction.Postings),
	)
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []ledger.Notifier

// JournalRecorded implements ledger.Notifier.
func (f Fanout) JournalRecorded(ctx context.Context, journal ledger.Journal) error {
	var errs []error
	for _, n := range f {
		if err := n.JournalRecorded(ctx, journal); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
