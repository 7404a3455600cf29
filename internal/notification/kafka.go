package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/congo-pay/bitledger/internal/ledger"
)

// MessageWriter is the subset of *kafka.Writer used to publish.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes a JournalEvent per committed journal, keyed by the
// idempotency hash so replays land on the same partition.
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaNotifier publishes through writer.
func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// JournalRecorded implements ledger.Notifier.
func (n *KafkaNotifier) JournalRecorded(ctx context.Context, journal ledger.Journal) error {
	data, err := json.Marshal(NewJournalEvent(journal))
	if err != nil {
		return fmt.Errorf("encode journal event: %w", err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(journal.Transaction.Hash()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(journal.Transaction.Metadata.Type())},
		},
	})
	if err != nil {
		return fmt.Errorf("publish journal %s: %w", journal.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
