package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/congo-pay/bitledger/internal/ledger"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	r := NewRecorder()

	r.ObserveRecord(ledger.TypePayment, ledger.OutcomeRecorded, 3*time.Millisecond)
	r.ObserveRecord(ledger.TypePayment, ledger.OutcomeRecorded, 5*time.Millisecond)
	r.ObserveRecord(ledger.TypePayment, ledger.OutcomeDuplicate, time.Millisecond)
	r.ObserveRecord("", ledger.OutcomeRejected, time.Millisecond)

	if got := testutil.ToFloat64(r.records.WithLabelValues("payment", ledger.OutcomeRecorded)); got != 2 {
		t.Fatalf("expected 2 recorded payments, got %v", got)
	}
	if got := testutil.ToFloat64(r.records.WithLabelValues("payment", ledger.OutcomeDuplicate)); got != 1 {
		t.Fatalf("expected 1 duplicate, got %v", got)
	}
	if got := testutil.ToFloat64(r.records.WithLabelValues("unknown", ledger.OutcomeRejected)); got != 1 {
		t.Fatalf("expected untyped rejection under unknown, got %v", got)
	}
	if n := testutil.CollectAndCount(r.duration); n != 2 {
		t.Fatalf("expected 2 duration series, got %d", n)
	}
}
