package ledger

import (
	"errors"
	"testing"

	"github.com/congo-pay/bitledger/internal/money"
)

func TestRoute(t *testing.T) {
	pair := money.Pair(money.Cents(200), money.Sats(3_000))

	tests := []struct {
		name                string
		sender, receiver    money.Currency
		amount              money.Transfer
		wantDebit, wantCred money.PaymentAmount
		wantErr             error
	}{
		{name: "btc to btc", sender: money.BTC, receiver: money.BTC, amount: money.Single(money.Sats(500)), wantDebit: money.Sats(500), wantCred: money.Sats(500)},
		{name: "usd to usd", sender: money.USD, receiver: money.USD, amount: money.Single(money.Cents(75)), wantDebit: money.Cents(75), wantCred: money.Cents(75)},
		{name: "btc to btc ignores usd side", sender: money.BTC, receiver: money.BTC, amount: pair, wantDebit: money.Sats(3_000), wantCred: money.Sats(3_000)},
		{name: "usd to btc", sender: money.USD, receiver: money.BTC, amount: pair, wantDebit: money.Cents(200), wantCred: money.Sats(3_000)},
		{name: "btc to usd", sender: money.BTC, receiver: money.USD, amount: pair, wantDebit: money.Sats(3_000), wantCred: money.Cents(200)},
		{name: "usd to btc missing btc side", sender: money.USD, receiver: money.BTC, amount: money.Single(money.Cents(200)), wantErr: ErrMissingConversionAmount},
		{name: "btc to usd missing usd side", sender: money.BTC, receiver: money.USD, amount: money.Single(money.Sats(3_000)), wantErr: ErrMissingConversionAmount},
		{name: "usd to usd with btc only", sender: money.USD, receiver: money.USD, amount: money.Single(money.Sats(1)), wantErr: ErrMissingConversionAmount},
		{name: "unknown currency", sender: "EUR", receiver: money.BTC, amount: pair, wantErr: money.ErrUnsupportedCurrency},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			debit, credit, err := Route(tc.sender, tc.receiver, tc.amount)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("route: %v", err)
			}
			if debit != tc.wantDebit || credit != tc.wantCred {
				t.Fatalf("got debit %v credit %v, want %v / %v", debit, credit, tc.wantDebit, tc.wantCred)
			}
		})
	}
}
