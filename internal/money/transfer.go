package money

// Transfer carries the value moved by a ledger operation. A same-currency
// transfer holds one amount; a cross-currency transfer holds the same
// economic value in both BTC and USD, already converted by the caller.
type Transfer struct {
	btc    PaymentAmount
	usd    PaymentAmount
	hasBTC bool
	hasUSD bool
}

// Single wraps a same-currency amount.
func Single(a PaymentAmount) Transfer {
	var t Transfer
	switch a.Currency {
	case BTC:
		t.btc, t.hasBTC = a, true
	case USD:
		t.usd, t.hasUSD = a, true
	}
	return t
}

// Pair wraps a converted {usd, btc} pair.
func Pair(usd, btc PaymentAmount) Transfer {
	t := Transfer{}
	if usd.Currency == USD {
		t.usd, t.hasUSD = usd, true
	}
	if btc.Currency == BTC {
		t.btc, t.hasBTC = btc, true
	}
	return t
}

// In returns the side of the transfer denominated in c, if present.
func (t Transfer) In(c Currency) (PaymentAmount, bool) {
	switch c {
	case BTC:
		return t.btc, t.hasBTC
	case USD:
		return t.usd, t.hasUSD
	default:
		return PaymentAmount{}, false
	}
}

// IsPair reports whether both denominations are present.
func (t Transfer) IsPair() bool { return t.hasBTC && t.hasUSD }
