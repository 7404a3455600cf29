package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/congo-pay/bitledger/internal/money"
)

// TransactionType tags the business meaning of a journal.
type TransactionType string

const (
	TypePayment            TransactionType = "payment"
	TypeInvoice            TransactionType = "invoice"
	TypeOnchainPayment     TransactionType = "onchain_payment"
	TypeOnchainReceipt     TransactionType = "onchain_receipt"
	TypeIntraLedger        TransactionType = "on_us"
	TypeLnIntraLedger      TransactionType = "ln_on_us"
	TypeOnchainIntraLedger TransactionType = "onchain_on_us"
	TypeToColdStorage      TransactionType = "to_cold_storage"
	TypeToHotWallet        TransactionType = "to_hot_wallet"
	TypeLnFeeReimbursement TransactionType = "fee_reimbursement"
)

// Metadata is attached to every posting of a journal.
type Metadata interface {
	Type() TransactionType
	IdempotencyHash() string
	IsPending() bool
	DisplayAmount() decimal.Decimal
}

// SendMetadata is accepted by RecordSend.
type SendMetadata interface {
	Metadata
	sendMetadata()
}

// ReceiveMetadata is accepted by RecordReceive.
type ReceiveMetadata interface {
	Metadata
	receiveMetadata()
}

// IntraledgerMetadata is accepted by RecordIntraledger.
type IntraledgerMetadata interface {
	Metadata
	intraledgerMetadata()
}

// BaseMetadata holds the fields shared by all variants.
type BaseMetadata struct {
	TxType  TransactionType `json:"type"`
	Hash    string          `json:"hash"`
	Pending bool            `json:"pending"`
	// Display is the amount in the display currency at recording time.
	Display decimal.Decimal `json:"display_amount"`
}

func (m BaseMetadata) Type() TransactionType          { return m.TxType }
func (m BaseMetadata) IdempotencyHash() string        { return m.Hash }
func (m BaseMetadata) IsPending() bool                { return m.Pending }
func (m BaseMetadata) DisplayAmount() decimal.Decimal { return m.Display }

// FeeFields are carried by transactions crossing the system boundary.
type FeeFields struct {
	FeeSats    int64           `json:"fee"`
	FeeDisplay decimal.Decimal `json:"fee_display"`
}

// IntraledgerFields are carried by transfers between hosted wallets.
type IntraledgerFields struct {
	MemoPayer string `json:"memo_payer,omitempty"`
	Username  string `json:"username,omitempty"`
}

// LnSendMetadata tags an outgoing lightning payment.
type LnSendMetadata struct {
	BaseMetadata
	FeeFields
	Pubkey            string `json:"pubkey"`
	FeeKnownInAdvance bool   `json:"fee_known_in_advance"`
}

func (LnSendMetadata) sendMetadata() {}

// OnChainSendMetadata tags an outgoing on-chain payment.
type OnChainSendMetadata struct {
	BaseMetadata
	FeeFields
	PayeeAddresses []string `json:"payee_addresses"`
	SendAll        bool     `json:"send_all"`
}

func (OnChainSendMetadata) sendMetadata() {}

// LnReceiveMetadata tags a settled lightning invoice.
type LnReceiveMetadata struct {
	BaseMetadata
	FeeFields
}

func (LnReceiveMetadata) receiveMetadata() {}

// OnChainReceiveMetadata tags a confirmed on-chain deposit.
type OnChainReceiveMetadata struct {
	BaseMetadata
	FeeFields
	PayeeAddresses []string `json:"payee_addresses"`
}

func (OnChainReceiveMetadata) receiveMetadata() {}

// FeeReimbursementMetadata refunds the unused part of a fee paid upfront.
type FeeReimbursementMetadata struct {
	BaseMetadata
	RelatedJournal string `json:"related_journal"`
}

func (FeeReimbursementMetadata) receiveMetadata() {}

// LnIntraledgerMetadata tags a lightning invoice paid by another hosted wallet.
type LnIntraledgerMetadata struct {
	BaseMetadata
	IntraledgerFields
	Pubkey string `json:"pubkey"`
}

func (LnIntraledgerMetadata) intraledgerMetadata() {}

// OnChainIntraledgerMetadata tags an on-chain address paid by another hosted wallet.
type OnChainIntraledgerMetadata struct {
	BaseMetadata
	IntraledgerFields
	PayeeAddresses []string `json:"payee_addresses"`
	SendAll        bool     `json:"send_all"`
}

func (OnChainIntraledgerMetadata) intraledgerMetadata() {}

// WalletIDIntraledgerMetadata tags a direct wallet-to-wallet transfer.
type WalletIDIntraledgerMetadata struct {
	BaseMetadata
	IntraledgerFields
}

func (WalletIDIntraledgerMetadata) intraledgerMetadata() {}

// ColdStorageMetadata describes a rebalance between the hot and cold wallets.
type ColdStorageMetadata struct {
	BaseMetadata
	FeeFields
	PayeeAddresses []string       `json:"payee_addresses"`
	Currency       money.Currency `json:"currency"`
}

// LnSendArgs feeds NewLnSendMetadata.
type LnSendArgs struct {
	PaymentHash       string
	Fee               money.PaymentAmount
	FeeDisplay        decimal.Decimal
	AmountDisplay     decimal.Decimal
	Pubkey            string
	FeeKnownInAdvance bool
}

// NewLnSendMetadata describes an outgoing lightning payment. It starts pending
// until the payment settles.
func NewLnSendMetadata(args LnSendArgs) LnSendMetadata {
	return LnSendMetadata{
		BaseMetadata: BaseMetadata{
			TxType:  TypePayment,
			Hash:    args.PaymentHash,
			Pending: true,
			Display: args.AmountDisplay,
		},
		FeeFields:         FeeFields{FeeSats: args.Fee.Amount, FeeDisplay: args.FeeDisplay},
		Pubkey:            args.Pubkey,
		FeeKnownInAdvance: args.FeeKnownInAdvance,
	}
}

// OnChainSendArgs feeds NewOnChainSendMetadata.
type OnChainSendArgs struct {
	TxHash         string
	Fee            money.PaymentAmount
	FeeDisplay     decimal.Decimal
	AmountDisplay  decimal.Decimal
	PayeeAddresses []string
	SendAll        bool
}

// NewOnChainSendMetadata describes an outgoing on-chain payment, pending until
// the transaction confirms.
func NewOnChainSendMetadata(args OnChainSendArgs) OnChainSendMetadata {
	return OnChainSendMetadata{
		BaseMetadata: BaseMetadata{
			TxType:  TypeOnchainPayment,
			Hash:    args.TxHash,
			Pending: true,
			Display: args.AmountDisplay,
		},
		FeeFields:      FeeFields{FeeSats: args.Fee.Amount, FeeDisplay: args.FeeDisplay},
		PayeeAddresses: args.PayeeAddresses,
		SendAll:        args.SendAll,
	}
}

// LnReceiveArgs feeds NewLnReceiveMetadata.
type LnReceiveArgs struct {
	PaymentHash   string
	Fee           money.PaymentAmount
	FeeDisplay    decimal.Decimal
	AmountDisplay decimal.Decimal
}

// NewLnReceiveMetadata describes a settled incoming invoice.
func NewLnReceiveMetadata(args LnReceiveArgs) LnReceiveMetadata {
	return LnReceiveMetadata{
		BaseMetadata: BaseMetadata{
			TxType:  TypeInvoice,
			Hash:    args.PaymentHash,
			Pending: false,
			Display: args.AmountDisplay,
		},
		FeeFields: FeeFields{FeeSats: args.Fee.Amount, FeeDisplay: args.FeeDisplay},
	}
}

// OnChainReceiveArgs feeds NewOnChainReceiveMetadata.
type OnChainReceiveArgs struct {
	TxHash         string
	Fee            money.PaymentAmount
	FeeDisplay     decimal.Decimal
	AmountDisplay  decimal.Decimal
	PayeeAddresses []string
}

// NewOnChainReceiveMetadata describes a confirmed incoming on-chain payment.
func NewOnChainReceiveMetadata(args OnChainReceiveArgs) OnChainReceiveMetadata {
	return OnChainReceiveMetadata{
		BaseMetadata: BaseMetadata{
			TxType:  TypeOnchainReceipt,
			Hash:    args.TxHash,
			Pending: false,
			Display: args.AmountDisplay,
		},
		FeeFields:      FeeFields{FeeSats: args.Fee.Amount, FeeDisplay: args.FeeDisplay},
		PayeeAddresses: args.PayeeAddresses,
	}
}

// NewFeeReimbursementMetadata refunds part of the fee of relatedJournal.
func NewFeeReimbursementMetadata(paymentHash, relatedJournal string, amountDisplay decimal.Decimal) FeeReimbursementMetadata {
	return FeeReimbursementMetadata{
		BaseMetadata: BaseMetadata{
			TxType:  TypeLnFeeReimbursement,
			Hash:    paymentHash,
			Pending: false,
			Display: amountDisplay,
		},
		RelatedJournal: relatedJournal,
	}
}

// IntraledgerMetadataArgs feeds the intraledger metadata constructors. Hash is the
// payment hash for lightning transfers and the caller's transfer id otherwise.
type IntraledgerMetadataArgs struct {
	Hash          string
	AmountDisplay decimal.Decimal
	MemoPayer     string
	Username      string
}

func (a IntraledgerMetadataArgs) base(t TransactionType) BaseMetadata {
	return BaseMetadata{TxType: t, Hash: a.Hash, Pending: false, Display: a.AmountDisplay}
}

// NewLnIntraledgerMetadata describes a lightning invoice paid by a hosted wallet.
func NewLnIntraledgerMetadata(args IntraledgerMetadataArgs, pubkey string) LnIntraledgerMetadata {
	return LnIntraledgerMetadata{
		BaseMetadata:      args.base(TypeLnIntraLedger),
		IntraledgerFields: IntraledgerFields{MemoPayer: args.MemoPayer, Username: args.Username},
		Pubkey:            pubkey,
	}
}

// NewOnChainIntraledgerMetadata describes an on-chain address owned by a hosted wallet.
func NewOnChainIntraledgerMetadata(args IntraledgerMetadataArgs, payeeAddresses []string, sendAll bool) OnChainIntraledgerMetadata {
	return OnChainIntraledgerMetadata{
		BaseMetadata:      args.base(TypeOnchainIntraLedger),
		IntraledgerFields: IntraledgerFields{MemoPayer: args.MemoPayer, Username: args.Username},
		PayeeAddresses:    payeeAddresses,
		SendAll:           sendAll,
	}
}

// NewWalletIDIntraledgerMetadata describes a direct wallet-to-wallet transfer.
func NewWalletIDIntraledgerMetadata(args IntraledgerMetadataArgs) WalletIDIntraledgerMetadata {
	return WalletIDIntraledgerMetadata{
		BaseMetadata:      args.base(TypeIntraLedger),
		IntraledgerFields: IntraledgerFields{MemoPayer: args.MemoPayer, Username: args.Username},
	}
}

// ColdStorageMetadataArgs feeds the cold storage metadata constructors.
type ColdStorageMetadataArgs struct {
	TxHash         string
	Fee            money.PaymentAmount
	FeeDisplay     decimal.Decimal
	AmountDisplay  decimal.Decimal
	PayeeAddresses []string
}

// NewColdStorageDepositMetadata describes hot wallet funds sent to cold storage.
func NewColdStorageDepositMetadata(args ColdStorageMetadataArgs) ColdStorageMetadata {
	return newColdStorageMetadata(TypeToColdStorage, args)
}

// NewColdStorageWithdrawalMetadata describes cold storage funds returned to the hot wallet.
func NewColdStorageWithdrawalMetadata(args ColdStorageMetadataArgs) ColdStorageMetadata {
	return newColdStorageMetadata(TypeToHotWallet, args)
}

func newColdStorageMetadata(t TransactionType, args ColdStorageMetadataArgs) ColdStorageMetadata {
	return ColdStorageMetadata{
		BaseMetadata: BaseMetadata{
			TxType:  t,
			Hash:    args.TxHash,
			Pending: true,
			Display: args.AmountDisplay,
		},
		FeeFields:      FeeFields{FeeSats: args.Fee.Amount, FeeDisplay: args.FeeDisplay},
		PayeeAddresses: args.PayeeAddresses,
		Currency:       money.BTC,
	}
}
