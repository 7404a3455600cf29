package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/money"
	"github.com/congo-pay/bitledger/internal/wallet"
)

// Rail is the settlement network of a payment.
type Rail string

const (
	RailLightning Rail = "lightning"
	RailOnChain   Rail = "onchain"
)

var (
	// ErrInvalidAmount indicates a request without a positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrUnknownRail indicates an unsupported settlement rail.
	ErrUnknownRail = errors.New("unknown payment rail")
	// ErrInsufficientFunds indicates the sender balance does not cover the debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameWallet indicates a transfer whose sender and receiver coincide.
	ErrSameWallet = errors.New("sender and receiver are the same wallet")
)

// Ledger is the subset of the ledger facade used by payments.
type Ledger interface {
	RecordSend(ctx context.Context, args ledger.SendArgs) (ledger.Journal, error)
	RecordReceive(ctx context.Context, args ledger.ReceiveArgs) (ledger.Journal, error)
	RecordIntraledger(ctx context.Context, args ledger.IntraledgerArgs) (ledger.Journal, error)
	RecordColdStorageDeposit(ctx context.Context, args ledger.ColdStorageArgs) (ledger.Journal, error)
	RecordColdStorageWithdrawal(ctx context.Context, args ledger.ColdStorageArgs) (ledger.Journal, error)
	JournalByHash(ctx context.Context, hash string) (ledger.Journal, error)
	Balance(ctx context.Context, wallet ledger.WalletDescriptor) (money.PaymentAmount, error)
}

// Wallets looks wallets up in the directory.
type Wallets interface {
	Get(ctx context.Context, id string) (wallet.Wallet, error)
}

// Service turns payment requests into ledger journals.
type Service struct {
	ledger  Ledger
	wallets Wallets
}

// NewService constructs a payment service.
func NewService(ledger Ledger, wallets Wallets) *Service {
	return &Service{ledger: ledger, wallets: wallets}
}

// Amount is the value of a request. Cross-currency requests carry both sides,
// already converted by the caller.
type Amount struct {
	Sats  int64
	Cents int64
}

func (a Amount) transfer() (money.Transfer, error) {
	if a.Sats < 0 || a.Cents < 0 {
		return money.Transfer{}, ErrInvalidAmount
	}
	switch {
	case a.Sats > 0 && a.Cents > 0:
		return money.Pair(money.Cents(a.Cents), money.Sats(a.Sats)), nil
	case a.Sats > 0:
		return money.Single(money.Sats(a.Sats)), nil
	case a.Cents > 0:
		return money.Single(money.Cents(a.Cents)), nil
	default:
		return money.Transfer{}, ErrInvalidAmount
	}
}

// Display carries the display-currency snapshot recorded with a journal.
type Display struct {
	Amount decimal.Decimal
	Fee    decimal.Decimal
}

// Result describes the ledger outcome of a request.
type Result struct {
	JournalID string
	Hash      string
	Type      ledger.TransactionType
	Pending   bool
	// AlreadyRecorded is set when the hash had been recorded before; the
	// journal returned is the original one.
	AlreadyRecorded bool
	RecordedAt      time.Time
	// Balance is the wallet balance after recording, when a wallet is involved.
	Balance *money.PaymentAmount
}

// SendInput describes an outgoing payment from a hosted wallet.
type SendInput struct {
	WalletID    string
	Rail        Rail
	Amount      Amount
	FeeSats     int64
	Hash        string
	Description string
	Display     Display

	Pubkey            string
	FeeKnownInAdvance bool
	PayeeAddresses    []string
	SendAll           bool
}

// Send records an outgoing lightning or on-chain payment.
func (s *Service) Send(ctx context.Context, input SendInput) (Result, error) {
	amount, err := input.Amount.transfer()
	if err != nil {
		return Result{}, err
	}
	fee, err := feeAmount(input.FeeSats)
	if err != nil {
		return Result{}, err
	}
	sender, err := s.wallets.Get(ctx, input.WalletID)
	if err != nil {
		return Result{}, err
	}

	var md ledger.SendMetadata
	switch input.Rail {
	case RailLightning:
		md = ledger.NewLnSendMetadata(ledger.LnSendArgs{
			PaymentHash:       input.Hash,
			Fee:               fee,
			FeeDisplay:        input.Display.Fee,
			AmountDisplay:     input.Display.Amount,
			Pubkey:            input.Pubkey,
			FeeKnownInAdvance: input.FeeKnownInAdvance,
		})
	case RailOnChain:
		md = ledger.NewOnChainSendMetadata(ledger.OnChainSendArgs{
			TxHash:         input.Hash,
			Fee:            fee,
			FeeDisplay:     input.Display.Fee,
			AmountDisplay:  input.Display.Amount,
			PayeeAddresses: input.PayeeAddresses,
			SendAll:        input.SendAll,
		})
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownRail, input.Rail)
	}

	if err := s.ensureFunds(ctx, sender, amount); err != nil {
		return s.replayOr(ctx, input.Hash, &sender, err)
	}

	journal, err := s.ledger.RecordSend(ctx, ledger.SendArgs{
		Description: input.Description,
		Sender:      sender.Descriptor(),
		Amount:      amount,
		Metadata:    md,
		Fee:         fee,
	})
	return s.result(ctx, input.Hash, journal, err, &sender)
}

// ReceiveInput describes an incoming payment to a hosted wallet.
type ReceiveInput struct {
	WalletID    string
	Rail        Rail
	Amount      Amount
	FeeSats     int64
	Hash        string
	Description string
	Display     Display

	PayeeAddresses []string
}

// Receive records a settled invoice or a confirmed on-chain deposit.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Result, error) {
	amount, err := input.Amount.transfer()
	if err != nil {
		return Result{}, err
	}
	fee, err := feeAmount(input.FeeSats)
	if err != nil {
		return Result{}, err
	}
	receiver, err := s.wallets.Get(ctx, input.WalletID)
	if err != nil {
		return Result{}, err
	}

	var md ledger.ReceiveMetadata
	switch input.Rail {
	case RailLightning:
		md = ledger.NewLnReceiveMetadata(ledger.LnReceiveArgs{
			PaymentHash:   input.Hash,
			Fee:           fee,
			FeeDisplay:    input.Display.Fee,
			AmountDisplay: input.Display.Amount,
		})
	case RailOnChain:
		md = ledger.NewOnChainReceiveMetadata(ledger.OnChainReceiveArgs{
			TxHash:         input.Hash,
			Fee:            fee,
			FeeDisplay:     input.Display.Fee,
			AmountDisplay:  input.Display.Amount,
			PayeeAddresses: input.PayeeAddresses,
		})
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownRail, input.Rail)
	}

	journal, err := s.ledger.RecordReceive(ctx, ledger.ReceiveArgs{
		Description: input.Description,
		Receiver:    receiver.Descriptor(),
		Amount:      amount,
		Metadata:    md,
		Fee:         fee,
	})
	return s.result(ctx, input.Hash, journal, err, &receiver)
}

// ReimburseInput refunds the unused part of a lightning fee paid upfront.
type ReimburseInput struct {
	WalletID       string
	Amount         Amount
	Hash           string
	RelatedJournal string
	Display        decimal.Decimal
}

// ReimburseFee records a fee reimbursement as a receive into the wallet.
func (s *Service) ReimburseFee(ctx context.Context, input ReimburseInput) (Result, error) {
	amount, err := input.Amount.transfer()
	if err != nil {
		return Result{}, err
	}
	receiver, err := s.wallets.Get(ctx, input.WalletID)
	if err != nil {
		return Result{}, err
	}

	journal, err := s.ledger.RecordReceive(ctx, ledger.ReceiveArgs{
		Description: "fee reimbursement",
		Receiver:    receiver.Descriptor(),
		Amount:      amount,
		Metadata:    ledger.NewFeeReimbursementMetadata(input.Hash, input.RelatedJournal, input.Display),
	})
	return s.result(ctx, input.Hash, journal, err, &receiver)
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       Amount
	// ClientTxID is the idempotency hash. Lightning transfers pass the
	// payment hash. A missing id is generated.
	ClientTxID  string
	Description string
	Display     decimal.Decimal
	Memo        string
	Username    string

	// Rail is empty for a direct wallet transfer.
	Rail           Rail
	Pubkey         string
	PayeeAddresses []string
	SendAll        bool
}

// Transfer posts a balanced ledger entry between two hosted wallets.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Result, error) {
	amount, err := input.Amount.transfer()
	if err != nil {
		return Result{}, err
	}
	if input.FromWalletID == input.ToWalletID {
		return Result{}, ErrSameWallet
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.New().String()
	}

	fromWallet, err := s.wallets.Get(ctx, input.FromWalletID)
	if err != nil {
		return Result{}, err
	}
	toWallet, err := s.wallets.Get(ctx, input.ToWalletID)
	if err != nil {
		return Result{}, err
	}

	args := ledger.IntraledgerMetadataArgs{
		Hash:          input.ClientTxID,
		AmountDisplay: input.Display,
		MemoPayer:     input.Memo,
		Username:      input.Username,
	}
	var md ledger.IntraledgerMetadata
	switch input.Rail {
	case "":
		md = ledger.NewWalletIDIntraledgerMetadata(args)
	case RailLightning:
		md = ledger.NewLnIntraledgerMetadata(args, input.Pubkey)
	case RailOnChain:
		md = ledger.NewOnChainIntraledgerMetadata(args, input.PayeeAddresses, input.SendAll)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownRail, input.Rail)
	}

	if err := s.ensureFunds(ctx, fromWallet, amount); err != nil {
		return s.replayOr(ctx, input.ClientTxID, &fromWallet, err)
	}

	journal, err := s.ledger.RecordIntraledger(ctx, ledger.IntraledgerArgs{
		Description: input.Description,
		Sender:      fromWallet.Descriptor(),
		Receiver:    toWallet.Descriptor(),
		Amount:      amount,
		Metadata:    md,
	})
	return s.result(ctx, input.ClientTxID, journal, err, &fromWallet)
}

// ColdStorageInput describes an on-chain rebalance of the hot wallet.
type ColdStorageInput struct {
	Sats           int64
	FeeSats        int64
	TxHash         string
	PayeeAddresses []string
	Display        Display
}

// DepositToColdStorage records hot wallet funds sent to cold storage.
func (s *Service) DepositToColdStorage(ctx context.Context, input ColdStorageInput) (Result, error) {
	args, err := coldStorageArgs(input, ledger.NewColdStorageDepositMetadata)
	if err != nil {
		return Result{}, err
	}
	journal, err := s.ledger.RecordColdStorageDeposit(ctx, args)
	return s.result(ctx, input.TxHash, journal, err, nil)
}

// WithdrawFromColdStorage records cold storage funds returned to the hot wallet.
func (s *Service) WithdrawFromColdStorage(ctx context.Context, input ColdStorageInput) (Result, error) {
	args, err := coldStorageArgs(input, ledger.NewColdStorageWithdrawalMetadata)
	if err != nil {
		return Result{}, err
	}
	journal, err := s.ledger.RecordColdStorageWithdrawal(ctx, args)
	return s.result(ctx, input.TxHash, journal, err, nil)
}

// Journal returns the journal recorded under hash.
func (s *Service) Journal(ctx context.Context, hash string) (ledger.Journal, error) {
	return s.ledger.JournalByHash(ctx, hash)
}

func coldStorageArgs(input ColdStorageInput, newMetadata func(ledger.ColdStorageMetadataArgs) ledger.ColdStorageMetadata) (ledger.ColdStorageArgs, error) {
	if input.Sats <= 0 {
		return ledger.ColdStorageArgs{}, ErrInvalidAmount
	}
	fee, err := feeAmount(input.FeeSats)
	if err != nil {
		return ledger.ColdStorageArgs{}, err
	}
	return ledger.ColdStorageArgs{
		Description: "cold storage rebalance",
		Amount:      money.Sats(input.Sats),
		Fee:         fee,
		Metadata: newMetadata(ledger.ColdStorageMetadataArgs{
			TxHash:         input.TxHash,
			Fee:            fee,
			FeeDisplay:     input.Display.Fee,
			AmountDisplay:  input.Display.Amount,
			PayeeAddresses: input.PayeeAddresses,
		}),
	}, nil
}

func feeAmount(sats int64) (money.PaymentAmount, error) {
	if sats < 0 {
		return money.PaymentAmount{}, fmt.Errorf("%w: fee %d", money.ErrNegativeAmount, sats)
	}
	return money.Sats(sats), nil
}

// ensureFunds rejects a debit larger than the sender balance. It reads outside
// the recording transaction, so concurrent debits are not serialised here.
func (s *Service) ensureFunds(ctx context.Context, sender wallet.Wallet, amount money.Transfer) error {
	debit, ok := amount.In(sender.Currency)
	if !ok {
		return fmt.Errorf("%w: no %s amount for the sender", ledger.ErrMissingConversionAmount, sender.Currency)
	}
	balance, err := s.ledger.Balance(ctx, sender.Descriptor())
	if err != nil {
		return err
	}
	if balance.Amount < debit.Amount {
		return ErrInsufficientFunds
	}
	return nil
}

// result turns a facade outcome into a Result. A duplicate hash is not an
// error here: the original journal is returned instead.
func (s *Service) result(ctx context.Context, hash string, journal ledger.Journal, err error, w *wallet.Wallet) (Result, error) {
	if err != nil {
		if !ledger.IsRetryable(err) {
			return Result{}, err
		}
		journal, err = s.ledger.JournalByHash(ctx, hash)
		if err != nil {
			return Result{}, err
		}
		return s.describe(ctx, journal, true, w)
	}
	return s.describe(ctx, journal, false, w)
}

// replayOr returns the journal already recorded under hash, if any, and cause
// otherwise. A replayed send may fail the funds check because the original
// already debited the wallet.
func (s *Service) replayOr(ctx context.Context, hash string, w *wallet.Wallet, cause error) (Result, error) {
	if !errors.Is(cause, ErrInsufficientFunds) || hash == "" {
		return Result{}, cause
	}
	journal, err := s.ledger.JournalByHash(ctx, hash)
	if err != nil {
		return Result{}, cause
	}
	return s.describe(ctx, journal, true, w)
}

func (s *Service) describe(ctx context.Context, journal ledger.Journal, already bool, w *wallet.Wallet) (Result, error) {
	res := Result{
		JournalID:       journal.ID,
		Hash:            journal.Transaction.Hash(),
		AlreadyRecorded: already,
		RecordedAt:      journal.RecordedAt,
	}
	if md := journal.Transaction.Metadata; md != nil {
		res.Type = md.Type()
		res.Pending = md.IsPending()
	}
	if w != nil {
		balance, err := s.ledger.Balance(ctx, w.Descriptor())
		if err != nil {
			return Result{}, err
		}
		res.Balance = &balance
	}
	return res, nil
}
