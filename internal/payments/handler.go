package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/money"
	"github.com/congo-pay/bitledger/internal/wallet"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	Sats  int64 `json:"sats"`
	Cents int64 `json:"cents"`
}

func (a amountRequest) amount() Amount { return Amount{Sats: a.Sats, Cents: a.Cents} }

type sendRequest struct {
	WalletID          string          `json:"wallet_id"`
	Rail              Rail            `json:"rail"`
	Amount            amountRequest   `json:"amount"`
	FeeSats           int64           `json:"fee_sats"`
	Hash              string          `json:"hash"`
	Description       string          `json:"description"`
	DisplayAmount     decimal.Decimal `json:"display_amount"`
	DisplayFee        decimal.Decimal `json:"display_fee"`
	Pubkey            string          `json:"pubkey"`
	FeeKnownInAdvance bool            `json:"fee_known_in_advance"`
	PayeeAddresses    []string        `json:"payee_addresses"`
	SendAll           bool            `json:"send_all"`
}

type receiveRequest struct {
	WalletID       string          `json:"wallet_id"`
	Rail           Rail            `json:"rail"`
	Amount         amountRequest   `json:"amount"`
	FeeSats        int64           `json:"fee_sats"`
	Hash           string          `json:"hash"`
	Description    string          `json:"description"`
	DisplayAmount  decimal.Decimal `json:"display_amount"`
	DisplayFee     decimal.Decimal `json:"display_fee"`
	PayeeAddresses []string        `json:"payee_addresses"`
}

type transferRequest struct {
	FromWalletID   string          `json:"from_wallet_id"`
	ToWalletID     string          `json:"to_wallet_id"`
	Amount         amountRequest   `json:"amount"`
	ClientTxID     string          `json:"client_tx_id"`
	Description    string          `json:"description"`
	DisplayAmount  decimal.Decimal `json:"display_amount"`
	Memo           string          `json:"memo"`
	Username       string          `json:"username"`
	Rail           Rail            `json:"rail"`
	Pubkey         string          `json:"pubkey"`
	PayeeAddresses []string        `json:"payee_addresses"`
	SendAll        bool            `json:"send_all"`
}

type reimburseRequest struct {
	WalletID       string          `json:"wallet_id"`
	Amount         amountRequest   `json:"amount"`
	Hash           string          `json:"hash"`
	RelatedJournal string          `json:"related_journal"`
	DisplayAmount  decimal.Decimal `json:"display_amount"`
}

type coldStorageRequest struct {
	Sats           int64           `json:"sats"`
	FeeSats        int64           `json:"fee_sats"`
	TxHash         string          `json:"tx_hash"`
	PayeeAddresses []string        `json:"payee_addresses"`
	DisplayAmount  decimal.Decimal `json:"display_amount"`
	DisplayFee     decimal.Decimal `json:"display_fee"`
}

// Send records an outgoing payment.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Send(c.UserContext(), SendInput{
		WalletID:          req.WalletID,
		Rail:              req.Rail,
		Amount:            req.Amount.amount(),
		FeeSats:           req.FeeSats,
		Hash:              req.Hash,
		Description:       req.Description,
		Display:           Display{Amount: req.DisplayAmount, Fee: req.DisplayFee},
		Pubkey:            req.Pubkey,
		FeeKnownInAdvance: req.FeeKnownInAdvance,
		PayeeAddresses:    req.PayeeAddresses,
		SendAll:           req.SendAll,
	})
	return respond(c, res, err)
}

// Receive records an incoming payment.
func (h *Handler) Receive(c *fiber.Ctx) error {
	var req receiveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Receive(c.UserContext(), ReceiveInput{
		WalletID:       req.WalletID,
		Rail:           req.Rail,
		Amount:         req.Amount.amount(),
		FeeSats:        req.FeeSats,
		Hash:           req.Hash,
		Description:    req.Description,
		Display:        Display{Amount: req.DisplayAmount, Fee: req.DisplayFee},
		PayeeAddresses: req.PayeeAddresses,
	})
	return respond(c, res, err)
}

// P2P processes a wallet-to-wallet transfer.
func (h *Handler) P2P(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Amount:         req.Amount.amount(),
		ClientTxID:     req.ClientTxID,
		Description:    req.Description,
		Display:        req.DisplayAmount,
		Memo:           req.Memo,
		Username:       req.Username,
		Rail:           req.Rail,
		Pubkey:         req.Pubkey,
		PayeeAddresses: req.PayeeAddresses,
		SendAll:        req.SendAll,
	})
	return respond(c, res, err)
}

// ReimburseFee refunds part of a lightning fee.
func (h *Handler) ReimburseFee(c *fiber.Ctx) error {
	var req reimburseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.ReimburseFee(c.UserContext(), ReimburseInput{
		WalletID:       req.WalletID,
		Amount:         req.Amount.amount(),
		Hash:           req.Hash,
		RelatedJournal: req.RelatedJournal,
		Display:        req.DisplayAmount,
	})
	return respond(c, res, err)
}

// ColdStorageDeposit records a rebalance into cold storage.
func (h *Handler) ColdStorageDeposit(c *fiber.Ctx) error {
	req, err := parseColdStorage(c)
	if err != nil {
		return err
	}
	res, err := h.service.DepositToColdStorage(c.UserContext(), req)
	return respond(c, res, err)
}

// ColdStorageWithdrawal records a rebalance back to the hot wallet.
func (h *Handler) ColdStorageWithdrawal(c *fiber.Ctx) error {
	req, err := parseColdStorage(c)
	if err != nil {
		return err
	}
	res, err := h.service.WithdrawFromColdStorage(c.UserContext(), req)
	return respond(c, res, err)
}

// Journal returns the journal recorded under a hash.
func (h *Handler) Journal(c *fiber.Ctx) error {
	journal, err := h.service.Journal(c.UserContext(), c.Params("hash"))
	if err != nil {
		return mapError(err)
	}

	postings := make([]fiber.Map, 0, len(journal.Transaction.Postings))
	for _, p := range journal.Transaction.Postings {
		postings = append(postings, fiber.Map{
			"account_id": p.AccountID,
			"direction":  p.Direction.String(),
			"amount":     p.Amount.Amount,
			"currency":   p.Amount.Currency,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"journal_id":  journal.ID,
		"hash":        journal.Transaction.Hash(),
		"description": journal.Transaction.Description,
		"metadata":    journal.Transaction.Metadata,
		"postings":    postings,
		"recorded_at": journal.RecordedAt,
	})
}

func parseColdStorage(c *fiber.Ctx) (ColdStorageInput, error) {
	var req coldStorageRequest
	if err := c.BodyParser(&req); err != nil {
		return ColdStorageInput{}, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return ColdStorageInput{
		Sats:           req.Sats,
		FeeSats:        req.FeeSats,
		TxHash:         req.TxHash,
		PayeeAddresses: req.PayeeAddresses,
		Display:        Display{Amount: req.DisplayAmount, Fee: req.DisplayFee},
	}, nil
}

func respond(c *fiber.Ctx, res Result, err error) error {
	if err != nil {
		return mapError(err)
	}

	status := http.StatusCreated
	if res.AlreadyRecorded {
		status = http.StatusOK
	}
	body := fiber.Map{
		"journal_id":       res.JournalID,
		"hash":             res.Hash,
		"type":             res.Type,
		"pending":          res.Pending,
		"already_recorded": res.AlreadyRecorded,
		"recorded_at":      res.RecordedAt.Format(time.RFC3339Nano),
	}
	if res.Balance != nil {
		body["balance"] = res.Balance.Amount
		body["currency"] = res.Balance.Currency
	}
	return c.Status(status).JSON(body)
}

func mapError(err error) error {
	var unbalanced *ledger.UnbalancedError
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrUnknownRail),
		errors.Is(err, ErrSameWallet),
		errors.Is(err, ledger.ErrMissingConversionAmount),
		errors.Is(err, ledger.ErrMissingHash),
		errors.Is(err, ledger.ErrInvalidFee),
		errors.Is(err, money.ErrUnsupportedCurrency),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrNegativeAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, ledger.ErrJournalNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.As(err, &unbalanced), errors.Is(err, ledger.ErrNothingToBalance), errors.Is(err, ledger.ErrEmptyTransaction),
		errors.Is(err, ledger.ErrAmountOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case ledger.SeverityOf(err) == ledger.SeverityCritical:
		return fiber.NewError(http.StatusServiceUnavailable, "ledger unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
