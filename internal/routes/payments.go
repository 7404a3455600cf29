package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bitledger/internal/payments"
)

// RegisterPaymentRoutes wires payment, treasury and journal endpoints.
// writeLimit guards every endpoint that records a journal.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, writeLimit fiber.Handler) {
	pay := r.Group("/payments", writeLimit)
	pay.Post("/send", h.Send)
	pay.Post("/receive", h.Receive)
	pay.Post("/p2p", h.P2P)
	pay.Post("/fee-reimbursement", h.ReimburseFee)

	treasury := r.Group("/treasury", writeLimit)
	treasury.Post("/cold-storage/deposit", h.ColdStorageDeposit)
	treasury.Post("/cold-storage/withdrawal", h.ColdStorageWithdrawal)

	r.Get("/journals/:hash", h.Journal)
}
