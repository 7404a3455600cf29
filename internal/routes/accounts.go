package routes

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bitledger/internal/ledger"
)

// SystemAccountRefresher re-resolves the cached system accounts.
type SystemAccountRefresher interface {
	Refresh(ctx context.Context) (ledger.StaticAccounts, error)
}

// RegisterSystemAccountRoutes exposes a manual refresh of the system account
// cache, used after a system wallet is rotated in the directory.
func RegisterSystemAccountRoutes(r fiber.Router, accounts SystemAccountRefresher, writeLimit fiber.Handler) {
	r.Post("/treasury/system-accounts/refresh", writeLimit, func(c *fiber.Ctx) error {
		resolved, err := accounts.Refresh(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"bank_owner": resolved.BankOwner,
			"dealer_btc": resolved.DealerBTC,
			"dealer_usd": resolved.DealerUSD,
		})
	})
}
