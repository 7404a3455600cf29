package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/bitledger/internal/accounts"
	"github.com/congo-pay/bitledger/internal/config"
	"github.com/congo-pay/bitledger/internal/ledger"
	"github.com/congo-pay/bitledger/internal/metrics"
	"github.com/congo-pay/bitledger/internal/middleware"
	"github.com/congo-pay/bitledger/internal/notification"
	"github.com/congo-pay/bitledger/internal/payments"
	"github.com/congo-pay/bitledger/internal/wallet"
)

const bootstrapTimeout = 30 * time.Second

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Events notification.MessageWriter
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. Without a
// database the ledger and wallet directory are kept in memory, which is only
// allowed in development.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	var (
		store      ledger.Store
		walletRepo wallet.Repository
	)
	if d.DB != nil {
		pgStore := ledger.NewPostgresStore(d.DB)
		if err := pgStore.Migrate(ctx); err != nil {
			return err
		}
		pgWallets := wallet.NewPostgresRepository(d.DB)
		if err := pgWallets.Migrate(ctx); err != nil {
			return err
		}
		store, walletRepo = pgStore, pgWallets
	} else {
		d.Logger.Warn("no database configured, ledger is kept in memory")
		store, walletRepo = ledger.NewInMemory(), wallet.NewMemoryRepository()
	}

	// The directory resolves system wallets before the facade exists; it
	// never reads balances.
	directory := wallet.NewService(walletRepo, nil, d.Logger)
	if err := directory.EnsureSystemWallets(ctx); err != nil {
		return fmt.Errorf("bootstrap system wallets: %w", err)
	}
	var resolver accounts.SystemWalletResolver = directory
	if d.Cache != nil {
		resolver = accounts.NewRedisResolver(d.Cache, directory, d.Cfg.SystemCacheTTL, d.Logger)
	}
	staticAccounts := accounts.NewStaticCache(resolver, d.Logger)
	// Shared Redis entries may predate this directory; resolve afresh.
	if _, err := staticAccounts.Refresh(ctx); err != nil {
		return fmt.Errorf("resolve system accounts: %w", err)
	}

	notifiers := notification.Fanout{notification.NewLoggerNotifier(d.Logger)}
	if d.Events != nil {
		notifiers = append(notifiers, notification.NewKafkaNotifier(d.Events))
	}
	recorder := metrics.NewRecorder()
	facade := ledger.NewFacade(store, staticAccounts,
		ledger.WithLogger(d.Logger),
		ledger.WithNotifier(notifiers),
		ledger.WithObserver(recorder),
	)

	walletSvc := wallet.NewService(walletRepo, facade, d.Logger)
	paymentSvc := payments.NewService(facade, walletSvc)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, recorder)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc))
	writeLimit := middleware.RateLimit(d.Cache, "ledger-write", d.Cfg.RateLimit)
	RegisterPaymentRoutes(api, payments.NewHandler(paymentSvc), writeLimit)
	RegisterSystemAccountRoutes(api, staticAccounts, writeLimit)

	return nil
}

// ErrorHandler renders fiber errors as JSON bodies.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError && logger != nil {
			logger.Error("unhandled request error", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(code).JSON(fiber.Map{
			"error":      err.Error(),
			"request_id": middleware.RequestIDFrom(c),
		})
	}
}
