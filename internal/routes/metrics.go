package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/congo-pay/bitledger/internal/metrics"
)

// RegisterMetricsRoute exposes the recorder registry in the Prometheus text format.
func RegisterMetricsRoute(app *fiber.App, recorder *metrics.Recorder) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{})))
}
