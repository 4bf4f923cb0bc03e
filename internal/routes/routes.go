package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/handlers"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/middleware"
)

// Handlers groups every route handler.
type Handlers struct {
	Query    *handlers.QueryHandler
	Health   *handlers.HealthHandler
	Wallet   *handlers.WalletHandler
	Actions  *handlers.ActionHandler
	WhatsApp *handlers.WhatsAppHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers, log *zap.Logger) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "DeFi assistant API",
			"version": h.Health.Version,
			"mode":    cfg.Mode(),
			"endpoints": fiber.Map{
				"query":   "/query",
				"intent":  "/intent",
				"health":  "/health",
				"wallet":  "/wallet",
				"actions": "/actions",
				"webhook": "/webhook/whatsapp",
			},
		})
	})

	health := app.Group("/health")
	health.Get("/", h.Health.Check)
	health.Get("/detailed", h.Health.Detailed)
	health.Get("/models", h.Health.Models)
	health.Get("/ready", h.Health.Ready)
	health.Get("/live", h.Health.Live)
	health.Get("/mode", h.Health.Mode)

	limit := rateLimiter(cfg.Server)

	query := app.Group("/query", limit)
	query.Post("/start-session", h.Query.StartSession)
	query.Post("/", h.Query.Query)
	query.Get("/session/:id", h.Query.GetSession)
	query.Delete("/session/:id", h.Query.DeleteSession)
	query.Get("/stats", h.Query.Stats)

	app.Post("/intent", limit, h.Query.Intent)

	wallet := app.Group("/wallet")
	wallet.Post("/connect-wallet", h.Wallet.Connect)
	wallet.Post("/wallet-status", h.Wallet.Status)
	wallet.Post("/disconnect-wallet", h.Wallet.Disconnect)

	app.Post("/actions", limit, h.Actions.Run)

	webhooks := app.Group("/webhook")
	if cfg.Twilio.ValidateHooks {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.Twilio, log), h.WhatsApp.HandleWebhook)
	} else {
		log.Warn("WhatsApp webhook signature validation disabled")
		webhooks.Post("/whatsapp", h.WhatsApp.HandleWebhook)
	}

	if !cfg.IsProduction() {
		app.Post("/test/whatsapp", h.WhatsApp.HandleTestWebhook)
	}
}

func rateLimiter(cfg config.ServerConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          cfg.RateLimit,
		Expiration:   cfg.RateWindow,
		LimitReached: handlers.RateLimited,
	})
}
