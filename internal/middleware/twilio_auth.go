package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
)

// ValidateTwilioSignature rejects webhook requests whose X-Twilio-Signature
// does not match the request URL and form parameters.
func ValidateTwilioSignature(cfg config.TwilioConfig, log *zap.Logger) fiber.Handler {
	validator := client.NewRequestValidator(cfg.AuthToken)
	log = log.Named("twilio_auth")

	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing Twilio signature")
		}
		if cfg.AuthToken == "" {
			log.Error("webhook validation enabled without TWILIO_AUTH_TOKEN")
			return fiber.NewError(fiber.StatusInternalServerError, "Server configuration error")
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		url := fullURL(c, cfg.PublicBaseURL)
		if !validator.Validate(url, params, signature) {
			log.Warn("invalid webhook signature", zap.String("url", url))
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid signature")
		}
		return c.Next()
	}
}

// fullURL is the URL Twilio signed. Behind a proxy the public base URL wins
// over what the request itself reports.
func fullURL(c *fiber.Ctx, publicBase string) string {
	if publicBase != "" {
		return strings.TrimRight(publicBase, "/") + c.OriginalURL()
	}
	return fmt.Sprintf("%s://%s%s", c.Protocol(), c.Hostname(), c.OriginalURL())
}
