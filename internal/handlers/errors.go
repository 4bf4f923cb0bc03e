package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

// ErrorHandler renders every error as the JSON error envelope.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var apiErr *models.APIError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &fiberErr):
			apiErr = &models.APIError{
				Status:  fiberErr.Code,
				Code:    models.CodeForStatus(fiberErr.Code),
				Message: fiberErr.Message,
			}
		default:
			apiErr = models.NewInternalError(err)
		}

		fields := []zap.Field{
			zap.String("request_id", RequestID(c)),
			zap.String("path", c.Path()),
			zap.Int("status", apiErr.Status),
			zap.String("code", apiErr.Code),
		}
		if apiErr.Status >= fiber.StatusInternalServerError {
			log.Error("request failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("request rejected", append(fields, zap.String("message", apiErr.Message))...)
		}

		return c.Status(apiErr.Status).JSON(models.ErrorEnvelope{Error: models.ErrorBody{
			Code:      apiErr.Code,
			Message:   apiErr.Message,
			Details:   apiErr.Details,
			RequestID: RequestID(c),
			Timestamp: time.Now().UTC(),
		}})
	}
}

// RequestID returns the id assigned by the requestid middleware.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}

// RateLimited is the limiter's LimitReached handler.
func RateLimited(c *fiber.Ctx) error {
	return &models.APIError{
		Status:  fiber.StatusTooManyRequests,
		Code:    models.CodeRateLimited,
		Message: "Too many requests, please slow down",
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return models.NewInvalidBodyError(err)
	}
	return nil
}
