package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/logging"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/services"
)

const fallbackReply = "❌ Sorry, something went wrong. Please try again."

// WhatsAppHandler bridges Twilio WhatsApp messages to the assistant.
type WhatsAppHandler struct {
	assistant *services.Assistant
	notifier  services.Notifier
	log       *zap.Logger
}

func NewWhatsAppHandler(assistant *services.Assistant, notifier services.Notifier, log *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{assistant: assistant, notifier: notifier, log: log.Named("whatsapp")}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio.
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // whatsapp:+15551234567
	To         string `form:"To"`
	Body       string `form:"Body"`
	NumMedia   string `form:"NumMedia"`
}

// TestWebhookPayload drives the channel without Twilio.
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleWebhook answers an incoming message through the notifier. Twilio only
// needs the 200; status callbacks without a body are acknowledged as is.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if payload.Body == "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	from := strings.TrimPrefix(payload.From, "whatsapp:")
	h.log.Info("message received", zap.String("from", logging.Truncate(from, 8)), zap.String("sid", payload.MessageSid))

	reply := h.reply(c, from, payload.Body)
	if !h.notifier.Enabled() {
		h.log.Info("reply not sent, notifier disabled", zap.String("reply", logging.Truncate(reply, 80)))
		return c.SendStatus(fiber.StatusOK)
	}
	if err := h.notifier.Notify(c.UserContext(), from, reply); err != nil {
		h.log.Error("failed to send reply", zap.Error(err))
	}
	return c.SendStatus(fiber.StatusOK)
}

// HandleTestWebhook returns the reply in the response instead of sending it.
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if payload.From == "" || strings.TrimSpace(payload.Message) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "from and message are required")
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"response": h.reply(c, strings.TrimPrefix(payload.From, "whatsapp:"), payload.Message),
	})
}

func (h *WhatsAppHandler) reply(c *fiber.Ctx, from, text string) string {
	reply, err := h.assistant.Chat(c.UserContext(), from, text)
	if err != nil {
		h.log.Error("failed to process message", zap.Error(err))
		return fallbackReply
	}
	return reply
}
