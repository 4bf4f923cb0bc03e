package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
)

// Notifier delivers short messages to a user's phone.
type Notifier interface {
	Notify(ctx context.Context, phone, body string) error
	Enabled() bool
}

// messageCreator is the Twilio API call used by WhatsAppNotifier.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// WhatsAppNotifier sends messages through Twilio's WhatsApp sender.
type WhatsAppNotifier struct {
	api  messageCreator
	from string
	log  *zap.Logger
}

// NewNotifier returns a Twilio backed notifier, or a no-op one when Twilio
// credentials are missing.
func NewNotifier(cfg *config.Config, log *zap.Logger) Notifier {
	log = log.Named("notifier")
	if !cfg.TwilioEnabled() {
		log.Info("twilio not configured, notifications disabled")
		return NoopNotifier{}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.Twilio.AccountSID,
		Password: cfg.Twilio.AuthToken,
	})
	return &WhatsAppNotifier{api: client.Api, from: whatsAppAddress(cfg.Twilio.WhatsAppFrom), log: log}
}

func (n *WhatsAppNotifier) Enabled() bool { return true }

func (n *WhatsAppNotifier) Notify(ctx context.Context, phone, body string) error {
	if phone == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(whatsAppAddress(phone))
	params.SetBody(body)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		n.log.Error("whatsapp send failed", zap.String("to", phone), zap.Error(err))
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	n.log.Info("whatsapp message sent", zap.String("sid", sid))
	return nil
}

func whatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

// NoopNotifier drops every message.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, string) error { return nil }

func (NoopNotifier) Enabled() bool { return false }
