package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

var senderTracer = otel.Tracer("amanda.internal.whatsapp.sender")

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers outbound WhatsApp text through Twilio's Messages API.
// It satisfies conversation.MessageSender.
type TwilioSender struct {
	api    messageCreator
	from   string
	logger *logging.Logger
}

// NewTwilioSender builds a sender. The from number may come with or without
// the whatsapp: prefix.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("whatsapp: twilio credentials missing")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("whatsapp: from number required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{
		api:    client.Api,
		from:   ChannelAddress(from),
		logger: logger,
	}, nil
}

// SendText dispatches a single WhatsApp message.
func (s *TwilioSender) SendText(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("whatsapp: to required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("whatsapp: body required")
	}

	_, span := senderTracer.Start(ctx, "whatsapp.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("amanda.to", NormalizeE164(to)))

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(ChannelAddress(NormalizeE164(to)))
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("whatsapp: twilio send failed: %w", err)
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	s.logger.Info("whatsapp message sent", "to", NormalizeE164(to), "message_sid", sid)
	return nil
}
