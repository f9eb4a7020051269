package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/espacoamar/amanda-backend/internal/conversation"
	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

var webhookTracer = otel.Tracer("amanda.internal.whatsapp.webhook")

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// optOutConfirmation is sent once when a contact asks to stop receiving
// messages. Required by LGPD consent handling.
const optOutConfirmation = "Tudo bem! Não vou mais enviar mensagens. Se mudar de ideia, é só escrever por aqui. 💛"

// mediaFallback is sent when an audio or image arrives and no transcriber is
// configured (or transcription fails).
const mediaFallback = "Recebi seu áudio! Por enquanto consigo responder melhor por texto. Pode me escrever? 💛"

var optOutKeywords = []string{"sair", "parar", "cancelar", "stop", "pare"}

// Transcriber turns inbound voice notes into text before the conversation
// pipeline runs.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL, contentType string) (string, error)
}

// WebhookObserver receives counters for webhook outcomes. Satisfied by
// metrics.MessagingMetrics.
type WebhookObserver interface {
	ObserveInbound(status string)
	ObserveOutbound(status string)
	ObserveWebhookLatency(status string, seconds float64)
}

// Handler receives Twilio WhatsApp webhooks and drives the conversation
// pipeline for each inbound turn.
type Handler struct {
	authToken   string
	processor   conversation.Service
	sender      conversation.MessageSender
	leads       leads.Repository
	transcriber Transcriber
	observer    WebhookObserver
	logger      *logging.Logger

	processTimeout time.Duration
}

// WithTranscriber enables voice-note handling.
func (h *Handler) WithTranscriber(t Transcriber) *Handler {
	h.transcriber = t
	return h
}

// WithObserver enables webhook metrics.
func (h *Handler) WithObserver(o WebhookObserver) *Handler {
	h.observer = o
	return h
}

// NewHandler builds the webhook handler. authToken enables signature
// validation when non-empty.
func NewHandler(authToken string, processor conversation.Service, sender conversation.MessageSender, leadsRepo leads.Repository, logger *logging.Logger) *Handler {
	if processor == nil {
		panic("whatsapp: conversation processor cannot be nil")
	}
	if sender == nil {
		panic("whatsapp: sender cannot be nil")
	}
	if leadsRepo == nil {
		panic("whatsapp: lead repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		authToken:      authToken,
		processor:      processor,
		sender:         sender,
		leads:          leadsRepo,
		logger:         logger,
		processTimeout: 25 * time.Second,
	}
}

// Webhook handles POST /webhooks/whatsapp requests.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "whatsapp.webhook")
	defer span.End()
	start := time.Now()

	if h.authToken != "" {
		if !ValidateSignature(r, h.authToken, BuildAbsoluteURL(r)) {
			h.logger.Warn("invalid twilio signature")
			span.RecordError(errors.New("invalid twilio signature"))
			h.observe("rejected", start)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	inbound, err := ParseWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse whatsapp webhook", "error", err)
		span.RecordError(err)
		h.observe("bad_request", start)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := NormalizeE164(inbound.From)
	span.SetAttributes(
		attribute.String("amanda.twilio.message_sid", inbound.MessageSid),
		attribute.String("amanda.from", from),
	)

	body := strings.TrimSpace(inbound.Body)
	if body == "" && inbound.HasMedia() {
		body = h.resolveMedia(ctx, inbound, from)
		if body == "" {
			h.observe("media_fallback", start)
			writeTwiML(w)
			return
		}
	}

	if inbound.MessageSid == "" || from == "" || body == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid whatsapp payload", "error", err)
		span.RecordError(err)
		h.observe("bad_request", start)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if isOptOut(body) {
		h.handleOptOut(ctx, from, inbound.ProfileName)
		h.observe("opt_out", start)
		writeTwiML(w)
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, h.processTimeout)
	defer cancel()

	resp, err := h.processor.ProcessMessage(processCtx, conversation.MessageRequest{
		Phone:      from,
		Message:    body,
		ReceivedAt: time.Now().UTC(),
		Metadata: map[string]string{
			"twilio_message_sid": inbound.MessageSid,
			"twilio_account_sid": inbound.AccountSid,
			"profile_name":       inbound.ProfileName,
		},
	})
	if err != nil {
		h.logger.Error("conversation turn failed", "error", err, "from", from)
		span.RecordError(err)
		// Twilio retries on 5xx; the turn already failed, so ack and move on.
		h.observe("error", start)
		writeTwiML(w)
		return
	}

	if err := h.sender.SendText(ctx, from, resp.Message); err != nil {
		h.logger.Error("failed to send whatsapp reply", "error", err, "lead_id", resp.LeadID)
		span.RecordError(err)
		if h.observer != nil {
			h.observer.ObserveOutbound("error")
		}
	} else if h.observer != nil {
		h.observer.ObserveOutbound("sent")
	}

	h.logger.Info("whatsapp turn handled",
		"lead_id", resp.LeadID,
		"action", resp.Decision.Action,
		"mode", resp.Mode,
	)
	h.observe("ok", start)
	writeTwiML(w)
}

func (h *Handler) observe(status string, start time.Time) {
	if h.observer == nil {
		return
	}
	h.observer.ObserveInbound(status)
	h.observer.ObserveWebhookLatency(status, time.Since(start).Seconds())
}

// resolveMedia turns a voice note into text, or sends the fallback reply and
// returns empty when it cannot.
func (h *Handler) resolveMedia(ctx context.Context, inbound *InboundMessage, from string) string {
	if h.transcriber == nil {
		h.sendFallback(ctx, from)
		return ""
	}
	text, err := h.transcriber.Transcribe(ctx, inbound.MediaURL, inbound.MediaContentType)
	if err != nil || strings.TrimSpace(text) == "" {
		h.logger.Warn("media transcription failed", "error", err, "from", from)
		h.sendFallback(ctx, from)
		return ""
	}
	return strings.TrimSpace(text)
}

func (h *Handler) sendFallback(ctx context.Context, to string) {
	if err := h.sender.SendText(ctx, to, mediaFallback); err != nil {
		h.logger.Warn("media fallback send failed", "error", err, "to", to)
	}
}

func (h *Handler) handleOptOut(ctx context.Context, phone, contactName string) {
	lead, err := h.leads.GetOrCreateByPhone(ctx, phone, contactName)
	if err != nil {
		h.logger.Error("opt-out lookup failed", "error", err, "from", phone)
		return
	}
	if err := h.leads.SetOptOut(ctx, lead.ID, true); err != nil {
		h.logger.Error("opt-out persist failed", "error", err, "lead_id", lead.ID)
		return
	}
	if err := h.sender.SendText(ctx, phone, optOutConfirmation); err != nil {
		h.logger.Warn("opt-out confirmation send failed", "error", err, "lead_id", lead.ID)
	}
	h.logger.Info("lead opted out", "lead_id", lead.ID)
}

func isOptOut(body string) bool {
	normalized := strings.ToLower(strings.TrimSpace(body))
	for _, kw := range optOutKeywords {
		if normalized == kw {
			return true
		}
	}
	return false
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// HealthCheck returns a liveness response for the load balancer.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
