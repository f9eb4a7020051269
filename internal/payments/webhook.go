package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// WebhookHandler receives PSP payment notifications for PIX charges.
type WebhookHandler struct {
	secret  string
	service *Service
	logger  *logging.Logger
}

// NewWebhookHandler builds the PSP webhook handler. secret enables HMAC
// validation when non-empty.
func NewWebhookHandler(secret string, service *Service, logger *logging.Logger) *WebhookHandler {
	if service == nil {
		panic("payments: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{secret: secret, service: service, logger: logger}
}

// pixWebhookEvent follows the PIX API callback schema: one event may carry
// several settled transactions.
type pixWebhookEvent struct {
	Pix []struct {
		TxID       string    `json:"txid"`
		EndToEndID string    `json:"endToEndId"`
		Horario    time.Time `json:"horario"`
		Valor      string    `json:"valor"`
	} `json:"pix"`
}

// Handle processes POST /webhooks/pix.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if h.secret != "" {
		if !verifySignature(h.secret, payload, r.Header.Get("X-Webhook-Signature")) {
			h.logger.Warn("invalid pix webhook signature")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var evt pixWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode pix event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(evt.Pix) == 0 {
		http.Error(w, "missing pix entries", http.StatusBadRequest)
		return
	}

	for _, entry := range evt.Pix {
		if entry.TxID == "" {
			continue
		}
		if err := h.service.ConfirmPayment(r.Context(), entry.TxID, entry.Horario); err != nil {
			if errors.Is(err, ErrChargeNotFound) {
				h.logger.Warn("pix webhook for unknown charge", "txid", entry.TxID)
				continue
			}
			h.logger.Error("pix confirmation failed", "error", err, "txid", entry.TxID)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func verifySignature(secret string, payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
