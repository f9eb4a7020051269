package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_ConfirmsCharge(t *testing.T) {
	store := newFakeChargeStore()
	svc := NewService(store, NewFakeProvider(nil), nil)
	charge, err := svc.CreateCharge(context.Background(), &CreateChargeRequest{LeadID: "lead-1", AmountCents: 18000})
	require.NoError(t, err)

	h := NewWebhookHandler("secret", svc, nil)

	body := `{"pix":[{"txid":"` + charge.TxID + `","horario":"2026-09-01T15:00:00Z","valor":"180.00"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signBody("secret", body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusConfirmed, store.byTxID[charge.TxID].Status)
}

func TestWebhookHandler_RejectsBadSignature(t *testing.T) {
	svc := NewService(newFakeChargeStore(), NewFakeProvider(nil), nil)
	h := NewWebhookHandler("secret", svc, nil)

	body := `{"pix":[{"txid":"tx1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "bogus")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandler_UnknownTxIDIsAccepted(t *testing.T) {
	svc := NewService(newFakeChargeStore(), NewFakeProvider(nil), nil)
	h := NewWebhookHandler("", svc, nil)

	body := `{"pix":[{"txid":"nope","horario":"2026-09-01T15:00:00Z"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	// Unknown charges are logged, not retried forever by the PSP.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookHandler_EmptyEvent(t *testing.T) {
	svc := NewService(newFakeChargeStore(), NewFakeProvider(nil), nil)
	h := NewWebhookHandler("", svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
