package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espacoamar/amanda-backend/internal/ads"
	"github.com/espacoamar/amanda-backend/internal/conversation"
	"github.com/espacoamar/amanda-backend/internal/engine"
	httpmiddleware "github.com/espacoamar/amanda-backend/internal/http/middleware"
	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/internal/whatsapp"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

type stubProcessor struct{}

func (stubProcessor) StartConversation(context.Context, conversation.StartRequest) (*conversation.Response, error) {
	return &conversation.Response{Message: "oi"}, nil
}

func (stubProcessor) ProcessMessage(context.Context, conversation.MessageRequest) (*conversation.Response, error) {
	return &conversation.Response{
		LeadID:   "lead-1",
		Message:  "Oi! Como posso ajudar?",
		Decision: engine.Decision{Action: engine.ActionAskComplaint},
	}, nil
}

func (stubProcessor) GetHistory(context.Context, string) ([]conversation.ChatMessage, error) {
	return nil, nil
}

type stubSender struct{}

func (stubSender) SendText(context.Context, string, string) error { return nil }

type stubLeadRepo struct{}

func (stubLeadRepo) Create(context.Context, *leads.CreateLeadRequest) (*leads.Lead, error) {
	return &leads.Lead{ID: "lead-1"}, nil
}
func (stubLeadRepo) GetByID(context.Context, string) (*leads.Lead, error)    { return nil, nil }
func (stubLeadRepo) GetByPhone(context.Context, string) (*leads.Lead, error) { return nil, nil }
func (stubLeadRepo) GetOrCreateByPhone(context.Context, string, string) (*leads.Lead, error) {
	return &leads.Lead{ID: "lead-1"}, nil
}
func (stubLeadRepo) ApplyQualificationUpdate(context.Context, string, map[string]any) error {
	return nil
}
func (stubLeadRepo) TouchInbound(context.Context, string, time.Time) error { return nil }
func (stubLeadRepo) SetStatus(context.Context, string, leads.Status) error { return nil }
func (stubLeadRepo) SetOptOut(context.Context, string, bool) error         { return nil }
func (stubLeadRepo) ListGhostCandidates(context.Context, time.Time, int) ([]*leads.Lead, error) {
	return nil, nil
}

type fakeCampaigns struct{}

func (fakeCampaigns) FetchCampaignStats(context.Context, time.Time, time.Time) ([]ads.CampaignStats, error) {
	return []ads.CampaignStats{{CampaignID: "1", CampaignName: "Fono", CostMicros: 10_000_000}}, nil
}

type fakeLeadCounts struct{}

func (fakeLeadCounts) CountStatusBetween(context.Context, time.Time, time.Time) (map[leads.Status]int, error) {
	return map[leads.Status]int{leads.StatusNew: 2}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	waHandler := whatsapp.NewHandler("", stubProcessor{}, stubSender{}, stubLeadRepo{}, logger)
	adsHandler := ads.NewHandler(ads.NewReporter(fakeCampaigns{}, fakeLeadCounts{}, logger), logger)

	return New(&Config{
		Logger:          logger,
		WhatsAppHandler: waHandler,
		AdsHandler:      adsHandler,
		AdminAuthSecret: "test-secret",
	})
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRouter_WhatsAppWebhook(t *testing.T) {
	r := newTestRouter(t)

	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("AccountSid", "AC1")
	form.Set("From", "whatsapp:+5511999990000")
	form.Set("Body", "oi")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response>")
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/reports/ads", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminWithToken(t *testing.T) {
	r := newTestRouter(t)

	token, err := httpmiddleware.NewAdminToken("test-secret", "dona", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/reports/ads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "totalCostCents")
}

func TestRouter_RateLimitsWebhooks(t *testing.T) {
	logger := logging.Default()
	waHandler := whatsapp.NewHandler("", stubProcessor{}, stubSender{}, stubLeadRepo{}, logger)
	r := New(&Config{
		Logger:           logger,
		WhatsAppHandler:  waHandler,
		AdminAuthSecret:  "test-secret",
		WebhookRateLimit: 1,
		WebhookBurst:     1,
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Real-Ip", "9.9.9.9")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
