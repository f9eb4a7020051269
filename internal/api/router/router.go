package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/espacoamar/amanda-backend/internal/ads"
	"github.com/espacoamar/amanda-backend/internal/appointments"
	httpmiddleware "github.com/espacoamar/amanda-backend/internal/http/middleware"
	"github.com/espacoamar/amanda-backend/internal/payments"
	"github.com/espacoamar/amanda-backend/internal/whatsapp"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	WhatsAppHandler     *whatsapp.Handler
	PixWebhook          *payments.WebhookHandler
	PaymentsHandler     *payments.Handler
	AppointmentsHandler *appointments.Handler
	AdsHandler          *ads.Handler

	AdminAuthSecret string
	MetricsHandler  http.Handler

	// Requests/sec allowed per IP on webhook endpoints. Zero disables
	// limiting.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: webhooks, health, metrics.
	r.Group(func(public chi.Router) {
		if cfg.WebhookRateLimit > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
		}
		if cfg.WhatsAppHandler != nil {
			public.Get("/healthz", cfg.WhatsAppHandler.HealthCheck)
			public.Post("/webhooks/whatsapp", cfg.WhatsAppHandler.Webhook)
		}
		if cfg.PixWebhook != nil {
			public.Post("/webhooks/pix", cfg.PixWebhook.Handle)
		}
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Admin API. Everything under /admin requires a valid token.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.AppointmentsHandler != nil {
			admin.Mount("/appointments", cfg.AppointmentsHandler.Routes())
		}
		if cfg.PaymentsHandler != nil {
			admin.Mount("/payments", cfg.PaymentsHandler.Routes())
		}
		if cfg.AdsHandler != nil {
			admin.Get("/reports/ads", cfg.AdsHandler.Report)
		}
	})

	return r
}
