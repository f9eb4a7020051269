package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/espacoamar/amanda-backend/cmd/mainconfig"
	"github.com/espacoamar/amanda-backend/internal/ads"
	"github.com/espacoamar/amanda-backend/internal/api/router"
	"github.com/espacoamar/amanda-backend/internal/appointments"
	"github.com/espacoamar/amanda-backend/internal/archive"
	appconfig "github.com/espacoamar/amanda-backend/internal/config"
	"github.com/espacoamar/amanda-backend/internal/conversation"
	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/internal/notify"
	"github.com/espacoamar/amanda-backend/internal/observability/metrics"
	"github.com/espacoamar/amanda-backend/internal/payments"
	"github.com/espacoamar/amanda-backend/internal/whatsapp"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting amanda-backend API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()

	// Postgres. The leads repository runs on pgx; the appointments and
	// payments repositories share a database/sql pool.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	leadsRepo := leads.NewPostgresRepository(pool)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	redisClient := newRedisClient(cfg)

	// Metrics registry. The engine sink and webhook observer feed it.
	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)
	messagingMetrics := metrics.NewMessagingMetrics(registry)

	// LLM stack: Bedrock primary, Gemini fallback when configured.
	var llm conversation.LLMClient = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			llm = conversation.NewFallbackLLMClient(llm, gemini, logger)
		}
	}
	analyzer := conversation.NewAnalyzer(llm, cfg.BedrockModelID, logger)

	apptRepo := appointments.NewRepository(db)
	apptService := appointments.NewService(apptRepo, logger)

	archiveStore := archive.NewStore(s3.NewFromConfig(awsCfg), cfg.TranscriptBucket, logger)
	var archiver conversation.TranscriptArchiver
	if archiveStore.Enabled() {
		archiver = archiveStore
	}

	svc := conversation.NewService(conversation.ServiceDeps{
		Repo:     leadsRepo,
		Analyzer: analyzer,
		LLM:      llm,
		ModelID:  cfg.BedrockModelID,
		Redis:    redisClient,
		Slots:    apptService,
		Booker:   apptService,
		Archive:  archiver,
		Sink:     engineMetrics,
		Logger:   logger,
	})

	// Turn dispatch: SQS in production, in-memory for local development.
	var orch *conversation.Orchestrator
	if cfg.UseMemoryQueue || cfg.ConversationQueueURL == "" {
		orch = conversation.NewOrchestrator(svc, conversation.NewMemoryQueue(64), nil, logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	} else {
		sqsQueue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
		jobStore := conversation.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.ConversationJobsTable, logger)
		orch = conversation.NewOrchestrator(svc, sqsQueue, jobStore, logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	}

	sender, err := whatsapp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
	if err != nil {
		logger.Error("failed to build twilio sender", "error", err)
		os.Exit(1)
	}

	waHandler := whatsapp.NewHandler(cfg.TwilioAuthToken, orch, sender, leadsRepo, logger).
		WithObserver(messagingMetrics)

	// Payments: real PSP when configured, fake provider only behind the
	// explicit flag outside production.
	paySvc, pixWebhook, payHandler := buildPayments(cfg, db, logger)

	apptHandler := appointments.NewHandler(apptRepo, logger)

	var adsHandler *ads.Handler
	if cfg.AdsCustomerID != "" && cfg.AdsDeveloperToken != "" {
		adsClient, err := ads.NewClient(cfg.AdsCustomerID, cfg.AdsDeveloperToken,
			ads.RefreshTokenSource(cfg.AdsClientID, cfg.AdsClientSecret, cfg.AdsRefreshToken), logger)
		if err != nil {
			logger.Warn("ads reporting unavailable", "error", err)
		} else {
			adsHandler = ads.NewHandler(ads.NewReporter(adsClient, leadsRepo, logger), logger)
		}
	}

	ghostWorker := conversation.NewGhostWorker(leadsRepo, sender, engineMetrics, logger, cfg.GhostScanInterval)
	ghostWorker.Start()

	emailSender := buildEmailSender(cfg, awsCfg, logger)
	var digest *notify.DigestService
	if cfg.DigestToEmail != "" {
		digest = notify.NewDigestService(apptRepo, leadsRepo, emailSender, cfg.DigestToEmail, logger)
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	if digest != nil {
		go runDailyDigest(bgCtx, digest, cfg.DigestHour, logger)
	}
	if paySvc != nil {
		go runExpireSweep(bgCtx, paySvc, logger)
	}

	r := router.New(&router.Config{
		Logger:              logger,
		WhatsAppHandler:     waHandler,
		PixWebhook:          pixWebhook,
		PaymentsHandler:     payHandler,
		AppointmentsHandler: apptHandler,
		AdsHandler:          adsHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WebhookRateLimit:    float64(cfg.WebhookRateLimit),
		WebhookBurst:        cfg.WebhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := ghostWorker.Stop(shutdownCtx); err != nil {
		logger.Error("ghost worker shutdown failed", "error", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

func buildPayments(cfg *appconfig.Config, db *sql.DB, logger *logging.Logger) (*payments.Service, *payments.WebhookHandler, *payments.Handler) {
	var provider payments.Provider
	switch {
	case cfg.PixBaseURL != "":
		p, err := payments.NewRESTProvider(cfg.PixBaseURL, cfg.PixClientSecret, cfg.PixKey, logger)
		if err != nil {
			logger.Error("pix provider misconfigured", "error", err)
			os.Exit(1)
		}
		provider = p
	case cfg.AllowFakePayments && !cfg.IsProduction():
		logger.Warn("using fake PIX provider; charges are not real")
		provider = payments.NewFakeProvider(logger)
	default:
		logger.Info("payments disabled; no PIX provider configured")
		return nil, nil, nil
	}

	svc := payments.NewService(payments.NewRepository(db), provider, logger)
	return svc,
		payments.NewWebhookHandler(cfg.PixWebhookSecret, svc, logger),
		payments.NewHandler(svc, logger)
}

func buildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if strings.EqualFold(cfg.EmailProvider, "ses") {
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
	}
	if s := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); s != nil {
		return s
	}
	return notify.NewStubEmailSender(logger)
}

// runDailyDigest sends the owner summary once a day at the configured local
// hour.
func runDailyDigest(ctx context.Context, digest *notify.DigestService, hour int, logger *logging.Logger) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	for {
		now := time.Now().In(loc)
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
		if err := digest.SendDaily(ctx, time.Now()); err != nil {
			logger.Error("daily digest failed", "error", err)
		}
	}
}

// runExpireSweep marks overdue pending charges as expired every few minutes.
func runExpireSweep(ctx context.Context, svc *payments.Service, logger *logging.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.ExpireSweep(ctx); err != nil {
				logger.Error("charge expiry sweep failed", "error", err)
			} else if n > 0 {
				logger.Info("expired pending charges", "count", n)
			}
		}
	}
}
