package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	// WhatsApp (Twilio) transport
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWhatsAppFrom  string
	TwilioWebhookSecret string

	// PIX payments (PSP REST API)
	PixBaseURL        string
	PixClientID       string
	PixClientSecret   string
	PixKey            string
	PixWebhookSecret  string
	PixChargeTTL      time.Duration
	AllowFakePayments bool

	// Google Ads reporting
	AdsCustomerID     string
	AdsDeveloperToken string
	AdsRefreshToken   string
	AdsClientID       string
	AdsClientSecret   string

	// Admin surface
	AdminJWTSecret string

	// AWS (SQS queue, DynamoDB job store, Bedrock, SES, S3 archive)
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	ConversationQueueURL  string
	ConversationJobsTable string
	TranscriptBucket      string
	BedrockModelID        string

	// Gemini fallback LLM
	GeminiAPIKey  string
	GeminiModelID string

	// Redis conversation state
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Email (SendGrid by default, SES when EMAIL_PROVIDER=ses)
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	DigestToEmail     string
	DigestHour        int

	// Webhook rate limiting (requests/sec per IP)
	WebhookRateLimit int
	WebhookBurst     int

	// Ghost recovery
	GhostFirstNudgeAfter  time.Duration
	GhostSecondNudgeAfter time.Duration
	GhostScanInterval     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:  getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		PixBaseURL:        getEnv("PIX_BASE_URL", ""),
		PixClientID:       getEnv("PIX_CLIENT_ID", ""),
		PixClientSecret:   getEnv("PIX_CLIENT_SECRET", ""),
		PixKey:            getEnv("PIX_KEY", ""),
		PixWebhookSecret:  getEnv("PIX_WEBHOOK_SECRET", ""),
		PixChargeTTL:      getEnvAsDuration("PIX_CHARGE_TTL", time.Hour),
		AllowFakePayments: getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),

		AdsCustomerID:     getEnv("ADS_CUSTOMER_ID", ""),
		AdsDeveloperToken: getEnv("ADS_DEVELOPER_TOKEN", ""),
		AdsRefreshToken:   getEnv("ADS_REFRESH_TOKEN", ""),
		AdsClientID:       getEnv("ADS_CLIENT_ID", ""),
		AdsClientSecret:   getEnv("ADS_CLIENT_SECRET", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:             getEnv("AWS_REGION", "sa-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConversationQueueURL:  getEnv("CONVERSATION_QUEUE_URL", ""),
		ConversationJobsTable: getEnv("CONVERSATION_JOBS_TABLE", "conversation_jobs"),
		TranscriptBucket:      getEnv("TRANSCRIPT_BUCKET", ""),
		BedrockModelID:        getEnv("BEDROCK_MODEL_ID", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EmailProvider:     getEnv("EMAIL_PROVIDER", "sendgrid"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Espaço Amar"),
		DigestToEmail:     getEnv("DIGEST_TO_EMAIL", ""),
		DigestHour:        getEnvAsInt("DIGEST_HOUR", 7),

		WebhookRateLimit: getEnvAsInt("WEBHOOK_RATE_LIMIT", 10),
		WebhookBurst:     getEnvAsInt("WEBHOOK_BURST", 30),

		GhostFirstNudgeAfter:  getEnvAsDuration("GHOST_FIRST_NUDGE_AFTER", 4*time.Hour),
		GhostSecondNudgeAfter: getEnvAsDuration("GHOST_SECOND_NUDGE_AFTER", 24*time.Hour),
		GhostScanInterval:     getEnvAsDuration("GHOST_SCAN_INTERVAL", 30*time.Minute),
	}
}

// IsProduction reports whether the app is running with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
