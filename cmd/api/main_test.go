package main

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/espacoamar/amanda-backend/internal/config"
	"github.com/espacoamar/amanda-backend/internal/notify"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

func TestBuildEmailSenderDefaultsToStub(t *testing.T) {
	sender := buildEmailSender(&appconfig.Config{}, aws.Config{}, logging.New("error"))
	if _, ok := sender.(*notify.StubEmailSender); !ok {
		t.Fatalf("expected stub sender without credentials, got %T", sender)
	}
}

func TestBuildEmailSenderSendGrid(t *testing.T) {
	cfg := &appconfig.Config{
		EmailProvider:     "sendgrid",
		SendGridAPIKey:    "SG.test",
		SendGridFromEmail: "amanda@espacoamar.com.br",
	}
	sender := buildEmailSender(cfg, aws.Config{}, logging.New("error"))
	if _, ok := sender.(*notify.SendGridSender); !ok {
		t.Fatalf("expected sendgrid sender, got %T", sender)
	}
}

func TestBuildPaymentsDisabledWithoutProvider(t *testing.T) {
	svc, webhook, handler := buildPayments(&appconfig.Config{}, nil, logging.New("error"))
	if svc != nil || webhook != nil || handler != nil {
		t.Fatalf("expected payments to be disabled without a provider")
	}
}

func TestBuildPaymentsFakeProviderGate(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	cfg := &appconfig.Config{Env: "development", AllowFakePayments: true}
	svc, webhook, handler := buildPayments(cfg, db, logging.New("error"))
	if svc == nil || webhook == nil || handler == nil {
		t.Fatalf("expected fake payments stack in development")
	}
}
