package payments

import (
	"context"
	"fmt"
	"time"
)

// ChargeParams is what the PSP needs to open a cobrança.
type ChargeParams struct {
	TxID        string
	AmountCents int
	Description string
	ExpiresIn   time.Duration
}

// ChargeResult is the PSP's answer: the copia-e-cola code the lead pays with.
type ChargeResult struct {
	TxID      string
	QRCode    string
	ExpiresAt time.Time
}

// Provider creates PIX charges at the payment service provider.
type Provider interface {
	CreateCharge(ctx context.Context, params ChargeParams) (*ChargeResult, error)
}

// formatAmount renders cents in the "123.45" form the PIX API expects.
func formatAmount(cents int) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
