package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// FakeProvider is a dev/demo PSP that issues synthetic copia-e-cola codes.
//
// Must be gated by configuration (ALLOW_FAKE_PAYMENTS); never enabled in
// production.
type FakeProvider struct {
	logger *logging.Logger
}

// NewFakeProvider builds the dev provider.
func NewFakeProvider(logger *logging.Logger) *FakeProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeProvider{logger: logger}
}

// CreateCharge returns a deterministic fake code so the funnel can be demoed
// end to end.
func (p *FakeProvider) CreateCharge(_ context.Context, params ChargeParams) (*ChargeResult, error) {
	if params.ExpiresIn <= 0 {
		params.ExpiresIn = 24 * time.Hour
	}
	p.logger.Warn("fake pix charge created", "txid", params.TxID)
	return &ChargeResult{
		TxID:      params.TxID,
		QRCode:    fmt.Sprintf("00020126FAKE%s5204000053039865802BR%s", params.TxID, formatAmount(params.AmountCents)),
		ExpiresAt: time.Now().UTC().Add(params.ExpiresIn),
	}, nil
}
