package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// chargeStore narrows Repository for the service and its tests.
type chargeStore interface {
	Insert(ctx context.Context, c *Charge) error
	GetByID(ctx context.Context, id string) (*Charge, error)
	GetByTxID(ctx context.Context, txid string) (*Charge, error)
	ListByLead(ctx context.Context, leadID string) ([]Charge, error)
	MarkPaid(ctx context.Context, txid string, paidAt time.Time) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// Service owns the PIX charge lifecycle: create at the PSP, persist, confirm
// on webhook, expire on sweep.
type Service struct {
	store    chargeStore
	provider Provider
	logger   *logging.Logger
	now      func() time.Time

	chargeWindow time.Duration
}

// NewService builds the payments service.
func NewService(store chargeStore, provider Provider, logger *logging.Logger) *Service {
	if store == nil {
		panic("payments: store cannot be nil")
	}
	if provider == nil {
		panic("payments: provider cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:        store,
		provider:     provider,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		chargeWindow: 24 * time.Hour,
	}
}

// CreateCharge opens a charge at the PSP and records it.
func (s *Service) CreateCharge(ctx context.Context, req *CreateChargeRequest) (*Charge, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// PIX txids are alphanumeric, max 35 chars.
	txid := strings.ReplaceAll(uuid.NewString(), "-", "")

	result, err := s.provider.CreateCharge(ctx, ChargeParams{
		TxID:        txid,
		AmountCents: req.AmountCents,
		Description: req.Description,
		ExpiresIn:   s.chargeWindow,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	charge := &Charge{
		ID:            uuid.NewString(),
		LeadID:        req.LeadID,
		AppointmentID: req.AppointmentID,
		TxID:          result.TxID,
		AmountCents:   req.AmountCents,
		Description:   req.Description,
		QRCode:        result.QRCode,
		Status:        StatusPending,
		ExpiresAt:     result.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, charge); err != nil {
		return nil, err
	}

	s.logger.Info("pix charge recorded",
		"charge_id", charge.ID,
		"lead_id", charge.LeadID,
		"amount_cents", charge.AmountCents,
	)
	return charge, nil
}

// ConfirmPayment marks a charge paid. Safe to call more than once per txid.
func (s *Service) ConfirmPayment(ctx context.Context, txid string, paidAt time.Time) error {
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	if err := s.store.MarkPaid(ctx, txid, paidAt); err != nil {
		return err
	}
	s.logger.Info("pix payment confirmed", "txid", txid)
	return nil
}

// GetCharge loads one charge.
func (s *Service) GetCharge(ctx context.Context, id string) (*Charge, error) {
	return s.store.GetByID(ctx, id)
}

// ListLeadCharges returns a lead's charges.
func (s *Service) ListLeadCharges(ctx context.Context, leadID string) ([]Charge, error) {
	return s.store.ListByLead(ctx, leadID)
}

// ExpireSweep closes pending charges past their window. Meant to run on a
// schedule next to the ghost worker.
func (s *Service) ExpireSweep(ctx context.Context) (int64, error) {
	expired, err := s.store.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("pix charges expired", "count", expired)
	}
	return expired, nil
}
