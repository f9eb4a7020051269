package payments

import (
	"errors"
	"strings"
	"time"
)

// ChargeStatus tracks a PIX charge through its lifecycle.
type ChargeStatus string

const (
	StatusPending   ChargeStatus = "pending"
	StatusConfirmed ChargeStatus = "confirmed"
	StatusExpired   ChargeStatus = "expired"
	StatusRefunded  ChargeStatus = "refunded"
)

// Charge is one PIX cobrança issued to a lead, usually the evaluation fee
// collected before the first appointment.
type Charge struct {
	ID            string       `json:"id"`
	LeadID        string       `json:"leadId"`
	AppointmentID string       `json:"appointmentId,omitempty"`
	TxID          string       `json:"txid"`
	AmountCents   int          `json:"amountCents"`
	Description   string       `json:"description"`
	QRCode        string       `json:"qrCode"`
	Status        ChargeStatus `json:"status"`
	ExpiresAt     time.Time    `json:"expiresAt"`
	PaidAt        *time.Time   `json:"paidAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// CreateChargeRequest opens a new PIX charge.
type CreateChargeRequest struct {
	LeadID        string `json:"leadId"`
	AppointmentID string `json:"appointmentId,omitempty"`
	AmountCents   int    `json:"amountCents"`
	Description   string `json:"description"`
}

// Validate checks the request before hitting the PSP.
func (r *CreateChargeRequest) Validate() error {
	if strings.TrimSpace(r.LeadID) == "" {
		return ErrMissingLead
	}
	if r.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Description) == "" {
		r.Description = "Avaliação Espaço Amar"
	}
	return nil
}

var (
	ErrMissingLead    = errors.New("payments: lead id is required")
	ErrInvalidAmount  = errors.New("payments: amount must be positive")
	ErrChargeNotFound = errors.New("payments: charge not found")
)
