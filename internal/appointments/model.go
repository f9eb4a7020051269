package appointments

import (
	"errors"
	"strings"
	"time"
)

// Status tracks an appointment through its lifecycle.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Appointment is one booked evaluation or therapy session.
type Appointment struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"leadId"`
	SlotID      string    `json:"slotId"`
	PatientName string    `json:"patientName"`
	TherapyArea string    `json:"therapyArea"`
	Specialist  string    `json:"specialist"`
	StartsAt    time.Time `json:"startsAt"`
	DurationMin int       `json:"durationMin"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AvailabilitySlot is one open position on a specialist's agenda.
type AvailabilitySlot struct {
	ID          string    `json:"id"`
	TherapyArea string    `json:"therapyArea"`
	Specialist  string    `json:"specialist"`
	StartsAt    time.Time `json:"startsAt"`
	Period      string    `json:"period"`
	Booked      bool      `json:"booked"`
}

// CreateRequest is a manual appointment created from the admin panel.
type CreateRequest struct {
	LeadID      string    `json:"leadId"`
	PatientName string    `json:"patientName"`
	TherapyArea string    `json:"therapyArea"`
	Specialist  string    `json:"specialist"`
	StartsAt    time.Time `json:"startsAt"`
	DurationMin int       `json:"durationMin"`
	Notes       string    `json:"notes,omitempty"`
}

// Validate checks the request before persistence.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.LeadID) == "" {
		return ErrMissingLead
	}
	if strings.TrimSpace(r.PatientName) == "" {
		return ErrMissingPatient
	}
	if r.StartsAt.IsZero() {
		return ErrMissingStart
	}
	if r.DurationMin <= 0 {
		r.DurationMin = 50
	}
	return nil
}

var (
	ErrMissingLead       = errors.New("appointments: lead id is required")
	ErrMissingPatient    = errors.New("appointments: patient name is required")
	ErrMissingStart      = errors.New("appointments: start time is required")
	ErrNotFound          = errors.New("appointments: appointment not found")
	ErrSlotTaken         = errors.New("appointments: slot already booked")
	ErrInvalidTransition = errors.New("appointments: invalid status transition")
)
