package leads

import (
	"strings"
	"time"

	"github.com/espacoamar/amanda-backend/internal/engine"
)

// Status tracks where a lead sits in the funnel.
type Status string

const (
	StatusNew        Status = "new"
	StatusQualifying Status = "qualifying"
	StatusQualified  Status = "qualified"
	StatusBooked     Status = "booked"
	StatusLost       Status = "lost"
)

// QualificationData is the JSONB document attached to every lead. The engine
// produces partial updates against it; the repository merges them.
type QualificationData struct {
	TherapyArea         string               `json:"therapyArea,omitempty"`
	PrimaryComplaint    string               `json:"primaryComplaint,omitempty"`
	PatientAge          int                  `json:"patientAge,omitempty"`
	PatientName         string               `json:"patientName,omitempty"`
	PeriodPreference    string               `json:"periodPreference,omitempty"`
	Relationship        string               `json:"relationship,omitempty"`
	OsteopathyCleared   bool                 `json:"osteopathyCleared,omitempty"`
	IntentScore         int                  `json:"intentScore,omitempty"`
	IntentHistory       []engine.ScoreUpdate `json:"intentHistory,omitempty"`
	ConversationMode    string               `json:"conversationMode,omitempty"`
	MemoryWindow        []engine.Fact        `json:"memoryWindow,omitempty"`
	GhostRecoverySent   int                  `json:"ghostRecoverySent,omitempty"`
	GhostLastRecoveryAt time.Time            `json:"ghostLastRecoveryAt,omitzero"`
}

// Lead is one WhatsApp contact going through intake.
type Lead struct {
	ID            string            `json:"id"`
	Phone         string            `json:"phone"`
	ContactName   string            `json:"contactName,omitempty"`
	Status        Status            `json:"status"`
	Qualification QualificationData `json:"qualification"`
	OptedOut      bool              `json:"optedOut"`
	LastInboundAt time.Time         `json:"lastInboundAt,omitzero"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Flags projects the lead into the engine's missing-field input.
func (l *Lead) Flags(hasSlotsToShow, hasChosenSlot bool) engine.LeadFlags {
	q := l.Qualification
	return engine.LeadFlags{
		HasTherapy:     q.TherapyArea != "",
		HasComplaint:   q.PrimaryComplaint != "",
		HasAge:         q.PatientAge > 0,
		HasPeriod:      q.PeriodPreference != "",
		HasSlotsToShow: hasSlotsToShow,
		HasChosenSlot:  hasChosenSlot,
		PatientName:    q.PatientName,
	}
}

// State projects the lead into the engine's read-only lead view.
func (l *Lead) State() engine.LeadState {
	q := l.Qualification
	return engine.LeadState{
		TherapyArea:      q.TherapyArea,
		PrimaryComplaint: q.PrimaryComplaint,
		PatientAge:       q.PatientAge,
		PatientName:      q.PatientName,
	}
}

// CreateLeadRequest is the payload for registering a new lead.
type CreateLeadRequest struct {
	Phone       string `json:"phone"`
	ContactName string `json:"contactName"`
}

// Validate checks the request before it reaches the database.
func (r *CreateLeadRequest) Validate() error {
	phone := strings.TrimSpace(r.Phone)
	if phone == "" {
		return ErrMissingPhone
	}
	if !strings.HasPrefix(phone, "+") || len(phone) < 12 {
		return ErrInvalidPhone
	}
	return nil
}
