package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/espacoamar/amanda-backend/internal/engine"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// store is the slice of Repository the scheduling service needs. Narrowed so
// tests can fake it without a database.
type store interface {
	FindOpenSlots(ctx context.Context, therapyArea, period string, limit int) ([]AvailabilitySlot, error)
	BookSlot(ctx context.Context, apptID, slotID, leadID, patientName string, now time.Time) (*Appointment, error)
}

// Service turns clinic availability into the options Amanda offers over
// WhatsApp, and commits the chosen one. It satisfies both
// conversation.SlotSource and conversation.Booker.
type Service struct {
	store  store
	logger *logging.Logger
	now    func() time.Time
	loc    *time.Location
}

// NewService builds the scheduling service.
func NewService(store store, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		loc:    loc,
	}
}

// FindSlots returns up to three open slots as the option set Amanda presents.
func (s *Service) FindSlots(ctx context.Context, therapyArea, period string) (*engine.SlotSet, error) {
	slots, err := s.store.FindOpenSlots(ctx, therapyArea, period, 3)
	if err != nil {
		return nil, err
	}
	// Fall back to any period before giving up on the preferred one.
	if len(slots) == 0 && period != "" {
		slots, err = s.store.FindOpenSlots(ctx, therapyArea, "", 3)
		if err != nil {
			return nil, err
		}
	}
	if len(slots) == 0 {
		return nil, nil
	}

	set := &engine.SlotSet{Primary: s.toEngineSlot(slots[0])}
	for _, slot := range slots[1:] {
		alt := s.toEngineSlot(slot)
		set.Alternatives = append(set.Alternatives, *alt)
	}
	return set, nil
}

// Book claims the chosen slot and returns the new appointment's ID.
func (s *Service) Book(ctx context.Context, leadID string, slot engine.Slot, patientName string) (string, error) {
	appt, err := s.store.BookSlot(ctx, uuid.NewString(), slot.ID, leadID, patientName, s.now())
	if err != nil {
		return "", err
	}
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"lead_id", leadID,
		"therapy_area", appt.TherapyArea,
		"starts_at", appt.StartsAt,
	)
	return appt.ID, nil
}

func (s *Service) toEngineSlot(slot AvailabilitySlot) *engine.Slot {
	return &engine.Slot{
		ID:    slot.ID,
		Label: FormatSlotLabel(slot, s.loc),
	}
}

var weekdaysPT = [...]string{
	"domingo", "segunda-feira", "terça-feira", "quarta-feira",
	"quinta-feira", "sexta-feira", "sábado",
}

// FormatSlotLabel renders a slot the way Amanda speaks it, e.g.
// "terça-feira (03/09) às 14h com Dra. Paula".
func FormatSlotLabel(slot AvailabilitySlot, loc *time.Location) string {
	at := slot.StartsAt.In(loc)
	day := weekdaysPT[int(at.Weekday())]
	hour := at.Format("15h")
	if at.Minute() != 0 {
		hour = at.Format("15h04")
	}
	label := fmt.Sprintf("%s (%s) às %s", day, at.Format("02/01"), hour)
	if slot.Specialist != "" {
		label += " com " + slot.Specialist
	}
	return label
}
