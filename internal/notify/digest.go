package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/espacoamar/amanda-backend/internal/appointments"
	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

type appointmentLister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error)
}

type leadCounter interface {
	CountStatusBetween(ctx context.Context, from, to time.Time) (map[leads.Status]int, error)
}

// DigestService emails the clinic owner a morning summary: today's agenda and
// yesterday's funnel movement.
type DigestService struct {
	appts     appointmentLister
	counts    leadCounter
	email     EmailSender
	recipient string
	loc       *time.Location
	logger    *logging.Logger
}

// NewDigestService wires the daily digest.
func NewDigestService(appts appointmentLister, counts leadCounter, email EmailSender, recipient string, logger *logging.Logger) *DigestService {
	if appts == nil {
		panic("notify: appointment lister cannot be nil")
	}
	if counts == nil {
		panic("notify: lead counter cannot be nil")
	}
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &DigestService{
		appts:     appts,
		counts:    counts,
		email:     email,
		recipient: recipient,
		loc:       loc,
		logger:    logger,
	}
}

// SendDaily builds and sends the digest for the day containing now.
func (s *DigestService) SendDaily(ctx context.Context, now time.Time) error {
	local := now.In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	yesterdayStart := dayStart.AddDate(0, 0, -1)

	todays, err := s.appts.ListBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("notify: digest agenda load failed: %w", err)
	}
	statusCounts, err := s.counts.CountStatusBetween(ctx, yesterdayStart, dayStart)
	if err != nil {
		return fmt.Errorf("notify: digest lead counts failed: %w", err)
	}

	msg := EmailMessage{
		To:      s.recipient,
		Subject: fmt.Sprintf("Resumo do dia — Espaço Amar (%s)", dayStart.Format("02/01")),
		Body:    s.buildBody(dayStart, todays, statusCounts),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return err
	}

	s.logger.Info("daily digest sent", "appointments", len(todays), "to", s.recipient)
	return nil
}

func (s *DigestService) buildBody(day time.Time, todays []appointments.Appointment, counts map[leads.Status]int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Agenda de %s\n\n", day.Format("02/01/2006")))
	if len(todays) == 0 {
		b.WriteString("Nenhum atendimento agendado para hoje.\n")
	} else {
		for _, appt := range todays {
			at := appt.StartsAt.In(s.loc)
			line := fmt.Sprintf("- %s  %s (%s)", at.Format("15:04"), appt.PatientName, appt.TherapyArea)
			if appt.Specialist != "" {
				line += " — " + appt.Specialist
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\nLeads de ontem\n\n")
	total := 0
	for _, count := range counts {
		total += count
	}
	b.WriteString(fmt.Sprintf("- Novos contatos: %d\n", total))
	if count := counts[leads.StatusQualified] + counts[leads.StatusBooked]; count > 0 {
		b.WriteString(fmt.Sprintf("- Qualificados: %d\n", count))
	}
	if count := counts[leads.StatusBooked]; count > 0 {
		b.WriteString(fmt.Sprintf("- Agendaram avaliação: %d\n", count))
	}

	return b.String()
}
