package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espacoamar/amanda-backend/internal/appointments"
	"github.com/espacoamar/amanda-backend/internal/leads"
)

type capturingSender struct {
	sent []EmailMessage
}

func (c *capturingSender) Send(_ context.Context, msg EmailMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

type fakeAppts struct {
	appts []appointments.Appointment

	gotFrom, gotTo time.Time
}

func (f *fakeAppts) ListBetween(_ context.Context, from, to time.Time) ([]appointments.Appointment, error) {
	f.gotFrom, f.gotTo = from, to
	return f.appts, nil
}

type fakeLeadCounts struct {
	counts map[leads.Status]int
}

func (f *fakeLeadCounts) CountStatusBetween(context.Context, time.Time, time.Time) (map[leads.Status]int, error) {
	return f.counts, nil
}

func TestDigestService_SendDaily(t *testing.T) {
	appts := &fakeAppts{appts: []appointments.Appointment{
		{
			PatientName: "Davi Oliveira",
			TherapyArea: "fonoaudiologia",
			Specialist:  "Dra. Paula",
			StartsAt:    time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC),
		},
	}}
	counts := &fakeLeadCounts{counts: map[leads.Status]int{
		leads.StatusNew:       3,
		leads.StatusQualified: 1,
		leads.StatusBooked:    1,
	}}
	sender := &capturingSender{}
	svc := NewDigestService(appts, counts, sender, "dona@espacoamar.com.br", nil)

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SendDaily(context.Background(), now))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "dona@espacoamar.com.br", msg.To)
	assert.Contains(t, msg.Subject, "Resumo do dia")
	assert.Contains(t, msg.Body, "Davi Oliveira")
	assert.Contains(t, msg.Body, "fonoaudiologia")
	assert.Contains(t, msg.Body, "Novos contatos: 5")
	assert.Contains(t, msg.Body, "Qualificados: 2")
	assert.Contains(t, msg.Body, "Agendaram avaliação: 1")

	// Agenda window covers the local day.
	assert.True(t, appts.gotFrom.Before(now))
	assert.True(t, appts.gotTo.After(now))
}

func TestDigestService_SendDaily_EmptyAgenda(t *testing.T) {
	sender := &capturingSender{}
	svc := NewDigestService(
		&fakeAppts{},
		&fakeLeadCounts{counts: map[leads.Status]int{}},
		sender,
		"dona@espacoamar.com.br",
		nil,
	)

	require.NoError(t, svc.SendDaily(context.Background(), time.Now()))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "Nenhum atendimento agendado")
}
