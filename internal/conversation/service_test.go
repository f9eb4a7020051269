package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espacoamar/amanda-backend/internal/engine"
	"github.com/espacoamar/amanda-backend/internal/leads"
)

// fakeLeadRepo is an in-memory leads.Repository for service tests.
type fakeLeadRepo struct {
	mu      sync.Mutex
	byID    map[string]*leads.Lead
	byPhone map[string]*leads.Lead
	seq     int
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{
		byID:    make(map[string]*leads.Lead),
		byPhone: make(map[string]*leads.Lead),
	}
}

func (r *fakeLeadRepo) Create(_ context.Context, req *leads.CreateLeadRequest) (*leads.Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	lead := &leads.Lead{
		ID:          "lead-" + string(rune('0'+r.seq)),
		Phone:       req.Phone,
		ContactName: req.ContactName,
		Status:      leads.StatusNew,
		CreatedAt:   time.Now(),
	}
	r.byID[lead.ID] = lead
	r.byPhone[lead.Phone] = lead
	return lead, nil
}

func (r *fakeLeadRepo) GetByID(_ context.Context, id string) (*leads.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead, ok := r.byID[id]; ok {
		return lead, nil
	}
	return nil, leads.ErrLeadNotFound
}

func (r *fakeLeadRepo) GetByPhone(_ context.Context, phone string) (*leads.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead, ok := r.byPhone[phone]; ok {
		return lead, nil
	}
	return nil, leads.ErrLeadNotFound
}

func (r *fakeLeadRepo) GetOrCreateByPhone(ctx context.Context, phone, contactName string) (*leads.Lead, error) {
	if lead, err := r.GetByPhone(ctx, phone); err == nil {
		return lead, nil
	}
	return r.Create(ctx, &leads.CreateLeadRequest{Phone: phone, ContactName: contactName})
}

func (r *fakeLeadRepo) ApplyQualificationUpdate(_ context.Context, id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.byID[id]
	if !ok {
		return leads.ErrLeadNotFound
	}
	for path, value := range fields {
		switch path {
		case "qualificationData.therapyArea":
			lead.Qualification.TherapyArea = value.(string)
		case "qualificationData.primaryComplaint":
			lead.Qualification.PrimaryComplaint = value.(string)
		case "qualificationData.patientAge":
			lead.Qualification.PatientAge = value.(int)
		case "qualificationData.patientName":
			lead.Qualification.PatientName = value.(string)
		case "qualificationData.periodPreference":
			lead.Qualification.PeriodPreference = value.(string)
		case "qualificationData.intentScore":
			lead.Qualification.IntentScore = value.(int)
		case "qualificationData.conversationMode":
			lead.Qualification.ConversationMode = value.(string)
		case "qualificationData.ghostRecoverySent":
			lead.Qualification.GhostRecoverySent = value.(int)
		case "qualificationData.ghostLastRecoveryAt":
			lead.Qualification.GhostLastRecoveryAt = value.(time.Time)
		}
	}
	return nil
}

func (r *fakeLeadRepo) TouchInbound(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead, ok := r.byID[id]; ok {
		lead.LastInboundAt = at
		return nil
	}
	return leads.ErrLeadNotFound
}

func (r *fakeLeadRepo) SetStatus(_ context.Context, id string, status leads.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead, ok := r.byID[id]; ok {
		lead.Status = status
		return nil
	}
	return leads.ErrLeadNotFound
}

func (r *fakeLeadRepo) SetOptOut(_ context.Context, id string, optedOut bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead, ok := r.byID[id]; ok {
		lead.OptedOut = optedOut
		return nil
	}
	return leads.ErrLeadNotFound
}

func (r *fakeLeadRepo) ListGhostCandidates(_ context.Context, silentSince time.Time, _ int) ([]*leads.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*leads.Lead
	for _, lead := range r.byID {
		if !lead.OptedOut && lead.Status != leads.StatusBooked && !lead.LastInboundAt.IsZero() && lead.LastInboundAt.Before(silentSince) {
			out = append(out, lead)
		}
	}
	return out, nil
}

type fakeSlotSource struct{ set *engine.SlotSet }

func (f *fakeSlotSource) FindSlots(context.Context, string, string) (*engine.SlotSet, error) {
	return f.set, nil
}

type fakeBooker struct {
	booked []engine.Slot
}

func (f *fakeBooker) Book(_ context.Context, _ string, slot engine.Slot, _ string) (string, error) {
	f.booked = append(f.booked, slot)
	return "appt-1", nil
}

func newTestService(t *testing.T) (*AmandaService, *fakeLeadRepo, *fakeBooker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newFakeLeadRepo()
	booker := &fakeBooker{}
	svc := NewService(ServiceDeps{
		Repo:     repo,
		Analyzer: NewAnalyzer(nil, "", nil), // heuristic path keeps tests deterministic
		Redis:    rdb,
		Slots: &fakeSlotSource{set: &engine.SlotSet{
			Primary:      &engine.Slot{ID: "s1", Label: "terça 9h"},
			Alternatives: []engine.Slot{{ID: "s2", Label: "quarta 14h"}},
		}},
		Booker: booker,
	})
	return svc, repo, booker
}

func TestService_StartConversation(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.StartConversation(context.Background(), StartRequest{
		Phone:       "+5511999990000",
		ContactName: "Ana Paula",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Ana")
	assert.Equal(t, engine.ModeDiscovery, resp.Mode)

	lead, err := repo.GetByPhone(context.Background(), "+5511999990000")
	require.NoError(t, err)

	history, err := svc.GetHistory(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ChatRoleAssistant, history[0].Role)
}

func TestService_FunnelProgression(t *testing.T) {
	svc, repo, booker := newTestService(t)
	ctx := context.Background()
	phone := "+5511999990000"
	at := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	turn := func(msg string) *Response {
		t.Helper()
		at = at.Add(2 * time.Minute)
		resp, err := svc.ProcessMessage(ctx, MessageRequest{Phone: phone, Message: msg, ReceivedAt: at})
		require.NoError(t, err)
		return resp
	}

	// Turn 1: booking intent with therapy area; complaint is asked next.
	resp := turn("quero agendar fonoaudiologia para meu filho")
	assert.Equal(t, engine.ActionAskComplaint, resp.Decision.Action)
	assert.Equal(t, engine.HandlerLeadQualification, resp.Decision.Handler)

	// Turn 2: complaint text; age comes next.
	resp = turn("ele não fala quase nada e já está ficando para trás na escolinha")
	assert.Equal(t, engine.ActionAskAge, resp.Decision.Action)

	// Turn 3: age; period comes next.
	resp = turn("ele tem 4 anos")
	assert.Equal(t, engine.ActionAskPeriod, resp.Decision.Action)

	// Turn 4: period; lead is qualified so slots are searched and presented.
	resp = turn("de manhã fica melhor pra gente")
	assert.Equal(t, engine.ActionSearchSlots, resp.Decision.Action)

	// Turn 5: picks option A; patient name still missing.
	resp = turn("A")
	assert.Equal(t, engine.ActionAskPatientName, resp.Decision.Action)

	// Turn 6: name; booking is confirmed and committed.
	resp = turn("Davi Oliveira")
	assert.Equal(t, engine.ActionConfirmBooking, resp.Decision.Action)
	require.Len(t, booker.booked, 1)
	assert.Equal(t, "s1", booker.booked[0].ID)

	lead, err := repo.GetByPhone(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, leads.StatusBooked, lead.Status)
	assert.Equal(t, "fonoaudiologia", lead.Qualification.TherapyArea)
	assert.Equal(t, 4, lead.Qualification.PatientAge)
	assert.Equal(t, "manhã", lead.Qualification.PeriodPreference)
}

func TestService_PriceInterruptionKeepsFunnel(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	phone := "+5511999990000"
	at := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.ProcessMessage(ctx, MessageRequest{Phone: phone, Message: "quero agendar fonoaudiologia", ReceivedAt: at})
	require.NoError(t, err)
	_, err = svc.ProcessMessage(ctx, MessageRequest{Phone: phone, Message: "ele não fala quase nada ainda, muito atrasado", ReceivedAt: at.Add(time.Minute)})
	require.NoError(t, err)

	// Awaiting age; the family asks about price instead.
	resp, err := svc.ProcessMessage(ctx, MessageRequest{Phone: phone, Message: "quanto custa a sessão?", ReceivedAt: at.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, engine.ActionAnswerPrice, resp.Decision.Action)
	assert.Equal(t, engine.HandlerProduct, resp.Decision.Handler)

	// The detour does not erase funnel progress.
	lead, err := repo.GetByPhone(ctx, phone)
	require.NoError(t, err)
	assert.NotEmpty(t, lead.Qualification.PrimaryComplaint)
	assert.Empty(t, lead.Qualification.PeriodPreference)
}

func TestService_ClinicalGateBlocksBooking(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	phone := "+5511999990000"

	lead, err := repo.Create(ctx, &leads.CreateLeadRequest{Phone: phone})
	require.NoError(t, err)
	lead.Qualification.TherapyArea = "psicologia"
	lead.Qualification.PatientAge = 17

	resp, err := svc.ProcessMessage(ctx, MessageRequest{Phone: phone, Message: "quero agendar", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, engine.ActionClinicalGate, resp.Decision.Action)
	assert.Equal(t, engine.HandlerTherapyGate, resp.Decision.Handler)
	assert.Equal(t, "clinical_rule:psychology_age", resp.Decision.Reason)
}

func TestService_ScoreAccumulatesAcrossTurns(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	phone := "+5511999990000"
	at := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.ProcessMessage(ctx, MessageRequest{Phone: phone, Message: "quero agendar uma avaliação", ReceivedAt: at})
	require.NoError(t, err)

	lead, err := repo.GetByPhone(ctx, phone)
	require.NoError(t, err)
	firstScore := lead.Qualification.IntentScore
	assert.Greater(t, firstScore, 10)

	_, err = svc.ProcessMessage(ctx, MessageRequest{Phone: phone, Message: "tem horário essa semana? é urgente", ReceivedAt: at.Add(10 * time.Minute)})
	require.NoError(t, err)

	lead, err = repo.GetByPhone(ctx, phone)
	require.NoError(t, err)
	assert.Greater(t, lead.Qualification.IntentScore, firstScore)
	assert.NotEmpty(t, lead.Qualification.ConversationMode)
}
