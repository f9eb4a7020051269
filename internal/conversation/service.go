package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/espacoamar/amanda-backend/internal/engine"
	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// SlotSource provides bookable appointment options for a qualified lead.
type SlotSource interface {
	FindSlots(ctx context.Context, therapyArea, period string) (*engine.SlotSet, error)
}

// Booker commits a chosen slot into a real appointment.
type Booker interface {
	Book(ctx context.Context, leadID string, slot engine.Slot, patientName string) (string, error)
}

// TranscriptArchiver stores a finished conversation for later review.
// Implemented by archive.Store.
type TranscriptArchiver interface {
	ArchiveConversation(ctx context.Context, lead *leads.Lead, history []ChatMessage, outcome string) error
}

// AmandaService is the production conversation service: it runs the decision
// engine over each inbound WhatsApp turn and generates the reply.
type AmandaService struct {
	repo     leads.Repository
	analyzer *Analyzer
	llm      LLMClient
	modelID  string
	history  *historyStore
	slots    SlotSource
	booker   Booker
	archive  TranscriptArchiver
	sink     engine.Sink
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time

	locks sync.Map // leadID -> *sync.Mutex
}

// ServiceDeps bundles the collaborators AmandaService needs.
type ServiceDeps struct {
	Repo     leads.Repository
	Analyzer *Analyzer
	LLM      LLMClient
	ModelID  string
	Redis    *redis.Client
	Slots    SlotSource
	Booker   Booker
	Archive  TranscriptArchiver
	Sink     engine.Sink
	Logger   *logging.Logger
	Tracer   trace.Tracer
}

// NewService wires the conversation service.
func NewService(deps ServiceDeps) *AmandaService {
	if deps.Repo == nil {
		panic("conversation: lead repository cannot be nil")
	}
	if deps.Analyzer == nil {
		panic("conversation: analyzer cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("amanda.internal.conversation")
	}
	if deps.Sink == nil {
		deps.Sink = engine.NopSink{}
	}

	return &AmandaService{
		repo:     deps.Repo,
		analyzer: deps.Analyzer,
		llm:      deps.LLM,
		modelID:  deps.ModelID,
		history:  newHistoryStore(deps.Redis, deps.Tracer),
		slots:    deps.Slots,
		booker:   deps.Booker,
		archive:  deps.Archive,
		sink:     deps.Sink,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ Service = (*AmandaService)(nil)

// StartConversation registers the lead and sends the opening message.
func (s *AmandaService) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.start")
	defer span.End()

	lead, err := s.repo.GetOrCreateByPhone(ctx, req.Phone, req.ContactName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: start failed: %w", err)
	}

	greeting := "Oi! Eu sou a Amanda, do Espaço Amar 💛 Como posso ajudar você e seu pequeno hoje?"
	if req.ContactName != "" {
		greeting = fmt.Sprintf("Oi, %s! Eu sou a Amanda, do Espaço Amar 💛 Como posso ajudar você e seu pequeno hoje?", firstName(req.ContactName))
	}

	history := []ChatMessage{{Role: ChatRoleAssistant, Content: greeting}}
	if err := s.history.Save(ctx, lead.ID, history); err != nil {
		s.logger.Error("failed to persist opening history", "lead_id", lead.ID, "error", err)
	}

	return &Response{
		LeadID:    lead.ID,
		Message:   greeting,
		Mode:      engine.ModeDiscovery,
		Timestamp: s.now(),
	}, nil
}

// ProcessMessage runs one full turn of the decision pipeline. Turns for the
// same lead are serialized; turns for different leads run concurrently.
func (s *AmandaService) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.process_message")
	defer span.End()

	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	lead, err := s.resolveLead(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mu := s.leadLock(lead.ID)
	mu.Lock()
	defer mu.Unlock()

	history, err := s.history.Load(ctx, lead.ID)
	if err != nil {
		s.logger.Warn("history load failed, continuing without context", "lead_id", lead.ID, "error", err)
	}
	booking, err := s.history.LoadBookingState(ctx, lead.ID)
	if err != nil {
		s.logger.Warn("booking state load failed", "lead_id", lead.ID, "error", err)
	}

	analysis := s.analyzer.Analyze(ctx, req.Message, history)

	// Topic-shift detection compares the message against the question that
	// was actually pending, so the missing-field state is resolved before
	// this turn's extractions are merged in.
	preCtx := booking.Context()
	preMissing := engine.ResolveMissingFields(lead.Flags(preCtx.Slots != nil, preCtx.ChosenSlot != nil))

	shift := engine.DetectTopicShift(engine.TopicShiftInput{
		Intent:      analysis.Intent,
		MessageText: req.Message,
		Extracted:   analysis.Extracted,
		Lead:        lead.State(),
		Booking:     preCtx,
		Missing:     preMissing,
	})

	updates := mergeExtracted(lead, analysis.Extracted)
	if shift.IsNaturalResume {
		captureResumedAnswer(lead, shift.ResumedField, req.Message, updates)
	}

	// Slot picks resolve against the options currently on screen.
	if booking != nil && booking.Slots != nil && booking.ChosenSlot == nil {
		if chosen := engine.ResolveSlotChoice(req.Message, booking.Slots); chosen != nil {
			booking.ChosenSlot = chosen
		}
	}

	bookingCtx := booking.Context()
	missing := engine.ResolveMissingFields(lead.Flags(bookingCtx.Slots != nil, bookingCtx.ChosenSlot != nil))

	clinical := engine.EvaluateClinicalRules(engine.ClinicalInput{
		Specialty:         lead.Qualification.TherapyArea,
		Age:               lead.Qualification.PatientAge,
		HasAge:            lead.Qualification.PatientAge > 0,
		OsteopathyCleared: lead.Qualification.OsteopathyCleared,
		Relationship:      lead.Qualification.Relationship,
	})

	scoreUpdate, mode := s.updateScore(lead, analysis, req.Message, receivedAt, updates)
	s.updateMemory(lead, analysis, req.Message, receivedAt, updates)

	effective := analysis
	if shift.IsNaturalResume {
		// Answering the awaited question keeps the funnel moving even when
		// the classifier labeled the message as something else.
		effective.Intent = engine.IntentScheduling
	}

	decision := engine.Decide(engine.DecisionInput{
		Analysis: effective,
		Missing:  missing,
		Urgency:  urgencyFromLabel(analysis.Extracted.UrgencyLevel),
		Booking:  bookingCtx,
		Clinical: clinical,
	})
	s.sink.Record(engine.DecisionEvent(decision))

	booking, err = s.applyDecision(ctx, lead, decision, booking)
	if err != nil {
		s.logger.Error("decision side effects failed", "lead_id", lead.ID, "action", decision.Action, "error", err)
	}

	reply := s.generateReply(ctx, promptContext{
		Decision: decision,
		Analysis: analysis,
		Lead:     lead.State(),
		Booking:  booking.Context(),
		Clinical: clinical,
		Shift:    shift,
		Mode:     mode,
		Profile:  engine.ProfileFor(mode),
		Memory:   lead.Qualification.MemoryWindow,
	}, history, req.Message)

	s.persistTurn(ctx, lead, decision, req.Message, reply, receivedAt, updates, history, booking)

	s.logger.Info("conversation turn processed",
		"lead_id", lead.ID,
		"intent", analysis.Intent,
		"action", decision.Action,
		"reason", decision.Reason,
		"mode", mode,
		"score", scoreUpdate.Score,
	)

	return &Response{
		LeadID:    lead.ID,
		Message:   reply,
		Decision:  decision,
		Mode:      mode,
		Timestamp: receivedAt,
	}, nil
}

// GetHistory returns the rolling transcript for a lead.
func (s *AmandaService) GetHistory(ctx context.Context, leadID string) ([]ChatMessage, error) {
	return s.history.Load(ctx, leadID)
}

func (s *AmandaService) resolveLead(ctx context.Context, req MessageRequest) (*leads.Lead, error) {
	if req.LeadID != "" {
		lead, err := s.repo.GetByID(ctx, req.LeadID)
		if err != nil {
			return nil, fmt.Errorf("conversation: lead lookup failed: %w", err)
		}
		return lead, nil
	}
	lead, err := s.repo.GetOrCreateByPhone(ctx, req.Phone, req.Metadata["contact_name"])
	if err != nil {
		return nil, fmt.Errorf("conversation: lead resolution failed: %w", err)
	}
	return lead, nil
}

func (s *AmandaService) leadLock(leadID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(leadID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// captureResumedAnswer records a free-text answer to the awaited question
// when structured extraction produced nothing for it. The validators already
// vouched that the message answers the field.
func captureResumedAnswer(lead *leads.Lead, field engine.AwaitingField, message string, updates map[string]any) {
	q := &lead.Qualification
	text := strings.TrimSpace(message)

	switch field {
	case engine.AwaitComplaint:
		if q.PrimaryComplaint == "" {
			q.PrimaryComplaint = text
			updates["qualificationData.primaryComplaint"] = text
		}
	case engine.AwaitPatientName:
		if q.PatientName == "" {
			q.PatientName = text
			updates["qualificationData.patientName"] = text
		}
	}
}

// mergeExtracted folds newly extracted entities into the in-memory lead and
// returns the matching persistence patch. Existing values are never
// overwritten by extraction; corrections go through the human operators.
func mergeExtracted(lead *leads.Lead, info engine.ExtractedInfo) map[string]any {
	updates := make(map[string]any)
	q := &lead.Qualification

	if q.TherapyArea == "" && info.TherapyArea != "" {
		q.TherapyArea = strings.ToLower(info.TherapyArea)
		updates["qualificationData.therapyArea"] = q.TherapyArea
	}
	if q.PrimaryComplaint == "" && info.Complaint != "" {
		q.PrimaryComplaint = info.Complaint
		updates["qualificationData.primaryComplaint"] = q.PrimaryComplaint
	}
	if q.PatientAge == 0 && info.Age > 0 {
		q.PatientAge = info.Age
		updates["qualificationData.patientAge"] = q.PatientAge
	}
	if q.PatientName == "" && info.PatientName != "" {
		q.PatientName = info.PatientName
		updates["qualificationData.patientName"] = q.PatientName
	}
	if q.PeriodPreference == "" && info.Period != "" {
		q.PeriodPreference = strings.ToLower(info.Period)
		updates["qualificationData.periodPreference"] = q.PeriodPreference
	}
	if q.Relationship == "" && info.Relationship != "" {
		q.Relationship = strings.ToLower(info.Relationship)
		updates["qualificationData.relationship"] = q.Relationship
	}
	return updates
}

func (s *AmandaService) updateScore(lead *leads.Lead, analysis engine.Analysis, message string, receivedAt time.Time, updates map[string]any) (engine.ScoreUpdate, engine.Mode) {
	var sinceLast time.Duration
	if !lead.LastInboundAt.IsZero() {
		sinceLast = receivedAt.Sub(lead.LastInboundAt)
	}

	q := lead.Qualification
	fullyQualified := q.TherapyArea != "" && q.PrimaryComplaint != "" && q.PatientAge > 0 && q.PeriodPreference != ""

	signals := engine.DetectSignals(message, engine.SignalContext{
		SinceLastInbound:  sinceLast,
		FullyQualified:    fullyQualified,
		GhostRecoverySent: q.GhostRecoverySent > 0,
		MultipleChildren:  analysis.Extracted.MultipleChildren,
		Sentiment:         analysis.Sentiment,
		UrgencyLevel:      urgencyFromLabel(analysis.Extracted.UrgencyLevel),
		EmotionalState:    analysis.Extracted.EmotionalState,
	})

	signalScore, active := engine.ScoreSignals(signals)
	score, trend := engine.Accumulate(q.IntentScore, signalScore, sinceLast)
	mode := engine.DeriveMode(score, trend)

	update := engine.ScoreUpdate{
		Score:     score,
		Trend:     trend,
		Signals:   active,
		Timestamp: receivedAt,
	}

	prevMode := engine.Mode(q.ConversationMode)
	if prevMode != "" && prevMode != mode {
		s.sink.Record(engine.ModeEvent(prevMode, mode))
	}

	for k, v := range engine.PrepareIntentScoreForSave(q.IntentHistory, update, mode) {
		updates[k] = v
	}
	lead.Qualification.IntentScore = score
	lead.Qualification.ConversationMode = string(mode)

	return update, mode
}

func (s *AmandaService) updateMemory(lead *leads.Lead, analysis engine.Analysis, message string, receivedAt time.Time, updates map[string]any) {
	facts := engine.ExtractFacts(message, analysis.Extracted, receivedAt)
	if len(facts) == 0 {
		return
	}
	window := engine.UpdateMemoryWindow(lead.Qualification.MemoryWindow, facts)
	lead.Qualification.MemoryWindow = window
	for k, v := range engine.PrepareMemoryForSave(window) {
		updates[k] = v
	}
}

// applyDecision runs the side effects some actions require before a reply can
// be written: fetching slots and committing bookings.
func (s *AmandaService) applyDecision(ctx context.Context, lead *leads.Lead, decision engine.Decision, booking *BookingState) (*BookingState, error) {
	switch decision.Action {
	case engine.ActionSearchSlots:
		if booking != nil && booking.Slots != nil {
			return booking, nil
		}
		if s.slots == nil {
			return booking, nil
		}
		set, err := s.slots.FindSlots(ctx, lead.Qualification.TherapyArea, lead.Qualification.PeriodPreference)
		if err != nil {
			return booking, fmt.Errorf("conversation: slot search failed: %w", err)
		}
		if booking == nil {
			booking = &BookingState{}
		}
		booking.Slots = set
		return booking, nil

	case engine.ActionConfirmBooking:
		if s.booker == nil || booking == nil || booking.ChosenSlot == nil {
			return booking, nil
		}
		if _, err := s.booker.Book(ctx, lead.ID, *booking.ChosenSlot, lead.Qualification.PatientName); err != nil {
			return booking, fmt.Errorf("conversation: booking failed: %w", err)
		}
		if err := s.repo.SetStatus(ctx, lead.ID, leads.StatusBooked); err != nil {
			s.logger.Error("failed to mark lead booked", "lead_id", lead.ID, "error", err)
		}
		// Booking done; scheduling state is spent.
		return nil, nil
	}
	return booking, nil
}

func (s *AmandaService) generateReply(ctx context.Context, pc promptContext, history []ChatMessage, message string) string {
	if s.llm == nil {
		return cannedReply(pc.Decision.Action)
	}

	msgs := make([]ChatMessage, 0, len(history)+1)
	if n := len(history); n > 12 {
		history = history[n-12:]
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: message})

	resp, err := s.llm.Complete(ctx, LLMRequest{
		Model:       s.modelID,
		System:      buildReplyPrompt(pc),
		Messages:    msgs,
		MaxTokens:   512,
		Temperature: 0.4,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			s.logger.Error("reply generation failed, using canned reply", "action", pc.Decision.Action, "error", err)
		}
		return cannedReply(pc.Decision.Action)
	}
	return resp.Text
}

func (s *AmandaService) persistTurn(ctx context.Context, lead *leads.Lead, decision engine.Decision, inbound, reply string, receivedAt time.Time, updates map[string]any, history []ChatMessage, booking *BookingState) {
	if err := s.repo.TouchInbound(ctx, lead.ID, receivedAt); err != nil {
		s.logger.Error("failed to record inbound timestamp", "lead_id", lead.ID, "error", err)
	}
	if err := s.repo.ApplyQualificationUpdate(ctx, lead.ID, updates); err != nil {
		s.logger.Error("failed to persist qualification update", "lead_id", lead.ID, "error", err)
	}
	if lead.Status == leads.StatusNew {
		if err := s.repo.SetStatus(ctx, lead.ID, leads.StatusQualifying); err != nil {
			s.logger.Error("failed to advance lead status", "lead_id", lead.ID, "error", err)
		}
	}

	history = append(history,
		ChatMessage{Role: ChatRoleUser, Content: inbound},
		ChatMessage{Role: ChatRoleAssistant, Content: reply},
	)
	if err := s.history.Save(ctx, lead.ID, history); err != nil {
		s.logger.Error("failed to persist history", "lead_id", lead.ID, "error", err)
	}
	if err := s.history.SaveBookingState(ctx, lead.ID, booking); err != nil {
		s.logger.Error("failed to persist booking state", "lead_id", lead.ID, "error", err)
	}

	if decision.Action == engine.ActionConfirmBooking && s.archive != nil {
		snapshot := *lead
		transcript := make([]ChatMessage, len(history))
		copy(transcript, history)
		go func() {
			archCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.archive.ArchiveConversation(archCtx, &snapshot, transcript, string(leads.StatusBooked)); err != nil {
				s.logger.Warn("transcript archive failed", "lead_id", snapshot.ID, "error", err)
			}
		}()
	}
}

func cannedReply(action engine.Action) string {
	switch action {
	case engine.ActionAskTherapy:
		return "Que bom ter você por aqui! Qual acompanhamento você procura para seu pequeno: fono, psicologia, terapia ocupacional, fisioterapia ou psicopedagogia?"
	case engine.ActionAskComplaint:
		return "Entendi! Me conta um pouquinho: o que você tem observado no seu pequeno que motivou a busca?"
	case engine.ActionAskAge:
		return "E quantos aninhos ele tem?"
	case engine.ActionAskPeriod:
		return "Vocês preferem atendimento de manhã, à tarde ou no fim do dia?"
	case engine.ActionAskPatientName:
		return "Perfeito! Qual o nome completo da criança para eu reservar o horário?"
	case engine.ActionConfirmBooking:
		return "Prontinho, horário reservado! Um dia antes a gente envia um lembrete por aqui. 💛"
	case engine.ActionSearchSlots:
		return "Deixa eu verificar os horários disponíveis e já te retorno!"
	case engine.ActionAnswerPrice:
		return "A avaliação inicial custa R$ 180 e o valor das sessões varia conforme a especialidade. Quer que eu já veja os horários disponíveis?"
	case engine.ActionJobInfo:
		return "Que legal seu interesse! Envia seu currículo para rh@espacoamar.com.br que nosso time avalia com carinho."
	default:
		return "Me conta um pouco mais para eu conseguir te ajudar da melhor forma!"
	}
}

func urgencyFromLabel(label string) engine.Urgency {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "alta", "urgente", "high":
		return engine.UrgencyHigh
	case "moderada", "media", "média", "medium":
		return engine.UrgencyModerate
	default:
		return engine.UrgencyNone
	}
}

func firstName(full string) string {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return full
	}
	return parts[0]
}
