package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/espacoamar/amanda-backend/internal/engine"
	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// MessageSender delivers outbound WhatsApp text. Implemented by the whatsapp
// package; narrowed here so the worker stays testable.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) error
}

// GhostWorker periodically scans for leads that went silent mid-funnel and
// sends up to two recovery nudges to the ones worth chasing.
type GhostWorker struct {
	repo     leads.Repository
	sender   MessageSender
	sink     engine.Sink
	logger   *logging.Logger
	interval time.Duration
	batch    int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewGhostWorker builds the scanner. Interval defaults to 30 minutes.
func NewGhostWorker(repo leads.Repository, sender MessageSender, sink engine.Sink, logger *logging.Logger, interval time.Duration) *GhostWorker {
	if repo == nil {
		panic("conversation: lead repository cannot be nil")
	}
	if sender == nil {
		panic("conversation: message sender cannot be nil")
	}
	if sink == nil {
		sink = engine.NopSink{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &GhostWorker{
		repo:     repo,
		sender:   sender,
		sink:     sink,
		logger:   logger,
		interval: interval,
		batch:    100,
		done:     make(chan struct{}),
	}
}

// Start launches the scan loop.
func (w *GhostWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.RunOnce(ctx, time.Now().UTC()); err != nil {
					w.logger.Error("ghost recovery scan failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the loop and waits for the current scan to finish.
func (w *GhostWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single scan pass. Exposed for tests and for the admin
// trigger endpoint.
func (w *GhostWorker) RunOnce(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-4 * time.Hour)
	candidates, err := w.repo.ListGhostCandidates(ctx, cutoff, w.batch)
	if err != nil {
		return fmt.Errorf("conversation: ghost candidate listing failed: %w", err)
	}

	for _, lead := range candidates {
		if err := w.evaluateLead(ctx, lead, now); err != nil {
			w.logger.Error("ghost nudge failed", "lead_id", lead.ID, "error", err)
		}
	}
	return nil
}

func (w *GhostWorker) evaluateLead(ctx context.Context, lead *leads.Lead, now time.Time) error {
	q := lead.Qualification
	state := engine.GhostState{
		Score:           q.IntentScore,
		Mode:            engine.Mode(q.ConversationMode),
		LastInbound:     lead.LastInboundAt,
		RecoveriesSent:  q.GhostRecoverySent,
		LastRecoveryAt:  q.GhostLastRecoveryAt,
		OptedOut:        lead.OptedOut,
		BookingComplete: lead.Status == leads.StatusBooked,
	}

	decision := engine.EvaluateGhost(state, now)
	if decision.Action == engine.GhostNone {
		return nil
	}

	body := nudgeMessage(decision, lead)
	if err := w.sender.SendText(ctx, lead.Phone, body); err != nil {
		return fmt.Errorf("conversation: ghost nudge send failed: %w", err)
	}

	if err := w.repo.ApplyQualificationUpdate(ctx, lead.ID, engine.PrepareGhostForSave(state, now)); err != nil {
		return fmt.Errorf("conversation: ghost nudge bookkeeping failed: %w", err)
	}

	w.sink.Record(engine.Event{
		Name: "ghost_nudge_sent",
		Labels: map[string]string{
			"attempt": string(decision.Action),
			"hot":     fmt.Sprintf("%t", decision.Hot),
		},
	})
	w.logger.Info("ghost recovery nudge sent", "lead_id", lead.ID, "attempt", decision.Action, "hot", decision.Hot)
	return nil
}

func nudgeMessage(d engine.GhostDecision, lead *leads.Lead) string {
	name := firstName(lead.ContactName)
	prefix := "Oi"
	if name != "" {
		prefix = "Oi, " + name
	}

	if d.Action == engine.GhostFirstNudge {
		if d.Hot {
			return prefix + "! Vi que a gente estava quase fechando o horário. Ainda posso reservar para vocês? 💛"
		}
		return prefix + "! Ficou alguma dúvida sobre o atendimento? Estou por aqui para ajudar. 💛"
	}

	if d.Hot {
		return prefix + "! O horário que conversamos segue disponível por enquanto. Quer que eu garanta para vocês?"
	}
	return prefix + "! Vou deixar nosso papo por aqui, mas quando quiser retomar é só mandar uma mensagem. 💛"
}
