package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espacoamar/amanda-backend/internal/leads"
)

type recordingSender struct {
	sent []string
}

func (r *recordingSender) SendText(_ context.Context, to, body string) error {
	r.sent = append(r.sent, to+": "+body)
	return nil
}

func TestGhostWorker_RunOnce(t *testing.T) {
	repo := newFakeLeadRepo()
	sender := &recordingSender{}
	worker := NewGhostWorker(repo, sender, nil, nil, time.Minute)

	now := time.Date(2026, 8, 10, 18, 0, 0, 0, time.UTC)
	ctx := context.Background()

	warm, err := repo.Create(ctx, &leads.CreateLeadRequest{Phone: "+5511999990001", ContactName: "Ana"})
	require.NoError(t, err)
	warm.Qualification.IntentScore = 55
	warm.LastInboundAt = now.Add(-6 * time.Hour)

	cold, err := repo.Create(ctx, &leads.CreateLeadRequest{Phone: "+5511999990002"})
	require.NoError(t, err)
	cold.Qualification.IntentScore = 20
	cold.LastInboundAt = now.Add(-48 * time.Hour)

	recent, err := repo.Create(ctx, &leads.CreateLeadRequest{Phone: "+5511999990003"})
	require.NoError(t, err)
	recent.Qualification.IntentScore = 80
	recent.LastInboundAt = now.Add(-time.Hour)

	require.NoError(t, worker.RunOnce(ctx, now))

	// Only the warm, long-silent lead gets a nudge.
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "+5511999990001")

	refreshed, err := repo.GetByID(ctx, warm.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.Qualification.GhostRecoverySent)
	assert.Equal(t, now, refreshed.Qualification.GhostLastRecoveryAt)
}

func TestGhostWorker_RespectsAttemptCeiling(t *testing.T) {
	repo := newFakeLeadRepo()
	sender := &recordingSender{}
	worker := NewGhostWorker(repo, sender, nil, nil, time.Minute)

	now := time.Date(2026, 8, 10, 18, 0, 0, 0, time.UTC)
	ctx := context.Background()

	lead, err := repo.Create(ctx, &leads.CreateLeadRequest{Phone: "+5511999990001"})
	require.NoError(t, err)
	lead.Qualification.IntentScore = 90
	lead.Qualification.GhostRecoverySent = 2
	lead.Qualification.GhostLastRecoveryAt = now.Add(-30 * time.Hour)
	lead.LastInboundAt = now.Add(-72 * time.Hour)

	require.NoError(t, worker.RunOnce(ctx, now))
	assert.Empty(t, sender.sent)
}

func TestGhostWorker_HotLeadMessage(t *testing.T) {
	repo := newFakeLeadRepo()
	sender := &recordingSender{}
	worker := NewGhostWorker(repo, sender, nil, nil, time.Minute)

	now := time.Date(2026, 8, 10, 18, 0, 0, 0, time.UTC)
	ctx := context.Background()

	lead, err := repo.Create(ctx, &leads.CreateLeadRequest{Phone: "+5511999990001", ContactName: "Ana"})
	require.NoError(t, err)
	lead.Qualification.IntentScore = 80
	lead.LastInboundAt = now.Add(-5 * time.Hour)

	require.NoError(t, worker.RunOnce(ctx, now))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "reservar")
}
