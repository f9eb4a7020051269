package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espacoamar/amanda-backend/internal/engine"
)

func TestEngineMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)

	m.Record(engine.Event{Name: "engine_decision", Labels: map[string]string{
		"action": "search_slots", "handler": "scheduling",
	}})
	m.Record(engine.Event{Name: "engine_decision", Labels: map[string]string{
		"action": "search_slots", "handler": "scheduling",
	}})
	m.Record(engine.Event{Name: "engine_mode_change", Labels: map[string]string{
		"from": "deterministic", "to": "llm",
	}})
	m.Record(engine.Event{Name: "ghost_nudge_sent", Labels: map[string]string{
		"attempt": "first_nudge", "hot": "true",
	}})
	m.Record(engine.Event{Name: "something_else"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisionTotal.WithLabelValues("search_slots", "scheduling")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modeChanges.WithLabelValues("deterministic", "llm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ghostNudges.WithLabelValues("first_nudge", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("something_else")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var decisions *dto.MetricFamily
	for _, fam := range families {
		if fam.GetName() == "amanda_engine_decision_total" {
			decisions = fam
		}
	}
	require.NotNil(t, decisions)
	require.Len(t, decisions.GetMetric(), 1)
	assert.Equal(t, 2.0, decisions.GetMetric()[0].GetCounter().GetValue())
}

func TestEngineMetrics_NilSafe(t *testing.T) {
	var m *EngineMetrics
	m.Record(engine.Event{Name: "engine_decision"})
}

func TestMessagingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMessagingMetrics(reg)
	m.ObserveInbound("ok")
	m.ObserveOutbound("sent")
	m.ObserveWebhookLatency("ok", 0.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.inboundTotal.WithLabelValues("ok")))
}

func TestMessagingMetrics_NilSafe(t *testing.T) {
	var m *MessagingMetrics
	m.ObserveInbound("ok")
	m.ObserveOutbound("sent")
	m.ObserveWebhookLatency("ok", 0.1)
}
