package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIntent(t *testing.T) {
	tests := []struct {
		name      string
		res       IntentResult
		llmIntent string
		want      Intent
	}{
		{"asks price flag wins", IntentResult{Type: "booking", AsksPrice: true}, "", IntentPrice},
		{"product inquiry is price", IntentResult{Type: "product_inquiry"}, "", IntentPrice},
		{"asks location is general info", IntentResult{AsksLocation: true}, "", IntentGeneralInfo},
		{"asks hours is general info", IntentResult{AsksHours: true}, "", IntentGeneralInfo},
		{"booking maps to scheduling", IntentResult{Type: "booking"}, "", IntentScheduling},
		{"booking_ready maps to scheduling", IntentResult{Type: "booking_ready"}, "", IntentScheduling},
		{"therapy_question maps to therapy_info", IntentResult{Type: "therapy_question"}, "", IntentTherapyInfo},
		{"complaint maps to complaint_collection", IntentResult{Type: "complaint"}, "", IntentComplaintCollection},
		{"unknown type passes through", IntentResult{Type: "job"}, "", IntentJob},
		{"empty result falls back to llm price words", IntentResult{}, "pergunta sobre valor da sessão", IntentPrice},
		{"empty result falls back to llm agendar prefix", IntentResult{}, "agendar consulta", IntentScheduling},
		{"empty result falls back to llm therapy words", IntentResult{}, "dúvida sobre fonoaudiologia", IntentTherapyInfo},
		{"nothing recognizable defaults to qualification", IntentResult{}, "oi, tudo bem?", IntentQualification},
		{"empty everything defaults to qualification", IntentResult{}, "", IntentQualification},
		{"structured type suppresses free-text pass", IntentResult{Type: "partnership"}, "quanto custa", IntentPartnership},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIntent(tt.res, tt.llmIntent))
		})
	}
}

func TestIsSideIntent(t *testing.T) {
	assert.True(t, IsSideIntent(IntentPrice))
	assert.True(t, IsSideIntent(IntentTherapyInfo))
	assert.True(t, IsSideIntent(IntentGeneralInfo))
	assert.False(t, IsSideIntent(IntentScheduling))
	assert.False(t, IsSideIntent(IntentComplaintCollection))
	assert.False(t, IsSideIntent(IntentQualification))
}

func TestIsSchedulingIntent(t *testing.T) {
	assert.True(t, IsSchedulingIntent(IntentScheduling))
	assert.True(t, IsSchedulingIntent(IntentComplaintCollection))
	assert.False(t, IsSchedulingIntent(IntentPrice))
	assert.False(t, IsSchedulingIntent(IntentJob))
}
