package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/espacoamar/amanda-backend/internal/engine"
)

// stubLLM returns a fixed response or error.
type stubLLM struct {
	text string
	err  error

	lastReq LLMRequest
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

func TestAnalyzer_LLMPath(t *testing.T) {
	llm := &stubLLM{text: `{
		"intent": {"type": "booking", "asksPrice": false},
		"primaryIntent": "agendar avaliação",
		"extracted": {"age": 4, "therapyArea": "fonoaudiologia", "complaint": "atraso de fala"},
		"sentiment": "positive"
	}`}
	a := NewAnalyzer(llm, "model-id", nil)

	got := a.Analyze(context.Background(), "quero agendar fono pro meu filho de 4 anos", nil)

	assert.Equal(t, engine.IntentScheduling, got.Intent)
	assert.Equal(t, 4, got.Extracted.Age)
	assert.Equal(t, "fonoaudiologia", got.Extracted.TherapyArea)
	assert.Equal(t, engine.SentimentPositive, got.Sentiment)
}

func TestAnalyzer_LLMWrappedJSON(t *testing.T) {
	llm := &stubLLM{text: "```json\n{\"intent\":{\"type\":\"complaint\"},\"sentiment\":\"neutral\"}\n```"}
	a := NewAnalyzer(llm, "model-id", nil)

	got := a.Analyze(context.Background(), "ele não fala direito", nil)
	assert.Equal(t, engine.IntentComplaintCollection, got.Intent)
}

func TestAnalyzer_FallsBackOnLLMError(t *testing.T) {
	llm := &stubLLM{err: errors.New("throttled")}
	a := NewAnalyzer(llm, "model-id", nil)

	got := a.Analyze(context.Background(), "quero agendar uma avaliação de fono", nil)
	assert.Equal(t, engine.IntentScheduling, got.Intent)
}

func TestAnalyzer_FallsBackOnGarbage(t *testing.T) {
	llm := &stubLLM{text: "desculpe, não entendi"}
	a := NewAnalyzer(llm, "model-id", nil)

	got := a.Analyze(context.Background(), "quanto custa a sessão?", nil)
	assert.Equal(t, engine.IntentPrice, got.Intent)
}

func TestAnalyzer_Heuristics(t *testing.T) {
	a := NewAnalyzer(nil, "", nil)

	tests := []struct {
		name    string
		message string
		intent  engine.Intent
	}{
		{"booking words", "queria marcar um horário", engine.IntentScheduling},
		{"price words", "qual o valor da avaliação?", engine.IntentPrice},
		{"therapy question", "como funciona a terapia ocupacional?", engine.IntentTherapyInfo},
		{"job inquiry", "vocês têm vaga para fono? posso mandar currículo?", engine.IntentJob},
		{"partnership", "gostaria de propor uma parceria com a escola", engine.IntentPartnership},
		{"location", "onde fica a clínica?", engine.IntentGeneralInfo},
		{"small talk", "oi, tudo bem?", engine.IntentQualification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(context.Background(), tt.message, nil)
			assert.Equal(t, tt.intent, got.Intent)
		})
	}
}

func TestAnalyzer_HeuristicExtraction(t *testing.T) {
	a := NewAnalyzer(nil, "", nil)

	got := a.Analyze(context.Background(), "minha filha tem 6 anos, pode ser de tarde, fono", nil)
	assert.Equal(t, 6, got.Extracted.Age)
	assert.Equal(t, "tarde", got.Extracted.Period)
	assert.Equal(t, "fono", got.Extracted.TherapyArea)
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONObject("antes {\"a\":1} depois"))
	assert.Equal(t, "sem json", extractJSONObject("sem json"))
}
