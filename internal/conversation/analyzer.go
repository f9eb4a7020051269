package conversation

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/espacoamar/amanda-backend/internal/engine"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// Analyzer turns one inbound message into the structured analysis the engine
// consumes. It asks the LLM for a JSON classification and degrades to regex
// heuristics when the model is unavailable or returns garbage.
type Analyzer struct {
	llm     LLMClient
	modelID string
	logger  *logging.Logger
}

func NewAnalyzer(llm LLMClient, modelID string, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{llm: llm, modelID: modelID, logger: logger}
}

const analyzerSystemPrompt = `Você é o classificador de mensagens da clínica Espaço Amar (terapias infantis).
Responda SOMENTE com um objeto JSON, sem markdown, neste formato:
{
  "intent": {"type": "", "asksPrice": false, "asksLocation": false, "asksHours": false},
  "primaryIntent": "",
  "extracted": {"age": 0, "complaint": "", "period": "", "patientName": "", "therapyArea": "", "relationship": "", "urgencyLevel": "", "emotionalState": "", "multipleChildren": false},
  "sentiment": "neutral"
}
Valores possíveis de intent.type: booking, booking_ready, therapy_question, complaint, product_inquiry, partnership, job ou vazio.
sentiment: positive, neutral ou negative. Extraia apenas o que estiver explícito na mensagem.`

// llmAnalysis is the JSON contract with the classifier prompt.
type llmAnalysis struct {
	Intent        engine.IntentResult  `json:"intent"`
	PrimaryIntent string               `json:"primaryIntent"`
	Extracted     engine.ExtractedInfo `json:"extracted"`
	Sentiment     engine.Sentiment     `json:"sentiment"`
}

// Analyze classifies one message.
func (a *Analyzer) Analyze(ctx context.Context, message string, history []ChatMessage) engine.Analysis {
	if a.llm != nil {
		if analysis, ok := a.analyzeLLM(ctx, message, history); ok {
			return analysis
		}
	}
	return a.analyzeHeuristic(message)
}

func (a *Analyzer) analyzeLLM(ctx context.Context, message string, history []ChatMessage) (engine.Analysis, bool) {
	msgs := make([]ChatMessage, 0, len(history)+1)
	// Only the recent tail matters for classification.
	if n := len(history); n > 6 {
		history = history[n-6:]
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: message})

	resp, err := a.llm.Complete(ctx, LLMRequest{
		Model:       a.modelID,
		System:      []string{analyzerSystemPrompt},
		Messages:    msgs,
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		a.logger.Warn("message analysis LLM call failed", "error", err)
		return engine.Analysis{}, false
	}

	var parsed llmAnalysis
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Text)), &parsed); err != nil {
		a.logger.Warn("message analysis returned unparseable JSON", "error", err)
		return engine.Analysis{}, false
	}

	return engine.Analysis{
		Intent:    engine.NormalizeIntent(parsed.Intent, parsed.PrimaryIntent),
		Extracted: parsed.Extracted,
		Sentiment: normalizeSentiment(parsed.Sentiment),
	}, true
}

var (
	heurAgeRE      = regexp.MustCompile(`(?i)\b(\d{1,2})\s*an(?:os?|inhos?)\b`)
	heurPeriodRE   = regexp.MustCompile(`(?i)\b(manh[ãa]|tarde|noite)\b`)
	heurBookingRE  = regexp.MustCompile(`(?i)\b(agendar|marcar|agendamento|hor[áa]rio)\b`)
	heurPriceRE    = regexp.MustCompile(`(?i)\b(pre[çc]o|valor|quanto\s+(custa|fica)|mensalidade)\b`)
	heurTherapyRE  = regexp.MustCompile(`(?i)\b(fono(audiologia)?|psico(logia)?|terapia\s+ocupacional|fisioterapia|osteopatia|neuropsicopedagogia|psicopedagogia)\b`)
	heurJobRE      = regexp.MustCompile(`(?i)\b(vaga|curr[íi]culo|trabalhar\s+a[íi]|recrutamento)\b`)
	heurPartnerRE  = regexp.MustCompile(`(?i)\b(parceria|conv[êe]nio|divulga[çc][ãa]o)\b`)
	heurLocationRE = regexp.MustCompile(`(?i)\b(onde\s+fica|endere[çc]o|localiza[çc][ãa]o)\b`)
	heurHoursRE    = regexp.MustCompile(`(?i)\b(que\s+horas\s+(abre|fecha)|hor[áa]rio\s+de\s+funcionamento)\b`)
	heurNegativeRE = regexp.MustCompile(`(?i)\b(p[ée]ssimo|horr[íi]vel|absurdo|reclamar|reclama[çc][ãa]o)\b`)
	heurPositiveRE = regexp.MustCompile(`(?i)\b(obrigad[ao]|[óo]timo|perfeito|maravilha|adorei)\b`)
)

// analyzeHeuristic is the no-LLM classification path. Coarser than the model,
// but it keeps the funnel moving during provider outages.
func (a *Analyzer) analyzeHeuristic(message string) engine.Analysis {
	res := engine.IntentResult{
		AsksPrice:    heurPriceRE.MatchString(message),
		AsksLocation: heurLocationRE.MatchString(message),
		AsksHours:    heurHoursRE.MatchString(message),
	}
	switch {
	case heurJobRE.MatchString(message):
		res.Type = "job"
	case heurPartnerRE.MatchString(message):
		res.Type = "partnership"
	case heurBookingRE.MatchString(message):
		res.Type = "booking"
	case heurTherapyRE.MatchString(message):
		res.Type = "therapy_question"
	}

	var extracted engine.ExtractedInfo
	if m := heurAgeRE.FindStringSubmatch(message); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			extracted.Age = age
		}
	}
	if m := heurPeriodRE.FindString(message); m != "" {
		extracted.Period = strings.ToLower(m)
	}
	if m := heurTherapyRE.FindString(message); m != "" {
		extracted.TherapyArea = strings.ToLower(m)
	}

	sentiment := engine.SentimentNeutral
	if heurNegativeRE.MatchString(message) {
		sentiment = engine.SentimentNegative
	} else if heurPositiveRE.MatchString(message) {
		sentiment = engine.SentimentPositive
	}

	return engine.Analysis{
		Intent:    engine.NormalizeIntent(res, ""),
		Extracted: extracted,
		Sentiment: sentiment,
	}
}

func normalizeSentiment(s engine.Sentiment) engine.Sentiment {
	switch s {
	case engine.SentimentPositive, engine.SentimentNegative:
		return s
	default:
		return engine.SentimentNeutral
	}
}

// extractJSONObject strips markdown fences and any prose around the first
// top-level JSON object. Models occasionally wrap output despite instructions.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
