package engine

import "strings"

// Intent is a canonical conversation intent after normalization.
type Intent string

const (
	IntentPrice               Intent = "price"
	IntentScheduling          Intent = "scheduling"
	IntentTherapyInfo         Intent = "therapy_info"
	IntentComplaintCollection Intent = "complaint_collection"
	IntentQualification       Intent = "qualification"
	IntentGeneralInfo         Intent = "general_info"
	IntentPartnership         Intent = "partnership"
	IntentJob                 Intent = "job"
)

// IntentResult is the structured output of the external classifier for one message.
// Zero values mean "classifier did not flag this".
type IntentResult struct {
	Type         string `json:"type"`
	AsksPrice    bool   `json:"asksPrice"`
	AsksLocation bool   `json:"asksLocation"`
	AsksHours    bool   `json:"asksHours"`
}

// rawTypeMap translates classifier labels into canonical intents.
var rawTypeMap = map[string]Intent{
	"booking":          IntentScheduling,
	"booking_ready":    IntentScheduling,
	"therapy_question": IntentTherapyInfo,
	"complaint":        IntentComplaintCollection,
}

var priceWords = []string{"preço", "preco", "valor", "quanto custa", "quanto fica", "custo", "mensalidade"}

var therapyWords = []string{
	"fono", "fonoaudiologia", "psico", "psicologia", "terapia ocupacional",
	"fisioterapia", "osteopatia", "neuropsicopedagogia", "psicopedagogia", "terapia",
}

// NormalizeIntent maps raw classifier output (and, when the classifier produced
// nothing structured, the LLM's free-text primary intent) to a canonical intent.
// Priority order, first match wins.
func NormalizeIntent(res IntentResult, llmIntent string) Intent {
	if res.AsksPrice || res.Type == "product_inquiry" {
		return IntentPrice
	}
	if res.AsksLocation || res.AsksHours {
		return IntentGeneralInfo
	}
	if mapped, ok := rawTypeMap[res.Type]; ok {
		return mapped
	}

	// Free-text fallback runs only when structured classification is absent,
	// so the structured path stays auditable on its own.
	if res.Type == "" {
		if intent, ok := normalizeFreeText(llmIntent); ok {
			return intent
		}
		return IntentQualification
	}

	return Intent(res.Type)
}

// normalizeFreeText is the secondary pass over the LLM's free-text intent label.
func normalizeFreeText(llmIntent string) (Intent, bool) {
	label := strings.ToLower(strings.TrimSpace(llmIntent))
	if label == "" {
		return "", false
	}
	for _, w := range priceWords {
		if strings.Contains(label, w) {
			return IntentPrice, true
		}
	}
	if strings.HasPrefix(label, "agendar") {
		return IntentScheduling, true
	}
	for _, w := range therapyWords {
		if strings.Contains(label, w) {
			return IntentTherapyInfo, true
		}
	}
	return "", false
}

// IsSideIntent reports whether the intent does not advance the scheduling
// funnel and is therefore a candidate for interruption handling.
func IsSideIntent(intent Intent) bool {
	switch intent {
	case IntentPrice, IntentTherapyInfo, IntentGeneralInfo:
		return true
	default:
		return false
	}
}

// IsSchedulingIntent reports whether the intent moves the funnel forward.
func IsSchedulingIntent(intent Intent) bool {
	return intent == IntentScheduling || intent == IntentComplaintCollection
}
