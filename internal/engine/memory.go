package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FactType classifies an extracted conversational fact.
type FactType string

const (
	FactAge            FactType = "age"
	FactPatientName    FactType = "patient_name"
	FactComplaint      FactType = "complaint"
	FactPeriodPref     FactType = "period_preference"
	FactDayPref        FactType = "day_preference"
	FactUrgency        FactType = "urgency"
	FactEmotionalState FactType = "emotional_state"
	FactPriceSensitive FactType = "price_sensitivity"
	FactSchedulingWish FactType = "scheduling_intent"
)

// Confidence grades how the fact was obtained.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Fact is one memory-window entry, used to avoid re-asking and to personalize
// replies.
type Fact struct {
	Type       FactType   `json:"type"`
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
	ID         string     `json:"id"`
}

const memoryWindowSize = 5

// factPriority orders the window: urgent and identifying facts come first.
// Lower value = higher priority; unlisted types sort after listed ones.
var factPriority = map[FactType]int{
	FactUrgency:        0,
	FactPatientName:    1,
	FactAge:            2,
	FactSchedulingWish: 3,
	FactComplaint:      4,
}

// ---------- fact extraction regexes ----------

var (
	factAgeRE       = regexp.MustCompile(`(?i)\b(\d{1,2})\s*an(?:os?|inhos?)\b`)
	factNameRE      = regexp.MustCompile(`(?i)\b(?:[eé]\s+[ao]|se\s+chama|nome\s+(?:dele|dela|é|e)?)\s+([\p{Lu}][\p{L}]+(?:\s+[\p{Lu}][\p{L}]+)?)`)
	factDayRE       = regexp.MustCompile(`(?i)\b(segunda|ter[çc]a|quarta|quinta|sexta|s[áa]bado)\b`)
	factPeriodRE    = regexp.MustCompile(`(?i)\b(manh[ãa]|tarde|noite)\b`)
	factPriceRE     = regexp.MustCompile(`(?i)\b(caro|n[ãa]o\s+posso\s+pagar|aperta?do|or[çc]amento\s+curto|desconto)\b`)
	complaintWordRE = regexp.MustCompile(`(?i)\b(n[ãa]o\s+fala|atras(o|ada)|seletividade|birra|agita[çc][ãa]o|aten[çc][ãa]o|autis(mo|ta)|tdah|gagueira|troca\s+letras)\b`)
)

// ExtractFacts pulls memory-worthy facts from one message. AI-extracted
// structured fields take precedence over regex-derived facts of the same type.
func ExtractFacts(message string, info ExtractedInfo, now time.Time) []Fact {
	var facts []Fact
	add := func(t FactType, value string, c Confidence) {
		facts = append(facts, Fact{
			Type:       t,
			Value:      value,
			Confidence: c,
			Timestamp:  now,
			ID:         string(t) + ":" + strconv.FormatInt(now.UnixNano(), 10),
		})
	}

	// Age
	if info.Age > 0 {
		add(FactAge, strconv.Itoa(info.Age), ConfidenceHigh)
	} else if m := factAgeRE.FindStringSubmatch(message); m != nil {
		add(FactAge, m[1], ConfidenceMedium)
	}

	// Patient name
	if info.PatientName != "" {
		add(FactPatientName, info.PatientName, ConfidenceHigh)
	} else if m := factNameRE.FindStringSubmatch(message); m != nil {
		add(FactPatientName, strings.TrimSpace(m[1]), ConfidenceLow)
	}

	// Complaint category
	if info.Complaint != "" {
		add(FactComplaint, info.Complaint, ConfidenceHigh)
	} else if m := complaintWordRE.FindString(message); m != "" {
		add(FactComplaint, strings.ToLower(m), ConfidenceMedium)
	}

	// Time-of-day and day-of-week preferences
	if info.Period != "" {
		add(FactPeriodPref, strings.ToLower(info.Period), ConfidenceHigh)
	} else if m := factPeriodRE.FindString(message); m != "" {
		add(FactPeriodPref, strings.ToLower(m), ConfidenceMedium)
	}
	if days := factDayRE.FindAllString(strings.ToLower(message), -1); len(days) > 0 {
		add(FactDayPref, strings.Join(dedupeStrings(days), ", "), ConfidenceMedium)
	}

	// Urgency
	if info.UrgencyLevel != "" {
		add(FactUrgency, strings.ToLower(info.UrgencyLevel), ConfidenceHigh)
	} else if urgencySignalRE.MatchString(message) {
		add(FactUrgency, "alta", ConfidenceMedium)
	}

	// Emotional state
	if info.EmotionalState != "" {
		add(FactEmotionalState, strings.ToLower(info.EmotionalState), ConfidenceHigh)
	} else if m := emotionalRE.FindString(strings.ToLower(message)); m != "" {
		add(FactEmotionalState, m, ConfidenceMedium)
	}

	// Price sensitivity
	if factPriceRE.MatchString(message) {
		add(FactPriceSensitive, "sensivel", ConfidenceMedium)
	}

	// Explicit scheduling intent
	if bookingPhraseRE.MatchString(strings.ToLower(message)) {
		add(FactSchedulingWish, "explicita", ConfidenceHigh)
	}

	return facts
}

// UpdateMemoryWindow merges new facts into the window: one fact per type
// (newest wins), priority-first then most-recent ordering, hard cap of 5.
func UpdateMemoryWindow(window, newFacts []Fact) []Fact {
	byType := make(map[FactType]Fact, len(window)+len(newFacts))
	for _, f := range window {
		byType[f.Type] = f
	}
	for _, f := range newFacts {
		existing, ok := byType[f.Type]
		if !ok || !f.Timestamp.Before(existing.Timestamp) {
			byType[f.Type] = f
		}
	}

	merged := make([]Fact, 0, len(byType))
	for _, f := range byType {
		merged = append(merged, f)
	}
	sortFacts(merged)

	if len(merged) > memoryWindowSize {
		merged = merged[:memoryWindowSize]
	}
	return merged
}

// PrepareMemoryForSave produces the partial-update document for the window.
func PrepareMemoryForSave(window []Fact) map[string]any {
	return map[string]any{
		"qualificationData.memoryWindow": window,
	}
}

// sortFacts orders priority types first, then newest first. Insertion sort;
// the window never holds more than a handful of entries.
func sortFacts(facts []Fact) {
	less := func(a, b Fact) bool {
		pa, oka := factPriority[a.Type]
		pb, okb := factPriority[b.Type]
		switch {
		case oka && okb && pa != pb:
			return pa < pb
		case oka != okb:
			return oka
		default:
			return a.Timestamp.After(b.Timestamp)
		}
	}
	for i := 1; i < len(facts); i++ {
		for j := i; j > 0 && less(facts[j], facts[j-1]); j-- {
			facts[j], facts[j-1] = facts[j-1], facts[j]
		}
	}
}

func dedupeStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
