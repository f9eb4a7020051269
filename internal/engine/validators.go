package engine

import (
	"regexp"
	"strings"
)

// ---------- package-level compiled regexes ----------

var (
	ageAnswerRE  = regexp.MustCompile(`(?i)\b\d{1,2}\s*an(?:os?|inhos?)\b`)
	periodRE     = regexp.MustCompile(`(?i)\b(manh[ãa]|tarde|noite|fim\s+do\s+dia)\b`)
	slotChoiceRE = regexp.MustCompile(`(?i)^\s*(a|b|c|1|2|3|primeira|segunda|terceira|op[çc][ãa]o)\b`)
)

// shortAffirmations are replies that acknowledge without answering anything.
var shortAffirmations = map[string]bool{
	"sim": true, "não": true, "nao": true, "ok": true, "okay": true,
	"beleza": true, "blz": true, "claro": true, "certo": true, "uhum": true,
	"tá": true, "ta": true, "show": true, "top": true,
}

// MessageAnswersAwaiting reports whether the message plausibly answers the
// field the bot is currently waiting for. Used only while a field is awaited;
// an unrecognized field key returns false rather than guessing.
func MessageAnswersAwaiting(field AwaitingField, text string, info ExtractedInfo) bool {
	trimmed := strings.TrimSpace(text)

	switch field {
	case AwaitAge:
		return info.Age > 0 || ageAnswerRE.MatchString(text)

	case AwaitComplaint:
		// A substantive complaint description is assumed non-trivial in
		// length; short texts are treated as non-answers.
		return info.Complaint != "" || len([]rune(trimmed)) > 10

	case AwaitPeriod:
		return info.Period != "" || periodRE.MatchString(text)

	case AwaitSlotSelection:
		return slotChoiceRE.MatchString(trimmed)

	case AwaitPatientName:
		if info.PatientName != "" {
			return true
		}
		lower := strings.ToLower(strings.Trim(trimmed, ".,!?"))
		return len([]rune(trimmed)) > 2 && !shortAffirmations[lower]

	default:
		return false
	}
}

// ResolveSlotChoice maps a slot-selection reply onto the presented options.
// Options are labeled A/B/C (or 1/2/3) in presentation order, primary first.
// Returns nil when the reply does not pick a valid option.
func ResolveSlotChoice(text string, set *SlotSet) *Slot {
	if set == nil {
		return nil
	}
	m := slotChoiceRE.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil
	}

	var index int
	switch strings.ToLower(m[1]) {
	case "a", "1", "primeira", "opção", "opcao":
		index = 0
	case "b", "2", "segunda":
		index = 1
	case "c", "3", "terceira":
		index = 2
	default:
		return nil
	}

	ordered := make([]*Slot, 0, 1+len(set.Alternatives))
	if set.Primary != nil {
		ordered = append(ordered, set.Primary)
	}
	for i := range set.Alternatives {
		ordered = append(ordered, &set.Alternatives[i])
	}
	if index >= len(ordered) {
		return nil
	}
	return ordered[index]
}
