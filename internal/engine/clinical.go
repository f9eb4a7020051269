package engine

import "strings"

// ClinicalReason identifies which clinical rule fired.
type ClinicalReason string

const (
	ClinicalNone              ClinicalReason = ""
	ClinicalPsychologyAge     ClinicalReason = "psychology_age"
	ClinicalOsteopathyGate    ClinicalReason = "osteopathy_gate"
	ClinicalNeuroSpecial      ClinicalReason = "neuro_special"
	ClinicalRelationshipOther ClinicalReason = "relationship_other"
	ClinicalMissingAge        ClinicalReason = "missing_age"
)

// ClinicalInput is the memory/analysis context the rule chain evaluates.
type ClinicalInput struct {
	Specialty         string
	Age               int
	HasAge            bool
	OsteopathyCleared bool
	Relationship      string
}

// ClinicalVerdict is the outcome of the rule chain. Blocked verdicts stop the
// funnel; annotated verdicts attach a message but let it proceed.
type ClinicalVerdict struct {
	Blocked bool
	Reason  ClinicalReason
	Message string
}

// knownRelationships are caller roles the intake flow understands natively.
var knownRelationships = map[string]bool{
	"mae": true, "pai": true, "responsavel": true, "paciente": true,
}

// EvaluateClinicalRules runs the fixed-order rule chain, first applicable rule
// wins. Safety gates come before informational annotations.
func EvaluateClinicalRules(in ClinicalInput) ClinicalVerdict {
	specialty := normalizeSpecialty(in.Specialty)

	// 1. Psychology here covers children up to 16 only.
	if specialty == "psicologia" && in.HasAge && in.Age > 16 {
		return ClinicalVerdict{
			Blocked: true,
			Reason:  ClinicalPsychologyAge,
			Message: "Atendemos psicologia infantil até 16 anos.",
		}
	}

	// 2. Babies start with osteopathy evaluation before physiotherapy.
	if specialty == "fisioterapia" && in.HasAge && in.Age <= 2 && !in.OsteopathyCleared {
		return ClinicalVerdict{
			Blocked: true,
			Reason:  ClinicalOsteopathyGate,
			Message: "Para bebês até 2 anos a avaliação inicial é com osteopatia.",
		}
	}

	// 3. Neuropsicopedagogia follows a distinct assessment flow.
	if specialty == "neuropsicopedagogia" {
		return ClinicalVerdict{
			Reason:  ClinicalNeuroSpecial,
			Message: "A avaliação neuropsicopedagógica tem um fluxo próprio de sessões.",
		}
	}

	// 4. Unknown caller relationship gets flagged, not blocked.
	if rel := normalizeSpecialty(in.Relationship); rel != "" && !knownRelationships[rel] {
		return ClinicalVerdict{
			Reason:  ClinicalRelationshipOther,
			Message: "Responsável fora do cadastro padrão; confirmar vínculo na recepção.",
		}
	}

	// 5. Therapy chosen but age still unknown.
	if specialty != "" && !in.HasAge {
		return ClinicalVerdict{
			Reason:  ClinicalMissingAge,
			Message: "Idade do paciente ainda não informada.",
		}
	}

	return ClinicalVerdict{}
}

func normalizeSpecialty(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer("ã", "a", "á", "a", "â", "a", "é", "e", "ê", "e", "í", "i", "ó", "o", "ô", "o", "ú", "u", "ç", "c")
	return replacer.Replace(s)
}
