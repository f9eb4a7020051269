package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateClinicalRules(t *testing.T) {
	tests := []struct {
		name    string
		in      ClinicalInput
		blocked bool
		reason  ClinicalReason
	}{
		{
			name:    "psychology over 16 blocked",
			in:      ClinicalInput{Specialty: "Psicologia", Age: 17, HasAge: true},
			blocked: true,
			reason:  ClinicalPsychologyAge,
		},
		{
			name:   "psychology at 16 allowed",
			in:     ClinicalInput{Specialty: "psicologia", Age: 16, HasAge: true, Relationship: "mae"},
			reason: ClinicalNone,
		},
		{
			name:    "physio baby without osteopathy clearance blocked",
			in:      ClinicalInput{Specialty: "fisioterapia", Age: 1, HasAge: true},
			blocked: true,
			reason:  ClinicalOsteopathyGate,
		},
		{
			name:   "physio baby with osteopathy clearance passes",
			in:     ClinicalInput{Specialty: "fisioterapia", Age: 1, HasAge: true, OsteopathyCleared: true, Relationship: "pai"},
			reason: ClinicalNone,
		},
		{
			name:   "physio at 3 skips osteopathy gate",
			in:     ClinicalInput{Specialty: "fisioterapia", Age: 3, HasAge: true, Relationship: "mae"},
			reason: ClinicalNone,
		},
		{
			name:   "neuropsicopedagogia annotated not blocked",
			in:     ClinicalInput{Specialty: "Neuropsicopedagogia", Age: 8, HasAge: true},
			reason: ClinicalNeuroSpecial,
		},
		{
			name:   "unknown relationship annotated",
			in:     ClinicalInput{Specialty: "fonoaudiologia", Age: 5, HasAge: true, Relationship: "vizinha"},
			reason: ClinicalRelationshipOther,
		},
		{
			name:   "known relationship accent-insensitive",
			in:     ClinicalInput{Specialty: "fonoaudiologia", Age: 5, HasAge: true, Relationship: "Mãe"},
			reason: ClinicalNone,
		},
		{
			name:   "specialty without age annotated",
			in:     ClinicalInput{Specialty: "fonoaudiologia"},
			reason: ClinicalMissingAge,
		},
		{
			// Rule order: the age gate fires before the relationship check.
			name:    "block outranks annotation",
			in:      ClinicalInput{Specialty: "psicologia", Age: 20, HasAge: true, Relationship: "vizinha"},
			blocked: true,
			reason:  ClinicalPsychologyAge,
		},
		{
			name:   "empty input passes clean",
			in:     ClinicalInput{},
			reason: ClinicalNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := EvaluateClinicalRules(tt.in)
			assert.Equal(t, tt.blocked, v.Blocked)
			assert.Equal(t, tt.reason, v.Reason)
			if tt.reason != ClinicalNone {
				assert.NotEmpty(t, v.Message)
			}
		})
	}
}
