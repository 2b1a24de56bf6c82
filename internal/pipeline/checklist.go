package pipeline

import (
	"service-call-analyzer/internal/evidence"
	"service-call-analyzer/internal/stage"
	"service-call-analyzer/internal/types"
)

// ChecklistItem is one compliance row. EvidenceStage names the segment stage
// quoted as evidence; it differs from Stage only for aliased rows.
type ChecklistItem struct {
	Stage         string
	EvidenceStage string
	Suggestion    string
}

// DefaultChecklist is the HVAC consultation checklist, in report order.
func DefaultChecklist() []ChecklistItem {
	return []ChecklistItem{
		{
			Stage:         stage.Introduction,
			EvidenceStage: stage.Introduction,
			Suggestion:    "Open with name, company, role, purpose; confirm it’s a good time.",
		},
		{
			Stage:         stage.ProblemDiagnosis,
			EvidenceStage: stage.ProblemDiagnosis,
			Suggestion:    "Probe symptoms, duration, comfort by room, prior fixes, utility bills, constraints.",
		},
		{
			Stage:         stage.SolutionExplanation,
			EvidenceStage: stage.SolutionExplanation,
			Suggestion:    "Compare options, costs, rebates, permits/HERS, warranties, trade-offs, savings.",
		},
		{
			Stage:         stage.UpsellAttempts,
			EvidenceStage: stage.UpsellAttempts,
			Suggestion:    "Offer only need-based upsells; tie benefits to diagnosed issues.",
		},
		{
			// No rule emits this stage; plan pitches land in Upsell Attempts.
			Stage:         stage.MaintenancePlanOffer,
			EvidenceStage: stage.UpsellAttempts,
			Suggestion:    "Pitch plan explicitly—price, cadence, inclusions; link to warranty terms.",
		},
		{
			Stage:         stage.ClosingThankYou,
			EvidenceStage: stage.ClosingThankYou,
			Suggestion:    "Recap decisions, email quotes, schedule follow-up with all decision-makers, thank the customer.",
		},
	}
}

// Seed builds unscored compliance entries with evidence drawn from segments.
func Seed(segments []types.Segment, checklist []ChecklistItem) []types.ComplianceEntry {
	out := make([]types.ComplianceEntry, 0, len(checklist))
	for _, item := range checklist {
		src := item.EvidenceStage
		if src == "" {
			src = item.Stage
		}
		out = append(out, types.ComplianceEntry{
			Stage:      item.Stage,
			Score:      0,
			Max:        types.DefaultMaxScore,
			Evidence:   evidence.Sample(segments, src, evidence.DefaultLimit),
			Suggestion: item.Suggestion,
		})
	}
	return out
}
