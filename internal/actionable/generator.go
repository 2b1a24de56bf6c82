package actionable

import (
	"fmt"

	"service-call-analyzer/internal/types"
)

// strongRatio is the per-stage score ratio treated as good adherence.
const strongRatio = 0.8

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
	Stage   string `json:"stage,omitempty"`
}

// Generate picks the weakest scored stage and turns its checklist suggestion
// into the coaching action. Ties go to the earlier checklist row.
func Generate(entries []types.ComplianceEntry) ActionCard {
	if len(entries) == 0 {
		return ActionCard{
			Insight: "No compliance checklist on record",
			Action:  "Run stage tagging to seed the checklist",
			Impact:  "No coaching signal yet",
		}
	}

	var total, possible float64
	for _, e := range entries {
		total += e.Score
		possible += e.Max
	}
	if total == 0 {
		return ActionCard{
			Insight: "Checklist not scored yet",
			Action:  "Score each stage against its evidence excerpts",
			Impact:  "Coaching needs reviewer scores",
		}
	}

	worst := -1
	lowest := 0.0
	for i, e := range entries {
		if e.Stage == "" || e.Max <= 0 {
			continue
		}
		r := e.Score / e.Max
		if worst == -1 || r < lowest {
			worst = i
			lowest = r
		}
	}
	overall := 0.0
	if possible > 0 {
		overall = total / possible * 100
	}

	if worst == -1 || lowest >= strongRatio {
		return ActionCard{
			Insight: fmt.Sprintf("Every stage at or above %.0f%%", strongRatio*100),
			Action:  "Share this call as a reference example",
			Impact:  fmt.Sprintf("Overall compliance %.0f%%", overall),
		}
	}

	e := entries[worst]
	action := e.Suggestion
	if action == "" {
		action = fmt.Sprintf("Review how %s is handled on calls", e.Stage)
	}
	return ActionCard{
		Insight: fmt.Sprintf("Weakest stage: %s (%.0f%%)", e.Stage, lowest*100),
		Action:  action,
		Impact:  fmt.Sprintf("Lift overall compliance from %.0f%%", overall),
		Stage:   e.Stage,
	}
}
