package report

import (
	"sort"

	"service-call-analyzer/internal/types"
)

// StageTotals is one stage's compliance across several calls.
type StageTotals struct {
	Stage    string  `json:"stage"`
	Entries  int     `json:"entries"`
	Score    float64 `json:"score"`
	Max      float64 `json:"max"`
	Rate     float64 `json:"rate"`
	Segments int     `json:"segments"`
}

// Insight summarizes a batch of analyzed calls.
type Insight struct {
	Calls         int            `json:"calls"`
	ByStage       []StageTotals  `json:"by_stage"`
	CallTypeCount map[string]int `json:"call_type_counts"`
}

// Aggregate rolls compliance rows and segment counts up per stage. Stages are
// ordered by first appearance across the records.
func Aggregate(records []*types.CallRecord) Insight {
	totals := map[string]*StageTotals{}
	var order []string
	get := func(stage string) *StageTotals {
		t, ok := totals[stage]
		if !ok {
			t = &StageTotals{Stage: stage}
			totals[stage] = t
			order = append(order, stage)
		}
		return t
	}

	out := Insight{CallTypeCount: map[string]int{}}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		out.Calls++
		out.CallTypeCount[rec.Meta.CallType]++
		for _, c := range rec.ComplianceCheck {
			if c.Stage == "" {
				continue
			}
			t := get(c.Stage)
			t.Entries++
			t.Score += c.Score
			t.Max += c.Max
		}
		for _, s := range rec.Segments {
			get(s.Stage).Segments++
		}
	}

	out.ByStage = make([]StageTotals, 0, len(order))
	for _, s := range order {
		t := *totals[s]
		t.Rate = Percentage(t.Score, t.Max)
		out.ByStage = append(out.ByStage, t)
	}
	return out
}

// Weakest returns stage totals sorted by ascending rate, skipping stages no
// call scored.
func (in Insight) Weakest() []StageTotals {
	var out []StageTotals
	for _, t := range in.ByStage {
		if t.Max > 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	return out
}
