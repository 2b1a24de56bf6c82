// Package report is the read-side view of an enriched call record: stage
// listing, grouped utterances, compliance lookups and the call summary.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"service-call-analyzer/internal/actionable"
	"service-call-analyzer/internal/types"
)

// Title is the heading renderers show above the report.
const Title = "Service Call Analysis"

type Report struct {
	rec *types.CallRecord
}

func New(rec *types.CallRecord) *Report {
	if rec == nil {
		rec = types.NewCallRecord(types.Meta{})
	}
	return &Report{rec: rec}
}

func (r *Report) Record() *types.CallRecord { return r.rec }

// Stages lists the distinct compliance stages in checklist order.
func (r *Report) Stages() []string {
	out := []string{}
	seen := map[string]bool{}
	for _, c := range r.rec.ComplianceCheck {
		if c.Stage == "" || seen[c.Stage] {
			continue
		}
		seen[c.Stage] = true
		out = append(out, c.Stage)
	}
	return out
}

// UtterancesByStage keeps transcript order.
func (r *Report) UtterancesByStage(stage string) []types.TaggedUtterance {
	out := []types.TaggedUtterance{}
	for _, u := range r.rec.Utterances {
		if stageOf(u) == stage {
			out = append(out, u)
		}
	}
	return out
}

// GroupedByStage buckets every utterance by stage, each bucket ordered by
// start time. A missing start sorts as 0.
func (r *Report) GroupedByStage() map[string][]types.TaggedUtterance {
	out := map[string][]types.TaggedUtterance{}
	for _, u := range r.rec.Utterances {
		s := stageOf(u)
		out[s] = append(out[s], u)
	}
	for _, group := range out {
		sort.SliceStable(group, func(i, j int) bool {
			return startOf(group[i]) < startOf(group[j])
		})
	}
	return out
}

func stageOf(u types.TaggedUtterance) string {
	if u.Stage == "" {
		return types.GeneralStage
	}
	return u.Stage
}

func startOf(u types.TaggedUtterance) float64 {
	if u.Start == nil {
		return 0
	}
	return *u.Start
}

type ComplianceView struct {
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Evidence   string  `json:"evidence"`
	Suggestion string  `json:"suggestion"`
}

func viewOf(c types.ComplianceEntry) ComplianceView {
	return ComplianceView{Score: c.Score, MaxScore: c.Max, Evidence: c.Evidence, Suggestion: c.Suggestion}
}

// Compliance returns the first checklist row for stage.
func (r *Report) Compliance(stage string) (*ComplianceView, bool) {
	for _, c := range r.rec.ComplianceCheck {
		if c.Stage == stage {
			v := viewOf(c)
			return &v, true
		}
	}
	return nil, false
}

// AllCompliance maps stage to its row; a later duplicate row replaces an earlier one.
func (r *Report) AllCompliance() map[string]ComplianceView {
	out := map[string]ComplianceView{}
	for _, c := range r.rec.ComplianceCheck {
		if c.Stage != "" {
			out[c.Stage] = viewOf(c)
		}
	}
	return out
}

type Summary struct {
	CallType             string   `json:"call_type"`
	DateAnalyzed         string   `json:"date_analyzed"`
	TotalUtterances      int      `json:"total_utterances"`
	TotalStages          int      `json:"total_stages"`
	Stages               []string `json:"stages"`
	ComplianceScore      float64  `json:"compliance_score"`
	MaxComplianceScore   float64  `json:"max_compliance_score"`
	CompliancePercentage float64  `json:"compliance_percentage"`
}

func (r *Report) Summary() Summary {
	stages := r.Stages()
	var score, possible float64
	for _, c := range r.rec.ComplianceCheck {
		score += c.Score
		possible += c.Max
	}
	return Summary{
		CallType:             r.rec.Meta.CallType,
		DateAnalyzed:         r.rec.Meta.DateAnalyzed,
		TotalUtterances:      len(r.rec.Utterances),
		TotalStages:          len(stages),
		Stages:               stages,
		ComplianceScore:      score,
		MaxComplianceScore:   possible,
		CompliancePercentage: Percentage(score, possible),
	}
}

// Percentage is score/max*100, or 0 when max is not positive.
func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / maxScore * 100
}

// FormatTimestamp renders seconds as MM:SS. Negative input renders as 00:00.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// WidthRatio scales value/maxValue to scale, truncated; used for score bars.
func WidthRatio(value, maxValue, scale float64) int {
	if maxValue == 0 {
		return 0
	}
	return int(value / maxValue * scale)
}

// Page is everything a renderer needs for the single report page.
type Page struct {
	Title             string                             `json:"title"`
	HasData           bool                               `json:"has_data"`
	Meta              types.Meta                         `json:"call_meta"`
	Summary           Summary                            `json:"call_summary"`
	Stages            []string                           `json:"stages"`
	UtterancesByStage map[string][]types.TaggedUtterance `json:"utterances_by_stage"`
	Compliance        map[string]ComplianceView          `json:"compliance_data"`
	CustomAnalysis    map[string]types.StageAnalysis     `json:"custom_analysis"`
	SalesInsights     []json.RawMessage                  `json:"sales_insights"`
	Coaching          actionable.ActionCard              `json:"coaching"`
}

func (r *Report) Page(ca *types.CustomAnalysis) Page {
	insights := r.rec.SalesInsights
	if insights == nil {
		insights = []json.RawMessage{}
	}
	return Page{
		Title:             Title,
		HasData:           true,
		Meta:              r.rec.Meta,
		Summary:           r.Summary(),
		Stages:            r.Stages(),
		UtterancesByStage: r.GroupedByStage(),
		Compliance:        r.AllCompliance(),
		CustomAnalysis:    ca.All(),
		SalesInsights:     insights,
		Coaching:          actionable.Generate(r.rec.ComplianceCheck),
	}
}
