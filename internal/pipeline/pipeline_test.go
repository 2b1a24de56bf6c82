package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-call-analyzer/internal/evidence"
	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/stage"
	"service-call-analyzer/internal/transcription"
	"service-call-analyzer/internal/types"
)

func f(v float64) *float64 { return &v }

func quiet(opts ...Option) *Pipeline {
	return New(append([]Option{WithLogger(logger.Discard().Entry)}, opts...)...)
}

type fakeRecorder struct {
	runs       int
	utterances int
	bySegment  map[string]int
}

func (r *fakeRecorder) ObserveRun(utterances int, segs map[string]int, _ time.Duration) {
	r.runs++
	r.utterances = utterances
	r.bySegment = segs
}

func TestToSeconds(t *testing.T) {
	tests := []struct {
		name string
		in   *float64
		want *float64
	}{
		{"milliseconds", f(15000), f(15.0)},
		{"already seconds", f(5), f(5)},
		{"threshold is not converted", f(1000), f(1000)},
		{"just above threshold", f(1001), f(1.0)},
		{"rounded to two decimals", f(61234), f(61.23)},
		{"nil stays nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToSeconds(tt.in, DefaultMSThreshold)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestNormalizeTimes_DoesNotMutateInput(t *testing.T) {
	in := []types.Utterance{{Speaker: "Tech", Start: f(15000), End: nil, Text: "hi"}}
	out := NormalizeTimes(in, DefaultMSThreshold)
	assert.Equal(t, 15000.0, *in[0].Start)
	assert.Equal(t, 15.0, *out[0].Start)
	assert.Nil(t, out[0].End)
}

func TestFromTranscript_Sample(t *testing.T) {
	rec := &fakeRecorder{}
	p := quiet(WithRecorder(rec))

	res, err := p.FromTranscript(transcription.SampleTranscript(), transcription.DefaultSpeakerRoles())
	require.NoError(t, err)

	var stages []string
	for _, s := range res.Segments {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{
		stage.Introduction,
		types.GeneralStage,
		stage.ProblemDiagnosis,
		stage.SolutionExplanation,
		stage.UpsellAttempts,
		stage.Financing,
		stage.ClosingThankYou,
	}, stages)

	first := res.Segments[0]
	assert.Equal(t, "Tech", first.Speaker)
	assert.InDelta(t, 1.2, *first.Start, 1e-9)
	assert.InDelta(t, 4.2, *first.End, 1e-9)

	problem := res.Segments[2]
	assert.Equal(t, "Customer", problem.Speaker)
	assert.InDelta(t, 26.0, *problem.End, 1e-9)
	assert.True(t, strings.HasSuffix(problem.Text, "How long has that been an issue?"))

	assert.Len(t, res.Utterances, 11)
	assert.Equal(t, 1, rec.runs)
	assert.Equal(t, 11, rec.utterances)
	assert.Equal(t, 1, rec.bySegment[stage.Financing])
}

func TestFromTranscript_SeedChecklist(t *testing.T) {
	res, err := quiet().FromTranscript(transcription.SampleTranscript(), transcription.DefaultSpeakerRoles())
	require.NoError(t, err)

	seed := res.ComplianceSeed
	require.Len(t, seed, 6)
	byStage := map[string]types.ComplianceEntry{}
	for _, c := range seed {
		assert.Zero(t, c.Score)
		assert.Equal(t, float64(types.DefaultMaxScore), c.Max)
		assert.NotEmpty(t, c.Suggestion)
		byStage[c.Stage] = c
	}

	assert.Equal(t, stage.Introduction, seed[0].Stage)
	assert.Equal(t, stage.ClosingThankYou, seed[5].Stage)
	assert.Equal(t, `[1s–4s] Tech: “Hi, my name is Marco, I'm with Valley Air. Is now a good time?”`,
		byStage[stage.Introduction].Evidence)
	assert.Equal(t, byStage[stage.UpsellAttempts].Evidence, byStage[stage.MaintenancePlanOffer].Evidence)
	assert.NotEqual(t, evidence.Placeholder, byStage[stage.MaintenancePlanOffer].Evidence)
	assert.Equal(t, "Offer only need-based upsells; tie benefits to diagnosed issues.",
		byStage[stage.UpsellAttempts].Suggestion)
}

func TestFromTranscript_UpstreamError(t *testing.T) {
	rec := &fakeRecorder{}
	tr := &transcription.Transcript{Status: transcription.StatusError, Error: "bad audio"}

	res, err := quiet(WithRecorder(rec)).FromTranscript(tr, transcription.DefaultSpeakerRoles())
	require.ErrorIs(t, err, transcription.ErrTranscriptionFailed)
	assert.Contains(t, err.Error(), "bad audio")
	assert.Empty(t, res.Segments)
	assert.Zero(t, rec.runs)
}

func TestSeed_PlaceholderWhenStageMissing(t *testing.T) {
	res := quiet().Tag([]types.Utterance{
		{Speaker: "Tech", Start: f(0), End: f(2), Text: "Hello there"},
	})
	require.Len(t, res.ComplianceSeed, 6)
	assert.NotEqual(t, evidence.Placeholder, res.ComplianceSeed[0].Evidence)
	for _, c := range res.ComplianceSeed[1:] {
		assert.Equal(t, evidence.Placeholder, c.Evidence, c.Stage)
	}
}

func TestWithChecklist(t *testing.T) {
	p := quiet(WithChecklist([]ChecklistItem{{Stage: stage.Financing, Suggestion: "Quote the APR."}}))
	res := p.Tag([]types.Utterance{{Speaker: "Tech", Text: "We offer financing"}})
	require.Len(t, res.ComplianceSeed, 1)
	assert.Equal(t, `Tech: “We offer financing”`, res.ComplianceSeed[0].Evidence)
}

func TestWithMaxGap(t *testing.T) {
	utts := []types.Utterance{
		{Speaker: "Tech", Start: f(0), End: f(1), Text: "the furnace"},
		{Speaker: "Tech", Start: f(4), End: f(5), Text: "the coil"},
	}
	assert.Len(t, quiet().Tag(utts).Segments, 1)
	assert.Len(t, quiet(WithMaxGap(2)).Tag(utts).Segments, 2)
}

func TestRun_MillisecondGapAtLimitMerges(t *testing.T) {
	res := quiet().Run([]types.Utterance{
		{Speaker: "Tech", Start: f(2100), End: f(10100), Text: "the monthly payment"},
		{Speaker: "Customer", Start: f(18100), End: f(20000), Text: "what apr"},
	})

	require.Len(t, res.Segments, 1)
	assert.Equal(t, stage.Financing, res.Segments[0].Stage)
	assert.Equal(t, 2.1, *res.Segments[0].Start)
	assert.Equal(t, 20.0, *res.Segments[0].End)
}

func TestApply_SeedsEmptyRecord(t *testing.T) {
	res := quiet().Run(transcription.SampleTranscript().ToUtterances(transcription.DefaultSpeakerRoles()))
	rec := types.NewCallRecord(types.Meta{CallType: "Replacement consultation"})
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	seeded := Apply(rec, res, day)

	assert.True(t, seeded)
	assert.Equal(t, "2026-03-14", rec.Meta.DateAnalyzed)
	assert.True(t, rec.Meta.StagesAutoTagged)
	assert.Equal(t, "Replacement consultation", rec.Meta.CallType)
	assert.Len(t, rec.ComplianceCheck, 6)
	assert.Len(t, rec.Segments, 7)
	assert.NotNil(t, rec.SalesInsights)
}

func TestApply_WriteOnceCompliance(t *testing.T) {
	rec := types.NewCallRecord(types.Meta{})
	rec.ComplianceCheck = []types.ComplianceEntry{
		{Stage: stage.Introduction, Score: 4, Max: 5, Evidence: "reviewed", Suggestion: "keep it up"},
	}
	res := quiet().Tag([]types.Utterance{{Speaker: "Tech", Text: "hello"}})

	seeded := Apply(rec, res, time.Now())

	assert.False(t, seeded)
	require.Len(t, rec.ComplianceCheck, 1)
	assert.Equal(t, 4.0, rec.ComplianceCheck[0].Score)
	assert.Equal(t, "reviewed", rec.ComplianceCheck[0].Evidence)
	assert.Len(t, rec.Utterances, 1)
}

func TestRetag_KeepsSeconds(t *testing.T) {
	rec := types.NewCallRecord(types.Meta{})
	rec.Utterances = []types.TaggedUtterance{
		{Utterance: types.Utterance{Speaker: "Tech", Start: f(1500), End: f(1504), Text: "thank you for your time"}, Stage: types.GeneralStage},
	}

	res := quiet().Retag(rec)

	require.Len(t, res.Utterances, 1)
	assert.Equal(t, stage.ClosingThankYou, res.Utterances[0].Stage)
	assert.Equal(t, 1500.0, *res.Utterances[0].Start)
	assert.Equal(t, 1504.0, *res.Segments[0].End)
}
