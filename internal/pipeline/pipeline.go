// Package pipeline turns raw utterances into tagged utterances, merged
// segments and a compliance checklist seed, and applies them to a call record.
package pipeline

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/segment"
	"service-call-analyzer/internal/stage"
	"service-call-analyzer/internal/transcription"
	"service-call-analyzer/internal/types"
)

// DefaultMSThreshold: timestamps above this are treated as milliseconds.
const DefaultMSThreshold = 1000.0

// DateLayout is the format of meta.date_analyzed.
const DateLayout = "2006-01-02"

// Recorder receives per-run statistics. metrics.Recorder implements it.
type Recorder interface {
	ObserveRun(utterances int, segmentsByStage map[string]int, elapsed time.Duration)
}

type Result struct {
	Utterances     []types.TaggedUtterance
	Segments       []types.Segment
	ComplianceSeed []types.ComplianceEntry
}

// Pipeline is stateless after construction and safe to reuse.
type Pipeline struct {
	classifier  *stage.Classifier
	maxGap      float64
	msThreshold float64
	checklist   []ChecklistItem
	recorder    Recorder
	log         *logrus.Entry
}

type Option func(*Pipeline)

func WithClassifier(c *stage.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

func WithMaxGap(seconds float64) Option {
	return func(p *Pipeline) { p.maxGap = seconds }
}

func WithMSThreshold(v float64) Option {
	return func(p *Pipeline) { p.msThreshold = v }
}

func WithChecklist(items []ChecklistItem) Option {
	return func(p *Pipeline) { p.checklist = append([]ChecklistItem(nil), items...) }
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithLogger(l *logrus.Entry) Option {
	return func(p *Pipeline) { p.log = l }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		maxGap:      segment.DefaultMaxGap,
		msThreshold: DefaultMSThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	if p.classifier == nil {
		p.classifier = stage.Default()
	}
	if p.checklist == nil {
		p.checklist = DefaultChecklist()
	}
	if p.log == nil {
		p.log = logger.New().Component("pipeline")
	}
	return p
}

// Run normalizes millisecond timestamps and then tags. Use it on fresh
// transcription output.
func (p *Pipeline) Run(utterances []types.Utterance) Result {
	return p.Tag(NormalizeTimes(utterances, p.msThreshold))
}

// Tag classifies, merges and seeds utterances whose timestamps are already
// in seconds. Re-tagging a stored record goes through here so values are not
// divided twice.
func (p *Pipeline) Tag(utterances []types.Utterance) Result {
	start := time.Now()

	tagged := p.classifier.Tag(utterances)
	segs := segment.Merge(tagged, p.maxGap)
	res := Result{
		Utterances:     tagged,
		Segments:       segs,
		ComplianceSeed: Seed(segs, p.checklist),
	}

	counts := map[string]int{}
	for _, s := range segs {
		counts[s.Stage]++
	}
	elapsed := time.Since(start)
	if p.recorder != nil {
		p.recorder.ObserveRun(len(tagged), counts, elapsed)
	}
	p.log.WithFields(logrus.Fields{
		"utterances": len(tagged),
		"segments":   len(segs),
		"stages":     len(counts),
		"elapsed_ms": elapsed.Milliseconds(),
	}).Debug("pipeline run complete")
	return res
}

// FromTranscript fails with transcription.ErrTranscriptionFailed before doing
// any work when the provider reported an error.
func (p *Pipeline) FromTranscript(tr *transcription.Transcript, roles transcription.SpeakerRoles) (Result, error) {
	if err := tr.Err(); err != nil {
		return Result{}, err
	}
	return p.Run(tr.ToUtterances(roles)), nil
}

// Apply writes res into record. The compliance checklist is only seeded when
// the record has none, so reviewer scores survive re-runs. It reports whether
// seeding happened.
func Apply(record *types.CallRecord, res Result, today time.Time) bool {
	record.Utterances = res.Utterances
	record.Segments = res.Segments
	if record.Utterances == nil {
		record.Utterances = []types.TaggedUtterance{}
	}
	if record.Segments == nil {
		record.Segments = []types.Segment{}
	}
	record.Meta.DateAnalyzed = today.Format(DateLayout)
	record.Meta.StagesAutoTagged = true
	if record.SalesInsights == nil {
		record.SalesInsights = []json.RawMessage{}
	}
	if len(record.ComplianceCheck) > 0 {
		return false
	}
	record.ComplianceCheck = append([]types.ComplianceEntry{}, res.ComplianceSeed...)
	return true
}

// NormalizeTimes returns a copy of utterances with millisecond timestamps
// converted to seconds.
func NormalizeTimes(utterances []types.Utterance, threshold float64) []types.Utterance {
	out := make([]types.Utterance, len(utterances))
	for i, u := range utterances {
		u.Start = ToSeconds(u.Start, threshold)
		u.End = ToSeconds(u.End, threshold)
		out[i] = u
	}
	return out
}

// ToSeconds converts v from ms when it exceeds threshold, rounding to two
// decimals. Values at or below the threshold are taken as seconds already.
func ToSeconds(v *float64, threshold float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v
	if s > threshold {
		s = math.Round(s/1000*100) / 100
	}
	return &s
}

// Retag re-runs classification over the utterances already stored in record.
// Stored timestamps are seconds, so no conversion is applied.
func (p *Pipeline) Retag(record *types.CallRecord) Result {
	utts := make([]types.Utterance, 0, len(record.Utterances))
	for _, u := range record.Utterances {
		utts = append(utts, u.Utterance)
	}
	return p.Tag(utts)
}
