// Package processor runs a call end to end: transcription, stage tagging,
// record update, event and metrics.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"service-call-analyzer/internal/events"
	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/metrics"
	"service-call-analyzer/internal/pipeline"
	"service-call-analyzer/internal/report"
	"service-call-analyzer/internal/store"
	"service-call-analyzer/internal/transcription"
	"service-call-analyzer/internal/types"
)

// Outcome is returned by the analyze endpoint and the CLI.
type Outcome struct {
	Audio            string         `json:"audio,omitempty"`
	RecordPath       string         `json:"record_path"`
	Utterances       int            `json:"utterances"`
	Segments         int            `json:"segments"`
	ComplianceSeeded bool           `json:"compliance_seeded"`
	Summary          report.Summary `json:"summary"`
	DurationMs       int64          `json:"duration_ms"`
	Error            string         `json:"error,omitempty"`
}

// Analyzer wires the collaborators of one analysis run. Zero-valued optional
// fields get defaults on first use.
type Analyzer struct {
	Transcriber transcription.Transcriber
	Pipeline    *pipeline.Pipeline
	Roles       transcription.SpeakerRoles
	Publisher   *events.Publisher
	Metrics     *metrics.Metrics
	// Meta seeds new records; existing records keep their own meta.
	Meta types.Meta
	Log  *logrus.Entry
	Now  func() time.Time
}

func (a *Analyzer) defaults() {
	if a.Pipeline == nil {
		a.Pipeline = pipeline.New(pipeline.WithRecorder(a.Metrics))
	}
	if a.Roles == nil {
		a.Roles = transcription.DefaultSpeakerRoles()
	}
	if a.Log == nil {
		a.Log = logger.New().Component("processor")
	}
	if a.Now == nil {
		a.Now = time.Now
	}
}

// AnalyzeAudio transcribes audio, tags the result and writes it into the
// record held by st. Nothing is written when transcription fails.
func (a *Analyzer) AnalyzeAudio(ctx context.Context, audio string, st *store.RecordStore) (Outcome, error) {
	a.defaults()
	start := time.Now()
	res := Outcome{Audio: audio, RecordPath: st.Path()}
	log := a.Log.WithFields(logrus.Fields{"audio": audio, "record": st.Path()})

	fail := func(err error) (Outcome, error) {
		res.Error = err.Error()
		res.DurationMs = time.Since(start).Milliseconds()
		log.WithError(err).Warn("analysis failed")
		return res, err
	}

	if a.Transcriber == nil {
		return fail(fmt.Errorf("no transcriber configured"))
	}
	log.Info("transcription started")
	tr, err := a.Transcriber.Transcribe(ctx, audio)
	a.Metrics.RecordTranscription(err, time.Since(start))
	if err != nil {
		return fail(fmt.Errorf("transcription error: %w", err))
	}

	out, err := a.Pipeline.FromTranscript(tr, a.Roles)
	if err != nil {
		return fail(err)
	}

	rec, err := st.LoadOrNew(a.Meta)
	if err != nil {
		return fail(err)
	}
	rec.FullTranscript = tr.Text
	if rec.Meta.TranscribedWith == "" {
		rec.Meta.TranscribedWith = a.Meta.TranscribedWith
	}

	if err := a.commit(ctx, st, rec, out, &res); err != nil {
		return fail(err)
	}
	res.DurationMs = time.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{
		"segments":    res.Segments,
		"seeded":      res.ComplianceSeeded,
		"duration_ms": res.DurationMs,
	}).Info("analysis complete")
	return res, nil
}

// Retag re-runs tagging over the utterances already stored in st. Reviewer
// scores in the checklist are kept.
func (a *Analyzer) Retag(ctx context.Context, st *store.RecordStore) (Outcome, error) {
	a.defaults()
	start := time.Now()
	res := Outcome{RecordPath: st.Path()}

	rec, err := st.Load()
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	out := a.Pipeline.Retag(rec)
	if err := a.commit(ctx, st, rec, out, &res); err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.DurationMs = time.Since(start).Milliseconds()
	a.Log.WithFields(logrus.Fields{
		"record":   st.Path(),
		"segments": res.Segments,
	}).Info("record retagged")
	return res, nil
}

// commit applies out to rec, saves it and announces the write. A failed
// publish is logged and does not fail the run.
func (a *Analyzer) commit(ctx context.Context, st *store.RecordStore, rec *types.CallRecord, out pipeline.Result, res *Outcome) error {
	now := a.Now()
	seeded := pipeline.Apply(rec, out, now)
	if err := st.Save(rec); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	a.Metrics.RecordWrite(seeded)

	res.Utterances = len(rec.Utterances)
	res.Segments = len(rec.Segments)
	res.ComplianceSeeded = seeded
	res.Summary = report.New(rec).Summary()

	ev := events.NewCallAnalyzed(rec.Meta.CallType, st.Path(), res.Utterances, res.Segments, seeded, now)
	if err := a.Publisher.PublishCallAnalyzed(ctx, ev); err != nil {
		a.Log.WithError(err).WithField("event_id", ev.EventID).Warn("call analyzed event not published")
	}
	return nil
}
