package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-call-analyzer/internal/events"
	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/metrics"
	"service-call-analyzer/internal/pipeline"
	"service-call-analyzer/internal/processor"
	"service-call-analyzer/internal/report"
	"service-call-analyzer/internal/store"
	"service-call-analyzer/internal/transcription"
	"service-call-analyzer/internal/types"
)

// countingTranscriber records the audio it was asked for.
type countingTranscriber struct {
	transcription.Mock
	calls []string
}

func (c *countingTranscriber) Transcribe(ctx context.Context, audio string) (*transcription.Transcript, error) {
	c.calls = append(c.calls, audio)
	return c.Mock.Transcribe(ctx, audio)
}

type fixture struct {
	srv     *httptest.Server
	store   *store.RecordStore
	dir     string
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, tr transcription.Transcriber) *fixture {
	t.Helper()
	return newFixtureWithAudioDir(t, tr, "")
}

func newFixtureWithAudioDir(t *testing.T, tr transcription.Transcriber, audioDir string) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := logger.Discard()
	m := metrics.New()
	st := store.NewRecordStore(filepath.Join(dir, "call.json"))
	s := New(Options{
		Store:              st,
		CustomAnalysisPath: filepath.Join(dir, "analysis.json"),
		AudioDir:           audioDir,
		Analyzer: &processor.Analyzer{
			Transcriber: tr,
			Pipeline:    pipeline.New(pipeline.WithRecorder(m), pipeline.WithLogger(log.Entry)),
			Publisher:   events.New(events.Config{}, m, log.Entry),
			Metrics:     m,
			Meta:        types.Meta{CallType: "Repair"},
			Log:         log.Entry,
		},
		Metrics:        m,
		Log:            log,
		AnalyzeTimeout: 5 * time.Second,
	})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return &fixture{srv: ts, store: st, dir: dir, metrics: m}
}

func (f *fixture) get(t *testing.T, path string, target any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
	return resp.StatusCode
}

func (f *fixture) analyze(t *testing.T) int {
	t.Helper()
	return f.analyzeAudio(t, "https://media.example/call.m4a")
}

func (f *fixture) analyzeAudio(t *testing.T, audio string) int {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/analyze?audio="+url.QueryEscape(audio), "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	f := newFixture(t, transcription.NewMock())
	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadEndpoints_NoRecord(t *testing.T) {
	f := newFixture(t, transcription.NewMock())
	for _, p := range []string{"/api/summary", "/api/stages", "/api/compliance", "/api/report"} {
		var body errorBody
		assert.Equal(t, http.StatusNotFound, f.get(t, p, &body), p)
		assert.Equal(t, "Data file not found", body.Error)
	}
}

func TestReadEndpoints_MalformedRecord(t *testing.T) {
	f := newFixture(t, transcription.NewMock())
	require.NoError(t, os.WriteFile(f.store.Path(), []byte("{"), 0o644))

	var body errorBody
	assert.Equal(t, http.StatusInternalServerError, f.get(t, "/api/summary", &body))
	assert.Equal(t, "Error loading data", body.Error)
}

func TestAnalyzeThenRead(t *testing.T) {
	f := newFixture(t, transcription.NewMock())
	require.Equal(t, http.StatusOK, f.analyze(t))

	var sum report.Summary
	require.Equal(t, http.StatusOK, f.get(t, "/api/summary", &sum))
	assert.Equal(t, "Repair", sum.CallType)
	assert.Equal(t, 11, sum.TotalUtterances)
	assert.Equal(t, 6, sum.TotalStages)
	assert.Zero(t, sum.CompliancePercentage)

	var stages map[string][]string
	require.Equal(t, http.StatusOK, f.get(t, "/api/stages", &stages))
	assert.Equal(t, "Introduction", stages["stages"][0])
	assert.Contains(t, stages["stages"], "Maintenance Plan Offer")

	var utts struct {
		Stage      string                  `json:"stage"`
		Utterances []types.TaggedUtterance `json:"utterances"`
	}
	path := "/api/stages/" + url.PathEscape("Closing & Thank You") + "/utterances"
	require.Equal(t, http.StatusOK, f.get(t, path, &utts))
	assert.Equal(t, "Closing & Thank You", utts.Stage)
	assert.Len(t, utts.Utterances, 2)

	var comp map[string]report.ComplianceView
	require.Equal(t, http.StatusOK, f.get(t, "/api/compliance", &comp))
	assert.Len(t, comp, 6)
	assert.Equal(t, 5.0, comp["Introduction"].MaxScore)
	assert.Equal(t, comp["Upsell Attempts"].Evidence, comp["Maintenance Plan Offer"].Evidence)
}

func TestReportPage_WithCustomAnalysis(t *testing.T) {
	f := newFixture(t, transcription.NewMock())
	require.Equal(t, http.StatusOK, f.analyze(t))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "analysis.json"),
		[]byte(`{"stages":{"Financing":{"analysis":"Quote the APR"}}}`), 0o644))

	var page report.Page
	require.Equal(t, http.StatusOK, f.get(t, "/api/report", &page))
	assert.Equal(t, report.Title, page.Title)
	assert.Equal(t, "Quote the APR", page.CustomAnalysis["Financing"].Analysis)
	assert.Equal(t, "Checklist not scored yet", page.Coaching.Insight)
	assert.NotEmpty(t, page.UtterancesByStage["Problem Diagnosis"])
}

func TestAnalyze_Errors(t *testing.T) {
	f := newFixture(t, transcription.NewMock())
	resp, err := http.Post(f.srv.URL+"/api/analyze", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	failing := newFixture(t, &transcription.Mock{Result: &transcription.Transcript{Status: transcription.StatusError, Error: "no audio"}})
	assert.Equal(t, http.StatusBadGateway, failing.analyze(t))
	_, statErr := os.Stat(failing.store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, transcription.NewMock())
	require.Equal(t, http.StatusOK, f.analyze(t))

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "call_analyzer_pipeline_runs_total 1")
}

func TestAnalyze_RejectsLocalPathsWithoutAudioDir(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secrets.env")
	require.NoError(t, os.WriteFile(secret, []byte("DB_PASSWORD=hunter2"), 0o600))

	tr := &countingTranscriber{Mock: *transcription.NewMock()}
	f := newFixture(t, tr)
	for _, audio := range []string{"/etc/passwd", secret, "call.m4a", "file:///etc/passwd", "ftp://media.example/a.mp3"} {
		assert.Equal(t, http.StatusBadRequest, f.analyzeAudio(t, audio), audio)
	}
	assert.Empty(t, tr.calls)
	_, err := os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))

	require.Equal(t, http.StatusOK, f.analyzeAudio(t, "https://media.example/call.m4a"))
	assert.Equal(t, []string{"https://media.example/call.m4a"}, tr.calls)
}

func TestAnalyze_AudioDirConfinesPaths(t *testing.T) {
	audioDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "call.m4a"), []byte("audio"), 0o644))

	tr := &countingTranscriber{Mock: *transcription.NewMock()}
	f := newFixtureWithAudioDir(t, tr, audioDir)
	for _, audio := range []string{"/etc/passwd", "../secrets.env", "calls/../../secrets.env", ".", ""} {
		assert.Equal(t, http.StatusBadRequest, f.analyzeAudio(t, audio), audio)
	}
	assert.Empty(t, tr.calls)

	require.Equal(t, http.StatusOK, f.analyzeAudio(t, "call.m4a"))
	require.Len(t, tr.calls, 1)
	root, err := filepath.Abs(audioDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "call.m4a"), tr.calls[0])
}
