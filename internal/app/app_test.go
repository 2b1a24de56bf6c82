package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-call-analyzer/internal/config"
	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/pipeline"
	"service-call-analyzer/internal/transcription"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		RecordPath:        filepath.Join(t.TempDir(), "call.json"),
		UseMockTranscribe: true,
		SpeakerRoles:      transcription.DefaultSpeakerRoles(),
		MSThreshold:       pipeline.DefaultMSThreshold,
		MaxGap:            8,
		CallType:          "Repair",
	}
}

func TestBuild_MockEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(cfg, logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Publisher.Enabled())
	assert.IsType(t, &transcription.Mock{}, a.Analyzer.Transcriber)

	out, err := a.Analyzer.AnalyzeAudio(context.Background(), "call.m4a", a.Store)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Segments)
	assert.Equal(t, "Repair", out.Summary.CallType)
}

func TestBuild_CustomRules(t *testing.T) {
	cfg := testConfig(t)
	cfg.StageRulesPath = filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(cfg.StageRulesPath, []byte(`
rules:
  - stage: Greeting
    patterns: ['\bhi\b']
`), 0o644))

	a, err := Build(cfg, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"Greeting"}, a.Classifier.Stages())

	cfg.StageRulesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(cfg, logger.Discard())
	assert.Error(t, err)
}

func TestBuild_RealClient(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseMockTranscribe = false
	cfg.AssemblyAIKey = "k"
	a, err := Build(cfg, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &transcription.Client{}, a.Analyzer.Transcriber)
}
