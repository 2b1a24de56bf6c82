// Package app assembles the analyzer from configuration for both binaries.
package app

import (
	"fmt"

	"service-call-analyzer/internal/config"
	"service-call-analyzer/internal/events"
	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/metrics"
	"service-call-analyzer/internal/pipeline"
	"service-call-analyzer/internal/processor"
	"service-call-analyzer/internal/stage"
	"service-call-analyzer/internal/store"
	"service-call-analyzer/internal/transcription"
	"service-call-analyzer/internal/types"
)

type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Metrics    *metrics.Metrics
	Classifier *stage.Classifier
	Pipeline   *pipeline.Pipeline
	Publisher  *events.Publisher
	Analyzer   *processor.Analyzer
	Store      *store.RecordStore
}

// Build wires every component. Close the returned App to flush the publisher.
func Build(cfg *config.Config, log *logger.Logger) (*App, error) {
	rules := stage.DefaultRules()
	if cfg.StageRulesPath != "" {
		custom, err := stage.LoadRules(cfg.StageRulesPath)
		if err != nil {
			return nil, fmt.Errorf("stage rules: %w", err)
		}
		rules = custom
		log.WithField("path", cfg.StageRulesPath).WithField("rules", len(rules)).Info("custom stage rules loaded")
	}
	classifier := stage.NewClassifier(rules)

	m := metrics.New()
	p := pipeline.New(
		pipeline.WithClassifier(classifier),
		pipeline.WithMaxGap(cfg.MaxGap),
		pipeline.WithMSThreshold(cfg.MSThreshold),
		pipeline.WithRecorder(m),
		pipeline.WithLogger(log.Component("pipeline")),
	)
	pub := events.New(events.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Enabled: cfg.KafkaEnabled,
	}, m, log.Component("events"))

	var tr transcription.Transcriber
	if cfg.UseMockTranscribe {
		log.Warn("USE_MOCK_TRANSCRIBE=true, returning the canned sample transcript")
		tr = transcription.NewMock()
	} else {
		tr = transcription.NewClient(cfg.TranscriptionConfig(), nil, log.Component("transcription"))
	}

	return &App{
		Config:     cfg,
		Log:        log,
		Metrics:    m,
		Classifier: classifier,
		Pipeline:   p,
		Publisher:  pub,
		Store:      store.NewRecordStore(cfg.RecordPath),
		Analyzer: &processor.Analyzer{
			Transcriber: tr,
			Pipeline:    p,
			Roles:       cfg.SpeakerRoles,
			Publisher:   pub,
			Metrics:     m,
			Meta:        types.Meta{CallType: cfg.CallType, TranscribedWith: cfg.TranscribedWith},
			Log:         log.Component("processor"),
		},
	}, nil
}

func (a *App) Close() error {
	return a.Publisher.Close()
}
