// Package events publishes "call analyzed" notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"service-call-analyzer/internal/logger"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "call.analyzed"

// CallAnalyzed is emitted after a call record has been written.
type CallAnalyzed struct {
	EventID          string    `json:"event_id"`
	CallType         string    `json:"call_type"`
	RecordPath       string    `json:"record_path"`
	Utterances       int       `json:"utterances"`
	Segments         int       `json:"segments"`
	ComplianceSeeded bool      `json:"compliance_seeded"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// NewCallAnalyzed stamps a fresh event id.
func NewCallAnalyzed(callType, recordPath string, utterances, segments int, seeded bool, at time.Time) CallAnalyzed {
	return CallAnalyzed{
		EventID:          uuid.NewString(),
		CallType:         callType,
		RecordPath:       recordPath,
		Utterances:       utterances,
		Segments:         segments,
		ComplianceSeeded: seeded,
		AnalyzedAt:       at.UTC(),
	}
}

type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// PublishRecorder receives publish outcomes. metrics.Metrics implements it.
type PublishRecorder interface {
	RecordEventPublish(topic string, err error, latency time.Duration)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer   messageWriter
	topic    string
	enabled  bool
	recorder PublishRecorder
	log      *logrus.Entry
}

// New returns a Kafka-backed publisher, or a log-only one when disabled or
// no brokers are configured.
func New(cfg Config, recorder PublishRecorder, log *logrus.Entry) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = logger.New().Component("events")
	}
	p := &Publisher{topic: topic, recorder: recorder, log: log}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info("kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	p.enabled = true

	log.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   topic,
	}).Info("kafka publisher initialized")
	return p
}

func (p *Publisher) Enabled() bool { return p != nil && p.enabled }

// PublishCallAnalyzed writes the event keyed by record path, so updates to the
// same record stay on one partition.
func (p *Publisher) PublishCallAnalyzed(ctx context.Context, ev CallAnalyzed) error {
	if p == nil {
		return nil
	}
	start := time.Now()

	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).WithField("topic", p.topic).Error("failed to marshal event")
		return err
	}

	entry := p.log.WithFields(logrus.Fields{
		"topic":    p.topic,
		"key":      ev.RecordPath,
		"event_id": ev.EventID,
	})
	entry.WithField("payload", string(payload)).Debug("publishing event")

	if !p.enabled || p.writer == nil {
		p.record(nil, start)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.RecordPath),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(p.topic)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		entry.WithError(err).Error("failed to write to kafka")
		p.record(err, start)
		return err
	}
	p.record(nil, start)
	return nil
}

func (p *Publisher) record(err error, start time.Time) {
	if p.recorder != nil {
		p.recorder.RecordEventPublish(p.topic, err, time.Since(start))
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.log.WithError(err).Error("error closing kafka writer")
		return err
	}
	return nil
}
