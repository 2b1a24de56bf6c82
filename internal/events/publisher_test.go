package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-call-analyzer/internal/logger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeRecorder struct {
	topics []string
	errs   int
}

func (r *fakeRecorder) RecordEventPublish(topic string, err error, _ time.Duration) {
	r.topics = append(r.topics, topic)
	if err != nil {
		r.errs++
	}
}

func sampleEvent() CallAnalyzed {
	return NewCallAnalyzed("Repair", "data/call.json", 11, 7, true, time.Date(2026, 3, 14, 9, 0, 0, 0, time.FixedZone("PST", -8*3600)))
}

func TestNewCallAnalyzed(t *testing.T) {
	ev := sampleEvent()
	assert.Len(t, ev.EventID, 36)
	assert.Equal(t, time.UTC, ev.AnalyzedAt.Location())
	assert.Equal(t, 17, ev.AnalyzedAt.Hour())
	assert.NotEqual(t, ev.EventID, sampleEvent().EventID)
}

func TestNew_DisabledIsLogOnly(t *testing.T) {
	rec := &fakeRecorder{}
	p := New(Config{Enabled: false, Brokers: []string{"localhost:9092"}}, rec, logger.Discard().Entry)
	assert.False(t, p.Enabled())

	require.NoError(t, p.PublishCallAnalyzed(context.Background(), sampleEvent()))
	assert.Equal(t, []string{DefaultTopic}, rec.topics)
	assert.NoError(t, p.Close())

	p = New(Config{Enabled: true}, nil, logger.Discard().Entry)
	assert.False(t, p.Enabled(), "no brokers")
}

func TestPublishCallAnalyzed(t *testing.T) {
	w := &fakeWriter{}
	rec := &fakeRecorder{}
	p := &Publisher{writer: w, topic: "calls", enabled: true, recorder: rec, log: logger.Discard().Entry}

	ev := sampleEvent()
	require.NoError(t, p.PublishCallAnalyzed(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "data/call.json", string(w.msgs[0].Key))
	assert.Equal(t, "calls", string(w.msgs[0].Headers[0].Value))

	var got CallAnalyzed
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, 7, got.Segments)
	assert.True(t, got.ComplianceSeeded)
	assert.Zero(t, rec.errs)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishCallAnalyzed_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	rec := &fakeRecorder{}
	p := &Publisher{writer: w, topic: "calls", enabled: true, recorder: rec, log: logger.Discard().Entry}

	err := p.PublishCallAnalyzed(context.Background(), sampleEvent())
	assert.EqualError(t, err, "broker unavailable")
	assert.Equal(t, 1, rec.errs)
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	assert.False(t, p.Enabled())
	assert.NoError(t, p.PublishCallAnalyzed(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}
