package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-call-analyzer/internal/transcription"
)

var keys = []string{
	"PORT", "ASSEMBLYAI_API_KEY", "ASSEMBLYAI_BASE_URL", "USE_MOCK_TRANSCRIBE", "RECORD_PATH",
	"CUSTOM_ANALYSIS_PATH", "AUDIO_DIR", "STAGE_RULES_PATH", "SPEAKER_ROLES", "MS_THRESHOLD", "MAX_GAP_SECONDS",
	"CALL_TYPE", "TRANSCRIBED_WITH", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_ENABLED", "TRANSCRIBE_TIMEOUT",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, c.Port)
	assert.Equal(t, DefaultRecordPath, c.RecordPath)
	assert.Equal(t, transcription.DefaultBaseURL, c.AssemblyAIBaseURL)
	assert.Equal(t, 1000.0, c.MSThreshold)
	assert.Equal(t, 8.0, c.MaxGap)
	assert.Equal(t, DefaultTranscribeWait, c.TranscribeTimeout)
	assert.Equal(t, transcription.DefaultSpeakerRoles(), c.SpeakerRoles)
	assert.False(t, c.UseMockTranscribe)
	assert.False(t, c.KafkaEnabled)
	assert.Empty(t, c.KafkaBrokers)
	assert.Equal(t, DefaultCallType, c.CallType)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ASSEMBLYAI_API_KEY", "k")
	t.Setenv("USE_MOCK_TRANSCRIBE", "true")
	t.Setenv("MS_THRESHOLD", "10000")
	t.Setenv("MAX_GAP_SECONDS", "4.5")
	t.Setenv("TRANSCRIBE_TIMEOUT", "90")
	t.Setenv("SPEAKER_ROLES", "A=Customer,B=Tech")
	t.Setenv("KAFKA_ENABLED", "1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_TOPIC", "calls")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.True(t, c.UseMockTranscribe)
	assert.Equal(t, 10000.0, c.MSThreshold)
	assert.Equal(t, 4.5, c.MaxGap)
	assert.Equal(t, 90*time.Second, c.TranscribeTimeout)
	assert.Equal(t, "Customer", c.SpeakerRoles.Role("A"))
	assert.True(t, c.KafkaEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, "k", c.TranscriptionConfig().APIKey)

	t.Setenv("TRANSCRIBE_TIMEOUT", "2m")
	c, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, c.TranscribeTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"MS_THRESHOLD":        "lots",
		"MAX_GAP_SECONDS":     "-1",
		"USE_MOCK_TRANSCRIBE": "maybe",
		"KAFKA_ENABLED":       "yes please",
		"TRANSCRIBE_TIMEOUT":  "soon",
		"SPEAKER_ROLES":       "A",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(k, v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), k)
		})
	}
}
