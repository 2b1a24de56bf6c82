// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"service-call-analyzer/internal/pipeline"
	"service-call-analyzer/internal/segment"
	"service-call-analyzer/internal/transcription"
)

const (
	DefaultPort            = "8080"
	DefaultRecordPath      = "data/call.json"
	DefaultCallType        = "Repair follow-up & replacement consultation (HVAC)"
	DefaultTranscribedWith = "AssemblyAI (speaker_labels, timestamps, word_boost)"
	DefaultTranscribeWait  = 10 * time.Minute
)

type Config struct {
	Port string

	AssemblyAIKey     string
	AssemblyAIBaseURL string
	UseMockTranscribe bool
	TranscribeTimeout time.Duration

	RecordPath         string
	CustomAnalysisPath string
	StageRulesPath     string
	// AudioDir is the only place POST /api/analyze may read local files from.
	AudioDir string

	SpeakerRoles transcription.SpeakerRoles
	MSThreshold  float64
	MaxGap       float64

	CallType        string
	TranscribedWith string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads the environment. Unset keys take defaults; malformed numbers,
// booleans, durations or speaker maps are errors.
func Load() (*Config, error) {
	c := &Config{
		Port:               envOr("PORT", DefaultPort),
		AssemblyAIKey:      os.Getenv("ASSEMBLYAI_API_KEY"),
		AssemblyAIBaseURL:  envOr("ASSEMBLYAI_BASE_URL", transcription.DefaultBaseURL),
		RecordPath:         envOr("RECORD_PATH", DefaultRecordPath),
		CustomAnalysisPath: os.Getenv("CUSTOM_ANALYSIS_PATH"),
		StageRulesPath:     os.Getenv("STAGE_RULES_PATH"),
		AudioDir:           os.Getenv("AUDIO_DIR"),
		CallType:           envOr("CALL_TYPE", DefaultCallType),
		TranscribedWith:    envOr("TRANSCRIBED_WITH", DefaultTranscribedWith),
		KafkaTopic:         os.Getenv("KAFKA_TOPIC"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
	}

	var err error
	if c.UseMockTranscribe, err = boolEnv("USE_MOCK_TRANSCRIBE", false); err != nil {
		return nil, err
	}
	if c.KafkaEnabled, err = boolEnv("KAFKA_ENABLED", false); err != nil {
		return nil, err
	}
	if c.MSThreshold, err = floatEnv("MS_THRESHOLD", pipeline.DefaultMSThreshold); err != nil {
		return nil, err
	}
	if c.MaxGap, err = floatEnv("MAX_GAP_SECONDS", segment.DefaultMaxGap); err != nil {
		return nil, err
	}
	if c.MaxGap < 0 {
		return nil, fmt.Errorf("MAX_GAP_SECONDS must not be negative, got %v", c.MaxGap)
	}
	if c.TranscribeTimeout, err = durationEnv("TRANSCRIBE_TIMEOUT", DefaultTranscribeWait); err != nil {
		return nil, err
	}
	if c.SpeakerRoles, err = transcription.ParseSpeakerRoles(os.Getenv("SPEAKER_ROLES")); err != nil {
		return nil, fmt.Errorf("SPEAKER_ROLES: %w", err)
	}
	return c, nil
}

// TranscriptionConfig is the client configuration derived from c.
func (c *Config) TranscriptionConfig() transcription.Config {
	return transcription.Config{
		APIKey:  c.AssemblyAIKey,
		BaseURL: c.AssemblyAIBaseURL,
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolEnv(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", k, v)
	}
	return b, nil
}

func floatEnv(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", k, v)
	}
	return f, nil
}

// durationEnv accepts Go durations ("90s") or a bare number of seconds.
func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", k, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
