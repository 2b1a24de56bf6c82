// Package transcription talks to an AssemblyAI-compatible speech-to-text API and
// converts its diarized result into utterances.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/types"
)

// ErrTranscriptionFailed is returned when the provider reports status "error".
var ErrTranscriptionFailed = errors.New("transcription failed")

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"

	DefaultBaseURL = "https://api.assemblyai.com"

	maxPollFailures = 5
)

// DefaultWordBoost is HVAC vocabulary that the recognizer tends to miss.
var DefaultWordBoost = []string{
	"HERS", "SEER", "R-32", "R32", "R-410A", "R410A",
	"heat pump", "furnace", "condenser", "coil",
	"thermostat", "Daikin", "Bryant", "Bosch",
	"duct sealing", "MERV", "Energy Star",
	"Silicon Valley Clean Energy", "SVCE", "TECH Clean California",
	"inverter", "line set", "whip", "grille",
}

// RawUtterance is a provider utterance; Start and End are milliseconds.
type RawUtterance struct {
	Speaker    string   `json:"speaker"`
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence,omitempty"`
}

// Transcript is the provider's transcript resource.
type Transcript struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Text       string         `json:"text"`
	Utterances []RawUtterance `json:"utterances"`
}

// Err returns ErrTranscriptionFailed, wrapped with the provider message, when the
// transcript is in the error state.
func (t *Transcript) Err() error {
	if t == nil {
		return fmt.Errorf("%w: no transcript", ErrTranscriptionFailed)
	}
	if t.Status == StatusError {
		return fmt.Errorf("%w: %s", ErrTranscriptionFailed, t.Error)
	}
	return nil
}

// ToUtterances maps speaker labels to roles. Times are left as the provider sent them.
func (t *Transcript) ToUtterances(roles SpeakerRoles) []types.Utterance {
	out := make([]types.Utterance, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		out = append(out, types.Utterance{
			Speaker: roles.Role(u.Speaker),
			Start:   u.Start,
			End:     u.End,
			Text:    u.Text,
		})
	}
	return out
}

// Transcriber turns an audio file path or URL into a completed transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio string) (*Transcript, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	SpeechModel      string
	SpeakersExpected int
	WordBoost        []string
	PollInterval     time.Duration
	RetryInterval    time.Duration
	RetryMaxElapsed  time.Duration
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SpeechModel == "" {
		c.SpeechModel = "universal"
	}
	if c.SpeakersExpected == 0 {
		c.SpeakersExpected = 2
	}
	if c.WordBoost == nil {
		c.WordBoost = DefaultWordBoost
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = backoff.DefaultInitialInterval
	}
	if c.RetryMaxElapsed <= 0 {
		c.RetryMaxElapsed = 12 * time.Second
	}
}

// Client is the HTTP transcriber.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Entry
}

func NewClient(cfg Config, httpClient *http.Client, log *logrus.Entry) *Client {
	cfg.setDefaults()
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	if log == nil {
		log = logger.New().WithField("module", "transcription")
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type submitRequest struct {
	AudioURL          string   `json:"audio_url"`
	SpeechModel       string   `json:"speech_model,omitempty"`
	SpeakerLabels     bool     `json:"speaker_labels"`
	SpeakersExpected  int      `json:"speakers_expected,omitempty"`
	Punctuate         bool     `json:"punctuate"`
	FormatText        bool     `json:"format_text"`
	Disfluencies      bool     `json:"disfluencies"`
	WordBoost         []string `json:"word_boost,omitempty"`
	SentimentAnalysis bool     `json:"sentiment_analysis"`
}

// Transcribe uploads local files, submits the job and polls until it settles.
// A provider-side failure returns the transcript together with ErrTranscriptionFailed.
func (c *Client) Transcribe(ctx context.Context, audio string) (*Transcript, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("ASSEMBLYAI_API_KEY not set")
	}
	log := c.log.WithField("audio", audio)

	audioURL := audio
	if !isURL(audio) {
		u, err := c.upload(ctx, audio)
		if err != nil {
			return nil, fmt.Errorf("upload audio: %w", err)
		}
		log.WithField("upload_url", u).Info("audio uploaded")
		audioURL = u
	}

	var submitted Transcript
	req := submitRequest{
		AudioURL:          audioURL,
		SpeechModel:       c.cfg.SpeechModel,
		SpeakerLabels:     true,
		SpeakersExpected:  c.cfg.SpeakersExpected,
		Punctuate:         true,
		FormatText:        true,
		WordBoost:         c.cfg.WordBoost,
		SentimentAnalysis: true,
	}
	if err := c.doJSON(ctx, c.jsonRequest(http.MethodPost, "/v2/transcript", req), &submitted); err != nil {
		return nil, fmt.Errorf("submit transcript: %w", err)
	}
	log = log.WithField("transcript_id", submitted.ID)
	log.Info("transcript submitted")

	tr, err := c.poll(ctx, submitted.ID, log)
	if err != nil {
		return nil, err
	}
	if err := tr.Err(); err != nil {
		log.WithField("provider_error", tr.Error).Error("transcription failed")
		return tr, err
	}
	log.WithField("utterances", len(tr.Utterances)).Info("transcript completed")
	return tr, nil
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	build := func(ctx context.Context) (*http.Request, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/upload", f)
		if err != nil {
			f.Close()
			return nil, err
		}
		req.Header.Set("Authorization", c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	}
	var resp uploadResponse
	if err := c.doJSON(ctx, build, &resp); err != nil {
		return "", err
	}
	if resp.UploadURL == "" {
		return "", errors.New("upload returned no url")
	}
	return resp.UploadURL, nil
}

func (c *Client) poll(ctx context.Context, id string, log *logrus.Entry) (*Transcript, error) {
	if id == "" {
		return nil, errors.New("submit returned no transcript id")
	}
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transcription timeout: %w", ctx.Err())
		case <-ticker.C:
		}
		var t Transcript
		if err := c.doJSON(ctx, c.jsonRequest(http.MethodGet, "/v2/transcript/"+id, nil), &t); err != nil {
			failures++
			log.WithError(err).WithField("failures", failures).Warn("polling failed")
			if failures >= maxPollFailures {
				return nil, fmt.Errorf("poll transcript: %w", err)
			}
			continue
		}
		failures = 0
		log.WithField("status", t.Status).Debug("polling transcription")
		switch t.Status {
		case StatusCompleted, StatusError:
			return &t, nil
		}
	}
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
