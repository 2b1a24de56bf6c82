// Package server exposes the call report over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"service-call-analyzer/internal/logger"
	"service-call-analyzer/internal/metrics"
	"service-call-analyzer/internal/processor"
	"service-call-analyzer/internal/report"
	"service-call-analyzer/internal/store"
	"service-call-analyzer/internal/transcription"
)

type Server struct {
	store              *store.RecordStore
	customAnalysisPath string
	audioDir           string
	analyzer           *processor.Analyzer
	metrics            *metrics.Metrics
	log                *logger.Logger
	analyzeTimeout     time.Duration

	// analyze rewrites the record file; one at a time.
	analyzeMu sync.Mutex
}

type Options struct {
	Store              *store.RecordStore
	CustomAnalysisPath string
	// AudioDir enables local audio for analyze; empty means URLs only.
	AudioDir string
	Analyzer           *processor.Analyzer
	Metrics            *metrics.Metrics
	Log                *logger.Logger
	AnalyzeTimeout     time.Duration
}

func New(o Options) *Server {
	s := &Server{
		store:              o.Store,
		customAnalysisPath: o.CustomAnalysisPath,
		audioDir:           o.AudioDir,
		analyzer:           o.Analyzer,
		metrics:            o.Metrics,
		log:                o.Log,
		analyzeTimeout:     o.AnalyzeTimeout,
	}
	if s.log == nil {
		s.log = logger.New()
	}
	if s.analyzeTimeout <= 0 {
		s.analyzeTimeout = 10 * time.Minute
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /api/summary", s.summary)
	mux.HandleFunc("GET /api/stages", s.stages)
	mux.HandleFunc("GET /api/stages/{stage}/utterances", s.stageUtterances)
	mux.HandleFunc("GET /api/compliance", s.compliance)
	mux.HandleFunc("GET /api/report", s.page)
	mux.HandleFunc("POST /api/analyze", s.analyze)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

// load reads the record fresh for every request so edits on disk show up
// without a restart.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	rec, err := s.store.Load()
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return report.New(rec), true
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, rep.Summary())
}

func (s *Server) stages(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string][]string{"stages": rep.Stages()})
}

func (s *Server) stageUtterances(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.load(w, r)
	if !ok {
		return
	}
	stage := r.PathValue("stage")
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"stage":      stage,
		"utterances": rep.UtterancesByStage(stage),
	})
}

func (s *Server) compliance(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, rep.AllCompliance())
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.load(w, r)
	if !ok {
		return
	}
	ca := store.LoadCustomAnalysis(s.customAnalysisPath, s.log.Component("server"))
	s.writeJSON(w, r, http.StatusOK, rep.Page(ca))
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "analyze")
	audio := r.URL.Query().Get("audio")
	if audio == "" {
		reqLog.Warn("missing audio")
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "missing audio"})
		return
	}
	audio, err := s.resolveAudio(audio)
	if err != nil {
		reqLog.WithError(err).Warn("audio rejected")
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if s.analyzer == nil {
		s.writeJSON(w, r, http.StatusServiceUnavailable, errorBody{Error: "analysis not configured"})
		return
	}

	s.analyzeMu.Lock()
	defer s.analyzeMu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.analyzeTimeout)
	defer cancel()
	out, err := s.analyzer.AnalyzeAudio(ctx, audio, s.store)
	reqLog.WithField("duration_ms", out.DurationMs).Info("analyze finished")
	if err != nil {
		s.writeJSON(w, r, statusFor(err), out)
		return
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

// resolveAudio accepts http(s) URLs as they are. Anything else must be a
// relative path that stays inside audioDir.
func (s *Server) resolveAudio(audio string) (string, error) {
	if u, err := url.Parse(audio); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return audio, nil
	}
	if s.audioDir == "" {
		return "", errors.New("audio must be an http(s) URL")
	}
	if filepath.IsAbs(audio) {
		return "", errors.New("audio path must be relative to the audio directory")
	}
	root, err := filepath.Abs(s.audioDir)
	if err != nil {
		return "", fmt.Errorf("audio directory: %w", err)
	}
	full := filepath.Join(root, audio)
	if !within(root, full) {
		return "", errors.New("audio path escapes the audio directory")
	}
	// symlinks are followed when the file exists
	if real, err := filepath.EvalSymlinks(full); err == nil {
		realRoot, rerr := filepath.EvalSymlinks(root)
		if rerr != nil || !within(realRoot, real) {
			return "", errors.New("audio path escapes the audio directory")
		}
	}
	return full, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, transcription.ErrTranscriptionFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := "Error loading data"
	if status == http.StatusNotFound {
		msg = "Data file not found"
	}
	s.log.WithRequest(r).WithError(err).WithField("status", status).Warn("request failed")
	s.writeJSON(w, r, status, errorBody{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.WithRequest(r).WithError(err).Error("failed to write response")
	}
}
