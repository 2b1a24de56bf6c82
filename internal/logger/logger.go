package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

// New builds a logger from ENVIRONMENT and LOG_LEVEL, writing to stdout.
func New() *Logger {
	return NewWithOutput(os.Stdout)
}

func NewWithOutput(w io.Writer) *Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     w == os.Stdout || w == os.Stderr,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(w)
	base.SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))

	return &Logger{Entry: logrus.NewEntry(base).WithField("service", "service-call-analyzer")}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{Entry: logrus.NewEntry(base)}
}

func ParseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component tags entries with the emitting component.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.Entry.WithField("component", name)
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"req_id":     RequestID(r),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// RequestID returns X-Request-ID, or a fresh uuid when the header is absent.
func RequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
