// Package store reads and writes the flat JSON documents behind a call report.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"service-call-analyzer/internal/types"
)

var (
	// ErrRecordNotFound means there is no call record to report on yet.
	ErrRecordNotFound = errors.New("call record not found")
	// ErrMalformedRecord means the file exists but is not a valid call record.
	ErrMalformedRecord = errors.New("malformed call record")
)

type RecordStore struct {
	path string
}

func NewRecordStore(path string) *RecordStore {
	return &RecordStore{path: path}
}

func (s *RecordStore) Path() string { return s.path }

func (s *RecordStore) Load() (*types.CallRecord, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec types.CallRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, s.path, err)
	}
	return &rec, nil
}

// LoadOrNew returns a fresh record built from meta when none exists yet.
func (s *RecordStore) LoadOrNew(meta types.Meta) (*types.CallRecord, error) {
	rec, err := s.Load()
	if errors.Is(err, ErrRecordNotFound) {
		return types.NewCallRecord(meta), nil
	}
	return rec, err
}

// Save writes the record with two-space indentation and no HTML escaping.
// The file is replaced atomically.
func (s *RecordStore) Save(rec *types.CallRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return writeAtomic(s.path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// LoadCustomAnalysis never fails: a missing or unreadable document yields an
// empty analysis and a warning.
func LoadCustomAnalysis(path string, log *logrus.Entry) *types.CustomAnalysis {
	if path == "" {
		return types.EmptyCustomAnalysis()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && log != nil {
			log.WithError(err).WithField("path", path).Warn("custom analysis unreadable")
		}
		return types.EmptyCustomAnalysis()
	}
	var ca types.CustomAnalysis
	if err := json.Unmarshal(b, &ca); err != nil {
		if log != nil {
			log.WithError(err).WithField("path", path).Warn("custom analysis malformed, ignoring")
		}
		return types.EmptyCustomAnalysis()
	}
	if ca.Stages == nil {
		ca.Stages = map[string]types.StageAnalysis{}
	}
	return &ca
}
