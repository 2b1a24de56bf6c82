package processor

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"service-call-analyzer/internal/dataset"
	"service-call-analyzer/internal/store"
)

// Batch analyzes manifest entries one after another, writing each record to
// outDir/<call id>.json. A failed call is reported in its row and does not
// stop the batch; a cancelled context does.
func (a *Analyzer) Batch(ctx context.Context, entries []dataset.CallEntry, outDir string, perCall time.Duration) []dataset.BatchRow {
	a.defaults()
	rows := make([]dataset.BatchRow, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		row := dataset.BatchRow{
			CallID:     e.CallID,
			Audio:      e.Audio,
			RecordPath: filepath.Join(outDir, safeName(e.CallID)+".json"),
		}

		runner := *a
		if e.CallType != "" {
			runner.Meta.CallType = e.CallType
		}
		callCtx, cancel := context.WithTimeout(ctx, perCall)
		out, err := runner.AnalyzeAudio(callCtx, e.Audio, store.NewRecordStore(row.RecordPath))
		cancel()

		if err != nil {
			row.Error = err.Error()
		} else {
			row.Segments = out.Segments
			row.CompliancePercentage = out.Summary.CompliancePercentage
		}
		a.Log.WithField("call_id", e.CallID).WithField("ok", err == nil).Info("batch call processed")
		rows = append(rows, row)
	}
	return rows
}

// safeName keeps call ids usable as file names.
func safeName(id string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, strings.TrimSpace(id))
	if s == "" || strings.Trim(s, ".") == "" {
		return "call"
	}
	return s
}
