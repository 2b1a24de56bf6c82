package dataset

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"service-call-analyzer/internal/types"
)

const (
	ComplianceSheet = "Compliance"
	SegmentsSheet   = "Segments"
	CallsSheet      = "Calls"
)

// BatchRow is one line of the batch summary workbook.
type BatchRow struct {
	CallID               string
	Audio                string
	RecordPath           string
	Segments             int
	CompliancePercentage float64
	Error                string
}

type sheetWriter struct {
	f    *excelize.File
	bold int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	return &sheetWriter{f: f, bold: bold}, nil
}

// sheet creates (or renames the default sheet to) name and writes the header
// and rows.
func (w *sheetWriter) sheet(name string, header []any, rows [][]any, widths map[string]float64) error {
	if list := w.f.GetSheetList(); len(list) == 1 && list[0] == "Sheet1" {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return err
	}
	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	if err := w.f.SetRowStyle(name, 1, 1, w.bold); err != nil {
		return err
	}
	for i, r := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(name, cellName, &r); err != nil {
			return err
		}
	}
	for col, width := range widths {
		if err := w.f.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (w *sheetWriter) save(path string) error {
	defer w.f.Close()
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// ExportRecord writes the compliance checklist and the merged segments of one
// call to an .xlsx workbook for reviewers to score offline.
func ExportRecord(path string, rec *types.CallRecord, log *logrus.Entry) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}

	compliance := make([][]any, 0, len(rec.ComplianceCheck))
	for _, c := range rec.ComplianceCheck {
		compliance = append(compliance, []any{c.Stage, c.Score, c.Max, c.Evidence, c.Suggestion})
	}
	if err := w.sheet(ComplianceSheet,
		[]any{"Stage", "Score", "Max", "Evidence", "Suggestion"},
		compliance,
		map[string]float64{"A": 24, "D": 80, "E": 60},
	); err != nil {
		w.f.Close()
		return fmt.Errorf("compliance sheet: %w", err)
	}

	segments := make([][]any, 0, len(rec.Segments))
	for _, s := range rec.Segments {
		segments = append(segments, []any{timeCell(s.Start), timeCell(s.End), s.Speaker, s.Stage, s.Text})
	}
	if err := w.sheet(SegmentsSheet,
		[]any{"Start", "End", "Speaker", "Stage", "Text"},
		segments,
		map[string]float64{"D": 24, "E": 100},
	); err != nil {
		w.f.Close()
		return fmt.Errorf("segments sheet: %w", err)
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"path":       path,
			"compliance": len(compliance),
			"segments":   len(segments),
		}).Info("workbook exported")
	}
	return w.save(path)
}

// ExportBatch writes one row per processed manifest entry.
func ExportBatch(path string, rows []BatchRow) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{r.CallID, r.Audio, r.RecordPath, r.Segments, r.CompliancePercentage, r.Error})
	}
	if err := w.sheet(CallsSheet,
		[]any{"Call ID", "Audio", "Record", "Segments", "Compliance %", "Error"},
		data,
		map[string]float64{"B": 48, "C": 32, "F": 48},
	); err != nil {
		w.f.Close()
		return fmt.Errorf("calls sheet: %w", err)
	}
	return w.save(path)
}

// timeCell leaves missing timestamps blank instead of writing 0.
func timeCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
