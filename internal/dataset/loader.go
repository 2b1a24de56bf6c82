package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CallEntry is one row of a call manifest.
type CallEntry struct {
	Row      int    `json:"row"`
	CallID   string `json:"call_id"`
	Audio    string `json:"audio"`
	CallType string `json:"call_type,omitempty"`
}

var ErrNoAudioColumn = errors.New("manifest has no audio column")

type columns struct {
	audio, callID, callType int
}

// detectColumns maps header cells to fields by keyword. Type is checked
// before id so "Call Type" is not taken for the id column.
func detectColumns(header []string) columns {
	c := columns{audio: -1, callID: -1, callType: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "recording") ||
			strings.Contains(l, "url") || strings.Contains(l, "link") || strings.Contains(l, "file"):
			if c.audio == -1 {
				c.audio = i
			}
		case strings.Contains(l, "type"):
			if c.callType == -1 {
				c.callType = i
			}
		case strings.Contains(l, "call id") || strings.Contains(l, "callid") || l == "id" || strings.HasSuffix(l, "_id"):
			if c.callID == -1 {
				c.callID = i
			}
		}
	}
	return c
}

// LoadManifest reads the first sheet of a workbook listing calls to analyze.
// Rows without an audio reference are skipped; a missing call id falls back
// to "row-N".
func LoadManifest(path string) ([]CallEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.audio == -1 {
		return nil, ErrNoAudioColumn
	}

	var out []CallEntry
	for i, r := range rows[1:] {
		e := CallEntry{
			Row:      i + 2,
			Audio:    cell(r, cols.audio),
			CallID:   cell(r, cols.callID),
			CallType: cell(r, cols.callType),
		}
		if e.Audio == "" {
			continue
		}
		if e.CallID == "" {
			e.CallID = fmt.Sprintf("row-%d", e.Row)
		}
		out = append(out, e)
	}
	return out, nil
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}
