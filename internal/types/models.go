package types

import (
	"bytes"
	"encoding/json"
	"sort"
)

// GeneralStage is the stage assigned when no rule matches.
const GeneralStage = "General"

// Unknown is the placeholder for missing meta strings.
const Unknown = "Unknown"

// DefaultMaxScore is used for compliance entries that omit "max".
const DefaultMaxScore = 5

// Utterance is one speaker turn. Start and End are seconds once normalized;
// nil means the transcript had no timing for that edge.
type Utterance struct {
	Speaker string   `json:"speaker"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
	Text    string   `json:"text"`
}

// TaggedUtterance is an utterance with its classified stage.
type TaggedUtterance struct {
	Utterance
	Stage string `json:"stage"`
}

func (u *TaggedUtterance) UnmarshalJSON(data []byte) error {
	type plain TaggedUtterance
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Stage == "" {
		p.Stage = GeneralStage
	}
	*u = TaggedUtterance(p)
	return nil
}

// Segment is one or more adjacent same-stage utterances merged together.
type Segment struct {
	Speaker string   `json:"speaker"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
	Text    string   `json:"text"`
	Stage   string   `json:"stage"`
}

// ComplianceEntry is one checklist row. Score is entered by a reviewer.
type ComplianceEntry struct {
	Stage      string  `json:"stage"`
	Score      float64 `json:"score"`
	Max        float64 `json:"max"`
	Evidence   string  `json:"evidence"`
	Suggestion string  `json:"suggestion"`
}

func (c *ComplianceEntry) UnmarshalJSON(data []byte) error {
	var p struct {
		Stage      string   `json:"stage"`
		Score      float64  `json:"score"`
		Max        *float64 `json:"max"`
		Evidence   string   `json:"evidence"`
		Suggestion string   `json:"suggestion"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = ComplianceEntry{
		Stage:      p.Stage,
		Score:      p.Score,
		Max:        DefaultMaxScore,
		Evidence:   p.Evidence,
		Suggestion: p.Suggestion,
	}
	if p.Max != nil {
		c.Max = *p.Max
	}
	return nil
}

type Meta struct {
	CallType         string `json:"call_type"`
	DateAnalyzed     string `json:"date_analyzed"`
	TranscribedWith  string `json:"transcribed_with,omitempty"`
	StagesAutoTagged bool   `json:"stages_auto_tagged,omitempty"`
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	type plain Meta
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.CallType == "" {
		p.CallType = Unknown
	}
	if p.DateAnalyzed == "" {
		p.DateAnalyzed = Unknown
	}
	*m = Meta(p)
	return nil
}

// CallRecord is the persisted call document. Keys it does not model are kept
// in Extra and written back unchanged.
type CallRecord struct {
	Meta            Meta              `json:"meta"`
	ComplianceCheck []ComplianceEntry `json:"compliance_check"`
	SalesInsights   []json.RawMessage `json:"sales_insights"`
	Segments        []Segment         `json:"segments"`
	Utterances      []TaggedUtterance `json:"utterances"`
	FullTranscript  string            `json:"full_transcript"`

	Extra map[string]json.RawMessage `json:"-"`
}

var recordKeys = []string{"meta", "compliance_check", "sales_insights", "segments", "utterances", "full_transcript"}

// NewCallRecord returns an empty record with every container initialized.
func NewCallRecord(meta Meta) *CallRecord {
	r := &CallRecord{Meta: meta}
	r.normalize()
	return r
}

func (r *CallRecord) normalize() {
	if r.ComplianceCheck == nil {
		r.ComplianceCheck = []ComplianceEntry{}
	}
	if r.SalesInsights == nil {
		r.SalesInsights = []json.RawMessage{}
	}
	if r.Segments == nil {
		r.Segments = []Segment{}
	}
	if r.Utterances == nil {
		r.Utterances = []TaggedUtterance{}
	}
	if r.Meta.CallType == "" {
		r.Meta.CallType = Unknown
	}
	if r.Meta.DateAnalyzed == "" {
		r.Meta.DateAnalyzed = Unknown
	}
}

func (r *CallRecord) UnmarshalJSON(data []byte) error {
	type plain CallRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range recordKeys {
		delete(raw, k)
	}
	*r = CallRecord(p)
	if len(raw) > 0 {
		r.Extra = raw
	}
	r.normalize()
	return nil
}

func (r CallRecord) MarshalJSON() ([]byte, error) {
	r.normalize()
	fields := []struct {
		key string
		val any
	}{
		{"meta", r.Meta},
		{"compliance_check", r.ComplianceCheck},
		{"sales_insights", r.SalesInsights},
		{"segments", r.Segments},
		{"utterances", r.Utterances},
		{"full_transcript", r.FullTranscript},
	}
	extraKeys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(i int, key string, val []byte) {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := marshalNoEscape(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	for i, f := range fields {
		b, err := marshalNoEscape(f.val)
		if err != nil {
			return nil, err
		}
		write(i, f.key, b)
	}
	for i, k := range extraKeys {
		write(len(fields)+i, k, r.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalNoEscape keeps "&" and friends readable in hand-edited documents.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
