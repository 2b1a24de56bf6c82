package transcription

import (
	"context"
	"strings"
)

// Mock returns a canned transcript; used when USE_MOCK_TRANSCRIBE=true and in tests.
type Mock struct {
	Result *Transcript
}

func NewMock() *Mock {
	return &Mock{Result: SampleTranscript()}
}

func (m *Mock) Transcribe(_ context.Context, _ string) (*Transcript, error) {
	tr := *m.Result
	tr.Utterances = append([]RawUtterance(nil), m.Result.Utterances...)
	if err := tr.Err(); err != nil {
		return &tr, err
	}
	return &tr, nil
}

func ms(v float64) *float64 { return &v }

// SampleTranscript is a short replacement-consultation call with timings in milliseconds.
func SampleTranscript() *Transcript {
	utts := []RawUtterance{
		{Speaker: "A", Start: ms(1200), End: ms(4200), Text: "Hi, my name is Marco, I'm with Valley Air. Is now a good time?"},
		{Speaker: "B", Start: ms(4500), End: ms(6100), Text: "Sure, come on in."},
		{Speaker: "B", Start: ms(12400), End: ms(19800), Text: "The upstairs bedrooms get really hot and the unit makes a loud noise."},
		{Speaker: "A", Start: ms(20300), End: ms(26000), Text: "Got it. How long has that been an issue?"},
		{Speaker: "A", Start: ms(61000), End: ms(72500), Text: "My recommendation is a variable speed heat pump, it qualifies for the rebate and carries a ten year warranty."},
		{Speaker: "A", Start: ms(75000), End: ms(81000), Text: "We would pull the permit and handle the HERS test."},
		{Speaker: "A", Start: ms(95000), End: ms(101500), Text: "I'd also suggest our maintenance plan, two visits a year with filter changes."},
		{Speaker: "B", Start: ms(102000), End: ms(104000), Text: "What would the monthly payment look like?"},
		{Speaker: "A", Start: ms(104500), End: ms(110000), Text: "With financing it's twelve months at no interest."},
		{Speaker: "B", Start: ms(130000), End: ms(134000), Text: "I need to talk it over with my wife before we decide."},
		{Speaker: "A", Start: ms(134500), End: ms(139000), Text: "Of course, I'll email the quote tonight. Thank you for your time."},
	}
	parts := make([]string, 0, len(utts))
	for _, u := range utts {
		parts = append(parts, u.Text)
	}
	return &Transcript{
		ID:         "mock-transcript",
		Status:     StatusCompleted,
		Text:       strings.Join(parts, " "),
		Utterances: utts,
	}
}
