// Package segment collapses stage-tagged utterances into display segments.
package segment

import (
	"math"
	"strings"

	"service-call-analyzer/internal/types"
)

// DefaultMaxGap is the largest pause, in seconds, that still joins two utterances.
const DefaultMaxGap = 8.0

// Merge joins neighbours that share a stage and start within maxGap seconds of
// the open segment's end. Input must already be in chronological order.
// A missing timestamp on either side counts as a zero gap.
func Merge(tagged []types.TaggedUtterance, maxGap float64) []types.Segment {
	out := make([]types.Segment, 0, len(tagged))
	if len(tagged) == 0 {
		return out
	}

	cur := fromUtterance(tagged[0])
	for _, u := range tagged[1:] {
		gap := 0.0
		if u.Start != nil && cur.End != nil {
			// timestamps carry two decimals; compare at that precision
			gap = math.Round((*u.Start-*cur.End)*100) / 100
		}
		if u.Stage == cur.Stage && gap >= 0 && gap <= maxGap {
			cur.End = copyTime(u.End)
			cur.Text = strings.TrimSpace(cur.Text + " " + u.Text)
			continue
		}
		out = append(out, cur)
		cur = fromUtterance(u)
	}
	return append(out, cur)
}

func fromUtterance(u types.TaggedUtterance) types.Segment {
	return types.Segment{
		Speaker: u.Speaker,
		Start:   copyTime(u.Start),
		End:     copyTime(u.End),
		Text:    u.Text,
		Stage:   u.Stage,
	}
}

func copyTime(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
