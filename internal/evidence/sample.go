// Package evidence pulls short quoted excerpts from segments for the compliance checklist.
package evidence

import (
	"fmt"
	"strings"

	"service-call-analyzer/internal/types"
)

const (
	DefaultLimit = 2
	MaxTextLen   = 160

	// Placeholder is returned when no segment carries the stage.
	Placeholder = "—"

	ellipsis  = "..."
	separator = " | "
)

// Sample formats up to limit segments of the given stage, in transcript order.
func Sample(segments []types.Segment, stage string, limit int) string {
	var out []string
	for _, s := range segments {
		if len(out) >= limit {
			break
		}
		if s.Stage != stage {
			continue
		}
		out = append(out, format(s))
	}
	if len(out) == 0 {
		return Placeholder
	}
	return strings.Join(out, separator)
}

func format(s types.Segment) string {
	text := Truncate(strings.TrimSpace(s.Text), MaxTextLen)
	if s.Start != nil && s.End != nil {
		return fmt.Sprintf("[%.0fs–%.0fs] %s: “%s”", *s.Start, *s.End, s.Speaker, text)
	}
	return fmt.Sprintf("%s: “%s”", s.Speaker, text)
}

// Truncate shortens text to max runes, ending with "..." when cut.
func Truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	if max <= 0 {
		return ""
	}
	if max <= len(ellipsis) {
		return string(r[:max])
	}
	return string(r[:max-len(ellipsis)]) + ellipsis
}
