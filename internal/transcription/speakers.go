package transcription

import (
	"fmt"
	"strings"
)

// SpeakerRoles maps provider speaker labels ("A", "SPK_0", ...) to call roles.
type SpeakerRoles map[string]string

// DefaultSpeakerRoles assumes the first diarized speaker is the technician.
// This does not hold for every call; override it per call with ParseSpeakerRoles.
func DefaultSpeakerRoles() SpeakerRoles {
	return SpeakerRoles{
		"A": "Tech", "SPK_0": "Tech", "0": "Tech",
		"B": "Customer", "SPK_1": "Customer", "1": "Customer",
	}
}

// Role returns the mapped role or "Speaker <label>".
func (r SpeakerRoles) Role(label string) string {
	if role, ok := r[label]; ok {
		return role
	}
	return "Speaker " + label
}

// ParseSpeakerRoles reads "A=Tech,B=Customer". An empty string yields the defaults.
func ParseSpeakerRoles(s string) (SpeakerRoles, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSpeakerRoles(), nil
	}
	out := SpeakerRoles{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		label, role, ok := strings.Cut(pair, "=")
		label, role = strings.TrimSpace(label), strings.TrimSpace(role)
		if !ok || label == "" || role == "" {
			return nil, fmt.Errorf("invalid speaker role %q, want LABEL=Role", pair)
		}
		out[label] = role
	}
	return out, nil
}
