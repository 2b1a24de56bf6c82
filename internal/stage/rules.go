package stage

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Stage names emitted by the default rule set.
const (
	Introduction        = "Introduction"
	ProblemDiagnosis    = "Problem Diagnosis"
	SolutionExplanation = "Solution Explanation"
	UpsellAttempts      = "Upsell Attempts"
	Financing           = "Financing"
	ClosingThankYou     = "Closing & Thank You"

	// MaintenancePlanOffer is a checklist stage only; no rule emits it.
	MaintenancePlanOffer = "Maintenance Plan Offer"
)

// DefaultRules returns the HVAC service-call rule set. Order matters: earlier rules win.
func DefaultRules() []Rule {
	return []Rule{
		MustRule(Introduction,
			`\b(hello|hey|hi)\b`, `\bmy name is\b`, `\b(i'?m with|from)\b`,
			`\bcompany\b`, `\bis now a good time\b`,
		),
		MustRule(ProblemDiagnosis,
			`\b(problem|issue|symptom|concern|leak|mold|noise|efficien\w*|hot|cold|not working|diagnos\w*)\b`,
		),
		MustRule(SolutionExplanation,
			`\b(option|solution|we can|recommend|install|replace|upgrade|like-?for-?like)\b`,
			`\bheat pump\b`, `\bfurnace\b`, `\bcondenser\b`, `\bcoil\b`, `\bthermostat\b`,
			`\bseer\b`, `\br[- ]?32\b`, `\br[- ]?410a\b`, `\binverter\b`, `\bduct\b`,
			`\bpermit\b`, `\bhers\b`, `\brebate\b`, `\bwarranty\b`,
		),
		MustRule(UpsellAttempts,
			`\bmaintenance\b`, `\bservice plan\b`, `\bmembership\b`,
			`\bduct sealing\b`, `\bfilter\b`, `\bgrille\b`, `\buv\b`, `\bmerv\b`,
		),
		MustRule(Financing,
			`\bfinanc\w*\b`, `\bmonthly payment\b`, `\bapr\b`, `\binterest\b`,
			`\b12 months\b`, `\bno interest\b`, `\bterm\b`,
		),
		MustRule(ClosingThankYou,
			`\bemail\b`, `\bfollow ?up\b`, `\bdecid(e|ing)\b`, `\b(spouse|wife|husband)\b`,
			`\bdeposit\b`, `\bdown payment\b`, `\bcredit\b`, `\bcard\b`, `\bthank(s| you)\b`,
		),
	}
}

// ruleFile is the on-disk shape of a custom rule set:
//
//	rules:
//	  - stage: Introduction
//	    patterns: ['\bhello\b']
type ruleFile struct {
	Rules []struct {
		Stage    string   `yaml:"stage"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"rules"`
}

// LoadRules reads an ordered rule set from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(b)
}

// ParseRules decodes a YAML rule set, keeping document order.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("rule file has no rules")
	}
	out := make([]Rule, 0, len(f.Rules))
	for i, r := range f.Rules {
		if r.Stage == "" {
			return nil, fmt.Errorf("rule %d: missing stage", i)
		}
		if len(r.Patterns) == 0 {
			return nil, fmt.Errorf("stage %q: no patterns", r.Stage)
		}
		rule, err := NewRule(r.Stage, r.Patterns...)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}
