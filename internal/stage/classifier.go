// Package stage assigns call-stage labels to utterance text using ordered keyword rules.
package stage

import (
	"fmt"
	"regexp"

	"service-call-analyzer/internal/types"
)

// Rule matches when any of its patterns is found in the text.
type Rule struct {
	Stage    string
	Patterns []*regexp.Regexp
}

// NewRule compiles patterns case-insensitively.
func NewRule(stage string, patterns ...string) (Rule, error) {
	r := Rule{Stage: stage, Patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return Rule{}, fmt.Errorf("stage %q: pattern %q: %w", stage, p, err)
		}
		r.Patterns = append(r.Patterns, re)
	}
	return r, nil
}

// MustRule is NewRule for built-in rule tables.
func MustRule(stage string, patterns ...string) Rule {
	r, err := NewRule(stage, patterns...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rule) matches(text string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Classifier applies rules in list order; the first matching rule wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier copies rules, so later changes to the slice do not affect it.
func NewClassifier(rules []Rule) *Classifier {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp}
}

// Default is a classifier over DefaultRules.
func Default() *Classifier {
	return NewClassifier(DefaultRules())
}

// Classify returns the stage for text, or types.GeneralStage.
func (c *Classifier) Classify(text string) string {
	for _, r := range c.rules {
		if r.matches(text) {
			return r.Stage
		}
	}
	return types.GeneralStage
}

// Stages lists rule stages in evaluation order.
func (c *Classifier) Stages() []string {
	out := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Stage)
	}
	return out
}

func (c *Classifier) Rules() []Rule {
	cp := make([]Rule, len(c.rules))
	copy(cp, c.rules)
	return cp
}

// Tag classifies each utterance independently.
func (c *Classifier) Tag(utterances []types.Utterance) []types.TaggedUtterance {
	out := make([]types.TaggedUtterance, 0, len(utterances))
	for _, u := range utterances {
		out = append(out, types.TaggedUtterance{Utterance: u, Stage: c.Classify(u.Text)})
	}
	return out
}
