package types

// StageAnalysis is hand-written commentary for one stage.
type StageAnalysis struct {
	Analysis        string   `json:"analysis"`
	KeyPoints       []string `json:"key_points"`
	Recommendations []string `json:"recommendations"`
}

// CustomAnalysis is the optional reviewer document merged into the report.
type CustomAnalysis struct {
	Stages map[string]StageAnalysis `json:"stages"`
}

// EmptyCustomAnalysis is what a missing or unreadable document degrades to.
func EmptyCustomAnalysis() *CustomAnalysis {
	return &CustomAnalysis{Stages: map[string]StageAnalysis{}}
}

// StageAnalysis returns the entry for stage, or an empty entry.
func (c *CustomAnalysis) StageAnalysis(stage string) StageAnalysis {
	if c != nil {
		if a, ok := c.Stages[stage]; ok {
			return a
		}
	}
	return StageAnalysis{KeyPoints: []string{}, Recommendations: []string{}}
}

func (c *CustomAnalysis) All() map[string]StageAnalysis {
	if c == nil || c.Stages == nil {
		return map[string]StageAnalysis{}
	}
	return c.Stages
}

// HasAnalysis reports whether any field of the stage entry is filled in.
func (c *CustomAnalysis) HasAnalysis(stage string) bool {
	a := c.StageAnalysis(stage)
	return a.Analysis != "" || len(a.KeyPoints) > 0 || len(a.Recommendations) > 0
}
