package models

// TraceStep records one personalization decision and the inputs that drove it.
type TraceStep struct {
	Stage   string            `json:"stage"`
	Outcome string            `json:"outcome"`
	Details map[string]string `json:"details,omitempty"`
}

// DecisionTrace captures the ordered steps taken while building a visitor context.
// A nil trace ignores all calls so callers never need to check.
type DecisionTrace struct {
	Steps []TraceStep `json:"steps"`
}

// AddStep appends a trace entry for the given stage.
func (t *DecisionTrace) AddStep(stage, outcome string) {
	if t == nil {
		return
	}
	t.Steps = append(t.Steps, TraceStep{Stage: stage, Outcome: outcome})
}

// AddStepWithDetails appends a trace entry with additional key/value details.
func (t *DecisionTrace) AddStepWithDetails(stage, outcome string, details map[string]string) {
	if t == nil {
		return
	}
	t.Steps = append(t.Steps, TraceStep{Stage: stage, Outcome: outcome, Details: details})
}

// Outcome returns the outcome of the last step recorded for stage.
func (t *DecisionTrace) Outcome(stage string) (string, bool) {
	if t == nil {
		return "", false
	}
	for i := len(t.Steps) - 1; i >= 0; i-- {
		if t.Steps[i].Stage == stage {
			return t.Steps[i].Outcome, true
		}
	}
	return "", false
}
