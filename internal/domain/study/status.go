package study

import "sort"

type GenerationState string

const (
	StatePending   GenerationState = "pending"
	StateCompleted GenerationState = "completed"
	StateFailed    GenerationState = "failed"
)

// TrialMeta is what the status document remembers about the prompt behind a trial.
type TrialMeta struct {
	Prompt    string `json:"prompt"`
	Theme     string `json:"theme"`
	Condition string `json:"condition"`
}

type TrialStatus struct {
	Status    GenerationState `json:"status"`
	Prompt    string          `json:"prompt"`
	Theme     string          `json:"theme"`
	Condition string          `json:"condition"`
	ImagePath string          `json:"imagePath,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// GenerationStatus is the per-participant status document, keyed by trial index.
type GenerationStatus map[int]TrialStatus

type StatusSummary struct {
	Ready     bool
	Completed int
	Failed    int
	Total     int
}

// Summary is ready only when at least one trial is tracked and every tracked trial completed.
// Trials are tracked from the moment their generation is queued.
func (g GenerationStatus) Summary() StatusSummary {
	var s StatusSummary
	for _, ts := range g {
		s.Total++
		switch ts.Status {
		case StateCompleted:
			s.Completed++
		case StateFailed:
			s.Failed++
		}
	}
	s.Ready = s.Total > 0 && s.Completed == s.Total
	return s
}

type ImageEntry struct {
	TrialIndex int    `json:"trialIndex"`
	ImagePath  string `json:"imagePath"`
	Prompt     string `json:"prompt"`
	Theme      string `json:"theme"`
	Condition  string `json:"condition"`
}

// CompletedTrials returns the completed entries in ascending trial order.
func (g GenerationStatus) CompletedTrials() []int {
	out := make([]int, 0, len(g))
	for idx, ts := range g {
		if ts.Status == StateCompleted {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}
