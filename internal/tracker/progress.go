package tracker

import (
	"sync"

	"github.com/cactuslab/cactus-client-go/internal/step"
)

// Result is the final outcome of one step.
type Result struct {
	Passed      bool
	Description string
	Executed    bool // false means "not executed" (run stopped earlier)
}

// IsPassed reports whether r represents a passing, executed step.
func (r *Result) IsPassed() bool {
	return r != nil && r.Executed && r.Passed
}

// Completion is logged once per step-execution attempt (there may be
// several per step: repeats and repeat-until-pass retries).
type Completion struct {
	StepID       string
	RepeatNumber int
	Attempts     int
	Passed       bool
	Description  string
}

// Progress is the per-step-id record the evaluator and any UI consult.
type Progress struct {
	Step        *step.Step
	Result      *Result
	Completions []Completion
	LogEntries  []string
}

// ProgressTracker tracks one Progress record per step id plus the
// flat, insertion-ordered sequences of every completion and result
// across the whole run.
type ProgressTracker struct {
	mu             sync.Mutex
	byStepID       map[string]*Progress
	order          []string
	allCompletions []Completion
	allResults     []*Result
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{byStepID: map[string]*Progress{}}
}

// Register ensures a Progress record exists for s, creating it with a
// nil Result so steps the run never reaches still appear in the final
// report as "not executed".
func (t *ProgressTracker) Register(s *step.Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byStepID[s.ID]; ok {
		return
	}
	t.byStepID[s.ID] = &Progress{Step: s}
	t.order = append(t.order, s.ID)
}

// LogCompletion appends a completion record for a step-execution
// attempt.
func (t *ProgressTracker) LogCompletion(c Completion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byStepID[c.StepID]
	if !ok {
		return
	}
	p.Completions = append(p.Completions, c)
	t.allCompletions = append(t.allCompletions, c)
}

// LogEntry appends a free-text log line to a step's progress record.
func (t *ProgressTracker) LogEntry(stepID, entry string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byStepID[stepID]
	if !ok {
		return
	}
	p.LogEntries = append(p.LogEntries, entry)
}

// SetResult records the final result of a step.
func (t *ProgressTracker) SetResult(stepID string, result *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byStepID[stepID]
	if !ok {
		return
	}
	p.Result = result
	t.allResults = append(t.allResults, result)
}

// Progress returns the record for stepID, if any.
func (t *ProgressTracker) Progress(stepID string) (*Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byStepID[stepID]
	return p, ok
}

// AllProgress returns every Progress record in step-registration
// order.
func (t *ProgressTracker) AllProgress() []*Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Progress, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byStepID[id])
	}
	return out
}

// AllCompletions returns every completion in insertion order.
func (t *ProgressTracker) AllCompletions() []Completion {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Completion, len(t.allCompletions))
	copy(out, t.allCompletions)
	return out
}

// AllResults returns every final result in insertion order.
func (t *ProgressTracker) AllResults() []*Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Result, len(t.allResults))
	copy(out, t.allResults)
	return out
}
