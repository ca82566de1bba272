// Package step defines the procedure-level vocabulary, Step and its
// runtime Execution record, shared by the scheduler, the action and
// check catalogues, the protocol client, and the trackers. It has no
// dependencies of its own so every other package can depend on it
// without creating import cycles.
package step

import "time"

// Spec is a named, parameterised action or check invocation. Params
// are the raw, unresolved parameter map from the procedure document;
// resolving them against runtime state (alias lookups etc.) is the
// action/check handler's job.
type Spec struct {
	Type   string
	Params map[string]any
}

// Step is one entry in a test procedure: an id, one action, zero or
// more checks, and whether a failure should be retried forever
// instead of ending the run.
type Step struct {
	ID              string
	OwningClient    string
	ResourceClient  string
	Primacy         int
	Action          Spec
	Checks          []Spec
	RepeatUntilPass bool
}

// Execution is the runtime record the scheduler queues: a Step plus
// the mutable state of one attempt at running it.
type Execution struct {
	Step                    *Step
	OwningClientAlias       string
	ResourceOwningClientAlias string
	Primacy                 int
	RepeatNumber            int
	NotBefore               *time.Time
	Attempts                int
}

// Clone returns a copy of e suitable for re-enqueuing (repeat or
// retry); callers mutate the fields that changed (RepeatNumber,
// Attempts, NotBefore) on the result.
func (e *Execution) Clone() *Execution {
	clone := *e
	return &clone
}

// ExecutableDelay returns how long, from now, until e becomes
// eligible to run: zero if NotBefore is unset or already passed.
func (e *Execution) ExecutableDelay(now time.Time) time.Duration {
	if e.NotBefore == nil {
		return 0
	}
	if !now.Before(*e.NotBefore) {
		return 0
	}
	return e.NotBefore.Sub(now)
}

// NewExecution builds the initial Execution for a Step.
func NewExecution(s *Step) *Execution {
	return &Execution{
		Step:                      s,
		OwningClientAlias:         s.OwningClient,
		ResourceOwningClientAlias: s.ResourceClient,
		Primacy:                   s.Primacy,
	}
}
