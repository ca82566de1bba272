package scheduler

import (
	"sync"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/step"
)

// Queue is the runtime step-execution queue the execution loop
// drains. Lower Primacy is higher priority; among eligible entries of
// equal Primacy, the one added first wins. Entries number in the
// tens to low hundreds for any realistic test procedure, so a linear
// scan per operation is simpler to get right than a heap and costs
// nothing observable at that scale.
type Queue struct {
	mu      sync.Mutex
	entries []*step.Execution
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add enqueues se.
func (q *Queue) Add(se *step.Execution) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, se)
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// eligibleIndex returns the index of the lowest-primacy entry whose
// NotBefore has passed (or is unset), or -1 if none qualifies. Must be
// called with q.mu held.
func (q *Queue) eligibleIndex(now time.Time) int {
	best := -1
	for i, e := range q.entries {
		if e.ExecutableDelay(now) > 0 {
			continue
		}
		if best == -1 || e.Primacy < q.entries[best].Primacy {
			best = i
		}
	}
	return best
}

// Peek returns the lowest-primacy entry that is already eligible to
// run, without removing it.
func (q *Queue) Peek(now time.Time) (*step.Execution, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.eligibleIndex(now)
	if i == -1 {
		return nil, false
	}
	return q.entries[i], true
}

// PeekNextNoWait returns the lowest-primacy eligible entry like Peek,
// but when none is yet eligible it instead returns the entry with the
// soonest NotBefore across the whole queue, so the caller knows how
// long to wait.
func (q *Queue) PeekNextNoWait(now time.Time) (*step.Execution, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.eligibleIndex(now); i != -1 {
		return q.entries[i], true
	}
	var soonest *step.Execution
	for _, e := range q.entries {
		if e.NotBefore == nil {
			continue
		}
		if soonest == nil || e.NotBefore.Before(*soonest.NotBefore) {
			soonest = e
		}
	}
	if soonest == nil {
		return nil, false
	}
	return soonest, true
}

// Pop removes and returns the lowest-primacy eligible entry.
func (q *Queue) Pop(now time.Time) (*step.Execution, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.eligibleIndex(now)
	if i == -1 {
		return nil, false
	}
	e := q.entries[i]
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return e, true
}
