package tracker

import "sync"

// WarningEntry is one logged warning; Source is either a step id
// (string) or a *resource.Stored, depending on what produced it. We
// keep it as `any` to avoid a dependency from tracker onto resource
// for the (rare) resource-sourced warnings.
type WarningEntry struct {
	Message string
	Source  any
}

// WarningTracker is the ordered log of every warning raised during a
// run (property-diff mismatches, XSD oddities that degrade instead of
// failing, pagination count mismatches, and the final resource
// validation pass).
type WarningTracker struct {
	mu      sync.Mutex
	entries []WarningEntry
}

// NewWarningTracker creates an empty tracker.
func NewWarningTracker() *WarningTracker { return &WarningTracker{} }

// Log appends a warning.
func (t *WarningTracker) Log(message string, source any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, WarningEntry{Message: message, Source: source})
}

// Entries returns a snapshot of every warning logged so far.
func (t *WarningTracker) Entries() []WarningEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WarningEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Count returns the total number of warnings logged.
func (t *WarningTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
