// Package tracker implements the progress, warning and response
// trackers plus the results evaluator. The execution task is the sole
// writer; readers (an optional UI task) see a self-consistent
// snapshot of each record but not necessarily a globally consistent
// view across records, so every tracker guards its own state with a
// mutex and never locks across trackers.
package tracker

import (
	"sync"
	"time"
)

// ServerResponse is one logged HTTP attempt against the server under
// test.
type ServerResponse struct {
	StepID       string
	ClientAlias  string
	Method       string
	URL          string
	RequestBody  []byte
	StatusCode   int
	ResponseBody []byte
	XSDErrors    []string
	Err          error
	At           time.Time
}

// NotificationRequest is one logged interaction with the notification
// collector (create/collect/update/delete).
type NotificationRequest struct {
	StepID      string
	ClientAlias string
	SubAlias    string
	Kind        string // "create", "collect", "update", "delete"
	URL         string
	XSDErrors   []string
	Err         error
	At          time.Time
}

// ResponseTracker is the ordered log of every request the run made,
// plus the single "active request" slot the UI polls to show what is
// in flight.
type ResponseTracker struct {
	mu            sync.Mutex
	entries       []any // ServerResponse | NotificationRequest
	activeRequest any
}

// NewResponseTracker creates an empty tracker.
func NewResponseTracker() *ResponseTracker { return &ResponseTracker{} }

// BeginRequest records req as the single active request, cleared by
// the paired EndRequest call.
func (t *ResponseTracker) BeginRequest(req ServerResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeRequest = req
}

// EndRequest clears the active-request slot and appends the completed
// entry to the log.
func (t *ResponseTracker) EndRequest(resp ServerResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeRequest = nil
	t.entries = append(t.entries, resp)
}

// LogNotification appends a notification-collector interaction.
func (t *ResponseTracker) LogNotification(n NotificationRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, n)
}

// ActiveRequest returns the currently in-flight request, if any.
func (t *ResponseTracker) ActiveRequest() (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeRequest, t.activeRequest != nil
}

// Entries returns a snapshot of the full log in completion order.
func (t *ResponseTracker) Entries() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.entries))
	copy(out, t.entries)
	return out
}

// TotalXSDErrors counts every XSD validation error logged across
// every response and notification.
func (t *ResponseTracker) TotalXSDErrors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, e := range t.entries {
		switch v := e.(type) {
		case ServerResponse:
			total += len(v.XSDErrors)
		case NotificationRequest:
			total += len(v.XSDErrors)
		}
	}
	return total
}
