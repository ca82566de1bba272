// Package action implements the step action catalogue: one function
// per action type, dispatched by the scheduler against a shared
// per-client Context. Every action receives its already resolved
// parameter map and returns a Result describing whether the step
// completed, should repeat, and when it next becomes eligible.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/config"
	"github.com/cactuslab/cactus-client-go/internal/discovery"
	"github.com/cactuslab/cactus-client-go/internal/notification"
	"github.com/cactuslab/cactus-client-go/internal/protocol"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/step"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

// Result is the outcome of one action invocation.
type Result struct {
	Completed   bool
	Repeat      bool
	NotBefore   *time.Time
	Description string
}

// Failed builds a non-completed, non-repeating Result carrying a
// human description, the shape a connection error returns so the
// scheduler can retry it when the step has repeat-until-pass.
func Failed(format string, args ...any) Result {
	return Result{Completed: false, Description: fmt.Sprintf(format, args...)}
}

// Done is a successful, non-repeating Result.
func Done(description string) Result {
	return Result{Completed: true, Description: description}
}

// Context is the shared dependency set every action runs against: one
// client's protocol client, resource store, notification bookkeeping
// and discovery walker, plus the trackers and the wall-clock start
// time actions like insert-readings measure against.
type Context struct {
	Client        *protocol.Client
	Store         *resource.Store
	Notifications *notification.Context
	Walker        *discovery.Walker
	ClientConfig  config.ClientConfig
	ServerConfig  config.ServerConfig
	RootHref      string
	Warnings      *tracker.WarningTracker
	Progress      *tracker.ProgressTracker
	Now           func() time.Time
	StartedAt     time.Time
	Logger        *slog.Logger

	waitMu        sync.Mutex
	waitDeadlines map[string]time.Time
}

// waitDeadline returns the wall-clock deadline for the wait action on
// stepID, computing and memorizing it (now + duration) on first call
// so later retries of the same step measure against a stable origin.
func (c *Context) waitDeadline(stepID string, duration time.Duration, now time.Time) time.Time {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	if c.waitDeadlines == nil {
		c.waitDeadlines = map[string]time.Time{}
	}
	deadline, ok := c.waitDeadlines[stepID]
	if !ok {
		deadline = now.Add(duration)
		c.waitDeadlines[stepID] = deadline
	}
	return deadline
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Func is the signature every catalogue action satisfies.
type Func func(ctx context.Context, ac *Context, s *step.Execution, params map[string]any) (Result, error)

// Catalogue is the closed set of action types the scheduler can
// dispatch.
var Catalogue = map[string]Func{
	"no-op":                      NoOp,
	"wait":                       Wait,
	"forget":                     Forget,
	"discovery":                  Discovery,
	"refresh-resource":           RefreshResource,
	"insert-end-device":          InsertEndDevice,
	"upsert-connection-point":    UpsertConnectionPoint,
	"upsert-mup":                 UpsertMUP,
	"insert-readings":            InsertReadings,
	"upsert-der-capability":      UpsertDERCapability,
	"upsert-der-settings":        UpsertDERSettings,
	"upsert-der-status":          UpsertDERStatus,
	"send-malformed-der-settings": SendMalformedDERSettings,
	"respond-der-controls":       RespondDERControls,
	"send-malformed-response":    SendMalformedResponse,
	"create-subscription":        CreateSubscription,
	"delete-subscription":        DeleteSubscription,
	"notifications":              Notifications,
	"simulate-client":            SimulateClient,
}

// Dispatch looks up and runs the action named by s.Step.Action.Type.
func Dispatch(ctx context.Context, ac *Context, s *step.Execution) (Result, error) {
	fn, ok := Catalogue[s.Step.Action.Type]
	if !ok {
		return Result{}, fmt.Errorf("action: unknown action type %q", s.Step.Action.Type)
	}
	return fn(ctx, ac, s, s.Step.Action.Params)
}

func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

func boolParam(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func durationParam(params map[string]any, key string) time.Duration {
	switch v := params[key].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v) * time.Second
	}
	return 0
}

func stringSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key].([]string)
	if ok {
		return raw
	}
	anySlice, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anySlice))
	for _, v := range anySlice {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
