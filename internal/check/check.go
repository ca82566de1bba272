// Package check implements the check catalogue: one function per
// check type, each inspecting the resource store against resolved
// parameters and returning a pass/fail verdict with a human-readable
// description.
package check

import (
	"context"
	"fmt"

	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// Result is the outcome of one check invocation.
type Result struct {
	Passed      bool
	Description string
}

func passed(description string) Result { return Result{Passed: true, Description: description} }

func failed(format string, args ...any) Result {
	return Result{Passed: false, Description: fmt.Sprintf(format, args...)}
}

// Context is the dependency set a check runs against: just the
// resource store, the store being all checks in this catalogue
// inspect.
type Context struct {
	Store *resource.Store
}

// Func is the signature every catalogue check satisfies.
type Func func(ctx context.Context, cc *Context, s *step.Execution, params map[string]any) (Result, error)

// Catalogue is the closed set of check types the scheduler can
// dispatch.
var Catalogue = map[string]Func{
	"check-mirror-usage-point": CheckMirrorUsagePoint,
	"check-der-control":        CheckDERControl,
	"check-default-der-control": CheckDefaultDERControl,
}

// Dispatch looks up and runs every check attached to the step,
// combining their verdicts: the step's checks pass only if every one
// of them does.
func Dispatch(ctx context.Context, cc *Context, s *step.Execution) (Result, error) {
	if len(s.Step.Checks) == 0 {
		return passed(""), nil
	}
	var descriptions []string
	for _, spec := range s.Step.Checks {
		fn, ok := Catalogue[spec.Type]
		if !ok {
			return Result{}, fmt.Errorf("check: unknown check type %q", spec.Type)
		}
		result, err := fn(ctx, cc, s, spec.Params)
		if err != nil {
			return Result{}, err
		}
		if !result.Passed {
			return failed("%s", result.Description), nil
		}
		if result.Description != "" {
			descriptions = append(descriptions, result.Description)
		}
	}
	return passed(joinNonEmpty(descriptions)), nil
}

func joinNonEmpty(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "; "
		}
		out += p
	}
	return out
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

func intParamPtr(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
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
