package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/action"
	"github.com/cactuslab/cactus-client-go/internal/check"
	"github.com/cactuslab/cactus-client-go/internal/config"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/step"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

func newTestClient() *ClientResources {
	store := resource.NewStore()
	return &ClientResources{
		Action: &action.Context{Store: store, Warnings: tracker.NewWarningTracker(), Progress: tracker.NewProgressTracker()},
		Check:  &check.Context{Store: store},
	}
}

func newTestRunner(q *Queue, clients map[string]*ClientResources) (*Runner, *tracker.ProgressTracker, *tracker.WarningTracker) {
	progress := tracker.NewProgressTracker()
	warnings := tracker.NewWarningTracker()
	r := NewRunner(q, clients, progress, warnings, 0, nil)
	r.Sleep = func(time.Duration) {}
	return r, progress, warnings
}

func TestRunnerPassingStepRecordsResult(t *testing.T) {
	s := &step.Step{ID: "s1", OwningClient: "c1", Action: step.Spec{Type: "no-op"}}
	progress := tracker.NewProgressTracker()
	progress.Register(s)
	q := NewQueue()
	q.Add(step.NewExecution(s))

	clients := map[string]*ClientResources{"c1": newTestClient()}
	r, _, warnings := newTestRunner(q, clients)
	r.Progress = progress

	if !r.Run(context.Background()) {
		t.Fatal("Run returned false for a passing procedure")
	}
	p, ok := progress.Progress("s1")
	if !ok || p.Result == nil || !p.Result.IsPassed() {
		t.Fatalf("progress = %+v, want a passing result", p)
	}
	if warnings.Count() != 0 {
		t.Fatalf("warnings = %d, want 0", warnings.Count())
	}
}

func TestRunnerFailingStepStopsRun(t *testing.T) {
	s1 := &step.Step{ID: "s1", OwningClient: "c1", Primacy: 1,
		Action: step.Spec{Type: "no-op"},
		Checks: []step.Spec{{Type: "check-mirror-usage-point", Params: map[string]any{"matches": true}}},
	}
	s2 := &step.Step{ID: "s2", OwningClient: "c1", Primacy: 2, Action: step.Spec{Type: "no-op"}}
	progress := tracker.NewProgressTracker()
	progress.Register(s1)
	progress.Register(s2)

	q := NewQueue()
	q.Add(step.NewExecution(s1))
	q.Add(step.NewExecution(s2))

	clients := map[string]*ClientResources{"c1": newTestClient()}
	r, _, _ := newTestRunner(q, clients)
	r.Progress = progress

	if !r.Run(context.Background()) {
		t.Fatal("Run returned false for a failing check (no MirrorUsagePoint stored); only a dispatch error leaves the run incomplete")
	}
	p1, _ := progress.Progress("s1")
	if p1.Result == nil || p1.Result.Passed {
		t.Fatalf("s1 result = %+v, want a recorded failure", p1.Result)
	}
	p2, _ := progress.Progress("s2")
	if p2.Result != nil {
		t.Fatalf("s2 result = %+v, want nil (run must stop before reaching it)", p2.Result)
	}
}

func TestRunnerRepeatUntilPassRetries(t *testing.T) {
	s := &step.Step{ID: "s1", OwningClient: "c1",
		Action: step.Spec{Type: "no-op"},
		Checks: []step.Spec{{Type: "check-mirror-usage-point", Params: map[string]any{"matches": true}}},
		RepeatUntilPass: true,
	}
	q := NewQueue()
	exec := step.NewExecution(s)
	clients := map[string]*ClientResources{"c1": newTestClient()}
	r, _, _ := newTestRunner(q, clients)

	if r.runOne(context.Background(), exec) != true {
		t.Fatal("runOne returned false for a retryable failure")
	}
	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1 (failure re-enqueued)", q.Len())
	}
	requeued, _ := q.Pop(time.Now())
	if requeued.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", requeued.Attempts)
	}
	if requeued.NotBefore != nil {
		t.Fatal("NotBefore should be cleared on a repeat-until-pass retry")
	}
}

func TestRunnerActionRepeatReenqueues(t *testing.T) {
	action.Catalogue["test-repeat-once"] = func(ctx context.Context, ac *action.Context, s *step.Execution, params map[string]any) (action.Result, error) {
		if s.RepeatNumber == 0 {
			notBefore := time.Now()
			return action.Result{Completed: true, Repeat: true, NotBefore: &notBefore}, nil
		}
		return action.Done("done"), nil
	}
	defer delete(action.Catalogue, "test-repeat-once")

	s := &step.Step{ID: "s1", OwningClient: "c1", Action: step.Spec{Type: "test-repeat-once"}}
	progress := tracker.NewProgressTracker()
	progress.Register(s)
	q := NewQueue()
	q.Add(step.NewExecution(s))
	clients := map[string]*ClientResources{"c1": newTestClient()}
	r, _, _ := newTestRunner(q, clients)
	r.Progress = progress

	if !r.Run(context.Background()) {
		t.Fatal("Run returned false")
	}
	p, _ := progress.Progress("s1")
	if len(p.Completions) != 2 {
		t.Fatalf("completions = %d, want 2 (initial + one repeat)", len(p.Completions))
	}
	if !p.Result.IsPassed() {
		t.Fatalf("final result = %+v, want passed", p.Result)
	}
}

func TestValidateResourcesLogsInvalidMRID(t *testing.T) {
	store := resource.NewStore()
	_, err := store.Append(sep2.KindDERControl, nil, sep2.DERControl{Href: "/derc/1", MRID: "not-a-valid-mrid"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	warnings := tracker.NewWarningTracker()

	ValidateResources(map[string]*resource.Store{"c1": store}, config.ServerConfig{ExpectedServerPEN: 12345}, warnings)

	if warnings.Count() != 1 {
		t.Fatalf("warnings = %d, want 1", warnings.Count())
	}
}

func TestValidateResourcesExemptsMirrorUsagePoint(t *testing.T) {
	store := resource.NewStore()
	_, err := store.Append(sep2.KindMirrorUsagePoint, nil, sep2.MirrorUsagePoint{Href: "/mup/1", MRID: "not-server-minted"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	warnings := tracker.NewWarningTracker()

	ValidateResources(map[string]*resource.Store{"c1": store}, config.ServerConfig{ExpectedServerPEN: 12345}, warnings)

	if warnings.Count() != 0 {
		t.Fatalf("warnings = %d, want 0 (MirrorUsagePoint is exempt)", warnings.Count())
	}
}
