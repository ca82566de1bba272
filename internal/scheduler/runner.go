// Package scheduler implements the step-execution queue and the main
// execution loop: a priority queue of step-executions ordered by
// primacy, drained by a single cooperative loop that dispatches each
// entry's action and checks, decides whether to repeat, retry, or
// stop the run, and finally runs a resource-level mRID validation
// pass across every client's store.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/action"
	"github.com/cactuslab/cactus-client-go/internal/check"
	"github.com/cactuslab/cactus-client-go/internal/config"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2util"
	"github.com/cactuslab/cactus-client-go/internal/step"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

// ClientResources pairs one client alias with the dependencies the
// loop needs to dispatch actions and checks against it.
type ClientResources struct {
	Action *action.Context
	Check  *check.Context
}

// Runner drains a Queue, dispatching each popped step-execution's
// action and check in turn. It owns no client state itself — every
// action/check runs against the ClientResources the caller supplies,
// keyed by client alias.
type Runner struct {
	Queue       *Queue
	Clients     map[string]*ClientResources
	Progress    *tracker.ProgressTracker
	Warnings    *tracker.WarningTracker
	RepeatDelay time.Duration
	Now         func() time.Time
	Sleep       func(time.Duration)
	Logger      *slog.Logger
}

// NewRunner builds a Runner with sane defaults for Now, Sleep and
// Logger (real clock, real sleep, slog.Default).
func NewRunner(queue *Queue, clients map[string]*ClientResources, progress *tracker.ProgressTracker, warnings *tracker.WarningTracker, repeatDelay time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Queue:       queue,
		Clients:     clients,
		Progress:    progress,
		Warnings:    warnings,
		RepeatDelay: repeatDelay,
		Now:         time.Now,
		Sleep:       time.Sleep,
		Logger:      logger,
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) sleep(d time.Duration) {
	if r.Sleep != nil {
		r.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Run drains the queue to completion or until a step fails without
// repeat-until-pass, returning whether the run completed (no
// uncaught exception escaped the loop — a failing step still counts
// as "completed", only a dispatch error does not).
func (r *Runner) Run(ctx context.Context) bool {
	for r.Queue.Len() > 0 {
		upcoming, ok := r.Queue.PeekNextNoWait(r.now())
		if !ok {
			break
		}
		if delay := upcoming.ExecutableDelay(r.now()); delay > 0 {
			r.sleep(delay)
			continue
		}
		current, ok := r.Queue.Pop(r.now())
		if !ok {
			continue
		}
		if !r.runOne(ctx, current) {
			// A final step failure records a result before stopping the
			// run; a dispatch error stops it without one.
			p, ok := r.Progress.Progress(current.Step.ID)
			return ok && p.Result != nil
		}
	}
	return true
}

// runOne executes a single popped step-execution, returning false
// only when the run must stop entirely (an uncaught dispatch error,
// or a final, non-retried failure).
func (r *Runner) runOne(ctx context.Context, current *step.Execution) bool {
	log := r.Logger.With("step", current.Step.ID, "repeat", current.RepeatNumber, "attempt", current.Attempts)

	actionClient, ok := r.Clients[current.OwningClientAlias]
	if !ok {
		log.Error("no client resources for owning client", "client", current.OwningClientAlias)
		return false
	}
	checkClient := actionClient
	if current.ResourceOwningClientAlias != "" && current.ResourceOwningClientAlias != current.OwningClientAlias {
		checkClient, ok = r.Clients[current.ResourceOwningClientAlias]
		if !ok {
			log.Error("no client resources for resource-owning client", "client", current.ResourceOwningClientAlias)
			return false
		}
	}

	actionResult, err := action.Dispatch(ctx, actionClient.Action, current)
	if err != nil {
		log.Error("action dispatch failed", "error", err)
		r.Warnings.Log(fmt.Sprintf("step %s: action error: %v", current.Step.ID, err), current)
		return false
	}

	checkResult, err := check.Dispatch(ctx, checkClient.Check, current)
	if err != nil {
		log.Error("check dispatch failed", "error", err)
		r.Warnings.Log(fmt.Sprintf("step %s: check error: %v", current.Step.ID, err), current)
		return false
	}

	passed := actionResult.Completed && checkResult.Passed
	description := actionResult.Description
	if checkResult.Description != "" {
		description = description + "; " + checkResult.Description
	}

	r.Progress.LogCompletion(tracker.Completion{
		StepID:       current.Step.ID,
		RepeatNumber: current.RepeatNumber,
		Attempts:     current.Attempts,
		Passed:       passed,
		Description:  description,
	})

	if passed && actionResult.Repeat {
		clone := current.Clone()
		clone.RepeatNumber++
		clone.Attempts = 0
		clone.NotBefore = actionResult.NotBefore
		r.Queue.Add(clone)
		return true
	}

	if !passed && current.Step.RepeatUntilPass {
		clone := current.Clone()
		clone.Attempts++
		clone.NotBefore = nil
		r.Queue.Add(clone)
		log.Debug("step failed, retrying", "description", description)
		r.sleep(r.RepeatDelay)
		return true
	}

	r.Progress.SetResult(current.Step.ID, &tracker.Result{Passed: passed, Description: description, Executed: true})
	if !passed {
		log.Warn("step failed, stopping run", "description", description)
		return false
	}
	return true
}

// ValidateResources runs the resource-level mRID validation pass
// across every store, logging one warning per resource whose mRID
// fails the server-PEN contract.
func ValidateResources(stores map[string]*resource.Store, serverConfig config.ServerConfig, warnings *tracker.WarningTracker) {
	for alias, store := range stores {
		for _, stored := range store.Resources() {
			if sep2util.IsInvalidResource(stored.Kind, stored.Payload, serverConfig.ExpectedServerPEN) {
				warnings.Log(fmt.Sprintf("client %s: %s resource has an invalid mRID for server PEN %d", alias, stored.Kind, serverConfig.ExpectedServerPEN), stored)
			}
		}
	}
}
