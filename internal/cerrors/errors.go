// Package cerrors defines the closed error-kind taxonomy the execution
// engine uses to decide whether a failure degrades to a warning, is
// retried, or stops the run.
package cerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the five error categories the engine distinguishes.
type Kind string

const (
	// RequestKind covers transport failures, unexpected HTTP status,
	// body parse failures, pagination overflow and refetch mismatches.
	RequestKind Kind = "request"
	// NotificationKind covers any failure talking to the collector
	// service, including an unconfigured subscription alias.
	NotificationKind Kind = "notification"
	// ConfigKind covers a missing/invalid config file or a referenced
	// certificate/key/output directory that does not exist.
	ConfigKind Kind = "config"
	// TestDefinitionKind signals an authoring bug in the procedure
	// itself (unresolvable parameter, unknown alias, mismatched
	// value-list lengths). The run aborts without retry.
	TestDefinitionKind Kind = "test_definition"
	// UnhandledKind wraps any error an action or check did not itself
	// classify.
	UnhandledKind Kind = "unhandled"
)

// Error is the concrete error type carried through the engine. Use
// errors.As to recover it and inspect Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a *Error of the given kind from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is a *Error of the given kind, anywhere in
// its chain.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to UnhandledKind when
// err is not a *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return UnhandledKind
}
