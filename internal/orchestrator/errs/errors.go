// Package errs centralizes the orchestrator-level error taxonomy so every
// package that returns an orchestrator error imports one place for it.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an OrchestratorError per the error-handling taxonomy:
// capacity, provider, cache-invalidation, contract-violation, teardown.
type Kind string

const (
	KindCapacity          Kind = "capacity"
	KindProvider          Kind = "provider"
	KindCacheInvalidation Kind = "cache_invalidation"
	KindContractViolation Kind = "contract_violation"
	KindTeardown          Kind = "teardown"
)

// Sentinel errors for the fixed set of known conditions.
var (
	ErrQueueFull         = errors.New("orchestrator: queue full")
	ErrLimitReached      = errors.New("orchestrator: limit reached")
	ErrResetting         = errors.New("orchestrator: pool is resetting")
	ErrReentrantHandle   = errors.New("orchestrator: reentrant Handle call")
	ErrAlreadyDisposed   = errors.New("orchestrator: session already disposed")
	ErrLockHeldByOther   = errors.New("orchestrator: window lock held by a different agent")
	ErrWindowMissing     = errors.New("orchestrator: required window no longer exists")
	ErrNotFound          = errors.New("orchestrator: not found")
)

// OrchestratorError wraps a sentinel with its Kind and extra context.
type OrchestratorError struct {
	Kind Kind
	Err  error
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *OrchestratorError) Unwrap() error { return e.Err }

// New builds an OrchestratorError wrapping err under kind.
func New(kind Kind, err error) *OrchestratorError {
	return &OrchestratorError{Kind: kind, Err: err}
}

// Wrapf wraps err with additional context, preserving Kind classification.
func Wrapf(kind Kind, format string, args ...any) *OrchestratorError {
	return &OrchestratorError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err (or something it wraps) is an OrchestratorError
// of the given kind.
func IsKind(err error, kind Kind) bool {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}
