package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBlobNotFound is returned by a BlobStore when the named blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrRetrieval marks markup or data that could not be fetched.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrEvaluation marks a directive or handler expression that raised.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrPersistence marks a context blob that could not be read or written.
	ErrPersistence = errors.New("persistence failed")

	// ErrBarrierTimeout is returned when a render pass does not quiesce in time.
	ErrBarrierTimeout = errors.New("render barrier timed out")
)

// EvaluationError wraps a fault raised while evaluating an expression.
type EvaluationError struct {
	Expr string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func (e *EvaluationError) Is(target error) bool { return target == ErrEvaluation }

// RetrievalError reports a locator that could not be fetched.
type RetrievalError struct {
	Locator string
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieving %s: %v", e.Locator, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

// PersistenceError reports a failed read or write of the context blob.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s context blob %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// BarrierTimeoutError reports how many evaluations were still outstanding
// when the quiescence barrier gave up.
type BarrierTimeoutError struct {
	Pending int
	Timeout time.Duration
}

func (e *BarrierTimeoutError) Error() string {
	return fmt.Sprintf("render barrier timed out after %s with %d pending evaluations", e.Timeout, e.Pending)
}

func (e *BarrierTimeoutError) Is(target error) bool { return target == ErrBarrierTimeout }
