package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies Firestore failures into repository semantics.
type ErrorKind int

const (
	// KindUnknown covers failures with no repository-level meaning.
	KindUnknown ErrorKind = iota
	// KindNotFound indicates a missing document.
	KindNotFound
	// KindConflict indicates a contended or precondition-violating write.
	KindConflict
	// KindUnavailable indicates a transient backend outage.
	KindUnavailable
)

// Error implements repositories.RepositoryError for Firestore backed repositories.
type Error struct {
	op   string
	kind ErrorKind
	err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Kind returns the repository classification of the error.
func (e *Error) Kind() ErrorKind {
	if e == nil {
		return KindUnknown
	}
	return e.kind
}

// IsNotFound reports whether the error represents a missing document.
func (e *Error) IsNotFound() bool { return e.Kind() == KindNotFound }

// IsConflict reports whether the error represents a conflicting update.
func (e *Error) IsConflict() bool { return e.Kind() == KindConflict }

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool { return e.Kind() == KindUnavailable }

// NotFoundError builds a not-found repository error for op.
func NotFoundError(op string, err error) *Error {
	return &Error{op: op, kind: KindNotFound, err: err}
}

// ConflictError builds a conflict repository error for op.
func ConflictError(op string, err error) *Error {
	return &Error{op: op, kind: KindConflict, err: err}
}

func classify(err error) ErrorKind {
	switch status.Code(err) {
	case codes.NotFound:
		return KindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return KindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// WrapError annotates Firestore errors with repository semantics. Context
// cancellations are passed through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}
	return &Error{op: op, kind: classify(err), err: err}
}
