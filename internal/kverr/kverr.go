// Package kverr defines the single error type returned by the storage
// access layer. Every failure source (worker pool, storage engine, codecs,
// caller callbacks, dropped completions) converts into *Error with exactly
// one Kind, keeping the original cause reachable through errors.Unwrap.
package kverr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an *Error. Callers branch on it (or on the matching
// sentinel via errors.Is) to decide retries or protocol-level responses.
type Kind uint8

const (
	KindOther Kind = iota
	KindWorkerRejected
	KindStorage
	KindDecode
	KindCaller
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindWorkerRejected:
		return "worker rejected"
	case KindStorage:
		return "storage failure"
	case KindDecode:
		return "decode failure"
	case KindCaller:
		return "caller failure"
	case KindCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Retryable reports whether retrying the whole operation is safe and may
// succeed: pool saturation and dropped completions are transient.
func (k Kind) Retryable() bool {
	return k == KindWorkerRejected || k == KindCancelled
}

// Sentinels matched by (*Error).Is, one per kind.
var (
	ErrOther          = errors.New("kv: other failure")
	ErrWorkerRejected = errors.New("kv: worker rejected task")
	ErrStorage        = errors.New("kv: storage failure")
	ErrDecode         = errors.New("kv: decode failure")
	ErrCaller         = errors.New("kv: caller failure")
	ErrCancelled      = errors.New("kv: cancelled")
)

var sentinels = [...]error{
	KindOther:          ErrOther,
	KindWorkerRejected: ErrWorkerRejected,
	KindStorage:        ErrStorage,
	KindDecode:         ErrDecode,
	KindCaller:         ErrCaller,
	KindCancelled:      ErrCancelled,
}

// Error is the union of all failures surfaced by the access layer.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "get", "set_u64"
	Err  error  // underlying cause, never nil
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's kind, so errors.Is(err, ErrDecode) works
// on any chain containing a decode *Error.
func (e *Error) Is(target error) bool {
	return int(e.Kind) < len(sentinels) && sentinels[e.Kind] == target
}

func newError(kind Kind, op string, cause error) *Error {
	if cause == nil {
		cause = sentinels[kind]
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Rejected reports that the worker pool could not accept or run a task.
func Rejected(op string, cause error) *Error { return newError(KindWorkerRejected, op, cause) }

// Storage wraps an error reported by the storage engine.
func Storage(op string, cause error) *Error { return newError(KindStorage, op, cause) }

// Decode reports stored bytes that violate the expected codec.
func Decode(op string, cause error) *Error { return newError(KindDecode, op, cause) }

// Caller wraps a failure defined by the calling feature, e.g. an
// identifier collision.
func Caller(op string, cause error) *Error { return newError(KindCaller, op, cause) }

// Cancelled reports a completion that was dropped before it resolved.
func Cancelled(op string, cause error) *Error { return newError(KindCancelled, op, cause) }

// Other builds an ad-hoc failure that fits no other kind.
func Other(op, format string, args ...any) *Error {
	return newError(KindOther, op, fmt.Errorf(format, args...))
}

// From converts any error into the union. An *Error is returned unchanged;
// an *Error wrapped deeper in the chain lends its kind to a new *Error that
// keeps the whole chain as its cause; context expiry maps to KindCancelled;
// everything else is treated as the caller's own failure.
func From(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e == err {
			return e
		}
		return &Error{Kind: e.Kind, Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled(op, err)
	}
	return Caller(op, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindOther
// when there is none. It must not be called with a nil error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}
