package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"angrydb/internal/kverr"
)

// errUnset is reported by Await on a Future not built by this package.
var errUnset = errors.New("bridge: future was never started")

// errDoubleResolve is raised when a future is resolved twice. It is never
// recovered: a second delivery means the completion plumbing is broken.
var errDoubleResolve = errors.New("bridge: future resolved twice")

// Future is the read side of a one-shot completion. It resolves exactly
// once, either with a value or with a *kverr.Error. Only Run, Resolved,
// Failed and Map produce usable futures; awaiting a zero Future fails with
// kverr.KindCancelled.
type Future[T any] struct {
	op       string
	done     chan struct{}
	resolved atomic.Bool
	val      T
	err      error
}

func newFuture[T any](op string) *Future[T] {
	return &Future[T]{op: op, done: make(chan struct{})}
}

// Resolved returns a future already completed with v.
func Resolved[T any](op string, v T) *Future[T] {
	f := newFuture[T](op)
	f.resolve(v, nil)
	return f
}

// Failed returns a future already completed with err.
func Failed[T any](op string, err error) *Future[T] {
	f := newFuture[T](op)
	var zero T
	f.resolve(zero, kverr.From(op, err))
	return f
}

// Done is closed once the future has resolved. It is nil for a zero Future.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx ends. Giving up on ctx does
// not cancel the underlying task; its result is simply discarded.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	if f == nil || f.done == nil {
		var zero T
		op := ""
		if f != nil {
			op = f.op
		}
		return zero, kverr.Cancelled(op, errUnset)
	}
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, kverr.Cancelled(f.op, ctx.Err())
	}
}

func (f *Future[T]) resolve(v T, err error) {
	if !f.resolved.CompareAndSwap(false, true) {
		panic(errDoubleResolve)
	}
	if err != nil {
		var zero T
		v = zero
	}
	f.val, f.err = v, err
	close(f.done)
}

// abandon resolves f with KindCancelled unless it has already resolved.
func (f *Future[T]) abandon(cause error) bool {
	if !f.resolved.CompareAndSwap(false, true) {
		return false
	}
	f.err = kverr.Cancelled(f.op, cause)
	close(f.done)
	return true
}

// Map returns a future resolving to fn applied to f's value. Errors from f
// pass through untouched and fn is not called; errors from fn are
// converted with kverr.From. A panic in fn resolves the result as
// cancelled, like a panicking pool task.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := newFuture[U](f.op)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if r == any(errDoubleResolve) {
					panic(r)
				}
				logger.Error("transform panicked", "op", f.op, "panic", r)
				out.abandon(fmt.Errorf("transform panicked: %v", r))
			}
		}()
		<-f.done
		if f.err != nil {
			var zero U
			out.resolve(zero, f.err)
			return
		}
		v, err := fn(f.val)
		out.resolve(v, kverr.From(f.op, err))
	}()
	return out
}
