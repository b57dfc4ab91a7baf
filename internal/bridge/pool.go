// Package bridge moves blocking operations off the caller's goroutine onto
// a fixed set of worker goroutines and hands back a Future for the result.
//
// The pool is bounded twice: by its worker count and by its queue length.
// When the queue is full a submission is rejected immediately with
// kverr.KindWorkerRejected rather than buffered without limit.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"angrydb/internal/kverr"
	"angrydb/internal/logging"
)

// DefaultQueuePerWorker sizes the queue when none is configured.
const DefaultQueuePerWorker = 64

var (
	ErrPoolSaturated = errors.New("worker pool saturated")
	ErrPoolClosed    = errors.New("worker pool shut down")
)

var logger = logging.For("bridge")

// task is a unit of work consumed exactly once by a worker. If it is never
// run, or run panics, abandon resolves its future as cancelled.
type task struct {
	op      string
	run     func()
	abandon func(cause error)
}

// Stats is a point-in-time view of pool counters.
type Stats struct {
	Workers   int
	Queued    int
	Submitted uint64
	Rejected  uint64
	Completed uint64
	Panicked  uint64
	Abandoned uint64
}

// Pool is a fixed-size set of worker goroutines fed by a bounded queue.
type Pool struct {
	size  int
	queue chan task
	stop  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex // guards closed against concurrent submit
	closed bool

	submitted atomic.Uint64
	rejected  atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
	abandoned atomic.Uint64
}

// NewPool starts size workers behind a queue of the given capacity.
// size <= 0 uses the available parallelism; queue <= 0 uses
// size*DefaultQueuePerWorker.
func NewPool(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if queue <= 0 {
		queue = size * DefaultQueuePerWorker
	}
	p := &Pool{
		size:  size,
		queue: make(chan task, queue),
		stop:  make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	logger.Debug("worker pool started", "workers", size, "queue", queue)
	return p
}

// Run submits fn to the pool and returns immediately. The future resolves
// with fn's result; a non-nil error from fn is converted with kverr.From.
// A saturated or shut-down pool yields a future already failed with
// kverr.KindWorkerRejected.
func Run[T any](p *Pool, op string, fn func() (T, error)) *Future[T] {
	f := newFuture[T](op)
	t := task{
		op: op,
		run: func() {
			v, err := fn()
			f.resolve(v, kverr.From(op, err))
		},
		abandon: func(cause error) { f.abandon(cause) },
	}
	if err := p.submit(t); err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}

func (p *Pool) submit(t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.rejected.Add(1)
		return kverr.Rejected(t.op, ErrPoolClosed)
	}
	select {
	case p.queue <- t:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return kverr.Rejected(t.op, ErrPoolSaturated)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		// Prefer stopping over picking up more queued work.
		select {
		case <-p.stop:
			return
		default:
		}
		select {
		case <-p.stop:
			return
		case t := <-p.queue:
			p.execute(id, t)
		}
	}
}

func (p *Pool) execute(id int, t task) {
	defer func() {
		if r := recover(); r != nil {
			if r == any(errDoubleResolve) {
				panic(r)
			}
			p.panicked.Add(1)
			logger.Error("task panicked", "op", t.op, "worker", id, "panic", r)
			t.abandon(fmt.Errorf("task panicked: %v", r))
		}
	}()
	t.run()
	p.completed.Add(1)
}

// Shutdown stops accepting work and waits for running tasks to finish.
// Tasks still queued are never run; their futures resolve as cancelled.
// If ctx ends first, queued tasks are abandoned anyway and ctx.Err() is
// returned; running tasks keep going in the background.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.stop)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if n := p.drain(); n > 0 {
		logger.Warn("abandoned queued tasks on shutdown", "count", n)
	}
	return err
}

func (p *Pool) drain() int {
	n := 0
	for {
		select {
		case t := <-p.queue:
			t.abandon(ErrPoolClosed)
			p.abandoned.Add(1)
			n++
		default:
			return n
		}
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Stats returns the current pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.size,
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Abandoned: p.abandoned.Load(),
	}
}
