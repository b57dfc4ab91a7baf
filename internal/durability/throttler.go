// Package durability decides when the storage engine is flushed.
//
// Writers report completed writes with NotifyWrite; a single goroutine
// (Run) owns the last-flush timestamp and flushes only when at least the
// minimum interval has passed since the previous flush. Writes inside the
// interval are not flushed on their own: a crash may lose up to one
// interval of acknowledged writes in exchange for write throughput.
package durability

import (
	"sync"
	"sync/atomic"
	"time"

	"angrydb/internal/logging"
)

var logger = logging.For("durability")

// Flusher forces recently written data to stable storage.
type Flusher interface {
	Flush() error
}

// Stats counts notifications by outcome.
type Stats struct {
	Received  uint64 // notifications handled by the loop
	Coalesced uint64 // notifications folded into one already pending
	Flushed   uint64 // flush attempts, successful or not
	Skipped   uint64 // notifications inside the interval
	Failed    uint64 // flush attempts that returned an error
}

// Option configures a Throttler.
type Option func(*Throttler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Throttler) { t.now = now }
}

// Throttler serializes flush decisions for one storage engine.
type Throttler struct {
	flusher     Flusher
	minInterval time.Duration
	now         func() time.Time

	// notify holds at most one pending notification; a pending one already
	// guarantees the loop re-evaluates, so further ones are coalesced.
	notify   chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once

	// owned by the Run goroutine
	lastFlush time.Time
	dirty     bool

	received  atomic.Uint64
	coalesced atomic.Uint64
	flushed   atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
}

// New creates a throttler. The flush clock starts at construction time, so
// the first flush happens no earlier than minInterval from now. Call Run()
// in a goroutine to start it.
func New(f Flusher, minInterval time.Duration, opts ...Option) *Throttler {
	t := &Throttler{
		flusher:     f,
		minInterval: minInterval,
		now:         time.Now,
		notify:      make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	t.lastFlush = t.now()
	return t
}

// NotifyWrite reports that a write completed. It never blocks and never
// fails; the notification is a hint.
func (t *Throttler) NotifyWrite() {
	select {
	case t.notify <- struct{}{}:
	default:
		t.coalesced.Add(1)
	}
}

// Run is the throttler's main loop. It handles one notification at a time
// and blocks until Stop() is called. Calling Run again, or after Stop,
// returns immediately.
func (t *Throttler) Run() {
	t.runOnce.Do(t.loop)
}

func (t *Throttler) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.notify:
			t.handle()
		case <-t.stop:
			t.shutdown()
			return
		}
	}
}

// Stop ends the loop and waits for it to exit. If writes were skipped since
// the last flush, one final flush runs first. When Run was never started,
// Stop performs that shutdown itself.
func (t *Throttler) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	// Blocks until a running loop exits; otherwise claims the loop slot.
	t.runOnce.Do(func() {
		defer close(t.done)
		t.shutdown()
	})
	<-t.done
}

// Stats returns the current counters.
func (t *Throttler) Stats() Stats {
	return Stats{
		Received:  t.received.Load(),
		Coalesced: t.coalesced.Load(),
		Flushed:   t.flushed.Load(),
		Skipped:   t.skipped.Load(),
		Failed:    t.failed.Load(),
	}
}

func (t *Throttler) handle() {
	t.received.Add(1)
	if t.now().Sub(t.lastFlush) < t.minInterval {
		t.skipped.Add(1)
		t.dirty = true
		return
	}
	t.flush("interval")
}

func (t *Throttler) shutdown() {
	// A notification may still be sitting in the mailbox.
	select {
	case <-t.notify:
		t.received.Add(1)
		t.dirty = true
	default:
	}
	if t.dirty {
		t.flush("shutdown")
	}
}

// flush runs the flusher and records the attempt. The timestamp advances
// even when the flush fails so a broken disk does not cause a flush on
// every write.
func (t *Throttler) flush(reason string) {
	start := t.now()
	err := t.flusher.Flush()
	t.lastFlush = t.now()
	t.dirty = false
	t.flushed.Add(1)
	if err != nil {
		t.failed.Add(1)
		logger.Warn("flush failed", "reason", reason, "err", err)
		return
	}
	logger.Debug("flushed", "reason", reason, "took", t.lastFlush.Sub(start))
}
