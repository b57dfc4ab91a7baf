package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"angrydb/internal/kverr"
	"angrydb/internal/logging"
)

func TestFutureResolveTwicePanics(t *testing.T) {
	f := newFuture[int]("double")
	f.resolve(1, nil)
	defer func() {
		if r := recover(); r != errDoubleResolve {
			t.Fatalf("recover() = %v, want errDoubleResolve", r)
		}
	}()
	f.resolve(2, nil)
}

func TestFutureAbandon(t *testing.T) {
	f := newFuture[int]("dropped")
	if !f.abandon(errors.New("worker gone")) {
		t.Fatal("first abandon should resolve the future")
	}
	if f.abandon(errors.New("again")) {
		t.Fatal("abandon on a resolved future must be a no-op")
	}
	_, err := f.Await(context.Background())
	if !errors.Is(err, kverr.ErrCancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}

	done := Resolved("done", 5)
	if done.abandon(errors.New("late")) {
		t.Fatal("abandon after resolve must be a no-op")
	}
	if v, err := done.Await(context.Background()); err != nil || v != 5 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

func TestFutureAwaitContextExpiry(t *testing.T) {
	f := newFuture[int]("slow")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, kverr.ErrCancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}

	// A late resolution is still accepted and observable.
	f.resolve(9, nil)
	if v, err := f.Await(context.Background()); err != nil || v != 9 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

func TestFailedAndResolved(t *testing.T) {
	cause := kverr.Decode("get_u64", errors.New("bad length"))
	_, err := Failed[uint64]("get_u64", cause).Await(context.Background())
	if err != cause {
		t.Fatalf("got %v", err)
	}
}

func TestMap(t *testing.T) {
	ctx := context.Background()

	src := Resolved("get", "41")
	v, err := Map(src, strconv.Atoi).Await(ctx)
	if err != nil || v != 41 {
		t.Fatalf("v=%d err=%v", v, err)
	}

	called := false
	failed := Failed[string]("get", kverr.Storage("get", errors.New("io")))
	_, err = Map(failed, func(s string) (int, error) {
		called = true
		return 0, nil
	}).Await(ctx)
	if !errors.Is(err, kverr.ErrStorage) {
		t.Fatalf("expected storage error to pass through, got %v", err)
	}
	if called {
		t.Fatal("fn must not run on a failed future")
	}

	_, err = Map(Resolved("get", "x"), func(s string) (int, error) {
		return 0, kverr.Decode("get", errors.New("not a number"))
	}).Await(ctx)
	if !errors.Is(err, kverr.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestMapPanickingTransformResolvesCancelled(t *testing.T) {
	c := logging.CaptureForTest()
	defer c.Restore()

	out := Map(Resolved("get_u64", []byte{1, 2}), func(b []byte) (uint64, error) {
		return uint64(b[8]), nil // out of range
	})
	_, err := out.Await(awaitCtx(t))
	if !errors.Is(err, kverr.ErrCancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
	if !c.Has(slog.LevelError, "transform panicked") {
		t.Error("expected the panic to be logged")
	}
}

func TestZeroFutureAwaitFails(t *testing.T) {
	var f Future[int]
	done := make(chan error, 1)
	go func() {
		_, err := f.Await(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, kverr.ErrCancelled) || !errors.Is(err, errUnset) {
			t.Fatalf("expected Cancelled(errUnset), got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Await on a zero Future blocked")
	}

	var nilFuture *Future[string]
	if _, err := nilFuture.Await(context.Background()); !errors.Is(err, kverr.ErrCancelled) {
		t.Fatalf("nil future: got %v", err)
	}
}

func TestMapWaitsForSource(t *testing.T) {
	p := newTestPool(t, 1, 0)
	release := make(chan struct{})
	src := Run(p, "slow", func() (int, error) {
		<-release
		return 20, nil
	})
	doubled := Map(src, func(v int) (int, error) { return v * 2, nil })

	select {
	case <-doubled.Done():
		t.Fatal("mapped future resolved before its source")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	v, err := doubled.Await(awaitCtx(t))
	if err != nil || v != 40 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}
