package kverr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConstructorsKeepCause(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *Error
		kind     Kind
		sentinel error
	}{
		{"rejected", Rejected("get", cause), KindWorkerRejected, ErrWorkerRejected},
		{"storage", Storage("get", cause), KindStorage, ErrStorage},
		{"decode", Decode("get", cause), KindDecode, ErrDecode},
		{"caller", Caller("get", cause), KindCaller, ErrCaller},
		{"cancelled", Cancelled("get", cause), KindCancelled, ErrCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("cause should be reachable through errors.Is")
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			for _, other := range sentinels {
				if other != tt.sentinel && errors.Is(tt.err, other) {
					t.Errorf("%v should not match %v", tt.err, other)
				}
			}
		})
	}
}

func TestNilCauseUsesSentinel(t *testing.T) {
	err := Cancelled("run", nil)
	if err.Err != ErrCancelled {
		t.Fatalf("Err = %v, want ErrCancelled", err.Err)
	}
}

func TestOtherFormats(t *testing.T) {
	err := Other("scan", "unexpected state %d", 7)
	if err.Kind != KindOther {
		t.Fatalf("Kind = %v", err.Kind)
	}
	if !strings.Contains(err.Error(), "unexpected state 7") {
		t.Errorf("message: %q", err.Error())
	}
}

func TestErrorMessage(t *testing.T) {
	err := Decode("get_u64", errors.New("want 8 bytes, got 3"))
	want := "get_u64: decode failure: want 8 bytes, got 3"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	noOp := Storage("", errors.New("disk"))
	if noOp.Error() != "storage failure: disk" {
		t.Errorf("Error() = %q", noOp.Error())
	}
}

func TestFrom(t *testing.T) {
	if From("x", nil) != nil {
		t.Fatal("From(nil) should be nil")
	}

	orig := Storage("set", errors.New("io"))
	if got := From("other-op", orig); got != orig {
		t.Errorf("From should return an *Error unchanged, got %v", got)
	}

	if KindOf(From("x", context.Canceled)) != KindCancelled {
		t.Error("context.Canceled should map to KindCancelled")
	}
	if KindOf(From("x", context.DeadlineExceeded)) != KindCancelled {
		t.Error("context.DeadlineExceeded should map to KindCancelled")
	}

	collision := errors.New("identifier already present")
	got := From("shorten", collision)
	if KindOf(got) != KindCaller {
		t.Errorf("plain error: KindOf = %v, want caller", KindOf(got))
	}
	if !errors.Is(got, collision) {
		t.Error("plain error cause lost")
	}
}

func TestFromKeepsWrappingContext(t *testing.T) {
	cause := errors.New("disk gone")
	inner := Storage("set", cause)
	wrapped := fmt.Errorf("reserving paste id p_7: %w", inner)

	got := From("create_paste", wrapped)
	if !errors.Is(got, wrapped) {
		t.Fatal("the wrapping error must stay in the chain")
	}
	if !errors.Is(got, inner) || !errors.Is(got, cause) {
		t.Fatal("the inner *Error and its cause must stay in the chain")
	}
	if KindOf(got) != KindStorage || !errors.Is(got, ErrStorage) {
		t.Fatalf("KindOf = %v, want the inner kind", KindOf(got))
	}
	var e *Error
	if !errors.As(got, &e) {
		t.Fatal("result should be an *Error")
	}
	if e.Op != "create_paste" {
		t.Fatalf("outer Op = %q, want create_paste", e.Op)
	}
	if !strings.Contains(got.Error(), "reserving paste id p_7") {
		t.Errorf("message lost context: %q", got.Error())
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("foreign")) != KindOther {
		t.Error("foreign errors classify as KindOther")
	}
}

func TestRetryable(t *testing.T) {
	retryable := map[Kind]bool{
		KindOther:          false,
		KindWorkerRejected: true,
		KindStorage:        false,
		KindDecode:         false,
		KindCaller:         false,
		KindCancelled:      true,
	}
	for k, want := range retryable {
		if k.Retryable() != want {
			t.Errorf("%v.Retryable() = %v, want %v", k, k.Retryable(), want)
		}
	}
}
