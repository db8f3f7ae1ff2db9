package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapTagsWithMarker(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrTransport, "comfy", "submit", "retries exhausted", cause)

	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err %v should match ErrTransport", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("err %v should match its cause", err)
	}
	want := "transport error: comfy: submit: retries exhausted: connection refused"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrNotFound, "comfy", "locate output", "no file with prefix x", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err %v should match ErrNotFound", err)
	}
	if errors.Unwrap(errors.Unwrap(err)) != nil {
		t.Fatalf("unexpected nested cause in %v", err)
	}
}

func TestWrapDefaultsToTransport(t *testing.T) {
	err := Wrap(nil, "telegram", "send message", "", nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("nil marker should default to transport, got %v", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Wrap(ErrTransport, "telegram", "poll", "", nil), true},
		{Wrap(ErrTimeout, "comfy", "await", "", nil), true},
		{Wrap(ErrBackend, "comfy", "execute", "", nil), false},
		{Wrap(ErrValidation, "comfy", "submit", "", nil), false},
		{Wrap(ErrConfiguration, "config", "load", "", nil), false},
		{Wrap(ErrInsufficientBalance, "ledger", "debit", "", nil), false},
		{fmt.Errorf("plain error"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestContextAnnotations(t *testing.T) {
	ctx := WithRequestID(WithChatID(WithTaskSeq(context.Background(), 7), 42), "run-1")

	if seq, ok := TaskSeqFromContext(ctx); !ok || seq != 7 {
		t.Errorf("task seq = %d ok=%v", seq, ok)
	}
	if chat, ok := ChatIDFromContext(ctx); !ok || chat != 42 {
		t.Errorf("chat id = %d ok=%v", chat, ok)
	}
	if id, ok := RequestIDFromContext(ctx); !ok || id != "run-1" {
		t.Errorf("request id = %q ok=%v", id, ok)
	}
	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Error("empty context should carry no request id")
	}
}
