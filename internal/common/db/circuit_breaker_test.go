package db

import (
	"context"
	"errors"
	"testing"
	"time"

	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test-open", 2, time.Second, time.Hour, testLogger())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		err := cb.Call(context.Background(), nil, func(context.Context) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}

	called := false
	err := cb.Call(context.Background(), nil, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, commonerrors.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while the circuit is open")
	}
}

func TestCircuitBreaker_IgnoresExpectedErrors(t *testing.T) {
	cb := NewCircuitBreaker("test-expected", 1, time.Second, time.Hour, testLogger())
	notFound := errors.New("not found")
	isFailure := func(err error) bool { return !errors.Is(err, notFound) }

	for i := 0; i < 3; i++ {
		err := cb.Call(context.Background(), isFailure, func(context.Context) error { return notFound })
		if !errors.Is(err, notFound) {
			t.Fatalf("expected not found to pass through, got %v", err)
		}
	}
}

func TestCircuitBreaker_ResetsAfterWindow(t *testing.T) {
	cb := NewCircuitBreaker("test-reset", 1, time.Second, time.Millisecond, testLogger())
	_ = cb.Call(context.Background(), nil, func(context.Context) error { return errors.New("boom") })

	time.Sleep(5 * time.Millisecond)

	if err := cb.Call(context.Background(), nil, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected breaker to close again, got %v", err)
	}
}
