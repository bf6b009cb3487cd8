package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire blocks until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 5, InitialBackoff: time.Millisecond}
	notFound := &domain.ErrNotFound{Resource: "plan", ID: "p1"}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return resilience.Permanent(notFound)
	})

	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}
	if !errors.Is(err, notFound) {
		t.Errorf("expected wrapped not-found, got %v", err)
	}
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2}

	calls := 0
	_ = resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return errors.New("flaky")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestGuard_UnwrapsPermanent(t *testing.T) {
	g := resilience.NewGuard("test", resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 1}, zap.NewNop())

	err := g.Do(context.Background(), func(context.Context) error {
		return resilience.Permanent(&domain.ErrNotFound{Resource: "plan", ID: "p1"})
	})

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var perm *resilience.PermanentError
	if errors.As(err, &perm) {
		t.Error("guard must strip the permanent marker")
	}
}

func TestGuard_OpensCircuit(t *testing.T) {
	g := resilience.NewGuard("flaky-backend", resilience.Config{MaxConcurrency: 2}, zap.NewNop())
	boom := errors.New("connection refused")

	for i := 0; i < 5; i++ {
		if err := g.Do(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}

	err := g.Do(context.Background(), func(context.Context) error { return nil })
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) || open.Service != "flaky-backend" {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestGuard_PermanentErrorsDoNotTrip(t *testing.T) {
	g := resilience.NewGuard("rows", resilience.Config{MaxConcurrency: 1}, zap.NewNop())

	for i := 0; i < 10; i++ {
		_ = g.Do(context.Background(), func(context.Context) error {
			return resilience.Permanent(errors.New("bad request"))
		})
	}

	if err := g.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("breaker should stay closed, got %v", err)
	}
}
