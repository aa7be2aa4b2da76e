package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leaflane/storefront-go/core"
)

func newTestBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(core.CircuitBreakerParams{
		Name: "test",
		Config: core.CircuitBreakerConfig{
			Threshold:        threshold,
			Timeout:          timeout,
			HalfOpenRequests: 2,
		},
	})
}

func networkErr() error {
	return fmt.Errorf("connection refused: %w", core.ErrNetwork)
}

// TestCircuitBreakerOpensAfterThreshold tests the closed-to-open transition
func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	if cb.GetState() != "closed" {
		t.Fatalf("initial state = %s, want closed", cb.GetState())
	}

	for i := 0; i < 3; i++ {
		cb.RecordFailure(networkErr())
	}

	if cb.GetState() != "open" {
		t.Errorf("state after %d failures = %s, want open", 3, cb.GetState())
	}
	if cb.CanExecute() {
		t.Error("open breaker should not allow execution")
	}
}

// TestCircuitBreakerExecuteFailsFast tests Execute on an open circuit
func TestCircuitBreakerExecuteFailsFast(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)
	cb.RecordFailure(networkErr())

	calls := 0
	err := cb.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	if err != core.ErrCircuitBreakerOpen {
		t.Errorf("Execute = %v, want ErrCircuitBreakerOpen", err)
	}
	if calls != 0 {
		t.Errorf("function called %d times through open breaker, want 0", calls)
	}
}

// TestCircuitBreakerSuccessResetsCount tests that intermittent successes
// keep the circuit closed
func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	cb.RecordFailure(networkErr())
	cb.RecordFailure(networkErr())
	cb.RecordSuccess()
	cb.RecordFailure(networkErr())
	cb.RecordFailure(networkErr())

	if cb.GetState() != "closed" {
		t.Errorf("state = %s, want closed (success should reset the count)", cb.GetState())
	}
}

// TestCircuitBreakerUserErrorsDoNotTrip tests the error classifier:
// a stream of validation rejections must never open the circuit
func TestCircuitBreakerUserErrorsDoNotTrip(t *testing.T) {
	cb := newTestBreaker(2, time.Minute)

	userErrors := []error{
		core.ErrValidation,
		core.ErrNotFound,
		core.ErrPayment,
		core.ErrConflict,
		context.Canceled,
		context.DeadlineExceeded,
	}
	for _, err := range userErrors {
		cb.RecordFailure(err)
		cb.RecordFailure(err)
	}

	if cb.GetState() != "closed" {
		t.Errorf("state = %s, want closed after only user errors", cb.GetState())
	}
}

// TestCircuitBreakerHalfOpenRecovery tests open -> half-open -> closed
func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	cb.RecordFailure(networkErr())

	if cb.GetState() != "open" {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	time.Sleep(30 * time.Millisecond)

	if cb.GetState() != "half-open" {
		t.Fatalf("state after timeout = %s, want half-open", cb.GetState())
	}
	if !cb.CanExecute() {
		t.Fatal("half-open breaker should allow a probe")
	}

	// Two successful probes close the circuit (HalfOpenRequests = 2)
	cb.RecordSuccess()
	if !cb.CanExecute() {
		t.Fatal("half-open breaker should allow a second probe")
	}
	cb.RecordSuccess()

	if cb.GetState() != "closed" {
		t.Errorf("state after successful probes = %s, want closed", cb.GetState())
	}
}

// TestCircuitBreakerHalfOpenFailureReopens tests that a failed probe
// reopens the circuit
func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	cb.RecordFailure(networkErr())

	time.Sleep(30 * time.Millisecond)

	if !cb.CanExecute() {
		t.Fatal("expected a probe to be allowed after timeout")
	}
	cb.RecordFailure(networkErr())

	if cb.GetState() != "open" {
		t.Errorf("state after failed probe = %s, want open", cb.GetState())
	}
	if cb.CanExecute() {
		t.Error("reopened breaker should not allow execution")
	}
}

// TestCircuitBreakerReset tests the manual reset
func TestCircuitBreakerReset(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)
	cb.RecordFailure(networkErr())

	if cb.GetState() != "open" {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	cb.Reset()

	if cb.GetState() != "closed" {
		t.Errorf("state after reset = %s, want closed", cb.GetState())
	}
	if !cb.CanExecute() {
		t.Error("reset breaker should allow execution")
	}
}

// TestCircuitBreakerCustomClassifier tests overriding the classifier
func TestCircuitBreakerCustomClassifier(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)
	cb.SetErrorClassifier(func(err error) bool { return false })

	cb.RecordFailure(networkErr())
	cb.RecordFailure(networkErr())

	if cb.GetState() != "closed" {
		t.Errorf("state = %s, want closed with a classifier that counts nothing", cb.GetState())
	}
}

// TestCircuitBreakerExecuteLifecycle tests Execute feeding the breaker
func TestCircuitBreakerExecuteLifecycle(t *testing.T) {
	cb := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return networkErr() })
	}

	if cb.GetState() != "open" {
		t.Errorf("state = %s, want open after Execute failures", cb.GetState())
	}
}
