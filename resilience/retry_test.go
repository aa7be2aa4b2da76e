package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leaflane/storefront-go/core"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}
}

// TestRetrySuccessFirstAttempt tests successful execution on first attempt
func TestRetrySuccessFirstAttempt(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

// TestRetryEventualSuccess tests success after transient failures
func TestRetryEventualSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("backend unavailable: %w", core.ErrNetwork)
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected eventual success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

// TestRetryUserErrorAbortsImmediately verifies that validation and
// not-found errors never consume extra attempts
func TestRetryUserErrorAbortsImmediately(t *testing.T) {
	userErrors := []error{
		core.ErrValidation,
		core.ErrNotFound,
		core.ErrPayment,
		&core.StoreError{Op: "api.AddItem", Kind: "validation", Err: core.ErrValidation},
	}

	for _, userErr := range userErrors {
		attempts := 0
		err := Retry(context.Background(), fastRetryConfig(5), func() error {
			attempts++
			return userErr
		})

		if !errors.Is(err, userErr) && err != userErr {
			t.Errorf("Expected original error back, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt for %v, got %d", userErr, attempts)
		}
		if errors.Is(err, core.ErrMaxRetriesExceeded) {
			t.Errorf("user error should not be wrapped in max-retries: %v", err)
		}
	}
}

// TestRetryExhaustion tests that the final error wraps ErrMaxRetriesExceeded
func TestRetryExhaustion(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		return fmt.Errorf("HTTP 503: %w", core.ErrRequestFailed)
	})

	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, core.ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got: %v", err)
	}
	// The exhaustion error remains classified as retryable for outer layers
	if !core.IsRetryable(err) {
		t.Error("exhaustion error should classify as retryable")
	}
}

// TestRetryContextCancellation tests that cancellation stops retrying
func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	config := &RetryConfig{
		MaxAttempts:   10,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- Retry(ctx, config, func() error {
			attempts++
			return fmt.Errorf("down: %w", core.ErrNetwork)
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not return after cancellation")
	}
}

// TestRetryNilConfigUsesDefaults tests the nil-config fallback
func TestRetryNilConfigUsesDefaults(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), nil, func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("Expected success with default config, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

// TestRetryWithCircuitBreaker tests the combined pattern short-circuiting
// once the breaker opens
func TestRetryWithCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(core.CircuitBreakerParams{
		Name: "test",
		Config: core.CircuitBreakerConfig{
			Threshold:        2,
			Timeout:          time.Minute,
			HalfOpenRequests: 1,
		},
	})

	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		if !cb.CanExecute() {
			return core.ErrCircuitBreakerOpen
		}
		attempts++
		failure := fmt.Errorf("down: %w", core.ErrNetwork)
		cb.RecordFailure(failure)
		return failure
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	// The breaker opens after 2 failures; later attempts fail fast and
	// never reach the backend.
	if attempts != 2 {
		t.Errorf("Expected 2 real attempts before the breaker opened, got %d", attempts)
	}
}
