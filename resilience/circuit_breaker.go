package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/leaflane/storefront-go/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier determines which errors count toward the failure threshold
type ErrorClassifier func(error) bool

// DefaultErrorClassifier only counts infrastructure errors, not user errors.
// A stream of validation rejections or payment declines must never take the
// backend connection down.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if core.IsValidation(err) || core.IsNotFound(err) || core.IsPayment(err) {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}
	return true
}

// CircuitBreaker is a consecutive-failure breaker with three states.
// After Threshold consecutive counted failures the circuit opens; once
// Timeout elapses it half-opens and allows HalfOpenRequests probes.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	threshold        int
	timeout          time.Duration
	halfOpenRequests int
	classifier       ErrorClassifier
	logger           core.Logger

	state            CircuitState
	failures         int
	halfOpenInFlight int
	halfOpenPassed   int
	openedAt         time.Time
}

// NewCircuitBreaker creates a breaker from core config params.
func NewCircuitBreaker(params core.CircuitBreakerParams) *CircuitBreaker {
	cfg := params.Config
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 3
	}
	logger := params.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &CircuitBreaker{
		name:             params.Name,
		threshold:        cfg.Threshold,
		timeout:          cfg.Timeout,
		halfOpenRequests: cfg.HalfOpenRequests,
		classifier:       DefaultErrorClassifier,
		logger:           logger,
		state:            StateClosed,
	}
}

// SetErrorClassifier overrides the failure classifier.
func (cb *CircuitBreaker) SetErrorClassifier(fn ErrorClassifier) {
	if fn == nil {
		return
	}
	cb.mu.Lock()
	cb.classifier = fn
	cb.mu.Unlock()
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.CanExecute() {
		return core.ErrCircuitBreakerOpen
	}

	err := fn()
	if err != nil {
		cb.RecordFailure(err)
		return err
	}
	cb.RecordSuccess()
	return nil
}

// CanExecute returns true if the breaker would allow execution.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.timeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenInFlight = 1
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenInFlight < cb.halfOpenRequests {
			cb.halfOpenInFlight++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess feeds a successful call into the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.halfOpenPassed++
		if cb.halfOpenPassed >= cb.halfOpenRequests {
			cb.transition(StateClosed)
		}
	}
}

// RecordFailure feeds a failed call into the breaker. Errors the
// classifier rejects (user errors) reset nothing and trip nothing.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.classifier(err) {
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// GetState returns the current state as a string.
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// An open breaker past its sleep window reports half-open so callers
	// probing state see what CanExecute would decide.
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.timeout {
		return StateHalfOpen.String()
	}
	return cb.state.String()
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures = 0
	cb.halfOpenInFlight = 0
	cb.halfOpenPassed = 0
	if to == StateOpen {
		cb.openedAt = time.Now()
	}

	cb.logger.Info("Circuit breaker state change", map[string]interface{}{
		"operation": "circuit_state_change",
		"breaker":   cb.name,
		"from":      from.String(),
		"to":        to.String(),
	})
}
