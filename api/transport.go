package api

import (
	"fmt"
	"net/http"

	"github.com/leaflane/storefront-go/core"
	"github.com/leaflane/storefront-go/session"
)

// SessionHeader is the header the backend uses to associate an anonymous
// cart with requests.
const SessionHeader = "X-Session-Id"

// sessionTransport injects the session identifier on every outgoing
// request. The first request of a fresh installation triggers the lazy
// allocation inside the session provider.
type sessionTransport struct {
	base     http.RoundTripper
	provider *session.Provider
}

func newSessionTransport(base http.RoundTripper, provider *session.Provider) *sessionTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &sessionTransport{base: base, provider: provider}
}

// RoundTrip implements http.RoundTripper. The request is cloned before
// mutation, as the RoundTripper contract requires.
func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id, err := t.provider.ID(req.Context())
	if err != nil {
		return nil, fmt.Errorf("resolving session identifier: %w", err)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set(SessionHeader, id)
	clone.Header.Set("Content-Type", "application/json")
	return t.base.RoundTrip(clone)
}

// breakerTransport wraps a RoundTripper with circuit breaker protection.
// Server errors (5xx) count as failures; client errors (4xx) do not.
type breakerTransport struct {
	base    http.RoundTripper
	breaker core.CircuitBreaker
}

func newBreakerTransport(base http.RoundTripper, breaker core.CircuitBreaker) *breakerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &breakerTransport{base: base, breaker: breaker}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var tripErr error

	execErr := t.breaker.Execute(req.Context(), func() error {
		resp, tripErr = t.base.RoundTrip(req)
		if tripErr != nil {
			return fmt.Errorf("transport: %v: %w", tripErr, core.ErrNetwork)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: HTTP %d: %w", resp.StatusCode, core.ErrRequestFailed)
		}
		return nil
	})

	if execErr == core.ErrCircuitBreakerOpen {
		return nil, core.ErrCircuitBreakerOpen
	}
	// A 5xx response trips the breaker but still flows back to the
	// caller, which owns status handling.
	if resp != nil {
		return resp, nil
	}
	return nil, tripErr
}
