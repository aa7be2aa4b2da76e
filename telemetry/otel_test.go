package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/leaflane/storefront-go/core"
)

func newStdoutProvider(t *testing.T) *OTelProvider {
	t.Helper()
	provider, err := NewOTelProvider(core.TelemetryConfig{
		Provider:     "stdout",
		ServiceName:  "storefront-test",
		SamplingRate: 1.0,
	})
	if err != nil {
		t.Fatalf("NewOTelProvider failed: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestProviderImplementsTelemetry(t *testing.T) {
	var _ core.Telemetry = newStdoutProvider(t)
}

func TestStartSpan(t *testing.T) {
	provider := newStdoutProvider(t)

	ctx, span := provider.StartSpan(context.Background(), "api.get_cart")
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}

	// Attribute types flow through the type switch without panicking
	span.SetAttribute("string", "value")
	span.SetAttribute("int", 42)
	span.SetAttribute("int64", int64(42))
	span.SetAttribute("float", 3.14)
	span.SetAttribute("bool", true)
	span.SetAttribute("other", []string{"fallback"})
	span.RecordError(errors.New("test error"))
	span.End()
}

func TestRecordMetricCachesCounters(t *testing.T) {
	provider := newStdoutProvider(t)

	for i := 0; i < 3; i++ {
		provider.RecordMetric("cart.mutations", 1, map[string]string{
			"operation": "add",
			"status":    "ok",
		})
	}
	provider.RecordMetric("checkout.outcomes", 1, nil)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.counters) != 2 {
		t.Errorf("counter cache size = %d, want 2", len(provider.counters))
	}
}

func TestUnknownProviderRejected(t *testing.T) {
	_, err := NewOTelProvider(core.TelemetryConfig{Provider: "jaeger"})
	if err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
	if !core.IsConfigurationError(err) {
		t.Errorf("error should classify as configuration: %v", err)
	}
}

func TestNewHTTPTransport(t *testing.T) {
	if NewHTTPTransport(nil) == nil {
		t.Error("NewHTTPTransport returned nil")
	}
}
