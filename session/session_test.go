package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leaflane/storefront-go/core"
)

func TestGenerateFormat(t *testing.T) {
	id := Generate()

	if !strings.HasPrefix(id, "session_") {
		t.Fatalf("identifier %q missing prefix", id)
	}
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 {
		t.Fatalf("identifier %q should have three parts", id)
	}
	if len(parts[2]) != suffixLength {
		t.Errorf("suffix length = %d, want %d", len(parts[2]), suffixLength)
	}
	if !IsValid(id) {
		t.Errorf("generated identifier %q should be valid", id)
	}
}

func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate()
		if seen[id] {
			t.Fatalf("duplicate identifier generated: %q", id)
		}
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"session_1724800000000_ab12cd34e", true},
		{"session_1_x", true},
		{"", false},
		{"session_", false},
		{"session_123", false},
		{"session__abc", false},
		{"something_else_entirely", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.id); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestProviderLazyAllocation(t *testing.T) {
	store := core.NewMemoryStore()
	provider := NewProvider(store)
	ctx := context.Background()

	// Nothing persisted before first use
	persisted, err := store.Get(ctx, DefaultKey)
	if err != nil || persisted != "" {
		t.Fatalf("store should be empty before first ID call, got (%q, %v)", persisted, err)
	}

	id, err := provider.ID(ctx)
	if err != nil {
		t.Fatalf("ID failed: %v", err)
	}
	if !IsValid(id) {
		t.Fatalf("allocated identifier %q is not valid", id)
	}

	// Identifier is now persisted and stable
	persisted, err = store.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if persisted != id {
		t.Errorf("persisted = %q, want %q", persisted, id)
	}

	again, err := provider.ID(ctx)
	if err != nil {
		t.Fatalf("second ID failed: %v", err)
	}
	if again != id {
		t.Errorf("identifier changed between calls: %q then %q", id, again)
	}
}

func TestProviderReusesStoredIdentifier(t *testing.T) {
	store := core.NewMemoryStore()
	ctx := context.Background()

	existing := "session_1724800000000_abcdefghi"
	if err := store.Set(ctx, DefaultKey, existing, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	provider := NewProvider(store)
	id, err := provider.ID(ctx)
	if err != nil {
		t.Fatalf("ID failed: %v", err)
	}
	if id != existing {
		t.Errorf("ID = %q, want stored identifier %q", id, existing)
	}
}

func TestProviderReset(t *testing.T) {
	store := core.NewMemoryStore()
	provider := NewProvider(store)
	ctx := context.Background()

	first, err := provider.ID(ctx)
	if err != nil {
		t.Fatalf("ID failed: %v", err)
	}

	if err := provider.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	second, err := provider.ID(ctx)
	if err != nil {
		t.Fatalf("ID after reset failed: %v", err)
	}
	if second == first {
		t.Errorf("identifier should change after reset, got %q twice", first)
	}
}

func TestProviderCustomKeyAndTTL(t *testing.T) {
	store := core.NewMemoryStore()
	provider := NewProvider(store, WithKey("customKey"), WithTTL(time.Hour))
	ctx := context.Background()

	id, err := provider.ID(ctx)
	if err != nil {
		t.Fatalf("ID failed: %v", err)
	}

	persisted, err := store.Get(ctx, "customKey")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if persisted != id {
		t.Errorf("identifier should be stored under the custom key")
	}
}

func TestProviderNilStoreFallsBack(t *testing.T) {
	provider := NewProvider(nil)

	id, err := provider.ID(context.Background())
	if err != nil {
		t.Fatalf("ID failed: %v", err)
	}
	if !IsValid(id) {
		t.Errorf("identifier %q should be valid", id)
	}
}
