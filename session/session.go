// Package session manages the anonymous session identifier that correlates
// a caller with its cart on the backend. The identifier is generated once
// per installation, persisted through a core.SessionStore, and reused for
// every subsequent request. There is no login or account model; the
// identifier is the sole correlation key.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leaflane/storefront-go/core"
)

// DefaultKey is the storage key the identifier lives under, matching the
// key browsers used for the same value in local storage.
const DefaultKey = "sessionId"

// suffixLength is the number of random characters appended to the
// timestamp portion of a generated identifier.
const suffixLength = 9

// Provider lazily allocates a session identifier and hands it out for
// header injection. The first call of a fresh installation allocates and
// persists a new identifier; every later call returns the stored one.
type Provider struct {
	mu     sync.Mutex
	store  core.SessionStore
	key    string
	ttl    time.Duration
	cached string
	logger core.Logger
}

// NewProvider creates a Provider backed by the given store.
// A nil store falls back to an in-memory one (fresh cart per process).
func NewProvider(store core.SessionStore, opts ...ProviderOption) *Provider {
	if store == nil {
		store = core.NewMemoryStore()
	}
	p := &Provider{
		store:  store,
		key:    DefaultKey,
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithKey overrides the storage key for the identifier.
func WithKey(key string) ProviderOption {
	return func(p *Provider) { p.key = key }
}

// WithTTL sets an expiry on the persisted identifier. Zero means the
// identifier lives as long as the store does.
func WithTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) { p.ttl = ttl }
}

// WithLogger sets the logger used for allocation events.
func WithLogger(logger core.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// ID returns the session identifier, allocating and persisting a new one
// on first use. The identifier is cached in memory after the first read so
// the store is only consulted once per process.
func (p *Provider) ID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	id, err := p.store.Get(ctx, p.key)
	if err != nil {
		return "", fmt.Errorf("session.ID: reading store: %w", err)
	}

	if id == "" {
		id = Generate()
		if err := p.store.Set(ctx, p.key, id, p.ttl); err != nil {
			return "", fmt.Errorf("session.ID: persisting identifier: %w", err)
		}
		p.logger.Info("Allocated new session identifier", map[string]interface{}{
			"operation": "session_allocate",
			"key":       p.key,
		})
	}

	p.cached = id
	return id, nil
}

// Reset discards the persisted identifier. The next ID call allocates a
// fresh one, abandoning the old anonymous cart.
func (p *Provider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = ""
	if err := p.store.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("session.Reset: %w", err)
	}
	return nil
}

// Generate produces a new identifier in the established wire format:
// "session_" + unix millis + "_" + 9 random characters. The backend
// treats it as an opaque string; the format is kept for compatibility
// with identifiers already in circulation.
func Generate() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}

// IsValid reports whether a string looks like a generated identifier.
// Used to reject corrupted store contents rather than send them upstream.
func IsValid(id string) bool {
	if !strings.HasPrefix(id, "session_") {
		return false
	}
	parts := strings.SplitN(id, "_", 3)
	return len(parts) == 3 && parts[1] != "" && parts[2] != ""
}
