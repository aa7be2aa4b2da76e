// Package cart provides the shared, observable source of truth for cart
// contents. Every UI surface that displays or mutates the cart goes
// through one Store instance, so all views see a consistent snapshot
// after any mutation.
//
// The store never computes cart state itself: each mutation dispatches
// the API call and then re-fetches the authoritative cart from the
// backend. This trades a little latency for guaranteed consistency with
// server-side stock and pricing; do not replace it with optimistic local
// mutation without adding reconciliation.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/leaflane/storefront-go/api"
	"github.com/leaflane/storefront-go/core"
)

// Snapshot is an immutable view of the store's state, safe to hand to
// subscribers and display code.
type Snapshot struct {
	Items   []api.CartItem
	Total   decimal.Decimal
	Loading bool
}

// ItemCount is the sum of quantities across the snapshot's lines.
func (s Snapshot) ItemCount() int {
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

// Subscriber receives the new snapshot after every applied state change.
type Subscriber func(Snapshot)

// Store is an injectable cart state container. Construct one per user
// session; tests construct isolated instances freely.
type Store struct {
	mu        sync.RWMutex
	client    *api.Client
	logger    core.Logger
	telemetry core.Telemetry
	items     []api.CartItem
	total     decimal.Decimal
	loading   bool

	// fetchSeq tags each FetchCart; a response older than appliedSeq is
	// discarded so overlapping fetches cannot roll state backwards.
	fetchSeq   uint64
	appliedSeq uint64

	subscribers []Subscriber
}

// NewStore creates a Store backed by the given API client.
func NewStore(client *api.Client, opts ...StoreOption) *Store {
	s := &Store{
		client:    client,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
		total:     decimal.Zero,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for fetch failures and state changes.
func WithLogger(logger core.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTelemetry sets the telemetry provider used to count mutations.
func WithTelemetry(telemetry core.Telemetry) StoreOption {
	return func(s *Store) {
		if telemetry != nil {
			s.telemetry = telemetry
		}
	}
}

// Subscribe registers fn to be called with the new snapshot after every
// applied state change. Subscribers are invoked synchronously, outside
// the store's lock, in registration order.
func (s *Store) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// FetchCart replaces local state with the backend's authoritative cart.
// On failure the previous state is retained (stale but available) and the
// error is logged, not returned; display code keeps whatever it had.
func (s *Store) FetchCart(ctx context.Context) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.loading = true
	s.mu.Unlock()
	s.notify()

	fetched, err := s.client.GetCart(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("Error fetching cart", map[string]interface{}{
			"operation": "cart_fetch",
			"error":     err.Error(),
		})
		s.notify()
		return
	}
	if seq < s.appliedSeq {
		// A newer fetch already landed; this response is stale.
		s.mu.Unlock()
		s.logger.Debug("Discarding stale cart fetch", map[string]interface{}{
			"operation":   "cart_fetch",
			"seq":         seq,
			"applied_seq": s.appliedSeq,
		})
		s.notify()
		return
	}
	s.appliedSeq = seq
	s.items = fetched.Items
	s.total = fetched.Total
	s.mu.Unlock()
	s.notify()
}

// AddToCart adds quantity of a product, then resynchronizes from the
// backend. A failed mutation propagates to the caller and skips the
// resync, leaving state untouched.
func (s *Store) AddToCart(ctx context.Context, productID, quantity int) error {
	err := s.client.AddItem(ctx, productID, quantity)
	s.recordMutation("add", err)
	if err != nil {
		s.logger.Error("Error adding to cart", map[string]interface{}{
			"operation":  "cart_add",
			"product_id": productID,
			"quantity":   quantity,
			"error":      err.Error(),
		})
		return err
	}
	s.FetchCart(ctx)
	return nil
}

// UpdateQuantity sets the quantity of a cart line, then resynchronizes.
// Quantities below 1 are rejected locally and never reach the API client.
func (s *Store) UpdateQuantity(ctx context.Context, itemID, quantity int) error {
	if quantity < 1 {
		return &core.StoreError{
			Op:      "cart.UpdateQuantity",
			Kind:    "validation",
			Message: "quantity must be at least 1; remove the item instead",
			Err:     core.ErrValidation,
		}
	}
	err := s.client.SetItemQuantity(ctx, itemID, quantity)
	s.recordMutation("update", err)
	if err != nil {
		s.logger.Error("Error updating cart", map[string]interface{}{
			"operation": "cart_update",
			"item_id":   itemID,
			"quantity":  quantity,
			"error":     err.Error(),
		})
		return err
	}
	s.FetchCart(ctx)
	return nil
}

// RemoveItem removes a cart line, then resynchronizes.
func (s *Store) RemoveItem(ctx context.Context, itemID int) error {
	err := s.client.RemoveItem(ctx, itemID)
	s.recordMutation("remove", err)
	if err != nil {
		s.logger.Error("Error removing from cart", map[string]interface{}{
			"operation": "cart_remove",
			"item_id":   itemID,
			"error":     err.Error(),
		})
		return err
	}
	s.FetchCart(ctx)
	return nil
}

// Clear empties the cart, then resynchronizes. Clearing an empty cart is
// a no-op on the backend and succeeds silently.
func (s *Store) Clear(ctx context.Context) error {
	err := s.client.ClearCart(ctx)
	s.recordMutation("clear", err)
	if err != nil {
		s.logger.Error("Error clearing cart", map[string]interface{}{
			"operation": "cart_clear",
			"error":     err.Error(),
		})
		return err
	}
	s.FetchCart(ctx)
	return nil
}

// ItemCount is a pure derived read: the sum of quantities across current
// items. It never triggers a fetch.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Total returns the backend-reported cart total from the last applied
// fetch. It is never computed locally.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]api.CartItem, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Items:   items,
		Total:   s.total,
		Loading: s.loading,
	}
}

func (s *Store) recordMutation(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.telemetry.RecordMetric("cart.mutations", 1, map[string]string{
		"operation": op,
		"status":    status,
	})
}

func (s *Store) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}
