// Package checkout sequences the three-step purchase flow: payment-intent
// creation, third-party payment confirmation, and order submission. It
// owns the state machine between those steps and the partial-failure
// handling at each one, using the cart store as its input.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/leaflane/storefront-go/api"
	"github.com/leaflane/storefront-go/cart"
	"github.com/leaflane/storefront-go/core"
)

// State is a step of the checkout flow.
type State int

const (
	// CollectingShippingInfo is the initial state: the form is shown and
	// no payment intent exists yet.
	CollectingShippingInfo State = iota
	// AwaitingPaymentIntent means the intent request is in flight.
	AwaitingPaymentIntent
	// PaymentFormReady means a client secret is held and all required
	// shipping fields are populated; the payment element can render.
	PaymentFormReady
	// Submitting means payment confirmation and order creation are in
	// progress.
	Submitting
	// Completed means the order was accepted; the order id is available.
	Completed
	// Errored means a step failed in a way that needs user or operator
	// attention.
	Errored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case CollectingShippingInfo:
		return "collecting_shipping_info"
	case AwaitingPaymentIntent:
		return "awaiting_payment_intent"
	case PaymentFormReady:
		return "payment_form_ready"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// PaymentStatusSucceeded is the provider status that releases order
// submission.
const PaymentStatusSucceeded = "succeeded"

// PaymentResult is what the third-party payment element reports after a
// confirmation attempt.
type PaymentResult struct {
	ID     string
	Status string
}

// PaymentConfirmer is the third-party payment collaborator. It consumes
// the client secret and returns the payment-intent status and id.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, clientSecret string) (*PaymentResult, error)
}

// PaymentDeclinedError is a handled provider decline: funds were not
// captured and the same intent may be retried with corrected details.
type PaymentDeclinedError struct {
	Message string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Message == "" {
		return "payment declined"
	}
	return e.Message
}

func (e *PaymentDeclinedError) Unwrap() error {
	return core.ErrPayment
}

// ShippingInfo is the customer contact and address form. Name, Email,
// Address, City, State and Zip are required; Phone is optional and
// Country defaults to "United States".
type ShippingInfo struct {
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	State   string
	Zip     string
	Country string
}

// Validate checks the required shipping fields.
func (s ShippingInfo) Validate() error {
	missing := ""
	switch {
	case s.Name == "":
		missing = "name"
	case s.Email == "":
		missing = "email"
	case s.Address == "":
		missing = "address"
	case s.City == "":
		missing = "city"
	case s.State == "":
		missing = "state"
	case s.Zip == "":
		missing = "zip"
	}
	if missing != "" {
		return &core.StoreError{
			Op:      "checkout.ShippingInfo.Validate",
			Kind:    "validation",
			Message: "missing required field: " + missing,
			Err:     core.ErrValidation,
		}
	}
	return nil
}

// FlatAddress renders the address as the single string the order record
// carries: "address, city, state zip, country".
func (s ShippingInfo) FlatAddress() string {
	country := s.Country
	if country == "" {
		country = "United States"
	}
	return fmt.Sprintf("%s, %s, %s %s, %s",
		strings.TrimSpace(s.Address),
		strings.TrimSpace(s.City),
		strings.TrimSpace(s.State),
		strings.TrimSpace(s.Zip),
		country,
	)
}

// Orchestrator drives one checkout attempt. Construct a fresh one per
// checkout entry, or call Reset to reuse it for a new attempt.
type Orchestrator struct {
	mu        sync.Mutex
	client    *api.Client
	store     *cart.Store
	confirmer PaymentConfirmer
	logger    core.Logger
	telemetry core.Telemetry

	state         State
	intentCreated bool
	clientSecret  string
	shipping      ShippingInfo
	shippingSet   bool
	errMessage    string
	orderID       int

	// confirmedPaymentID is retained when payment succeeded but order
	// creation failed, so the gap is visible to callers and operators.
	// No automatic reconciliation or refund is attempted here.
	confirmedPaymentID string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for checkout step events.
func WithLogger(logger core.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTelemetry sets the telemetry provider used to count checkout
// outcomes.
func WithTelemetry(telemetry core.Telemetry) Option {
	return func(o *Orchestrator) {
		if telemetry != nil {
			o.telemetry = telemetry
		}
	}
}

// New creates an Orchestrator over the given client, store and payment
// confirmer.
func New(client *api.Client, store *cart.Store, confirmer PaymentConfirmer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:    client,
		store:     store,
		confirmer: confirmer,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
		state:     CollectingShippingInfo,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current checkout state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ErrorMessage returns the message recorded for the last handled error,
// for inline display.
func (o *Orchestrator) ErrorMessage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMessage
}

// OrderID returns the created order id once the flow has completed.
func (o *Orchestrator) OrderID() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orderID
}

// ConfirmedPaymentID returns the payment confirmation reference when
// payment succeeded but order creation failed; empty otherwise.
func (o *Orchestrator) ConfirmedPaymentID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Errored {
		return o.confirmedPaymentID
	}
	return ""
}

// Begin refreshes the cart and creates the payment intent for its total.
// An empty cart returns ErrEmptyCart immediately: checkout never renders
// for an empty cart and the caller exits back to the cart page.
//
// The intent is created exactly once per attempt; calling Begin again
// (a re-render) is a no-op once a secret is held.
func (o *Orchestrator) Begin(ctx context.Context) error {
	o.store.FetchCart(ctx)
	snap := o.store.Snapshot()

	if len(snap.Items) == 0 {
		return core.ErrEmptyCart
	}

	o.mu.Lock()
	if o.intentCreated {
		o.mu.Unlock()
		return nil
	}
	if !snap.Total.IsPositive() {
		o.mu.Unlock()
		return core.ErrEmptyCart
	}
	o.intentCreated = true
	o.state = AwaitingPaymentIntent
	o.mu.Unlock()

	intent, err := o.client.CreatePaymentIntent(ctx, snap.Total)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.state = Errored
		o.errMessage = core.Detail(err)
		o.logger.Error("Error creating payment intent", map[string]interface{}{
			"operation": "checkout_create_intent",
			"error":     err.Error(),
		})
		o.recordOutcome("intent_failed")
		return err
	}

	o.clientSecret = intent.ClientSecret
	o.advanceLocked()

	o.logger.Info("Payment intent created", map[string]interface{}{
		"operation": "checkout_create_intent",
		"total":     snap.Total.String(),
	})
	return nil
}

// SetShipping stores the shipping form. Validation failures leave the
// current form untouched.
func (o *Orchestrator) SetShipping(info ShippingInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if info.Country == "" {
		info.Country = "United States"
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.shipping = info
	o.shippingSet = true
	o.advanceLocked()
	return nil
}

// advanceLocked moves to PaymentFormReady when both preconditions hold:
// a client secret and a valid shipping form. Must be called with the
// lock held, and only from non-terminal states.
func (o *Orchestrator) advanceLocked() {
	if o.state == Completed || o.state == Submitting {
		return
	}
	if o.clientSecret != "" && o.shippingSet {
		o.state = PaymentFormReady
		o.errMessage = ""
	} else if o.clientSecret != "" || o.intentCreated {
		o.state = CollectingShippingInfo
	}
}

// Submit confirms payment and creates the order record.
//
// A handled provider decline records the provider's message and returns
// to PaymentFormReady: funds were not captured and the same intent may be
// retried. A confirmed payment followed by a failed order creation moves
// to Errored WITHOUT retrying payment; the confirmation id is retained
// for reconciliation by the backend/ops process.
func (o *Orchestrator) Submit(ctx context.Context) (*api.Order, error) {
	o.mu.Lock()
	if o.state != PaymentFormReady {
		state := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: state is %s", core.ErrNotReady, state)
	}
	secret := o.clientSecret
	shipping := o.shipping
	o.state = Submitting
	o.errMessage = ""
	o.mu.Unlock()

	result, err := o.confirmer.Confirm(ctx, secret)
	if err != nil {
		var declined *PaymentDeclinedError
		if errors.As(err, &declined) {
			o.mu.Lock()
			o.state = PaymentFormReady
			o.errMessage = declined.Message
			o.mu.Unlock()
			o.logger.Warn("Payment declined", map[string]interface{}{
				"operation": "checkout_confirm",
				"message":   declined.Message,
			})
			o.recordOutcome("declined")
			return nil, err
		}
		o.mu.Lock()
		o.state = Errored
		o.errMessage = core.Detail(err)
		o.mu.Unlock()
		o.logger.Error("Payment confirmation failed", map[string]interface{}{
			"operation": "checkout_confirm",
			"error":     err.Error(),
		})
		o.recordOutcome("confirm_failed")
		return nil, err
	}

	if result == nil || result.Status != PaymentStatusSucceeded {
		status := "unknown"
		if result != nil {
			status = result.Status
		}
		o.mu.Lock()
		o.state = PaymentFormReady
		o.errMessage = "payment not completed (status: " + status + ")"
		o.mu.Unlock()
		o.recordOutcome("declined")
		return nil, &PaymentDeclinedError{Message: "payment not completed (status: " + status + ")"}
	}

	snap := o.store.Snapshot()
	items := make([]api.OrderItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, api.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Product.Price,
		})
	}

	draft := api.OrderDraft{
		CustomerName:    shipping.Name,
		CustomerEmail:   shipping.Email,
		CustomerPhone:   shipping.Phone,
		ShippingAddress: shipping.FlatAddress(),
		Items:           items,
		StripePaymentID: result.ID,
	}
	if err := draft.Validate(); err != nil {
		o.mu.Lock()
		o.state = Errored
		o.errMessage = core.Detail(err)
		o.confirmedPaymentID = result.ID
		o.mu.Unlock()
		return nil, err
	}

	order, err := o.client.CreateOrder(ctx, draft)
	if err != nil {
		// Payment is captured at this point. Do not retry it; surface
		// the confirmation reference for reconciliation instead.
		o.mu.Lock()
		o.state = Errored
		o.errMessage = core.Detail(err)
		o.confirmedPaymentID = result.ID
		o.mu.Unlock()
		o.logger.Error("Order creation failed after successful payment", map[string]interface{}{
			"operation":  "checkout_create_order",
			"payment_id": result.ID,
			"error":      err.Error(),
		})
		o.recordOutcome("order_failed")
		return nil, err
	}

	// The backend clears the cart on order creation; resync so every
	// surface sees it empty.
	o.store.FetchCart(ctx)

	o.mu.Lock()
	o.state = Completed
	o.orderID = order.ID
	o.mu.Unlock()

	o.logger.Info("Checkout completed", map[string]interface{}{
		"operation": "checkout_complete",
		"order_id":  order.ID,
		"status":    order.Status,
	})
	o.recordOutcome("completed")
	return order, nil
}

func (o *Orchestrator) recordOutcome(outcome string) {
	o.telemetry.RecordMetric("checkout.outcomes", 1, map[string]string{
		"outcome": outcome,
	})
}

// Reset abandons the current attempt and returns to the initial state.
// The next Begin creates a fresh payment intent.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = CollectingShippingInfo
	o.intentCreated = false
	o.clientSecret = ""
	o.shippingSet = false
	o.shipping = ShippingInfo{}
	o.errMessage = ""
	o.orderID = 0
	o.confirmedPaymentID = ""
}
