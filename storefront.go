// Package storefront is a lightweight meta-module that re-exports from
// submodules. Most programs import the specific packages they need:
//   - github.com/leaflane/storefront-go/api - backend HTTP client
//   - github.com/leaflane/storefront-go/cart - shared cart state
//   - github.com/leaflane/storefront-go/checkout - checkout flow
//   - github.com/leaflane/storefront-go/core - config, errors, interfaces
package storefront

import (
	"github.com/leaflane/storefront-go/api"
	"github.com/leaflane/storefront-go/cart"
	"github.com/leaflane/storefront-go/checkout"
	"github.com/leaflane/storefront-go/core"
)

// Re-export core types
type (
	// Configuration types
	Config           = core.Config
	Option           = core.Option
	APIConfig        = core.APIConfig
	SessionConfig    = core.SessionConfig
	ResilienceConfig = core.ResilienceConfig
	TelemetryConfig  = core.TelemetryConfig
	LoggingConfig    = core.LoggingConfig

	// Interfaces
	Logger       = core.Logger
	Telemetry    = core.Telemetry
	Span         = core.Span
	SessionStore = core.SessionStore

	// Domain types
	Product       = api.Product
	ProductFilter = api.ProductFilter
	Cart          = api.Cart
	CartItem      = api.CartItem
	Order         = api.Order
	OrderDraft    = api.OrderDraft
	PaymentIntent = api.PaymentIntent
	ContactForm   = api.ContactForm

	// Checkout types
	ShippingInfo     = checkout.ShippingInfo
	PaymentResult    = checkout.PaymentResult
	PaymentConfirmer = checkout.PaymentConfirmer
)

// Re-export core functions
var (
	NewConfig     = core.NewConfig
	DefaultConfig = core.DefaultConfig

	// Configuration options
	WithBaseURL         = core.WithBaseURL
	WithTimeout         = core.WithTimeout
	WithConfigFile      = core.WithConfigFile
	WithSessionFile     = core.WithSessionFile
	WithRedisSession    = core.WithRedisSession
	WithInMemorySession = core.WithInMemorySession
	WithRetry           = core.WithRetry
	WithCircuitBreaker  = core.WithCircuitBreaker
	WithTelemetry       = core.WithTelemetry

	// Error classification
	IsNotFound   = core.IsNotFound
	IsValidation = core.IsValidation
	IsPayment    = core.IsPayment
	IsRetryable  = core.IsRetryable
)

// Storefront bundles the client, the cart store and a checkout factory so
// simple programs can wire everything in one call.
type Storefront struct {
	Client *api.Client
	Cart   *cart.Store
}

// New builds a fully wired Storefront from configuration.
func New(cfg *core.Config, opts ...api.ClientOption) (*Storefront, error) {
	client, err := api.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Storefront{
		Client: client,
		Cart:   cart.NewStore(client),
	}, nil
}

// Checkout starts a checkout flow over the bundled client and cart.
func (s *Storefront) Checkout(confirmer checkout.PaymentConfirmer, opts ...checkout.Option) *checkout.Orchestrator {
	return checkout.New(s.Client, s.Cart, confirmer, opts...)
}
