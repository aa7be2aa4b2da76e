// Package api wraps HTTP access to the storefront backend. Every request
// carries the anonymous session header; responses are decoded into the
// shared models and non-2xx statuses are mapped onto the error taxonomy
// in core (not found, validation, payment, network).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leaflane/storefront-go/core"
	"github.com/leaflane/storefront-go/resilience"
	"github.com/leaflane/storefront-go/session"
)

// Client is the single point of HTTP access to the backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     core.Logger
	telemetry  core.Telemetry
	retry      *resilience.RetryConfig
	sessions   *session.Provider
}

// ClientOption customizes a Client beyond what Config carries.
type ClientOption func(*Client)

// WithLogger sets the logger for request/response events.
func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetry sets the telemetry used for spans around each operation.
func WithTelemetry(t core.Telemetry) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithHTTPTransport wraps the client's transport chain with rt as the
// innermost RoundTripper (e.g. an otelhttp transport).
func WithHTTPTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		base := rt
		if base == nil {
			base = http.DefaultTransport
		}
		c.httpClient.Transport = newSessionTransport(base, c.sessions)
	}
}

// WithBreaker inserts a circuit breaker between the session transport and
// the network.
func WithBreaker(breaker core.CircuitBreaker) ClientOption {
	return func(c *Client) {
		if breaker == nil {
			return
		}
		st, ok := c.httpClient.Transport.(*sessionTransport)
		if !ok {
			return
		}
		st.base = newBreakerTransport(st.base, breaker)
	}
}

// New builds a Client from configuration. The session store is selected
// by cfg.Session.Provider: a durable file, Redis, or process memory.
func New(cfg *core.Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required: %w", core.ErrMissingConfiguration)
	}

	store, err := buildSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	providerOpts := []session.ProviderOption{session.WithTTL(cfg.Session.TTL)}
	if cfg.Session.Key != "" {
		providerOpts = append(providerOpts, session.WithKey(cfg.Session.Key))
	}
	provider := session.NewProvider(store, providerOpts...)

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.API.Timeout,
			Transport: nil, // set below, once the provider exists
		},
		baseURL:   cfg.API.BaseURL,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
		retry: &resilience.RetryConfig{
			MaxAttempts:   cfg.Resilience.Retry.MaxAttempts,
			InitialDelay:  cfg.Resilience.Retry.InitialInterval,
			MaxDelay:      cfg.Resilience.Retry.MaxInterval,
			BackoffFactor: cfg.Resilience.Retry.Multiplier,
			JitterEnabled: cfg.Resilience.Retry.JitterEnabled,
		},
		sessions: provider,
	}
	c.httpClient.Transport = newSessionTransport(nil, provider)

	for _, opt := range opts {
		opt(c)
	}

	if cfg.Resilience.CircuitBreaker.Enabled {
		breaker := resilience.NewCircuitBreaker(core.CircuitBreakerParams{
			Name:   "storefront-api",
			Config: cfg.Resilience.CircuitBreaker,
			Logger: c.logger,
		})
		WithBreaker(breaker)(c)
	}

	return c, nil
}

func buildSessionStore(cfg *core.Config) (core.SessionStore, error) {
	switch cfg.Session.Provider {
	case "file", "":
		return session.NewFileStore(cfg.Session.FilePath), nil
	case "redis":
		return session.NewRedisStore(session.RedisStoreOptions{
			RedisURL:  cfg.Session.RedisURL,
			Namespace: "storefront",
		})
	case "inmemory":
		return core.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown session provider %q", core.ErrInvalidConfiguration, cfg.Session.Provider)
	}
}

// Sessions exposes the session provider, mainly so callers can reset the
// anonymous identity.
func (c *Client) Sessions() *session.Provider {
	return c.sessions
}

// ListProducts returns the full filtered catalog; there is no pagination.
func (c *Client) ListProducts(ctx context.Context, filter *ProductFilter) ([]Product, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "api.list_products")
	defer span.End()

	query := url.Values{}
	if filter != nil {
		if filter.Category != "" {
			query.Set("category", filter.Category)
		}
		if filter.Featured != nil {
			query.Set("featured", strconv.FormatBool(*filter.Featured))
		}
		if filter.Limit > 0 {
			query.Set("limit", strconv.Itoa(filter.Limit))
		}
	}

	var products []Product
	if err := c.do(ctx, "api.ListProducts", http.MethodGet, "/api/products", query, nil, &products); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("products.count", len(products))
	return products, nil
}

// GetProduct returns a single product by its URL slug.
func (c *Client) GetProduct(ctx context.Context, slug string) (*Product, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "api.get_product")
	defer span.End()
	span.SetAttribute("product.slug", slug)

	var product Product
	if err := c.do(ctx, "api.GetProduct", http.MethodGet, "/api/products/"+url.PathEscape(slug), nil, nil, &product); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &product, nil
}

// GetCart returns the current cart for the caller's session. A session
// the backend has never seen yields an empty cart, not an error.
func (c *Client) GetCart(ctx context.Context) (*Cart, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "api.get_cart")
	defer span.End()

	var cart Cart
	if err := c.do(ctx, "api.GetCart", http.MethodGet, "/api/cart", nil, nil, &cart); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("cart.items", len(cart.Items))
	return &cart, nil
}

type addItemRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// AddItem adds quantity of a product to the cart. The backend owns the
// stock bound and the merge policy for an existing line of the same
// product; the client only dispatches the call.
func (c *Client) AddItem(ctx context.Context, productID, quantity int) error {
	ctx, span := c.telemetry.StartSpan(ctx, "api.add_item")
	defer span.End()
	span.SetAttribute("product.id", productID)
	span.SetAttribute("quantity", quantity)

	err := c.do(ctx, "api.AddItem", http.MethodPost, "/api/cart", nil,
		addItemRequest{ProductID: productID, Quantity: quantity}, nil)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// SetItemQuantity changes the quantity of a cart line. Quantities below 1
// are rejected locally before any request is issued; the backend remains
// the source of truth for the stock-bound upper limit.
func (c *Client) SetItemQuantity(ctx context.Context, itemID, quantity int) error {
	if quantity < 1 {
		return &core.StoreError{
			Op:      "api.SetItemQuantity",
			Kind:    "validation",
			ID:      strconv.Itoa(itemID),
			Message: "quantity must be at least 1",
			Err:     core.ErrValidation,
		}
	}

	ctx, span := c.telemetry.StartSpan(ctx, "api.set_item_quantity")
	defer span.End()
	span.SetAttribute("item.id", itemID)
	span.SetAttribute("quantity", quantity)

	query := url.Values{"quantity": []string{strconv.Itoa(quantity)}}
	err := c.do(ctx, "api.SetItemQuantity", http.MethodPut, "/api/cart/"+strconv.Itoa(itemID), query, nil, nil)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// RemoveItem removes a cart line. Removing an absent item succeeds
// silently.
func (c *Client) RemoveItem(ctx context.Context, itemID int) error {
	ctx, span := c.telemetry.StartSpan(ctx, "api.remove_item")
	defer span.End()
	span.SetAttribute("item.id", itemID)

	err := c.do(ctx, "api.RemoveItem", http.MethodDelete, "/api/cart/"+strconv.Itoa(itemID), nil, nil, nil)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ClearCart empties the cart. Clearing an already-empty cart succeeds
// silently.
func (c *Client) ClearCart(ctx context.Context) error {
	ctx, span := c.telemetry.StartSpan(ctx, "api.clear_cart")
	defer span.End()

	err := c.do(ctx, "api.ClearCart", http.MethodDelete, "/api/cart", nil, nil, nil)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// CreateOrder submits an order draft and returns the created order with
// its server-assigned identifier.
func (c *Client) CreateOrder(ctx context.Context, draft OrderDraft) (*Order, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "api.create_order")
	defer span.End()

	var order Order
	if err := c.do(ctx, "api.CreateOrder", http.MethodPost, "/api/orders", nil, draft, &order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("order.id", order.ID)
	return &order, nil
}

// GetOrder fetches an order by id. Unknown or inaccessible ids fail
// with a not-found error.
func (c *Client) GetOrder(ctx context.Context, id int) (*Order, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "api.get_order")
	defer span.End()
	span.SetAttribute("order.id", id)

	var order Order
	if err := c.do(ctx, "api.GetOrder", http.MethodGet, "/api/orders/"+strconv.Itoa(id), nil, nil, &order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &order, nil
}

type paymentIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreatePaymentIntent asks the backend for a payment-intent client secret
// covering amount. The amount must be positive.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal) (*PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, &core.StoreError{
			Op:      "api.CreatePaymentIntent",
			Kind:    "validation",
			Message: "amount must be greater than zero",
			Err:     core.ErrValidation,
		}
	}

	ctx, span := c.telemetry.StartSpan(ctx, "api.create_payment_intent")
	defer span.End()

	var intent PaymentIntent
	err := c.do(ctx, "api.CreatePaymentIntent", http.MethodPost, "/api/payment/create-intent", nil,
		paymentIntentRequest{Amount: amount, Currency: "usd"}, &intent)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &intent, nil
}

// SubmitContact dispatches a contact form. Required fields are checked
// locally so an obviously incomplete form never leaves the process.
func (c *Client) SubmitContact(ctx context.Context, form ContactForm) error {
	if err := form.Validate(); err != nil {
		return err
	}

	ctx, span := c.telemetry.StartSpan(ctx, "api.submit_contact")
	defer span.End()

	err := c.do(ctx, "api.SubmitContact", http.MethodPost, "/api/contact", nil, form, nil)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// do issues one API call with retry. The request is rebuilt from scratch
// on each attempt so bodies replay safely. Transport failures and 5xx/429
// responses are retried; other statuses return immediately and are mapped
// onto the error taxonomy.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	start := time.Now()
	var status int
	var respBody []byte

	err := resilience.Retry(ctx, c.retry, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("%s: building request: %w", op, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &core.StoreError{
				Op:      op,
				Kind:    "network",
				Message: err.Error(),
				Err:     core.ErrNetwork,
			}
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return &core.StoreError{
				Op:      op,
				Kind:    "network",
				Message: "reading response: " + err.Error(),
				Err:     core.ErrNetwork,
			}
		}
		status = resp.StatusCode

		// Server failures and rate limits are worth retrying; everything
		// else is decided by the caller-facing mapping below.
		if status >= 500 || status == http.StatusTooManyRequests {
			return &core.StoreError{
				Op:      op,
				Kind:    "server",
				Message: fmt.Sprintf("HTTP %d", status),
				Err:     core.ErrRequestFailed,
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("API request failed", map[string]interface{}{
			"operation":   op,
			"method":      method,
			"path":        path,
			"status_code": status,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err.Error(),
		})
		return err
	}

	if status >= 400 {
		apiErr := c.mapStatus(op, status, respBody)
		c.logger.Warn("API request rejected", map[string]interface{}{
			"operation":   op,
			"method":      method,
			"path":        path,
			"status_code": status,
			"detail":      core.Detail(apiErr),
		})
		return apiErr
	}

	c.logger.Debug("API request completed", map[string]interface{}{
		"operation":   op,
		"method":      method,
		"path":        path,
		"status_code": status,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}
	return nil
}

// errorPayload is the backend's error envelope.
type errorPayload struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (p errorPayload) text() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Message
}

// mapStatus turns a non-2xx response into the error taxonomy.
func (c *Client) mapStatus(op string, status int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)
	message := payload.text()
	if message == "" {
		message = http.StatusText(status)
	}

	var sentinel error
	var kind string
	switch status {
	case http.StatusNotFound:
		sentinel, kind = core.ErrNotFound, "not_found"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel, kind = core.ErrValidation, "validation"
	case http.StatusConflict:
		// Stock changed between read and add; the backend presents this
		// as a validation failure and so do we.
		sentinel, kind = core.ErrConflict, "conflict"
	case http.StatusPaymentRequired:
		sentinel, kind = core.ErrPayment, "payment"
	default:
		sentinel, kind = core.ErrRequestFailed, "request"
	}

	return &core.StoreError{
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     sentinel,
	}
}
