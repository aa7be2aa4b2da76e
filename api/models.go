package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/leaflane/storefront-go/core"
)

// Product is a catalog entry. Products are immutable from the client's
// perspective; only the backend creates or mutates them.
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category,omitempty"`
	Type        string          `json:"type,omitempty"`
	THC         string          `json:"thc,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Featured    bool            `json:"featured,omitempty"`
}

// InStock reports whether the product can currently be added to a cart.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductFilter narrows a product listing. A nil filter returns the full
// catalog; there is no pagination cursor.
type ProductFilter struct {
	Category string
	Featured *bool
	Limit    int
}

// CartItem is one line of a cart: a product reference, a quantity and a
// denormalized product snapshot for display.
type CartItem struct {
	ID        int     `json:"id"`
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// Subtotal is unit price times quantity for this line.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the server-authoritative cart snapshot for a session. Total is
// always the backend's figure; the client never recomputes it.
type Cart struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// ItemCount is the sum of quantities across all lines.
func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// OrderItem is one line of an order draft, priced at the unit price the
// cart displayed when the order was placed.
type OrderItem struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderDraft is the client-side order record submitted after payment
// confirmation. The backend turns an accepted draft into an Order.
type OrderDraft struct {
	CustomerName    string      `json:"customer_name"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerPhone   string      `json:"customer_phone,omitempty"`
	ShippingAddress string      `json:"shipping_address"`
	Items           []OrderItem `json:"items"`
	StripePaymentID string      `json:"stripe_payment_id"`
}

// Validate checks the draft for required fields before it is submitted.
func (d OrderDraft) Validate() error {
	missing := ""
	switch {
	case d.CustomerName == "":
		missing = "customer_name"
	case d.CustomerEmail == "":
		missing = "customer_email"
	case d.ShippingAddress == "":
		missing = "shipping_address"
	case len(d.Items) == 0:
		missing = "items"
	case d.StripePaymentID == "":
		missing = "stripe_payment_id"
	}
	if missing != "" {
		return &core.StoreError{
			Op:      "api.OrderDraft.Validate",
			Kind:    "validation",
			Message: fmt.Sprintf("missing required field: %s", missing),
			Err:     core.ErrValidation,
		}
	}
	return nil
}

// Order is the immutable record the backend returns for an accepted draft.
type Order struct {
	ID              int             `json:"id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
}

// PaymentIntent carries the opaque client secret that drives the
// third-party payment confirmation flow.
type PaymentIntent struct {
	ClientSecret string `json:"client_secret"`
}

// ContactForm is a fire-and-forget contact submission.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Validate checks required contact fields before dispatch.
func (f ContactForm) Validate() error {
	missing := ""
	switch {
	case f.Name == "":
		missing = "name"
	case f.Email == "":
		missing = "email"
	case f.Message == "":
		missing = "message"
	}
	if missing != "" {
		return &core.StoreError{
			Op:      "api.ContactForm.Validate",
			Kind:    "validation",
			Message: fmt.Sprintf("missing required field: %s", missing),
			Err:     core.ErrValidation,
		}
	}
	return nil
}
