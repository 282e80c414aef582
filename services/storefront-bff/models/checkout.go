package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCountry is prefilled on every shipping address.
const DefaultCountry = "India"

// ShippingAddress is created fresh per checkout attempt.
type ShippingAddress struct {
	Street       string `json:"street" validate:"required"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	ZipCode      string `json:"zipCode" validate:"required,len=6,number"`
	Country      string `json:"country" validate:"required"`
	Landmark     string `json:"landmark,omitempty"`
	MobileNumber string `json:"mobileNumber" validate:"required,len=10,number"`
}

// OrderRequest is sent once per checkout submission.
type OrderRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	CouponCode      string          `json:"couponCode,omitempty"`
}

// OrderResponse is the server's answer to an order request.
type OrderResponse struct {
	OrderID     string              `json:"orderId,omitempty"`
	RedirectURL string              `json:"redirectUrl"`
	Total       decimal.NullDecimal `json:"total"`
}

// CheckoutForm is the shopper's input to a checkout submission.
type CheckoutForm struct {
	Address        ShippingAddress `json:"shipping_address"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	CouponCode     string          `json:"coupon_code"`
	IdempotencyKey string          `json:"-"`
}

// CheckoutState is the orchestrator's state.
type CheckoutState string

const (
	CheckoutIdle        CheckoutState = "idle"
	CheckoutValidating  CheckoutState = "validating"
	CheckoutSubmitting  CheckoutState = "submitting"
	CheckoutRedirecting CheckoutState = "redirecting"
	CheckoutFailed      CheckoutState = "failed"
)

// RedirectMode says how the client should follow a redirect.
type RedirectMode string

const (
	RedirectNavigate  RedirectMode = "navigate"
	RedirectNewWindow RedirectMode = "new_window"
	RedirectLogin     RedirectMode = "login"
)

// Redirect is the instruction handed back to the client.
type Redirect struct {
	Mode        RedirectMode `json:"mode"`
	URL         string       `json:"url"`
	FallbackURL string       `json:"fallback_url,omitempty"`
	Blocked     bool         `json:"blocked"`
}

// CheckoutResult is returned by a successful (or login-redirected) submission.
type CheckoutResult struct {
	State         CheckoutState   `json:"state"`
	OrderID       string          `json:"order_id,omitempty"`
	Redirect      Redirect        `json:"redirect"`
	Summary       PriceSummary    `json:"summary"`
	ServerTotal   decimal.Decimal `json:"server_total"`
	TotalMismatch bool            `json:"total_mismatch"`
	Replayed      bool            `json:"replayed"`
}

// CheckoutEvent is published after a shopper has been handed the messaging deep link.
type CheckoutEvent struct {
	Event         string         `json:"event"`
	EventID       string         `json:"event_id"`
	UserID        string         `json:"user_id"`
	OrderID       string         `json:"order_id,omitempty"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	CouponCode    string         `json:"coupon_code,omitempty"`
	Items         []CartLineItem `json:"items"`
	Summary       PriceSummary   `json:"summary"`
	Timestamp     time.Time      `json:"timestamp"`
}
