package models

import "github.com/shopspring/decimal"

// PriceSummary is derived on every render from the cart and the selected coupon.
type PriceSummary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"coupon_code,omitempty"`
}

// Coupon is a named percent-off discount applied at checkout.
type Coupon struct {
	Code        string `json:"code"`
	PercentOff  int    `json:"percent_off"`
	Description string `json:"description"`
}

// PaymentMethod identifiers accepted by the order-request endpoint.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentCard           PaymentMethod = "card"
	PaymentUPI            PaymentMethod = "upi"
)

// PaymentOption is a catalog entry shown on the checkout form.
type PaymentOption struct {
	Method PaymentMethod `json:"method"`
	Label  string        `json:"label"`
}
