package services

import (
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"github.com/shopspring/decimal"
)

// DefaultShippingCharge is the flat shipping fee in rupees.
var DefaultShippingCharge = decimal.NewFromInt(60)

var hundred = decimal.NewFromInt(100)

// PricingEngine turns a cart snapshot and a coupon code into a PriceSummary.
// It is pure: no I/O, no mutation of its inputs.
type PricingEngine struct {
	shipping decimal.Decimal
	coupons  *CouponCatalog
}

func NewPricingEngine(shipping decimal.Decimal, coupons *CouponCatalog) *PricingEngine {
	return &PricingEngine{shipping: shipping, coupons: coupons}
}

func (p *PricingEngine) Shipping() decimal.Decimal {
	return p.shipping
}

// Subtotal sums effective unit price × quantity over all items.
func (p *PricingEngine) Subtotal(items []models.CartLineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// Summarize prices the cart. Unknown coupon codes count as no coupon. The coupon applies
// to the subtotal of effective (already discounted) unit prices. Amounts are exact; round
// only when presenting them.
func (p *PricingEngine) Summarize(items []models.CartLineItem, couponCode string) models.PriceSummary {
	summary := models.PriceSummary{
		Subtotal: p.Subtotal(items),
		Shipping: p.shipping,
		Discount: decimal.Zero,
	}

	if coupon, ok := p.coupons.Lookup(couponCode); ok {
		summary.CouponCode = coupon.Code
		summary.Discount = summary.Subtotal.
			Mul(decimal.NewFromInt(int64(coupon.PercentOff))).
			Div(hundred)
	}

	summary.Total = summary.Subtotal.Add(summary.Shipping).Sub(summary.Discount)
	if summary.Total.IsNegative() {
		summary.Total = decimal.Zero
	}
	return summary
}
