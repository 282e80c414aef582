package services

import (
	"strings"

	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
)

// DefaultCoupons is the static coupon list shipped with the storefront.
var DefaultCoupons = []models.Coupon{
	{Code: "WELCOME10", PercentOff: 10, Description: "10% off your first order"},
	{Code: "LUNA15", PercentOff: 15, Description: "15% off sitewide"},
	{Code: "FESTIVE20", PercentOff: 20, Description: "20% off festive collection orders"},
}

// DefaultPaymentOptions is the static payment-method list.
var DefaultPaymentOptions = []models.PaymentOption{
	{Method: models.PaymentCashOnDelivery, Label: "Cash on Delivery"},
	{Method: models.PaymentCard, Label: "Credit / Debit Card"},
	{Method: models.PaymentUPI, Label: "UPI"},
}

// CouponCatalog is an immutable code → coupon lookup.
type CouponCatalog struct {
	ordered []models.Coupon
	byCode  map[string]models.Coupon
}

// NewCouponCatalog indexes coupons by normalised code. Percentages are clamped to 0..100.
func NewCouponCatalog(coupons []models.Coupon) *CouponCatalog {
	c := &CouponCatalog{byCode: make(map[string]models.Coupon, len(coupons))}
	for _, coupon := range coupons {
		coupon.Code = NormalizeCouponCode(coupon.Code)
		if coupon.Code == "" {
			continue
		}
		coupon.PercentOff = min(max(coupon.PercentOff, 0), 100)
		if _, dup := c.byCode[coupon.Code]; dup {
			continue
		}
		c.byCode[coupon.Code] = coupon
		c.ordered = append(c.ordered, coupon)
	}
	return c
}

// Lookup finds a coupon by code, case-insensitively.
func (c *CouponCatalog) Lookup(code string) (models.Coupon, bool) {
	if c == nil {
		return models.Coupon{}, false
	}
	coupon, ok := c.byCode[NormalizeCouponCode(code)]
	return coupon, ok
}

func (c *CouponCatalog) All() []models.Coupon {
	return append([]models.Coupon(nil), c.ordered...)
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PaymentCatalog is the fixed list of payment methods.
type PaymentCatalog struct {
	options []models.PaymentOption
}

func NewPaymentCatalog(options []models.PaymentOption) *PaymentCatalog {
	return &PaymentCatalog{options: append([]models.PaymentOption(nil), options...)}
}

func (p *PaymentCatalog) Supports(method models.PaymentMethod) bool {
	for _, o := range p.options {
		if o.Method == method {
			return true
		}
	}
	return false
}

func (p *PaymentCatalog) All() []models.PaymentOption {
	return append([]models.PaymentOption(nil), p.options...)
}
