package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLineItem is one product entry in the cart with its quantity.
type CartLineItem struct {
	ProductID           string              `json:"product_id"`
	Name                string              `json:"name,omitempty"`
	ImageURL            string              `json:"image_url,omitempty"`
	UnitPrice           decimal.Decimal     `json:"unit_price"`
	DiscountedUnitPrice decimal.NullDecimal `json:"discounted_unit_price"`
	Quantity            int                 `json:"quantity"`
	Stock               int                 `json:"stock"`
	CategoryTags        []string            `json:"category_tags"`
}

// EffectiveUnitPrice is the discounted price when present, else the list price.
func (i CartLineItem) EffectiveUnitPrice() decimal.Decimal {
	if i.DiscountedUnitPrice.Valid {
		return i.DiscountedUnitPrice.Decimal
	}
	return i.UnitPrice
}

// LineTotal is the effective unit price times quantity.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DiscountPercent is the display-only markdown of the discounted price against the list
// price, rounded to a whole percent. Zero when there is no markdown.
func (i CartLineItem) DiscountPercent() int64 {
	if !i.DiscountedUnitPrice.Valid || !i.UnitPrice.IsPositive() {
		return 0
	}
	off := i.UnitPrice.Sub(i.DiscountedUnitPrice.Decimal)
	if !off.IsPositive() {
		return 0
	}
	return off.Div(i.UnitPrice).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Clone returns a deep copy safe to hand out of the store.
func (i CartLineItem) Clone() CartLineItem {
	if i.CategoryTags != nil {
		i.CategoryTags = append([]string(nil), i.CategoryTags...)
	}
	return i
}

// Cart is the authoritative cart as returned by the remote cart resource.
type Cart struct {
	UserID    string         `json:"user_id"`
	Items     []CartLineItem `json:"items"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LineState tracks where a line item is in its optimistic-update lifecycle.
type LineState string

const (
	LineSynced     LineState = "synced"
	LinePending    LineState = "pending"
	LineRolledBack LineState = "rolled_back"
)

// CartLineView is a line item together with its sync state and display extras.
type CartLineView struct {
	CartLineItem
	State           LineState       `json:"state"`
	LineTotal       decimal.Decimal `json:"line_total"`
	DiscountPercent int64           `json:"discount_percent"`
}

// CartView is what the storefront renders for the cart page.
type CartView struct {
	Items     []CartLineView `json:"items"`
	ItemCount int            `json:"item_count"`
	Summary   PriceSummary   `json:"summary"`
}
