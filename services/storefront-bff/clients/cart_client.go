package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jewelrybyluna/storefront/services/common/auth"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"github.com/shopspring/decimal"
)

type cartProduct struct {
	ID           string              `json:"_id"`
	Name         string              `json:"name"`
	Price        decimal.Decimal     `json:"price"`
	SellingPrice decimal.NullDecimal `json:"sellingPrice"`
	Stock        int                 `json:"stock"`
	Category     []string            `json:"category"`
	Images       []string            `json:"images"`
}

type cartEntry struct {
	Product  cartProduct `json:"product"`
	Quantity int         `json:"quantity"`
}

type cartResponse struct {
	UserID string      `json:"userId"`
	Items  []cartEntry `json:"items"`
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartClient is the remote cart resource, authorised with one shopper's session.
type CartClient struct {
	gateway *GatewayClient
	session auth.Session
}

func NewCartClient(gateway *GatewayClient, session auth.Session) *CartClient {
	return &CartClient{gateway: gateway, session: session}
}

func (c *CartClient) FetchCart(ctx context.Context) (*models.Cart, error) {
	var resp cartResponse
	if err := c.gateway.DoJSON(ctx, http.MethodGet, "/cart", c.session.Token(), nil, &resp); err != nil {
		return nil, err
	}

	cart := &models.Cart{UserID: resp.UserID, UpdatedAt: time.Now().UTC()}
	for _, e := range resp.Items {
		if e.Product.ID == "" {
			continue
		}
		cart.Items = append(cart.Items, toLineItem(e))
	}
	return cart, nil
}

func (c *CartClient) AddItem(ctx context.Context, productID string, quantity int) error {
	body := addItemRequest{ProductID: productID, Quantity: quantity}
	return c.gateway.DoJSON(ctx, http.MethodPost, "/cart/add", c.session.Token(), body, nil)
}

func (c *CartClient) RemoveItem(ctx context.Context, productID string) error {
	return c.gateway.DoJSON(ctx, http.MethodDelete, "/cart/remove/"+url.PathEscape(productID), c.session.Token(), nil, nil)
}

func (c *CartClient) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	body := updateQuantityRequest{Quantity: quantity}
	return c.gateway.DoJSON(ctx, http.MethodPut, "/cart/update/"+url.PathEscape(productID), c.session.Token(), body, nil)
}

func (c *CartClient) ClearCart(ctx context.Context) error {
	return c.gateway.DoJSON(ctx, http.MethodDelete, "/cart/clear", c.session.Token(), nil, nil)
}

// sellingPrice only counts as a discount when it is set, positive and below price.
func toLineItem(e cartEntry) models.CartLineItem {
	p := e.Product
	item := models.CartLineItem{
		ProductID:    p.ID,
		Name:         p.Name,
		UnitPrice:    p.Price,
		Quantity:     e.Quantity,
		Stock:        p.Stock,
		CategoryTags: p.Category,
	}
	if len(p.Images) > 0 {
		item.ImageURL = p.Images[0]
	}
	if p.SellingPrice.Valid && p.SellingPrice.Decimal.IsPositive() && p.SellingPrice.Decimal.LessThan(p.Price) {
		item.DiscountedUnitPrice = p.SellingPrice
	}
	return item
}
