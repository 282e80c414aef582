package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/services"
)

type CartController struct {
	registry *services.Registry
	pricing  *services.PricingEngine
}

func NewCartController(registry *services.Registry, pricing *services.PricingEngine) *CartController {
	return &CartController{registry: registry, pricing: pricing}
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart loads the cart on first use; later calls serve local state.
func (cc *CartController) GetCart(c *gin.Context) {
	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	if !sf.Cart.Loaded() {
		if err := sf.Cart.Load(c.Request.Context()); err != nil && !sf.Cart.Loaded() {
			_ = c.Error(err)
			return
		}
	}
	cc.render(c, http.StatusOK, sf)
}

func (cc *CartController) Reload(c *gin.Context) {
	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	if err := sf.Cart.Load(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	cc.render(c, http.StatusOK, sf)
}

func (cc *CartController) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	if err := sf.Cart.AddItem(c.Request.Context(), req.ProductID, quantity); err != nil {
		_ = c.Error(err)
		return
	}
	cc.render(c, http.StatusCreated, sf)
}

// UpdateQuantity applies the change locally and answers 202; the remote write is debounced.
func (cc *CartController) UpdateQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	if err := sf.Cart.SetQuantity(c.Param("product_id"), *req.Quantity); err != nil {
		_ = c.Error(err)
		return
	}
	cc.render(c, http.StatusAccepted, sf)
}

func (cc *CartController) RemoveItem(c *gin.Context) {
	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	if err := sf.Cart.RemoveItem(c.Request.Context(), c.Param("product_id")); err != nil {
		_ = c.Error(err)
		return
	}
	cc.render(c, http.StatusOK, sf)
}

func (cc *CartController) Clear(c *gin.Context) {
	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	if err := sf.Cart.Clear(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	cc.render(c, http.StatusOK, sf)
}

func (cc *CartController) render(c *gin.Context, status int, sf *services.Storefront) {
	body := gin.H{"cart": sf.Cart.View(cc.pricing, c.Query("coupon"))}
	if note, ok := sf.Toasts.Current(); ok {
		body["notification"] = note
	}
	c.JSON(status, body)
}
