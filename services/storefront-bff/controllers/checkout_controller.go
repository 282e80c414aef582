package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/services"
)

// IdempotencyHeader lets clients retry a checkout without placing a second order request.
const IdempotencyHeader = "Idempotency-Key"

type CheckoutController struct {
	registry *services.Registry
	pricing  *services.PricingEngine
	coupons  *services.CouponCatalog
	payments *services.PaymentCatalog
}

func NewCheckoutController(registry *services.Registry, pricing *services.PricingEngine, coupons *services.CouponCatalog, payments *services.PaymentCatalog) *CheckoutController {
	return &CheckoutController{registry: registry, pricing: pricing, coupons: coupons, payments: payments}
}

func (cc *CheckoutController) Options(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"coupons":         cc.coupons.All(),
		"payment_methods": cc.payments.All(),
		"shipping_charge": cc.pricing.Shipping(),
		"default_country": models.DefaultCountry,
	})
}

func (cc *CheckoutController) Validate(c *gin.Context) {
	var address models.ShippingAddress
	if err := c.ShouldBindJSON(&address); err != nil {
		bindError(c, err)
		return
	}
	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}

	fields := sf.Checkout.Validate(address)
	c.JSON(http.StatusOK, gin.H{"valid": len(fields) == 0, "fields": fields})
}

func (cc *CheckoutController) Submit(c *gin.Context) {
	var form models.CheckoutForm
	if err := c.ShouldBindJSON(&form); err != nil {
		bindError(c, err)
		return
	}
	form.IdempotencyKey = c.GetHeader(IdempotencyHeader)

	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}

	result, err := sf.Checkout.Submit(c.Request.Context(), form)
	if errors.Is(err, apperrors.ErrAuthRequired) && result != nil {
		e := apperrors.ErrAuthRequired
		c.AbortWithStatusJSON(e.Code, gin.H{
			"code":     e.Code,
			"kind":     e.Kind,
			"message":  e.Message,
			"redirect": result.Redirect,
		})
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (cc *CheckoutController) Edit(c *gin.Context) {
	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sf.Checkout.Edit()})
}

func (cc *CheckoutController) State(c *gin.Context) {
	sf, ok := storefrontFor(c, cc.registry)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sf.Checkout.State()})
}
