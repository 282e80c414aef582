package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/controllers"
)

// Controllers groups the handlers mounted under /bff.
type Controllers struct {
	Cart          *controllers.CartController
	Checkout      *controllers.CheckoutController
	Notifications *controllers.NotificationController
}

func RegisterRoutes(r *gin.Engine, ctrl Controllers, auth gin.HandlerFunc) {
	r.GET("/health", controllers.Health)

	protected := r.Group("/bff")
	protected.Use(auth)
	{
		// Cart page
		protected.GET("/cart", ctrl.Cart.GetCart)
		protected.POST("/cart/reload", ctrl.Cart.Reload)
		protected.POST("/cart/items", ctrl.Cart.AddItem)
		protected.PATCH("/cart/items/:product_id", ctrl.Cart.UpdateQuantity)
		protected.DELETE("/cart/items/:product_id", ctrl.Cart.RemoveItem)
		protected.DELETE("/cart", ctrl.Cart.Clear)

		// Checkout
		protected.GET("/checkout/options", ctrl.Checkout.Options)
		protected.POST("/checkout/validate", ctrl.Checkout.Validate)
		protected.POST("/checkout", ctrl.Checkout.Submit)
		protected.POST("/checkout/edit", ctrl.Checkout.Edit)
		protected.GET("/checkout/state", ctrl.Checkout.State)

		// Toasts
		protected.GET("/notifications/current", ctrl.Notifications.Current)
		protected.DELETE("/notifications/:id", ctrl.Notifications.Dismiss)
	}
}
