package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/services"
)

type NotificationController struct {
	registry *services.Registry
}

func NewNotificationController(registry *services.Registry) *NotificationController {
	return &NotificationController{registry: registry}
}

// Current answers 204 when nothing is showing.
func (nc *NotificationController) Current(c *gin.Context) {
	sf, ok := storefrontFor(c, nc.registry)
	if !ok {
		return
	}
	note, ok := sf.Toasts.Current()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, note)
}

// Dismiss is idempotent: a stale or repeated id still answers 200.
func (nc *NotificationController) Dismiss(c *gin.Context) {
	sf, ok := storefrontFor(c, nc.registry)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"dismissed": sf.Toasts.Dismiss(c.Param("id"))})
}
