package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/middleware"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/services"
)

// storefrontFor returns the calling shopper's storefront. The auth middleware must have run.
func storefrontFor(c *gin.Context, registry *services.Registry) (*services.Storefront, bool) {
	user, token, err := middleware.GetUser(c)
	if err != nil {
		_ = c.Error(apperrors.Wrap(apperrors.ErrUnauthorized, err))
		return nil, false
	}
	return registry.Acquire(user, token), true
}

func bindError(c *gin.Context, err error) {
	_ = c.Error(apperrors.WithMessage(apperrors.ErrBadRequest, "Invalid request body", err))
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
