package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jewelrybyluna/storefront/services/common/auth"
	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
)

const (
	UserContextKey  = "userID"
	TokenContextKey = "token"
	userObjectKey   = "user"

	// TokenCookie is read when no Authorization header is sent.
	TokenCookie = "token"
	accessType  = "access"
)

// AuthMiddleware verifies the shopper's access token. Signed-out requests get a 401
// carrying a login redirect instead of reaching the handler.
func AuthMiddleware(secret []byte, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			if v, err := c.Cookie(TokenCookie); err == nil && v != "" {
				token, ok = v, true
			}
		}
		if !ok {
			abortLogin(c, loginPath)
			return
		}

		claims, err := auth.ParseAndValidateToken(token, accessType, secret)
		if err != nil {
			abortLogin(c, loginPath)
			return
		}
		user, ok := auth.UserFromClaims(claims)
		if !ok {
			abortLogin(c, loginPath)
			return
		}

		c.Set(UserContextKey, user.ID)
		c.Set(userObjectKey, user)
		c.Set(TokenContextKey, token)
		c.Next()
	}
}

// GetUser returns the authenticated user and the raw token.
func GetUser(c *gin.Context) (auth.User, string, error) {
	val, exists := c.Get(userObjectKey)
	if !exists {
		return auth.User{}, "", errors.New("user not found in context")
	}
	user, ok := val.(auth.User)
	if !ok || user.ID == "" {
		return auth.User{}, "", errors.New("user has invalid type in context")
	}
	return user, c.GetString(TokenContextKey), nil
}

// LoginRequired renders the auth_required error together with the login redirect.
func LoginRequired(c *gin.Context, loginPath string) {
	abortLogin(c, loginPath)
}

func abortLogin(c *gin.Context, loginPath string) {
	e := apperrors.ErrAuthRequired
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":     e.Code,
		"kind":     e.Kind,
		"message":  e.Message,
		"redirect": models.Redirect{Mode: models.RedirectLogin, URL: loginPath},
	})
}
