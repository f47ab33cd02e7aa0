package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// AccessTokenCookie carries the access token for browser page requests.
const AccessTokenCookie = "access_token"

// TokenValidator turns an access token into claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token, taken from the
// Authorization header or, failing that, the access token cookie.
func JWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			token string
			ok    bool
		)
		if header := c.GetHeader("Authorization"); header != "" {
			token, ok = bearer(header)
			if !ok {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
				c.Abort()
				return
			}
		} else {
			token, ok = cookieToken(c)
		}
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when a valid token is present in the
// Authorization header or the access token cookie. It never blocks.
func OptionalJWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			token, ok = cookieToken(c)
		}
		if ok {
			if claims, err := auth.ValidateToken(c.Request.Context(), token); err == nil {
				c.Set(ContextUserKey, claims)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the claims attached by JWT or OptionalJWT.
func CurrentUser(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

func cookieToken(c *gin.Context) (string, bool) {
	cookie, err := c.Cookie(AccessTokenCookie)
	if err != nil || cookie == "" {
		return "", false
	}
	return cookie, true
}

func bearer(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
