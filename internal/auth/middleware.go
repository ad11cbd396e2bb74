package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/observability"
)

// claimsContextKey is the gin context key under which verified Claims are
// stored.
const claimsContextKey = "auth_claims"

// Middleware returns a gin middleware that verifies the bearer token and
// makes the Claims available to handlers. Identity failures terminate the
// request immediately with 401; no upstream call is ever attempted.
func Middleware(verifier *Verifier, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		claims, err := verifier.Verify(c.GetHeader("Authorization"))
		if err != nil {
			logger.WithContext(c.Request.Context()).Debug("authentication failed",
				observability.String("path", c.Request.URL.Path),
				observability.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": err.Error()})
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}

// SetClaims stores verified Claims on the gin context and propagates the
// subject through the request context.
func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(claimsContextKey, claims)
	ctx := observability.ContextWithSubject(c.Request.Context(), claims.Subject)
	c.Request = c.Request.WithContext(ctx)
}

// ClaimsFrom returns the verified Claims stored by the middleware.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*Claims)
	return claims, ok
}
