package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/observability"
)

// Auditor records server-side failures.
type Auditor interface {
	LogError(r *http.Request, route string, status int, err error)
}

// Recovery returns a middleware that recovers from panics and converts
// them into well-formed 500 responses.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	return RecoveryWithAuditor(logger, nil)
}

// RecoveryWithAuditor additionally records each recovered panic as an
// audited failure. A panic is a programming fault and belongs in the
// same sink as any other server-side failure.
func RecoveryWithAuditor(logger observability.Logger, auditor Auditor) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()

				logger.Error("panic recovered",
					observability.Any("error", err),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("requestID", GetRequestID(c)),
					observability.String("stack", string(stack)),
				)

				if auditor != nil {
					auditor.LogError(c.Request, "panic", http.StatusInternalServerError,
						fmt.Errorf("panic: %v", err))
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"detail": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
