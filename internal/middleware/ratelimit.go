package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/infinitehq/aimlgw/internal/config"
	"github.com/infinitehq/aimlgw/internal/observability"
)

// clientLimiters tracks a token bucket per client IP.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func (cl *clientLimiters) get(key string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	limiter, ok := cl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(cl.rps, cl.burst)
		cl.limiters[key] = limiter
	}
	return limiter
}

// RateLimit returns a middleware that applies a per-client token bucket
// limit. When rate limiting is disabled in configuration the middleware
// is a pass-through.
func RateLimit(cfg *config.RateLimitConfig, logger observability.Logger) gin.HandlerFunc {
	if cfg == nil || !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
	}

	limiters := &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(cfg.RPS),
		burst:    burst,
	}

	return func(c *gin.Context) {
		key := c.ClientIP()

		if !limiters.get(key).Allow() {
			logger.Debug("rate limit exceeded",
				observability.String("clientIP", key),
				observability.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": "Rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
