package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// RateLimit limits requests per client IP using the shared limiter.
// Store failures let the request through.
func RateLimit(limiter *ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Error("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if !d.Allowed {
			response.TooManyRequests(c, d.RetryAfterSeconds(), "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}
