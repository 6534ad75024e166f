package middleware

import (
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware enforces the per-client token bucket. This is the
// HTTP-level limiter; the validator's sliding windows apply per user
// address inside the intent checks.
func RateLimitMiddleware(registry *service.ClientRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientVal, exists := c.Get(ContextClientKey)
		if !exists {
			// AuthMiddleware should have run first
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized", nil))
			c.Abort()
			return
		}
		client := clientVal.(*service.Client)

		limiter := registry.LimiterFor(client.ID)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.Error(apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
