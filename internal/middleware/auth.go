package middleware

import (
	"github.com/GoSwapGuard/swapguard/internal/config"
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderGatewayKey = "X-Gateway-Key"
	ContextClientKey = "client"
)

func AuthMiddleware(cfg *config.Config, registry *service.ClientRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			if cfg != nil && !cfg.Auth.RequireAPIKey {
				if client := registry.DefaultClient(); client != nil {
					c.Set(ContextClientKey, client)
					c.Next()
					return
				}
			}
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing API key", nil))
			c.Abort()
			return
		}

		client, ok := registry.ByAPIKey(apiKey)
		if !ok {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid API key", nil))
			c.Abort()
			return
		}

		c.Set(ContextClientKey, client)
		c.Next()
	}
}
