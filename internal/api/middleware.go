package api

import (
	"net/http"
	"strings"

	"cartsaver/internal/store"

	"github.com/gin-gonic/gin"
)

const shopContextKey = "shop"

// authMiddleware validates the session token and scopes the request to
// the shop named in its claims
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		claims, err := h.jwtService.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(shopContextKey, store.NormalizeShopDomain(claims.Shop))
		c.Next()
	}
}

// shopFromContext returns the shop domain the session is scoped to
func shopFromContext(c *gin.Context) string {
	return c.GetString(shopContextKey)
}
