package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cartsaver/internal/auth"
	"cartsaver/internal/models"
	"cartsaver/internal/service"
	"cartsaver/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ActivityLister serves the dashboard's audit feed. *store.Store
// satisfies it.
type ActivityLister interface {
	ListActivities(ctx context.Context, shop string, limit, offset int) ([]models.Activity, error)
}

// Handler contains HTTP handlers
type Handler struct {
	cartService    *service.CartService
	syncService    *service.SyncService
	shopService    *service.ShopService
	webhookService *service.WebhookService
	activities     ActivityLister
	jwtService     *auth.JWTService
	webhookSecret  string
	syncLimit      int
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	syncService *service.SyncService,
	shopService *service.ShopService,
	webhookService *service.WebhookService,
	activities ActivityLister,
	jwtService *auth.JWTService,
	webhookSecret string,
	syncLimit int,
) *Handler {
	return &Handler{
		cartService:    cartService,
		syncService:    syncService,
		shopService:    shopService,
		webhookService: webhookService,
		activities:     activities,
		jwtService:     jwtService,
		webhookSecret:  webhookSecret,
		syncLimit:      syncLimit,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/webhooks", h.handleWebhook)

	api := router.Group("/api")
	api.Use(h.authMiddleware())
	{
		api.GET("/carts", h.listCarts)
		api.GET("/carts/stats", h.cartStats)
		api.POST("/carts/sync", h.syncCarts)
		api.GET("/carts/:id", h.getCart)
		api.PATCH("/carts/:id/status", h.updateCartStatus)
		api.DELETE("/carts/:id", h.deleteCart)

		api.GET("/shop", h.getShop)
		api.GET("/shop/info", h.getShopInfo)
		api.PUT("/shop/settings", h.updateSettings)
		api.POST("/shop/webhooks/setup", h.setupWebhooks)
		api.GET("/shop/webhooks", h.webhookStatuses)

		api.GET("/activities", h.listActivities)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listCarts handles the dashboard cart list
func (h *Handler) listCarts(c *gin.Context) {
	shop := shopFromContext(c)
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.cartService.ListCarts(c.Request.Context(), shop, status, page, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list carts",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// getCart handles get cart by ID
func (h *Handler) getCart(c *gin.Context) {
	shop := shopFromContext(c)
	cartID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart ID"})
		return
	}

	cart, err := h.cartService.GetCart(c.Request.Context(), shop, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get cart",
			"details": err.Error(),
		})
		return
	}
	if cart == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// updateCartStatus handles administrative status changes
func (h *Handler) updateCartStatus(c *gin.Context) {
	shop := shopFromContext(c)
	cartID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart ID"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	cart, err := h.cartService.UpdateStatus(c.Request.Context(), shop, cartID, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to update cart status",
			"details": err.Error(),
		})
		return
	}
	if cart == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// deleteCart handles cart deletion
func (h *Handler) deleteCart(c *gin.Context) {
	shop := shopFromContext(c)
	cartID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart ID"})
		return
	}

	deleted, err := h.cartService.Delete(c.Request.Context(), shop, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to delete cart",
			"details": err.Error(),
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart deleted"})
}

// syncCarts triggers a reconciliation run against the platform
func (h *Handler) syncCarts(c *gin.Context) {
	shop, err := h.shopService.GetShop(c.Request.Context(), shopFromContext(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	limit := h.syncLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	result, err := h.syncService.Reconcile(c.Request.Context(), shop, limit)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to sync carts",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// cartStats serves aggregated recovery statistics
func (h *Handler) cartStats(c *gin.Context) {
	shop := shopFromContext(c)
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := h.cartService.RecoveryStats(c.Request.Context(), shop, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to compute stats",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// getShop returns the shop record for the session
func (h *Handler) getShop(c *gin.Context) {
	shop, err := h.shopService.GetShop(c.Request.Context(), shopFromContext(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, shop)
}

// getShopInfo proxies the platform's own shop record
func (h *Handler) getShopInfo(c *gin.Context) {
	shop, err := h.shopService.GetShop(c.Request.Context(), shopFromContext(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	info, err := h.shopService.GetShopInfo(c.Request.Context(), shop)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch shop info",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, info)
}

// updateSettings replaces the shop's settings
func (h *Handler) updateSettings(c *gin.Context) {
	var settings models.ShopSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	shop, err := h.shopService.UpdateSettings(c.Request.Context(), shopFromContext(c), settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to update settings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, shop)
}

// setupWebhooks provisions the required webhook subscriptions
func (h *Handler) setupWebhooks(c *gin.Context) {
	shop, err := h.shopService.GetShop(c.Request.Context(), shopFromContext(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	created, err := h.shopService.SetupWebhooks(c.Request.Context(), shop)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to set up webhooks",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Webhooks configured",
		"webhooks": created,
	})
}

// webhookStatuses reports which required subscriptions are live
func (h *Handler) webhookStatuses(c *gin.Context) {
	shop, err := h.shopService.GetShop(c.Request.Context(), shopFromContext(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	statuses, err := h.shopService.WebhookStatuses(c.Request.Context(), shop)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to list webhooks",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"webhooks": statuses})
}

// listActivities serves the shop's audit feed, newest first
func (h *Handler) listActivities(c *gin.Context) {
	shop := shopFromContext(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	activities, err := h.activities.ListActivities(c.Request.Context(), shop, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list activities",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
