package api

import (
	"net/http"

	"cartsaver/internal/service"
	"cartsaver/internal/shopify"
	"cartsaver/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Webhook headers sent by Shopify
const (
	headerHmac       = "X-Shopify-Hmac-Sha256"
	headerShopDomain = "X-Shopify-Shop-Domain"
	headerTopic      = "X-Shopify-Topic"
	headerWebhookID  = "X-Shopify-Webhook-Id"
)

// handleWebhook ingests one delivery. The response code is the only
// signal the sender acts on: 2xx acknowledges, anything else causes a
// redelivery. Terminal conditions are acknowledged so they are not
// redelivered forever; only transient store failures ask for a retry.
func (h *Handler) handleWebhook(c *gin.Context) {
	logger := util.GetLogger()

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	signature := c.GetHeader(headerHmac)
	if !shopify.VerifyWebhookSignature(h.webhookSecret, body, signature) {
		// Unverifiable deliveries are acknowledged, never processed.
		// Failing them would only trigger redeliveries of the same
		// forgery.
		util.WebhooksRejectedTotal.Inc()
		logger.Warn("Webhook signature verification failed",
			zap.String("shop", c.GetHeader(headerShopDomain)),
			zap.String("topic", c.GetHeader(headerTopic)))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	shop := c.GetHeader(headerShopDomain)
	if shop == "" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	topic, err := service.ParseTopic(c.GetHeader(headerTopic))
	if err != nil {
		util.WebhooksFailedTotal.WithLabelValues(c.GetHeader(headerTopic), "unknown_topic").Inc()
		logger.Warn("Webhook for unknown topic",
			zap.String("shop", shop),
			zap.String("topic", c.GetHeader(headerTopic)))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	deliveryID := c.GetHeader(headerWebhookID)

	if err := h.webhookService.HandleEvent(c.Request.Context(), topic, shop, body, deliveryID); err != nil {
		if service.Terminal(err) {
			util.WebhooksFailedTotal.WithLabelValues(string(topic), "terminal").Inc()
			logger.Info("Webhook dropped",
				zap.String("shop", shop),
				zap.String("topic", string(topic)),
				zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		util.WebhooksFailedTotal.WithLabelValues(string(topic), "transient").Inc()
		logger.Error("Webhook processing failed, requesting redelivery",
			zap.String("shop", shop),
			zap.String("topic", string(topic)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
