package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	service "github.com/mamadbah2/stationledger/internal/service/whatsapp"
)

const businessAccountObject = "whatsapp_business_account"

// WebhookHandler lets station managers record entries over WhatsApp.
type WebhookHandler struct {
	messaging service.MessagingService
	logger    *zap.Logger
}

// NewWebhookHandler wraps the messaging service for the callback routes.
func NewWebhookHandler(messaging service.MessagingService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{messaging: messaging, logger: logger}
}

// Verify echoes hub.challenge once the subscription token matches.
func (h *WebhookHandler) Verify(c *gin.Context) {
	challenge := c.Query("hub.challenge")
	if challenge == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hub.challenge is required"})
		return
	}

	echo, err := h.messaging.VerifyWebhookToken(c.Query("hub.mode"), c.Query("hub.verify_token"), challenge)
	if err != nil {
		h.logger.Warn("webhook subscription rejected",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("mode", c.Query("hub.mode")),
			zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"error": "subscription rejected"})
		return
	}

	h.logger.Info("webhook subscription confirmed", zap.String("request_id", c.GetString("request_id")))
	c.String(http.StatusOK, echo)
}

// Receive hands inbound station messages to the command pipeline. Every
// parsed delivery is acknowledged with 200, otherwise Meta redelivers it.
func (h *WebhookHandler) Receive(c *gin.Context) {
	requestID := c.GetString("request_id")

	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("undecodable webhook delivery", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}

	if payload.Object != "" && payload.Object != businessAccountObject {
		h.logger.Debug("skipping non-whatsapp delivery", zap.String("request_id", requestID), zap.String("object", payload.Object))
		c.JSON(http.StatusOK, gin.H{"received": 0})
		return
	}

	messages := inboundCount(payload)
	if err := h.messaging.HandleWebhook(c.Request.Context(), payload); err != nil {
		h.logger.Error("station messages not fully processed",
			zap.String("request_id", requestID),
			zap.Int("messages", messages),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"received": messages})
}

func inboundCount(payload models.WebhookPayload) int {
	n := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			n += len(change.Value.Messages)
		}
	}
	return n
}
