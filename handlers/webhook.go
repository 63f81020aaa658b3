package handlers

import (
	"errors"
	"net/http"

	"preorder-svc/config"
	"preorder-svc/payment"
	"preorder-svc/workflow"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	confirmer *workflow.Confirmer
	cfg       *config.Config
	logger    *zap.Logger
}

func NewWebhookHandler(confirmer *workflow.Confirmer, cfg *config.Config, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		confirmer: confirmer,
		cfg:       cfg,
		logger:    logger,
	}
}

// HandleWebhook is the push-style confirmation trigger. One handler serves
// the route; the configured provider decides whether push confirmations are
// available at all.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	ctx, span := otel.Tracer("preorder-service").Start(c.Request.Context(), "HandleWebhook")
	defer span.End()

	if h.cfg.Provider != config.ProviderFlutterwave {
		h.logger.Error("Webhook received but configured provider has no webhook support",
			zap.String("provider", h.cfg.Provider),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhooks not supported for configured provider"})
		return
	}

	if err := config.Require(
		"NOTION_SECRET", h.cfg.NotionSecret,
		"NOTION_DB", h.cfg.NotionDatabaseID,
	); err != nil {
		h.logger.Error("Webhook received with incomplete configuration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var event workflow.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook body"})
		return
	}

	span.SetAttributes(
		attribute.String("event", event.Event),
		attribute.String("tx_ref", event.Data.TxRef),
	)

	signature := c.GetHeader("verif-hash")

	_, err := h.confirmer.ConfirmWebhook(ctx, signature, event)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, workflow.ErrMissingSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No signature provided"})
		case errors.Is(err, workflow.ErrBadSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		case errors.Is(err, workflow.ErrNotConfigured):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		case errors.Is(err, workflow.ErrMissingMetadata):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing metadata"})
		case errors.Is(err, payment.ErrVerification):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction verification failed"})
		default:
			h.logger.Error("Webhook processing failed",
				zap.String("tx_ref", event.Data.TxRef),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process payment confirmation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
