package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"preorder-svc/config"
	"preorder-svc/middleware"
	"preorder-svc/models"
	"preorder-svc/payment"
	"preorder-svc/workflow"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	provider  payment.Provider
	confirmer *workflow.Confirmer
	cfg       *config.Config
	logger    *zap.Logger
}

func NewPaymentHandler(
	provider payment.Provider,
	confirmer *workflow.Confirmer,
	cfg *config.Config,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		provider:  provider,
		confirmer: confirmer,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreatePayment validates the preorder intent, opens a checkout with the
// configured gateway and returns the redirect link plus the transaction
// reference the client must hold on to across the redirect.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx, span := otel.Tracer("preorder-service").Start(c.Request.Context(), "CreatePayment")
	defer span.End()

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if err := h.providerConfig(); err != nil {
		span.RecordError(err)
		h.logger.Error("Payment provider not configured", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	quantity := int(req.Quantity)
	name := strings.TrimSpace(req.Name)
	email := payment.NormalizeEmail(req.Email)
	txRef := payment.NewTxRef()
	amount := h.cfg.DeviceUnitPrice * float64(quantity)

	span.SetAttributes(
		attribute.String("tx_ref", txRef),
		attribute.Int("quantity", quantity),
		attribute.Float64("amount", amount),
	)

	resp, err := h.provider.CreatePayment(ctx, payment.CreatePaymentRequest{
		TxRef:       txRef,
		Amount:      amount,
		Currency:    h.cfg.Currency,
		Name:        name,
		Email:       email,
		Quantity:    quantity,
		RedirectURL: fmt.Sprintf("%s/success?tx_ref=%s&payment_method=%s", h.cfg.BaseURL, txRef, h.provider.Name()),
		CancelURL:   h.cfg.BaseURL + "?canceled=true",
	})
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create payment",
			zap.String("tx_ref", txRef),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	middleware.RecordPaymentInitiated(h.provider.Name())
	h.logger.Info("Payment initiated",
		zap.String("tx_ref", txRef),
		zap.String("provider", h.provider.Name()),
		zap.Float64("amount", amount),
	)

	c.JSON(http.StatusOK, models.CreatePaymentResponse{
		Status: "success",
		TxRef:  resp.TxRef,
		Link:   resp.Link,
	})
}

// VerifyPayment is the pull-style confirmation: the client returns from the
// gateway redirect and asks for verification by transaction reference. A
// successful verification runs the full confirmation workflow.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	ctx, span := otel.Tracer("preorder-service").Start(c.Request.Context(), "VerifyPayment")
	defer span.End()

	txRef := c.Query("tx_ref")
	if txRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing transaction reference"})
		return
	}

	span.SetAttributes(attribute.String("tx_ref", txRef))

	if err := h.confirmConfig(); err != nil {
		span.RecordError(err)
		h.logger.Error("Verification requested with incomplete configuration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.confirmer.ConfirmByReference(ctx, txRef)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, payment.ErrNotSupported):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification not supported for configured provider"})
		case errors.Is(err, payment.ErrVerification):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "status": "failed"})
		case errors.Is(err, workflow.ErrMissingMetadata):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing metadata"})
		default:
			h.logger.Error("Confirmation failed",
				zap.String("tx_ref", txRef),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process payment confirmation"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) providerConfig() error {
	switch h.cfg.Provider {
	case config.ProviderStripe:
		return config.Require("STRIPE_SECRET_KEY", h.cfg.StripeSecretKey)
	default:
		return config.Require("FLUTTERWAVE_SECRET_KEY", h.cfg.FlutterwaveSecretKey)
	}
}

// confirmConfig covers everything a confirmation touches: the gateway for
// re-verification and the order store for recording.
func (h *PaymentHandler) confirmConfig() error {
	if err := h.providerConfig(); err != nil {
		return err
	}
	return config.Require(
		"NOTION_SECRET", h.cfg.NotionSecret,
		"NOTION_DB", h.cfg.NotionDatabaseID,
	)
}
