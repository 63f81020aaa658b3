package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"preorder-svc/models"
	"preorder-svc/notion"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderStore is the slice of the structured-data store the tracker needs.
type OrderStore interface {
	FindOrderByRef(ctx context.Context, txRef string) (*models.Order, error)
}

// ProjectionCache is the slice of the cache the tracker needs. A nil cache
// means every lookup goes to the store.
type ProjectionCache interface {
	GetOrder(ctx context.Context, txRef string) ([]byte, error)
	SetOrder(ctx context.Context, txRef string, order interface{}, ttl time.Duration) error
}

type TrackHandler struct {
	store  OrderStore
	cache  ProjectionCache
	logger *zap.Logger
}

func NewTrackHandler(store OrderStore, cache ProjectionCache, logger *zap.Logger) *TrackHandler {
	return &TrackHandler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// TrackOrder projects a previously recorded order into its status view. An
// unknown reference is a user-visible not-found outcome, not a server error.
func (h *TrackHandler) TrackOrder(c *gin.Context) {
	ctx, span := otel.Tracer("preorder-service").Start(c.Request.Context(), "TrackOrder")
	defer span.End()

	var req models.TrackOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tx_ref"})
		return
	}

	span.SetAttributes(attribute.String("tx_ref", req.TxRef))

	if h.cache != nil {
		if data, err := h.cache.GetOrder(ctx, req.TxRef); err == nil {
			var resp models.TrackOrderResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	order, err := h.store.FindOrderByRef(ctx, req.TxRef)
	if err != nil {
		if errors.Is(err, notion.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found", "status": "not_found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to look up order",
			zap.String("tx_ref", req.TxRef),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	resp := models.TrackOrderResponse{
		Status:         order.Status,
		CustomerName:   order.Name,
		CustomerEmail:  order.Email,
		DeviceQuantity: order.DeviceQuantity,
		TxRef:          req.TxRef,
	}

	if h.cache != nil {
		if err := h.cache.SetOrder(ctx, req.TxRef, resp, 0); err != nil {
			h.logger.Warn("Failed to cache order projection", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, resp)
}
