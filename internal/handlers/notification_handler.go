package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/service"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/signature"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

// maxNotificationBytes bounds the webhook body read into memory.
const maxNotificationBytes = 64 << 10

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Notify receives the gateway webhook. The body is read once, as raw bytes,
// because the signature covers exactly what was sent.
func (h *NotificationHandler) Notify(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxNotificationBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "notification body too large"})
			return
		}
		telemetry.Logger.Warn("Error reading notification body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	result, err := h.svc.HandleNotification(c.Request.Context(), body, c.GetHeader(signature.Header), c.Request.Header)
	switch {
	case err == nil:
	case errors.Is(err, signature.ErrMissingSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
		return
	case errors.Is(err, signature.ErrInvalidSignature):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	case errors.Is(err, service.ErrMissingTransactionID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required"})
		return
	case errors.Is(err, service.ErrMalformedPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed notification body"})
		return
	default:
		// Non-200 makes the gateway deliver again; the ledger was not changed.
		telemetry.Logger.Error("Error processing notification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification could not be processed"})
		return
	}

	resp := gin.H{
		"status":         result.Outcome,
		"transaction_id": result.TransactionID,
	}
	if result.Status != "" {
		resp["state"] = result.Status
	}
	c.JSON(http.StatusOK, resp)
}
