package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/interfaces"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

type PaymentStateHandler struct {
	ledger interfaces.LedgerReader
}

func NewPaymentStateHandler(ledger interfaces.LedgerReader) *PaymentStateHandler {
	return &PaymentStateHandler{ledger: ledger}
}

func (h *PaymentStateHandler) GetPaymentState(c *gin.Context) {
	transactionID := c.Param("id")

	tx, err := h.ledger.Get(c.Request.Context(), transactionID)
	if errors.Is(err, models.ErrTransactionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	if err != nil {
		telemetry.Logger.Error("Error fetching transaction", zap.String("transaction_id", transactionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transaction"})
		return
	}

	c.JSON(http.StatusOK, tx)
}
