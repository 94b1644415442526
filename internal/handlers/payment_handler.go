package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/gateway"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/service"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

const defaultCurrency = "XOF"

type initiatePaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Description     string          `json:"description" validate:"required,max=255"`
	CustomerName    string          `json:"customer_name" validate:"omitempty,max=100"`
	CustomerSurname string          `json:"customer_surname" validate:"omitempty,max=100"`
	CustomerEmail   string          `json:"customer_email" validate:"omitempty,email"`
	OrderRef        string          `json:"order_ref" validate:"omitempty,max=64"`
}

type PaymentHandler struct {
	initiator *service.PaymentInitiator
	validate  *validator.Validate
}

func NewPaymentHandler(initiator *service.PaymentInitiator) *PaymentHandler {
	return &PaymentHandler{
		initiator: initiator,
		validate:  validator.New(),
	}
}

func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Warn("Error decoding payment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	amount, ok := gateway.ToMinorUnits(req.Amount, currency)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is not representable in " + currency})
		return
	}

	result, err := h.initiator.Initiate(c.Request.Context(), service.InitiateRequest{
		Amount:          amount,
		Currency:        currency,
		Description:     req.Description,
		CustomerName:    req.CustomerName,
		CustomerSurname: req.CustomerSurname,
		CustomerEmail:   req.CustomerEmail,
		OrderRef:        req.OrderRef,
	})
	if err != nil {
		telemetry.Logger.Error("Error initiating payment", zap.Error(err))
		switch {
		case errors.Is(err, gateway.ErrRejected), errors.Is(err, gateway.ErrMalformedResponse):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway refused the request"})
		case gateway.IsTransient(err):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment gateway unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate payment"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
