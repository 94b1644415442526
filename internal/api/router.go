package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/handlers"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/interfaces"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/service"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

const serviceName = "cinetpay-gateway"

type Services struct {
	Ledger       interfaces.LedgerReader
	Notification *service.NotificationService
	Return       *service.ReturnService
	Initiator    *service.PaymentInitiator
	// MetricsHandler serves /metrics. Nil uses the default Prometheus registry.
	MetricsHandler http.Handler
}

func NewRouter(s Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())
	r.SetHTMLTemplate(handlers.ReturnTemplate())

	// Prometheus metrics
	metrics := s.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metrics))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	// Gateway-facing routes
	notificationHandler := handlers.NewNotificationHandler(s.Notification)
	returnHandler := handlers.NewReturnHandler(s.Return)
	paymentHandler := handlers.NewPaymentHandler(s.Initiator)

	payment := r.Group("/api/payment")
	payment.POST("/notify", notificationHandler.Notify)
	payment.GET("/return", returnHandler.Return)
	payment.POST("/return", returnHandler.Return)
	payment.POST("/initiate", paymentHandler.InitiatePayment)

	stateHandler := handlers.NewPaymentStateHandler(s.Ledger)
	r.GET("/payments/:id/state", stateHandler.GetPaymentState)

	return r
}
