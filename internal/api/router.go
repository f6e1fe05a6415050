package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/payment-switch/internal/handlers"
	"github.com/akylbek/payment-system/payment-switch/internal/middleware"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

type Dependencies struct {
	Payments    handlers.PaymentService
	Refunds     handlers.RefundService
	Webhooks    handlers.WebhookService
	Idempotency middleware.IdempotencyStore
}

func NewRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "payment-switch"})
	})

	paymentHandler := handlers.NewPaymentHandler(deps.Payments)
	refundHandler := handlers.NewRefundHandler(deps.Refunds)
	webhookHandler := handlers.NewWebhookHandler(deps.Webhooks)

	// Connector callbacks carry the merchant in the path.
	r.POST("/webhooks/:merchant_id/:connector", webhookHandler.IncomingWebhook)
	r.GET("/payments/:id/:merchant_id/redirect/:connector", webhookHandler.Redirect)

	payments := r.Group("/payments", middleware.RequireMerchant())
	{
		payments.POST("", middleware.IdempotencyMiddleware(deps.Idempotency), paymentHandler.CreatePayment)
		payments.GET("/:id", paymentHandler.GetPayment)
		payments.POST("/:id/confirm", paymentHandler.ConfirmPayment)
		payments.POST("/:id/capture", paymentHandler.CapturePayment)
		payments.POST("/:id/cancel", paymentHandler.CancelPayment)
	}

	refunds := r.Group("/refunds", middleware.RequireMerchant())
	{
		refunds.POST("", refundHandler.CreateRefund)
		refunds.GET("/:id", refundHandler.GetRefund)
	}

	return r
}
