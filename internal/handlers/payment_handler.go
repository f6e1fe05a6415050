// Package handlers adapts the switch's core operations to gin.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/middleware"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

// PaymentService is the payment pipeline as the HTTP layer sees it.
type PaymentService interface {
	CreatePayment(ctx context.Context, merchantID string, req *models.CreatePaymentRequest) (*models.PaymentResponse, error)
	ConfirmPayment(ctx context.Context, merchantID string, req *models.ConfirmPaymentRequest) (*models.PaymentResponse, error)
	CapturePayment(ctx context.Context, merchantID string, req *models.CapturePaymentRequest) (*models.PaymentResponse, error)
	CancelPayment(ctx context.Context, merchantID string, req *models.CancelPaymentRequest) (*models.PaymentResponse, error)
	RetrievePayment(ctx context.Context, merchantID string, req *models.RetrievePaymentRequest) (*models.PaymentResponse, error)
}

type PaymentHandler struct {
	payments PaymentService
}

func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	telemetry.Logger.Info("Creating payment",
		zap.String("merchant_id", middleware.MerchantID(c)),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
		zap.Bool("confirm", req.Confirm),
		zap.String("idempotency_key", c.GetString("idempotency_key")),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	resp, err := h.payments.CreatePayment(ctx, middleware.MerchantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	req.PaymentID = c.Param("id")

	resp, err := h.payments.ConfirmPayment(c.Request.Context(), middleware.MerchantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) CapturePayment(c *gin.Context) {
	var req models.CapturePaymentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}
	req.PaymentID = c.Param("id")

	resp, err := h.payments.CapturePayment(c.Request.Context(), middleware.MerchantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	var req models.CancelPaymentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}
	req.PaymentID = c.Param("id")

	resp, err := h.payments.CancelPayment(c.Request.Context(), middleware.MerchantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPayment returns the stored payment, syncing with the connector first
// when force_sync=true.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	forceSync, _ := strconv.ParseBool(c.Query("force_sync"))
	req := models.RetrievePaymentRequest{
		PaymentID: c.Param("id"),
		ForceSync: forceSync,
		Connector: c.Query("connector"),
	}

	resp, err := h.payments.RetrievePayment(c.Request.Context(), middleware.MerchantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// bindOptionalJSON accepts an empty body for operations whose fields are
// all optional.
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(out)
}
