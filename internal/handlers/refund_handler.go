package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/payment-switch/internal/middleware"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

type RefundService interface {
	CreateRefund(ctx context.Context, merchantID string, req *models.CreateRefundRequest) (*models.Refund, error)
	RetrieveRefund(ctx context.Context, merchantID string, req *models.RetrieveRefundRequest) (*models.Refund, error)
}

type RefundHandler struct {
	refunds RefundService
}

func NewRefundHandler(refunds RefundService) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

func (h *RefundHandler) CreateRefund(c *gin.Context) {
	var req models.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	refund, err := h.refunds.CreateRefund(c.Request.Context(), middleware.MerchantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

func (h *RefundHandler) GetRefund(c *gin.Context) {
	forceSync, _ := strconv.ParseBool(c.Query("force_sync"))

	refund, err := h.refunds.RetrieveRefund(c.Request.Context(), middleware.MerchantID(c), &models.RetrieveRefundRequest{
		RefundID:  c.Param("id"),
		ForceSync: forceSync,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}
