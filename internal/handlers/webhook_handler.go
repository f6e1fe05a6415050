package handlers

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/core/webhooks"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

const maxWebhookBody = 1 << 20

type WebhookService interface {
	HandleWebhook(ctx context.Context, merchantID, connector string, body []byte) (webhooks.Outcome, error)
	HandleRedirect(ctx context.Context, merchantID, paymentID, connector string, query url.Values) (*models.PaymentResponse, error)
}

type WebhookHandler struct {
	webhooks WebhookService
}

func NewWebhookHandler(svc WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: svc}
}

// IncomingWebhook acknowledges a connector notification. Connectors are
// authenticated by path, not by the merchant header.
func (h *WebhookHandler) IncomingWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		bindError(c, err)
		return
	}

	outcome, err := h.webhooks.HandleWebhook(c.Request.Context(), c.Param("merchant_id"), c.Param("connector"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome})
}

// Redirect completes a payment when the customer's browser comes back from
// the connector. Payments with a return URL send the browser on to it.
func (h *WebhookHandler) Redirect(c *gin.Context) {
	resp, err := h.webhooks.HandleRedirect(c.Request.Context(),
		c.Param("merchant_id"), c.Param("id"), c.Param("connector"), c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	if resp.ReturnURL == "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	target, err := url.Parse(resp.ReturnURL)
	if err != nil {
		respondError(c, apierrors.InvalidDataValue("return_url"))
		return
	}
	q := target.Query()
	q.Set("payment_id", resp.PaymentID)
	q.Set("status", string(resp.Status))
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}
