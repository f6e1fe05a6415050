// Package middleware holds the gin middleware of the switch's HTTP API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
)

const (
	MerchantHeader = "X-Merchant-Id"
	merchantKey    = "merchant_id"
)

// RequireMerchant rejects requests that do not name a merchant.
func RequireMerchant() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(MerchantHeader)
		if id == "" {
			apiErr := apierrors.MissingRequiredFieldError(MerchantHeader)
			c.AbortWithStatusJSON(apiErr.StatusCode, gin.H{"error": apiErr})
			return
		}
		c.Set(merchantKey, id)
		c.Next()
	}
}

// MerchantID returns the merchant set by RequireMerchant.
func MerchantID(c *gin.Context) string {
	return c.GetString(merchantKey)
}
