package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

// respondError writes the public form of err. Server-side failures are
// logged with their cause, which is never sent to the caller.
func respondError(c *gin.Context, err error) {
	apiErr := apierrors.From(err)
	fields := []zap.Field{
		zap.String("code", apiErr.Code),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	}
	if apiErr.StatusCode >= http.StatusInternalServerError {
		telemetry.Logger.Error("Request failed", fields...)
	} else {
		telemetry.Logger.Warn("Request rejected", fields...)
	}
	c.JSON(apiErr.StatusCode, gin.H{"error": apiErr})
}

func bindError(c *gin.Context, err error) {
	telemetry.Logger.Warn("Invalid request body", zap.Error(err))
	apiErr := apierrors.InvalidRequestData(err.Error())
	c.JSON(apiErr.StatusCode, gin.H{"error": apiErr})
}
