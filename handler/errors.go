package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/gin-gonic/gin"
)

// respondError maps a service error to its HTTP status and aborts the request
func respondError(c *gin.Context, err error) {
	var (
		verr *model.ValidationError
		aerr *model.AuthorizationError
		xerr *model.ExternalServiceError
	)

	status := http.StatusInternalServerError
	body := gin.H{"error": "Internal server error"}

	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body = gin.H{"error": "Validation failed", "fields": verr.Fields}
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body = gin.H{"error": "Invalid email or password"}
	case errors.As(err, &aerr):
		status = http.StatusForbidden
		body = gin.H{"error": aerr.Error()}
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
		body = gin.H{"error": "Not found"}
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
		body = gin.H{"error": "The resource was changed by someone else"}
	case errors.Is(err, model.ErrSessionLoading), errors.Is(err, model.ErrStoreClosed):
		status = http.StatusServiceUnavailable
		body = gin.H{"error": "Service temporarily unavailable"}
	case errors.As(err, &xerr):
		status = http.StatusBadGateway
		body = gin.H{"error": xerr.Service + " service unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body = gin.H{"error": "Request timed out"}
	}

	ctx := c.Request.Context()
	switch {
	case status >= 500:
		logger.Error(ctx, "request failed", "status", status, "error", err)
	case status == http.StatusForbidden:
		logger.Warn(ctx, "access denied", "error", err)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// badRequest reports a body that could not be decoded
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
