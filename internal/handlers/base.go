package handlers

import (
	"net/http"

	"chatdesk/internal/auth"
	"chatdesk/internal/dto"
	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Error Helpers
// Services return sentinel based errors; the mapping to status and code
// lives in internal/errors
// ===========================================================================

// respondError writes the error envelope. Server side failures are logged
// with the request id, client errors only at debug
func respondError(c *gin.Context, logger *zap.Logger, err error, op string) {
	status, body := dto.ErrorFromErr(err)

	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("op", op),
		zap.Error(err),
	}
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		logger.Error("request failed", fields...)
	case status == http.StatusServiceUnavailable:
		c.Header("Retry-After", "1")
		logger.Warn("request rejected", fields...)
	default:
		logger.Debug("request rejected", fields...)
	}

	c.JSON(status, body)
}

// bindError answers a request that failed binding
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.Error(apperrors.ErrorCode(apperrors.ErrValidation), err.Error()))
}

// paramID parses a uuid path parameter, answering 400 when it is malformed
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("VALIDATION_ERROR", name+" must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// principal caller set by middleware.Auth; routes are always behind it
func principal(c *gin.Context) *auth.Principal {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return &auth.Principal{}
	}
	return p
}

// optionalUUID parses s, nil for ""
func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
