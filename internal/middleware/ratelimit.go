package middleware

import (
	"net/http"
	"strconv"
	"time"

	"chatdesk/internal/dto"
	"chatdesk/internal/limiter"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Rate Limit Middleware
// Fixed window per principal (client IP before auth). Redis errors let the
// request through
// ===========================================================================

// RateLimit limits requests per window; a nil manager or limit <= 0
// disables it
func RateLimit(manager *limiter.Manager, scope string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if p, ok := GetPrincipal(c); ok {
			subject = p.ID
		}

		allowed, err := manager.Allow(c.Request.Context(), scope+":"+subject, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.Error("RATE_LIMITED", "Too many messages, slow down"))
			return
		}

		c.Next()
	}
}
