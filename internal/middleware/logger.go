package middleware

import (
	"time"

	"donation_match_backend/internal/common"
	"donation_match_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// RequestIDHeader is the header name for request ID
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey is the key for storing request ID in Gin context
	RequestIDContextKey = "requestID"
)

// ZapLogger is a Gin middleware that logs requests using Zap. Handlers find a
// request-scoped logger under common.LoggerKey.
func ZapLogger(logger *zap.Logger, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Set(common.LoggerKey, logger.With(zap.String("request_id", requestID)))

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []zapcore.Field{
			zap.Int("status_code", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", requestID),
		}
		if clientID := c.GetString(common.ClientIDKey); clientID != "" {
			fields = append(fields, zap.String("client_id", clientID))
		}

		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			fields = append(fields, zap.NamedError("error", e.Err))
		}

		switch {
		case statusCode >= 500:
			logger.Error("Server error", fields...)
		case statusCode >= 400 && cfg.GinMode == "release":
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}
