package middleware

import (
	"net/http"

	"donation_match_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler turns errors attached with c.Error into JSON responses and
// gives unmatched routes the standard error body.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			ginErr := c.Errors.Last()
			if apiErr, ok := common.IsAPIError(ginErr.Err); ok {
				c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
				return
			}
			logger.Error("Unhandled application error",
				zap.Error(ginErr.Err),
				zap.String("path", c.Request.URL.Path),
				zap.Any("meta", ginErr.Meta),
				zap.String("request_id", c.GetString(RequestIDContextKey)),
			)
			genericError := common.ErrInternalServer.WithDetails("An unexpected error occurred.")
			if gin.Mode() == gin.DebugMode {
				genericError = genericError.WithDetails(ginErr.Err.Error())
			}
			c.AbortWithStatusJSON(genericError.StatusCode, genericError)
			return
		}

		if c.Writer.Written() {
			return
		}
		switch c.Writer.Status() {
		case http.StatusNotFound:
			notFoundErr := common.ErrNotFound.WithDetails("The requested endpoint does not exist.")
			c.AbortWithStatusJSON(notFoundErr.StatusCode, notFoundErr)
		case http.StatusMethodNotAllowed:
			methodNotAllowedErr := common.NewAPIError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The method is not allowed for the requested URL.")
			c.AbortWithStatusJSON(methodNotAllowedErr.StatusCode, methodNotAllowedErr)
		}
	}
}
