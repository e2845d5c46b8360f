package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/frostdev-ops/pma-tvoverlay/pkg/errors"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrorHandlingMiddleware recovers panics, logs them with the request
// context and answers 500
func ErrorHandlingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"query":       c.Request.URL.RawQuery,
			"ip":          c.ClientIP(),
			"request_id":  getRequestID(c),
			"panic":       fmt.Sprintf("%+v", recovered),
			"stack_trace": string(debug.Stack()),
		}).Error("Panic recovered in API middleware")

		if !c.Writer.Written() {
			utils.SendAppError(c, errors.ErrInternalServer)
		}
		c.Abort()
	})
}

// ErrorResponseMiddleware answers requests whose handlers attached an error
// with c.Error but wrote no response
func ErrorResponseMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		status := errors.GetStatusCode(err)
		entry := logger.WithError(err).WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": status,
			"request_id":  getRequestID(c),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("API request error")
		} else {
			entry.Debug("API request rejected")
		}

		if c.Writer.Written() {
			return
		}
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			utils.SendAppError(c, appErr)
			return
		}
		utils.SendAppError(c, errors.ErrInternalServer)
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return c.GetHeader("X-Request-ID")
}
