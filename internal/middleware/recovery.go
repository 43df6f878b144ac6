package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/contextmeet/contextmeet/pkg/logger"
	"github.com/contextmeet/contextmeet/pkg/response"

	appErrors "github.com/contextmeet/contextmeet/pkg/errors"
)

// Recovery converts handler panics into a generic 500 JSON response. The
// panic value is logged but never echoed to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.WithModule("http").Error("panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", r),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Success: false,
				Error: &response.ErrorInfo{
					Code:    appErrors.ErrInternalServer.Code,
					Message: appErrors.ErrInternalServer.Message,
				},
			})
		}()
		c.Next()
	}
}

// NotFoundHandler renders unknown routes as a JSON 404.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, appErrors.ErrNotFound)
}
