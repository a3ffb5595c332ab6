// Package middleware provides the gin stages of the gateway pipeline.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/placegw/internal/apierror"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// Recovery returns a middleware that turns panics into a C001 response.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					observability.Any("error", err),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("client_ip", c.ClientIP()),
					observability.String("stack", string(debug.Stack())),
				)

				if span := GetSpan(c); span != nil {
					span.RecordError(fmt.Errorf("panic: %v", err))
				}

				if c.Writer.Written() {
					c.Abort()
					return
				}
				apierror.Abort(c, apierror.FromCode(apierror.InternalServerError))
			}
		}()

		c.Next()
	}
}
