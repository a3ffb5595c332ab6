package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vyrodovalexey/placegw/internal/observability"
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the context key for request ID.
	RequestIDKey = "requestID"
	// RouteKey is the context key of the bounded route label set by handlers.
	RouteKey = "route"
)

// maxRequestIDLength caps client-supplied request ids.
const maxRequestIDLength = 128

// RequestID returns a middleware that reuses or generates a request ID and
// puts it on the response and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(observability.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// GetRequestID returns the request ID from the context.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if requestID, ok := id.(string); ok {
			return requestID
		}
	}
	return ""
}

// LoggingConfig holds configuration for the logging middleware.
type LoggingConfig struct {
	Logger    observability.Logger
	Metrics   *observability.Metrics
	SkipPaths []string
}

// Logging returns a middleware that logs completed requests and records
// request metrics.
func Logging(config LoggingConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		config.Metrics.RecordRequest(c.Request.Method, routeLabel(c), status, latency)

		if skipPaths[path] {
			return
		}

		fields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.String("query", c.Request.URL.RawQuery),
			observability.Int("status", status),
			observability.Duration("latency", latency),
			observability.String("client_ip", c.ClientIP()),
			observability.String("user_agent", c.Request.UserAgent()),
			observability.Int("body_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, observability.String("errors", c.Errors.String()))
		}

		logger := config.Logger.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// routeLabel returns a label with bounded cardinality for metrics.
func routeLabel(c *gin.Context) string {
	if route := c.GetString(RouteKey); route != "" {
		return route
	}
	if full := c.FullPath(); full != "" {
		return full
	}
	return "unmatched"
}
