package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/placegw/internal/observability"
)

// SpanKey is the context key for the span.
const SpanKey = "otel-span"

// Tracing returns a middleware that starts a server span per request,
// continuing any trace propagated by the caller.
func Tracing(tracer *observability.Tracer, propagators propagation.TextMapPropagator) gin.HandlerFunc {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if propagators == nil {
		propagators = otel.GetTextMapPropagator()
	}

	return func(c *gin.Context) {
		ctx := propagators.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.StartSpan(ctx, c.Request.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("url.path", c.Request.URL.Path),
				attribute.String("client.address", c.ClientIP()),
				attribute.String("user_agent.original", c.Request.UserAgent()),
			),
		)
		defer span.End()

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		c.Set(SpanKey, span)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetName(fmt.Sprintf("%s %s", c.Request.Method, routeLabel(c)))
		span.SetAttributes(attribute.Int("http.response.status_code", status))

		if len(c.Errors) > 0 {
			span.RecordError(fmt.Errorf("%s", c.Errors.String()))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		}
	}
}

// GetSpan returns the span from the context.
func GetSpan(c *gin.Context) trace.Span {
	if span, exists := c.Get(SpanKey); exists {
		if s, ok := span.(trace.Span); ok {
			return s
		}
	}
	return nil
}
