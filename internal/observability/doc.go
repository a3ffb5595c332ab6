// Package observability provides logging, metrics, and tracing for the
// gateway.
//
// Logging is structured via zap behind the Logger interface:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	logger.Info("request processed",
//	    observability.String("method", "GET"),
//	    observability.Int("status", 200),
//	)
//
// Metrics live on a dedicated Prometheus registry exposed by
// Metrics.Handler. Tracing uses OpenTelemetry with an optional OTLP gRPC
// exporter; a disabled tracer is a no-op.
package observability
