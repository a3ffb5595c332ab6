package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/placegw/internal/backend"
	"github.com/vyrodovalexey/placegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/placegw/internal/config"
	httpserver "github.com/vyrodovalexey/placegw/internal/gateway/server/http"
	"github.com/vyrodovalexey/placegw/internal/observability"
	"github.com/vyrodovalexey/placegw/internal/vault"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway is the assembled edge gateway.
type Gateway struct {
	config *config.GatewayConfig
	logger observability.Logger
	state  atomic.Int32

	startTime       time.Time
	shutdownTimeout time.Duration
	buildInfo       BuildInfo

	secrets vault.SecretSource
	redis   *redis.Client

	metrics  *observability.Metrics
	tracer   *observability.Tracer
	breakers *circuitbreaker.Registry
	facade   *backend.Facade
	server   *httpserver.Server

	errCh chan error
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithShutdownTimeout overrides the configured shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// WithBuildInfo sets the version reported by the build info metric.
func WithBuildInfo(info BuildInfo) Option {
	return func(g *Gateway) {
		g.buildInfo = info
	}
}

// WithSecretSource replaces the signing secret source derived from the
// configuration.
func WithSecretSource(source vault.SecretSource) Option {
	return func(g *Gateway) {
		g.secrets = source
	}
}

// WithRedisClient uses client instead of creating one from the
// configuration. The gateway closes it on Stop.
func WithRedisClient(client *redis.Client) Option {
	return func(g *Gateway) {
		g.redis = client
	}
}

// New validates cfg and builds every gateway component. The signing secret
// is loaded here, so a missing secret fails construction. An unreachable
// Redis does not: the rate limiter fails open until it recovers.
func New(ctx context.Context, cfg *config.GatewayConfig, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	g := &Gateway{
		config:          cfg,
		logger:          observability.NopLogger(),
		shutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		buildInfo:       BuildInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"},
		errCh:           make(chan error, 1),
	}

	for _, opt := range opts {
		opt(g)
	}
	if g.shutdownTimeout <= 0 {
		g.shutdownTimeout = 30 * time.Second
	}

	if err := g.build(ctx); err != nil {
		g.closeResources(ctx)
		return nil, err
	}

	g.state.Store(int32(StateStopped))
	return g, nil
}

// Start starts serving in the background. Serve failures are reported on
// Errors.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	g.logger.Info("starting gateway",
		observability.String("address", g.server.Addr()),
		observability.Int("backends", len(g.config.Backends)),
		observability.Int("routes", len(g.config.Routes)),
	)

	go func() {
		if err := g.server.Start(ctx); err != nil {
			g.logger.Error("HTTP server failed", observability.Error(err))
			select {
			case g.errCh <- err:
			default:
			}
		}
	}()

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started", observability.String("version", g.buildInfo.Version))
	return nil
}

// Stop drains in-flight requests and releases the store connection and the
// trace exporter.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := g.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, name := range g.facade.Names() {
		g.facade.LogMetrics(name)
	}

	if err := g.closeResources(ctx); err != nil {
		errs = append(errs, err)
	}

	g.state.Store(int32(StateStopped))
	g.logger.Info("gateway stopped", observability.Duration("uptime", g.Uptime()))

	return errors.Join(errs...)
}

// closeResources shuts down the tracer and closes the Redis client.
func (g *Gateway) closeResources(ctx context.Context) error {
	var errs []error
	if g.tracer != nil {
		if err := g.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer: %w", err))
		}
	}
	if g.redis != nil {
		if err := g.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Errors reports fatal serve errors.
func (g *Gateway) Errors() <-chan error {
	return g.errCh
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Config returns the configuration the gateway was built from.
func (g *Gateway) Config() *config.GatewayConfig {
	return g.config
}

// Handler returns the gateway's request handler.
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler()
}

// Breakers returns the backend circuit breakers.
func (g *Gateway) Breakers() *circuitbreaker.Registry {
	return g.breakers
}
