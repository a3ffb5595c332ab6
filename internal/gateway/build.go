package gateway

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/propagation"

	"github.com/vyrodovalexey/placegw/internal/auth"
	"github.com/vyrodovalexey/placegw/internal/backend"
	"github.com/vyrodovalexey/placegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/placegw/internal/config"
	httpserver "github.com/vyrodovalexey/placegw/internal/gateway/server/http"
	"github.com/vyrodovalexey/placegw/internal/gateway/server/http/middleware"
	"github.com/vyrodovalexey/placegw/internal/health"
	"github.com/vyrodovalexey/placegw/internal/observability"
	"github.com/vyrodovalexey/placegw/internal/ratelimit"
	"github.com/vyrodovalexey/placegw/internal/ratelimit/store"
	"github.com/vyrodovalexey/placegw/internal/token"
	"github.com/vyrodovalexey/placegw/internal/vault"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "placegw"

// maxHeaderBytes caps request header size.
const maxHeaderBytes = 1 << 20

// build creates the components in dependency order.
func (g *Gateway) build(ctx context.Context) error {
	cfg := g.config

	gate, err := g.buildGate(ctx)
	if err != nil {
		return err
	}

	g.metrics = observability.NewMetrics(metricsNamespace)
	g.metrics.SetBuildInfo(g.buildInfo.Version, g.buildInfo.Commit, g.buildInfo.BuildTime)

	g.tracer, err = observability.NewTracer(ctx, cfg.Observability.TracerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	storeCfg := cfg.Redis.StoreConfig()
	if g.redis == nil {
		g.redis = store.NewClient(storeCfg)
	}
	if err := store.Connect(ctx, g.redis, storeCfg, g.logger); err != nil {
		g.logger.Warn("redis unavailable at startup, rate limiting fails open until it recovers",
			observability.String("address", storeCfg.Address),
			observability.Error(err),
		)
	}

	names := cfg.BackendNames()
	g.breakers = circuitbreaker.NewRegistry(names, cfg.CircuitBreaker.BreakerConfig(), g.logger)
	g.metrics.MustRegisterCollector(circuitbreaker.NewCollector(g.breakers))

	g.facade, err = backend.NewFacade(cfg.Targets(), g.breakers,
		backend.WithLogger(g.logger),
		backend.WithMetrics(g.metrics),
		backend.WithTracer(g.tracer),
	)
	if err != nil {
		return fmt.Errorf("failed to create backend facade: %w", err)
	}

	router, err := backend.NewRouter(cfg.RouteTable(), names)
	if err != nil {
		return fmt.Errorf("failed to build route table: %w", err)
	}

	pipeline, err := g.buildPipeline(gate, storeCfg.Prefix)
	if err != nil {
		return err
	}

	checker := health.NewChecker(config.ServiceName, g.redis, g.breakers)

	g.server, err = httpserver.NewServer(serverConfig(&cfg.Server), httpserver.Dependencies{
		Pipeline:  pipeline,
		Router:    router,
		Forwarder: g.facade,
		Health:    checker.Handler(),
		Metrics:   g.metrics.Handler(),
		Logger:    g.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	return nil
}

// buildGate loads the signing secret and creates the authentication gate.
func (g *Gateway) buildGate(ctx context.Context) (*auth.Gate, error) {
	jwt := g.config.Auth.JWT

	if g.secrets == nil {
		source, err := vault.NewSecretSource(jwt.Secret, jwt.Vault.KVConfig(), g.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSigningSecret, err)
		}
		g.secrets = source
	}

	secret, err := g.secrets.Secret(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningSecret, err)
	}

	gateCfg := g.config.Auth.GateConfig()
	gateCfg.Validator = token.New(secret)
	gateCfg.Logger = g.logger

	gate, err := auth.NewGate(gateCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create authentication gate: %w", err)
	}
	return gate, nil
}

// buildPipeline creates the request stages. Rate limiting is left out when
// disabled.
func (g *Gateway) buildPipeline(gate *auth.Gate, keyPrefix string) (*httpserver.Pipeline, error) {
	cfg := g.config

	propagators := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	stages := []httpserver.Stage{
		{Name: httpserver.StageRecovery, Handler: middleware.Recovery(g.logger)},
		{Name: httpserver.StageRequestID, Handler: middleware.RequestID()},
		{Name: httpserver.StageLogging, Handler: middleware.Logging(middleware.LoggingConfig{
			Logger:    g.logger,
			Metrics:   g.metrics,
			SkipPaths: []string{"/health", "/actuator/health", "/metrics"},
		})},
		{Name: httpserver.StageTracing, Handler: middleware.Tracing(g.tracer, propagators)},
		{Name: httpserver.StageCORS, Handler: middleware.CORS(corsConfig(&cfg.CORS))},
	}

	if cfg.RateLimit.Enabled {
		policies, err := cfg.RateLimit.PolicyTable()
		if err != nil {
			return nil, fmt.Errorf("failed to build rate limit policies: %w", err)
		}

		limiter := ratelimit.NewRedisLimiter(g.redis,
			ratelimit.WithPrefix(keyPrefix),
			ratelimit.WithLogger(g.logger),
		)

		stages = append(stages, httpserver.Stage{
			Name: httpserver.StageRateLimit,
			Handler: middleware.RateLimit(middleware.RateLimitConfig{
				Limiter:             limiter,
				Policies:            policies,
				TrustIdentityHeader: cfg.RateLimit.TrustIdentityHeader,
				SkipPrefixes:        cfg.RateLimit.SkipPrefixes,
				Logger:              g.logger,
				Metrics:             g.metrics,
			}),
		})
	} else {
		g.logger.Warn("rate limiting is disabled")
	}

	stages = append(stages, httpserver.Stage{
		Name:    httpserver.StageAuth,
		Handler: middleware.Auth(gate, g.metrics),
	})

	pipeline, err := httpserver.BuildPipeline(stages...)
	if err != nil {
		return nil, fmt.Errorf("failed to build request pipeline: %w", err)
	}
	return pipeline, nil
}

func serverConfig(c *config.ServerConfig) *httpserver.ServerConfig {
	return &httpserver.ServerConfig{
		Port:               c.Port,
		Address:            c.Address,
		ReadTimeout:        c.ReadTimeout.Duration(),
		WriteTimeout:       c.WriteTimeout.Duration(),
		IdleTimeout:        c.IdleTimeout.Duration(),
		MaxHeaderBytes:     maxHeaderBytes,
		MaxRequestBodySize: c.MaxBodyBytes,
	}
}

func corsConfig(c *config.CORSConfig) middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}
}
