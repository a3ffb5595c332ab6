package config

import (
	"github.com/vyrodovalexey/placegw/internal/auth"
	"github.com/vyrodovalexey/placegw/internal/backend"
	"github.com/vyrodovalexey/placegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/placegw/internal/observability"
	"github.com/vyrodovalexey/placegw/internal/ratelimit"
	"github.com/vyrodovalexey/placegw/internal/ratelimit/store"
	"github.com/vyrodovalexey/placegw/internal/vault"
)

// Policy converts a policy section into a ratelimit.Policy.
func (p PolicyConfig) Policy() ratelimit.Policy {
	return ratelimit.Policy{
		Limit:  p.Limit,
		Window: p.Duration.Duration(),
		Burst:  p.BurstCapacity,
	}
}

// PolicyTable builds the rate limit policy table.
func (c *RateLimitConfig) PolicyTable() (*ratelimit.PolicyTable, error) {
	byPrefix := make(map[string]ratelimit.Policy, len(c.Endpoints))
	for prefix, p := range c.Endpoints {
		byPrefix[prefix] = p.Policy()
	}
	return ratelimit.NewPolicyTable(c.Default.Policy(), byPrefix)
}

// StoreConfig converts the redis section into store settings.
func (c *RedisConfig) StoreConfig() *store.RedisConfig {
	cfg := store.DefaultRedisConfig()
	cfg.Address = c.Address
	cfg.Password = c.Password
	cfg.DB = c.DB
	if c.Prefix != "" {
		cfg.Prefix = c.Prefix
	}
	if c.PoolSize > 0 {
		cfg.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		cfg.DialTimeout = c.DialTimeout.Duration()
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout.Duration()
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout.Duration()
	}
	cfg.ConnectionRetries = c.ConnectionRetries
	return cfg
}

// BreakerConfig converts the circuit breaker section.
func (c *CircuitBreakerConfig) BreakerConfig() *circuitbreaker.Config {
	return &circuitbreaker.Config{
		SlidingWindowSize:        c.SlidingWindowSize,
		MinimumCalls:             c.MinimumCalls,
		FailureRateThreshold:     c.FailureRateThreshold,
		SlowCallRateThreshold:    c.SlowCallRateThreshold,
		SlowCallDuration:         c.SlowCallDuration.Duration(),
		WaitDurationInOpen:       c.WaitDurationInOpen.Duration(),
		PermittedCallsInHalfOpen: c.PermittedCallsInHalfOpen,
	}
}

// Targets converts the backends section.
func (c *GatewayConfig) Targets() []backend.Target {
	targets := make([]backend.Target, 0, len(c.Backends))
	for _, b := range c.Backends {
		targets = append(targets, backend.Target{
			Name:    b.Name,
			BaseURL: b.URL,
			Timeout: b.Timeout.Duration(),
		})
	}
	return targets
}

// RouteTable converts the routes section.
func (c *GatewayConfig) RouteTable() []backend.Route {
	routes := make([]backend.Route, 0, len(c.Routes))
	for _, r := range c.Routes {
		routes = append(routes, backend.Route{Prefix: r.Prefix, Backend: r.Backend})
	}
	return routes
}

// GateConfig converts the auth section. The validator and logger must still
// be set.
func (c *AuthConfig) GateConfig() auth.GateConfig {
	return auth.GateConfig{
		ExpectedAppType: c.ExpectedAppType,
		PublicPaths:     append([]string(nil), c.PublicPaths...),
		PreAuthPaths:    append([]string(nil), c.PreAuthPaths...),
	}
}

// LogConfig converts the logging settings.
func (c *ObservabilityConfig) LogConfig() observability.LogConfig {
	cfg := observability.DefaultLogConfig()
	if c.LogLevel != "" {
		cfg.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Format = c.LogFormat
	}
	return cfg
}

// TracerConfig converts the tracing settings.
func (c *ObservabilityConfig) TracerConfig() observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName:  ServiceName,
		OTLPEndpoint: c.Tracing.Endpoint,
		SamplingRate: c.Tracing.SamplingRate,
		Enabled:      c.Tracing.Enabled,
		Insecure:     c.Tracing.Insecure,
	}
}

// KVConfig converts the vault section into a KV source config.
func (v VaultKeyConfig) KVConfig() vault.KVConfig {
	return vault.KVConfig{
		Address: v.Address,
		Token:   v.Token,
		Mount:   v.Mount,
		Path:    v.Path,
		Key:     v.Key,
	}
}
