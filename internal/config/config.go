package config

import (
	"time"
)

// ServiceName is the name the gateway reports in health and traces.
const ServiceName = "placeowner-gateway"

// GatewayConfig is the root configuration of the gateway.
type GatewayConfig struct {
	Server         ServerConfig         `yaml:"server" json:"server"`
	Auth           AuthConfig           `yaml:"auth" json:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rateLimit" json:"rateLimit"`
	Redis          RedisConfig          `yaml:"redis" json:"redis"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
	Backends       []Backend            `yaml:"backends" json:"backends" validate:"required,min=1,dive"`
	Routes         []Route              `yaml:"routes" json:"routes" validate:"dive"`
	CORS           CORSConfig           `yaml:"cors" json:"cors"`
	Observability  ObservabilityConfig  `yaml:"observability" json:"observability"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address" json:"address"`
	Port            int      `yaml:"port" json:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     Duration `yaml:"readTimeout" json:"readTimeout" validate:"gte=0"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout" validate:"gte=0"`
	IdleTimeout     Duration `yaml:"idleTimeout" json:"idleTimeout" validate:"gte=0"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout" validate:"gt=0"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes" json:"maxBodyBytes" validate:"gte=0"`
}

// AuthConfig configures the authentication gate.
type AuthConfig struct {
	ExpectedAppType string    `yaml:"expectedAppType" json:"expectedAppType" validate:"required"`
	PublicPaths     []string  `yaml:"publicPaths" json:"publicPaths" validate:"dive,startswith=/"`
	PreAuthPaths    []string  `yaml:"preAuthPaths" json:"preAuthPaths" validate:"dive,startswith=/"`
	JWT             JWTConfig `yaml:"jwt" json:"jwt"`
}

// JWTConfig holds the token signing secret or where to read it from.
type JWTConfig struct {
	// Secret is used as is when set.
	Secret string         `yaml:"secret" json:"-"`
	Vault  VaultKeyConfig `yaml:"vault" json:"vault"`
}

// VaultKeyConfig locates a secret in a Vault KV v2 engine.
type VaultKeyConfig struct {
	// Address defaults to VAULT_ADDR when empty.
	Address string `yaml:"address" json:"address" validate:"omitempty,url"`
	// Token defaults to VAULT_TOKEN when empty.
	Token string `yaml:"token" json:"-"`
	Mount string `yaml:"mount" json:"mount"`
	Path  string `yaml:"path" json:"path"`
	Key   string `yaml:"key" json:"key"`
}

// Enabled reports whether the secret should be read from Vault.
func (v VaultKeyConfig) Enabled() bool {
	return v.Path != ""
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// TrustIdentityHeader keys buckets by X-User-Id when present. The limiter
	// runs before authentication, so the header is not yet verified and a
	// client can rotate it. Off by default; buckets are then per client IP.
	TrustIdentityHeader bool `yaml:"trustIdentityHeader" json:"trustIdentityHeader"`

	SkipPrefixes []string                `yaml:"skipPrefixes" json:"skipPrefixes" validate:"dive,startswith=/"`
	Default      PolicyConfig            `yaml:"default" json:"default"`
	Endpoints    map[string]PolicyConfig `yaml:"endpoints" json:"endpoints" validate:"dive,keys,startswith=/,endkeys"`
}

// PolicyConfig is a token bucket: Limit tokens per Duration, holding at most
// BurstCapacity.
type PolicyConfig struct {
	Limit         int      `yaml:"limit" json:"limit" validate:"gte=1"`
	Duration      Duration `yaml:"duration" json:"duration" validate:"gt=0"`
	BurstCapacity int      `yaml:"burstCapacity" json:"burstCapacity" validate:"gte=1"`
}

// RedisConfig configures the rate limit store.
type RedisConfig struct {
	Address           string   `yaml:"address" json:"address" validate:"required,hostname_port"`
	Password          string   `yaml:"password" json:"-"`
	DB                int      `yaml:"db" json:"db" validate:"gte=0"`
	Prefix            string   `yaml:"prefix" json:"prefix"`
	PoolSize          int      `yaml:"poolSize" json:"poolSize" validate:"gte=0"`
	DialTimeout       Duration `yaml:"dialTimeout" json:"dialTimeout" validate:"gte=0"`
	ReadTimeout       Duration `yaml:"readTimeout" json:"readTimeout" validate:"gte=0"`
	WriteTimeout      Duration `yaml:"writeTimeout" json:"writeTimeout" validate:"gte=0"`
	ConnectionRetries int      `yaml:"connectionRetries" json:"connectionRetries" validate:"gte=0"`
}

// CircuitBreakerConfig holds the settings shared by every backend breaker.
type CircuitBreakerConfig struct {
	SlidingWindowSize        int      `yaml:"slidingWindowSize" json:"slidingWindowSize" validate:"gte=1"`
	MinimumCalls             int      `yaml:"minimumNumberOfCalls" json:"minimumNumberOfCalls" validate:"gte=1"`
	FailureRateThreshold     float64  `yaml:"failureRateThreshold" json:"failureRateThreshold" validate:"gt=0,lte=100"`
	SlowCallRateThreshold    float64  `yaml:"slowCallRateThreshold" json:"slowCallRateThreshold" validate:"gt=0,lte=100"`
	SlowCallDuration         Duration `yaml:"slowCallDurationThreshold" json:"slowCallDurationThreshold" validate:"gt=0"`
	WaitDurationInOpen       Duration `yaml:"waitDurationInOpenState" json:"waitDurationInOpenState" validate:"gt=0"`
	PermittedCallsInHalfOpen int      `yaml:"permittedNumberOfCallsInHalfOpenState" json:"permittedNumberOfCallsInHalfOpenState" validate:"gte=1"`
}

// Backend is an upstream service with its own circuit breaker.
type Backend struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	URL     string   `yaml:"url" json:"url" validate:"required,url"`
	Timeout Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// Route sends every path under Prefix to Backend.
type Route struct {
	Prefix  string `yaml:"prefix" json:"prefix" validate:"required,startswith=/"`
	Backend string `yaml:"backend" json:"backend" validate:"required"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins" json:"allowOrigins"`
	AllowMethods     []string `yaml:"allowMethods" json:"allowMethods"`
	AllowHeaders     []string `yaml:"allowHeaders" json:"allowHeaders"`
	ExposeHeaders    []string `yaml:"exposeHeaders" json:"exposeHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials" json:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge" json:"maxAge" validate:"gte=0"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"logLevel" json:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat string        `yaml:"logFormat" json:"logFormat" validate:"oneof=json console"`
	Tracing   TracingConfig `yaml:"tracing" json:"tracing"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint" validate:"required_if=Enabled true"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate" validate:"gte=0,lte=1"`
	Insecure     bool    `yaml:"insecure" json:"insecure"`
}

// Default backend names.
const (
	BackendPlace        = "place-service"
	BackendRoom         = "room-service"
	BackendReservation  = "reservation-service"
	BackendUser         = "user-service"
	BackendPayment      = "payment-service"
	BackendNotification = "notification-service"
)

// DefaultConfig returns a configuration with default values. It has no
// signing secret, so it only validates once one is supplied.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			MaxBodyBytes:    10 << 20,
		},
		Auth: AuthConfig{
			ExpectedAppType: "PLACE_MANAGER",
			PublicPaths: []string{
				"/actuator",
				"/health",
				"/metrics",
				"/swagger-ui",
				"/v3/api-docs",
				"/webjars",
			},
			PreAuthPaths: []string{
				"/api/v1/auth/login",
				"/api/v1/auth/refresh",
			},
			JWT: JWTConfig{
				Vault: VaultKeyConfig{
					Mount: "secret",
					Key:   "jwt-secret",
				},
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:             true,
			SkipPrefixes:        []string{"/actuator", "/health", "/metrics"},
			Default: PolicyConfig{
				Limit:         100,
				Duration:      Duration(time.Minute),
				BurstCapacity: 120,
			},
			Endpoints: map[string]PolicyConfig{},
		},
		Redis: RedisConfig{
			Address:           "localhost:6379",
			Prefix:            "rate_limit:",
			PoolSize:          10,
			DialTimeout:       Duration(2 * time.Second),
			ReadTimeout:       Duration(500 * time.Millisecond),
			WriteTimeout:      Duration(500 * time.Millisecond),
			ConnectionRetries: 3,
		},
		CircuitBreaker: CircuitBreakerConfig{
			SlidingWindowSize:        10,
			MinimumCalls:             5,
			FailureRateThreshold:     50,
			SlowCallRateThreshold:    100,
			SlowCallDuration:         Duration(5 * time.Second),
			WaitDurationInOpen:       Duration(10 * time.Second),
			PermittedCallsInHalfOpen: 3,
		},
		Backends: []Backend{
			{Name: BackendPlace, URL: "http://place-service:8080", Timeout: Duration(30 * time.Second)},
			{Name: BackendRoom, URL: "http://room-service:8080", Timeout: Duration(30 * time.Second)},
			{Name: BackendReservation, URL: "http://reservation-service:8080", Timeout: Duration(30 * time.Second)},
			{Name: BackendUser, URL: "http://user-service:8080", Timeout: Duration(30 * time.Second)},
			{Name: BackendPayment, URL: "http://payment-service:8080", Timeout: Duration(30 * time.Second)},
			{Name: BackendNotification, URL: "http://notification-service:8080", Timeout: Duration(30 * time.Second)},
		},
		Routes: []Route{
			{Prefix: "/api/v1/places", Backend: BackendPlace},
			{Prefix: "/api/v1/rooms", Backend: BackendRoom},
			{Prefix: "/api/v1/time-slots", Backend: BackendReservation},
			{Prefix: "/api/v1/reservations", Backend: BackendReservation},
			{Prefix: "/api/v1/auth", Backend: BackendUser},
			{Prefix: "/api/v1/users", Backend: BackendUser},
			{Prefix: "/api/v1/payments", Backend: BackendPayment},
			{Prefix: "/api/v1/notifications", Backend: BackendNotification},
		},
		CORS: CORSConfig{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"*"},
			ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Authorization"},
			AllowCredentials: true,
			MaxAge:           3600,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				SamplingRate: 1.0,
				Insecure:     true,
			},
		},
	}
}

// BackendNames returns the configured backend names in order.
func (c *GatewayConfig) BackendNames() []string {
	names := make([]string, 0, len(c.Backends))
	for _, b := range c.Backends {
		names = append(names, b.Name)
	}
	return names
}
