// Package health reports the health of the gateway and its dependencies.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/placegw/internal/circuitbreaker"
)

// DefaultPingTimeout bounds the Redis ping of a single check.
const DefaultPingTimeout = 2 * time.Second

// Status represents the health status.
type Status string

const (
	// StatusUp indicates the component is healthy.
	StatusUp Status = "UP"
	// StatusDown indicates the component is unhealthy.
	StatusDown Status = "DOWN"
)

// Report is the body of the health endpoint.
type Report struct {
	Status     Status     `json:"status"`
	Timestamp  time.Time  `json:"timestamp"`
	Service    string     `json:"service"`
	Components Components `json:"components"`
}

// Components holds the per-dependency results.
type Components struct {
	Redis           RedisComponent            `json:"redis"`
	CircuitBreakers map[string]BreakerSummary `json:"circuitBreakers"`
}

// RedisComponent is the result of pinging Redis.
type RedisComponent struct {
	Status Status `json:"status"`
	Ping   string `json:"ping,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BreakerSummary describes one backend circuit breaker.
type BreakerSummary struct {
	State         string  `json:"state"`
	FailureRate   float64 `json:"failureRate"`
	SlowCallRate  float64 `json:"slowCallRate"`
	BufferedCalls int     `json:"bufferedCalls"`
}

// Pinger is satisfied by *redis.Client.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Option configures a Checker.
type Option func(*Checker)

// WithPingTimeout sets the Redis ping timeout.
func WithPingTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// WithClock sets the time source of report timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// Checker builds health reports.
type Checker struct {
	service     string
	pinger      Pinger
	breakers    *circuitbreaker.Registry
	pingTimeout time.Duration
	now         func() time.Time
}

// NewChecker creates a checker. A nil breakers registry reports no breakers.
func NewChecker(service string, pinger Pinger, breakers *circuitbreaker.Registry, opts ...Option) *Checker {
	c := &Checker{
		service:     service,
		pinger:      pinger,
		breakers:    breakers,
		pingTimeout: DefaultPingTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check pings Redis and snapshots the breakers. The gateway is DOWN when
// Redis is down. Open breakers are reported but do not change the status.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status:    StatusUp,
		Timestamp: c.now(),
		Service:   c.service,
		Components: Components{
			Redis:           c.checkRedis(ctx),
			CircuitBreakers: c.summarizeBreakers(),
		},
	}

	if report.Components.Redis.Status != StatusUp {
		report.Status = StatusDown
	}
	return report
}

func (c *Checker) checkRedis(ctx context.Context) RedisComponent {
	if c.pinger == nil {
		return RedisComponent{Status: StatusDown, Error: "redis is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	pong, err := c.pinger.Ping(ctx).Result()
	if err != nil {
		return RedisComponent{Status: StatusDown, Error: err.Error()}
	}
	return RedisComponent{Status: StatusUp, Ping: pong}
}

func (c *Checker) summarizeBreakers() map[string]BreakerSummary {
	summaries := make(map[string]BreakerSummary)
	if c.breakers == nil {
		return summaries
	}

	for name, m := range c.breakers.Snapshot() {
		summaries[name] = BreakerSummary{
			State:         m.State.String(),
			FailureRate:   m.FailureRate,
			SlowCallRate:  m.SlowCallRate,
			BufferedCalls: m.BufferedCalls,
		}
	}
	return summaries
}

// Handler serves the report, with 503 when the status is DOWN.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Check(ctx.Request.Context())

		status := http.StatusOK
		if report.Status != StatusUp {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, report)
	}
}
