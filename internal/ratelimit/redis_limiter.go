package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/placegw/internal/observability"
	"github.com/vyrodovalexey/placegw/internal/ratelimit/store"
)

var _ Limiter = (*RedisLimiter)(nil)

// RedisBreakerName is the name of the breaker guarding the store.
const RedisBreakerName = "redis-ratelimit"

// ErrUnexpectedResult is returned when the script reply has the wrong shape.
var ErrUnexpectedResult = errors.New("unexpected rate limit script result")

// RedisLimiter implements Limiter with a Lua token bucket executed
// atomically by Redis. Every round trip runs through a breaker so an
// unreachable store is skipped quickly while it recovers.
type RedisLimiter struct {
	client  redis.Scripter
	prefix  string
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
	now     func() time.Time
	errLog  *rate.Sometimes
}

// RedisLimiterOption configures a RedisLimiter.
type RedisLimiterOption func(*RedisLimiter)

// WithClock sets the time source used for bucket timestamps.
func WithClock(now func() time.Time) RedisLimiterOption {
	return func(l *RedisLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisLimiterOption {
	return func(l *RedisLimiter) {
		l.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) RedisLimiterOption {
	return func(l *RedisLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBreakerSettings replaces the breaker settings. The name is always
// RedisBreakerName.
func WithBreakerSettings(settings gobreaker.Settings) RedisLimiterOption {
	return func(l *RedisLimiter) {
		settings.Name = RedisBreakerName
		l.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// WithErrorLogInterval sets the minimum interval between fail-open error logs.
func WithErrorLogInterval(interval time.Duration) RedisLimiterOption {
	return func(l *RedisLimiter) {
		l.errLog = &rate.Sometimes{First: 1, Interval: interval}
	}
}

// NewRedisLimiter creates a limiter using client for script execution.
func NewRedisLimiter(client redis.Scripter, opts ...RedisLimiterOption) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		prefix: store.DefaultPrefix,
		logger: observability.NopLogger(),
		now:    time.Now,
		errLog: &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	l.breaker = gobreaker.NewCircuitBreaker(l.defaultBreakerSettings())

	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) defaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        RedisBreakerName,
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn("rate limit store breaker state changed",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A cancelled client request says nothing about Redis.
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

// Allow implements Limiter. It fails open: on any store error the decision
// is allowed with Remaining -1 and the error is returned alongside.
func (l *RedisLimiter) Allow(ctx context.Context, key string, p Policy) (Decision, error) {
	reply, err := l.breaker.Execute(func() (interface{}, error) {
		return store.TokenBucketScript.Run(ctx, l.client,
			[]string{l.prefix + key},
			l.now().UnixMilli(),
			p.Burst,
			p.RefillRate(),
			p.TTLSeconds(),
		).Result()
	})
	if err != nil {
		return l.failOpen(key, p, err)
	}

	decision, err := parseScriptResult(reply, p.Limit)
	if err != nil {
		return l.failOpen(key, p, err)
	}
	return decision, nil
}

func (l *RedisLimiter) failOpen(key string, p Policy, err error) (Decision, error) {
	l.errLog.Do(func() {
		l.logger.Error("rate limiter store error, allowing request",
			observability.String("key", key),
			observability.String("breaker_state", l.breaker.State().String()),
			observability.Error(err),
		)
	})
	return failOpen(p), fmt.Errorf("rate limit check for %s: %w", key, err)
}

// BreakerState returns the state of the store breaker.
func (l *RedisLimiter) BreakerState() gobreaker.State {
	return l.breaker.State()
}

// parseScriptResult parses {allowed, remaining, resetAfterSeconds}.
func parseScriptResult(reply interface{}, limit int) (Decision, error) {
	values, ok := reply.([]interface{})
	if !ok || len(values) < 3 {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnexpectedResult, reply)
	}

	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	resetAfter, ok3 := values[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnexpectedResult, reply)
	}

	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:    allowed == 1,
		Remaining:  remaining,
		ResetAfter: resetAfter,
		Limit:      limit,
	}, nil
}
