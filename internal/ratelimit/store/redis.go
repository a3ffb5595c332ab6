// Package store holds the Redis client setup and server-side scripts used by
// the rate limiter.
package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/placegw/internal/observability"
)

// DefaultPrefix is prepended to every bucket key.
const DefaultPrefix = "rate_limit:"

// RedisConfig holds configuration for the Redis connection.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	// Connection pool settings
	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// InitialBackoff is the initial backoff duration for connection retries.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration for connection retries.
	MaxBackoff time.Duration

	// ConnectionRetries is the number of connection retry attempts.
	ConnectionRetries int
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:           "localhost:6379",
		DB:                0,
		Prefix:            DefaultPrefix,
		PoolSize:          10,
		MinIdleConns:      2,
		MaxRetries:        1,
		DialTimeout:       2 * time.Second,
		ReadTimeout:       500 * time.Millisecond,
		WriteTimeout:      500 * time.Millisecond,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		ConnectionRetries: 3,
	}
}

// NewClient creates a Redis client. It does not connect.
func NewClient(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
}

// Pinger is the subset of the Redis client used to check connectivity.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Connect pings Redis until it answers, waiting between attempts with
// decorrelated jitter backoff.
func Connect(ctx context.Context, client Pinger, config *RedisConfig, logger observability.Logger) error {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	maxRetries := config.ConnectionRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}

	backoff := newDecorrelatedJitterBackoff(config.InitialBackoff, config.MaxBackoff)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis connect cancelled: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				logger.Info("redis connection established after retry",
					observability.String("address", config.Address),
					observability.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		if attempt == maxRetries {
			break
		}

		wait := backoff.next(attempt)
		logger.Debug("redis connection failed, retrying",
			observability.String("address", config.Address),
			observability.Int("attempt", attempt+1),
			observability.Int("max_retries", maxRetries),
			observability.Duration("backoff", wait),
			observability.Error(lastErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis connect cancelled during backoff: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed to connect to redis at %s after %d attempts: %w",
		config.Address, maxRetries+1, lastErr)
}

// decorrelatedJitterBackoff implements decorrelated jitter backoff:
// sleep = min(cap, random_between(base, sleep * 3)).
type decorrelatedJitterBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newDecorrelatedJitterBackoff(initial, maxDuration time.Duration) *decorrelatedJitterBackoff {
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if maxDuration < initial {
		maxDuration = initial
	}
	return &decorrelatedJitterBackoff{
		initial: initial,
		max:     maxDuration,
		current: initial,
	}
}

func (b *decorrelatedJitterBackoff) next(attempt int) time.Duration {
	if attempt == 0 {
		b.current = b.initial
		return b.current
	}

	minBackoff := float64(b.initial)
	maxBackoff := float64(b.current) * 3

	//nolint:gosec // weak random is acceptable for jitter
	backoff := minBackoff + rand.Float64()*(maxBackoff-minBackoff)
	if backoff > float64(b.max) {
		backoff = float64(b.max)
	}

	b.current = time.Duration(backoff)
	return b.current
}

// TokenBucketScript consumes one token from a continuously refilled bucket.
//
// KEYS[1] = bucket key
// ARGV[1] = now in epoch milliseconds
// ARGV[2] = burst capacity
// ARGV[3] = refill rate in tokens per second
// ARGV[4] = TTL in seconds
//
// Returns {allowed (0 or 1), floor(remaining tokens), reset after seconds}.
var TokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local refill_rate = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1])
	local last_update = tonumber(data[2])

	if tokens == nil or last_update == nil then
		tokens = burst
		last_update = now
	end

	-- A clock behind the stored timestamp must not drain the bucket.
	local elapsed = math.max(0, now - last_update) / 1000.0
	tokens = math.min(burst, tokens + elapsed * refill_rate)

	local allowed = 0
	local reset_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		reset_after = math.ceil((1 - tokens) / refill_rate)
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'last_update', tostring(now))
	redis.call('EXPIRE', key, ttl)

	return {allowed, math.floor(tokens), reset_after}
`)
