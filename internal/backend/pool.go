package backend

import (
	"net"
	"net/http"
	"time"
)

// PoolConfig contains connection pool configuration.
type PoolConfig struct {
	DialTimeout           time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	ExpectContinueTimeout time.Duration
	DisableKeepAlives     bool
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		DialTimeout:           5 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// NewTransport creates the transport shared by all backend calls. Response
// deadlines come from the per-call context, not the transport.
func NewTransport(config PoolConfig) *http.Transport {
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultPoolConfig().DialTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		DisableKeepAlives:     config.DisableKeepAlives,
	}
}

// NewClient creates an HTTP client over a pooled transport. Redirects are
// returned to the caller rather than followed.
func NewClient(config PoolConfig) *http.Client {
	return &http.Client{
		Transport: NewTransport(config),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
