package circuitbreaker

import "time"

// Config holds circuit breaker configuration.
type Config struct {
	// SlidingWindowSize is the number of most recent calls used to compute rates.
	SlidingWindowSize int

	// MinimumCalls is the number of buffered calls required before rates are evaluated.
	MinimumCalls int

	// FailureRateThreshold opens the circuit when the failure rate, in percent,
	// reaches it.
	FailureRateThreshold float64

	// SlowCallRateThreshold opens the circuit when the slow call rate, in percent,
	// reaches it.
	SlowCallRateThreshold float64

	// SlowCallDuration is the duration above which a call counts as slow.
	SlowCallDuration time.Duration

	// WaitDurationInOpen is how long the circuit rejects calls before trying again.
	WaitDurationInOpen time.Duration

	// PermittedCallsInHalfOpen is the number of trial calls allowed in half-open state.
	PermittedCallsInHalfOpen int

	// OnStateChange is called asynchronously on every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		SlidingWindowSize:        10,
		MinimumCalls:             5,
		FailureRateThreshold:     50,
		SlowCallRateThreshold:    100,
		SlowCallDuration:         5 * time.Second,
		WaitDurationInOpen:       10 * time.Second,
		PermittedCallsInHalfOpen: 3,
	}
}

// Validate replaces invalid values with defaults and keeps the window large
// enough for the minimum and half-open call counts.
func (c *Config) Validate() {
	defaults := DefaultConfig()

	if c.SlidingWindowSize <= 0 {
		c.SlidingWindowSize = defaults.SlidingWindowSize
	}
	if c.MinimumCalls <= 0 {
		c.MinimumCalls = defaults.MinimumCalls
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 100 {
		c.FailureRateThreshold = defaults.FailureRateThreshold
	}
	if c.SlowCallRateThreshold <= 0 || c.SlowCallRateThreshold > 100 {
		c.SlowCallRateThreshold = defaults.SlowCallRateThreshold
	}
	if c.SlowCallDuration <= 0 {
		c.SlowCallDuration = defaults.SlowCallDuration
	}
	if c.WaitDurationInOpen <= 0 {
		c.WaitDurationInOpen = defaults.WaitDurationInOpen
	}
	if c.PermittedCallsInHalfOpen <= 0 {
		c.PermittedCallsInHalfOpen = defaults.PermittedCallsInHalfOpen
	}

	if c.MinimumCalls > c.SlidingWindowSize {
		c.SlidingWindowSize = c.MinimumCalls
	}
	if c.PermittedCallsInHalfOpen > c.SlidingWindowSize {
		c.SlidingWindowSize = c.PermittedCallsInHalfOpen
	}
}

// WithFailureRateThreshold sets the failure rate threshold in percent.
func (c *Config) WithFailureRateThreshold(percent float64) *Config {
	c.FailureRateThreshold = percent
	return c
}

// WithSlowCalls sets the slow call duration and rate threshold.
func (c *Config) WithSlowCalls(duration time.Duration, percent float64) *Config {
	c.SlowCallDuration = duration
	c.SlowCallRateThreshold = percent
	return c
}

// WithWindow sets the sliding window size and minimum number of calls.
func (c *Config) WithWindow(size, minimumCalls int) *Config {
	c.SlidingWindowSize = size
	c.MinimumCalls = minimumCalls
	return c
}

// WithWaitDurationInOpen sets how long the circuit stays open.
func (c *Config) WithWaitDurationInOpen(d time.Duration) *Config {
	c.WaitDurationInOpen = d
	return c
}

// WithPermittedCallsInHalfOpen sets the number of half-open trial calls.
func (c *Config) WithPermittedCallsInHalfOpen(n int) *Config {
	c.PermittedCallsInHalfOpen = n
	return c
}

// clone returns a copy so one breaker's Validate never affects another's config.
func (c *Config) clone() *Config {
	cp := *c
	return &cp
}
