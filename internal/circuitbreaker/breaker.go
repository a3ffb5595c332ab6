// Package circuitbreaker implements a count-based circuit breaker with
// failure-rate and slow-call-rate thresholds, and a registry holding one
// breaker per backend.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vyrodovalexey/placegw/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and requests are allowed.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and requests are rejected.
	StateOpen

	// StateHalfOpen indicates the circuit is testing if the backend is healthy.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker does not permit a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Outcome classifies a finished call.
type Outcome int

const (
	// OutcomeSuccess is a call that counts as healthy.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure is a call that counts against the backend.
	OutcomeFailure
	// OutcomeIgnored is a call that says nothing about backend health,
	// such as a client error or a cancelled request.
	OutcomeIgnored
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

type call struct {
	failed bool
	slow   bool
}

// CircuitBreaker tracks the outcomes of the most recent calls in a ring
// buffer. It is safe for concurrent use.
type CircuitBreaker struct {
	name   string
	config *Config
	logger observability.Logger
	now    func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	openedAt   time.Time

	window []call
	next   int
	count  int
	failed int
	slow   int

	halfOpenIssued int
	notPermitted   int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, config *Config, logger observability.Logger, opts ...Option) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	config = config.clone()
	config.Validate()

	if logger == nil {
		logger = observability.NopLogger()
	}

	cb := &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
		window: make([]call, config.SlidingWindowSize),
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Permit is the right to make one call. Done must be called exactly once.
type Permit struct {
	cb         *CircuitBreaker
	generation uint64
	once       sync.Once
}

// Done records the outcome of the permitted call.
func (p *Permit) Done(outcome Outcome, elapsed time.Duration) {
	p.once.Do(func() {
		p.cb.record(p.generation, outcome, elapsed)
	})
}

// Acquire asks for permission to make a call. It returns ErrCircuitOpen when
// the circuit is open or all half-open trial calls are taken.
func (cb *CircuitBreaker) Acquire() (*Permit, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.config.WaitDurationInOpen {
			cb.notPermitted++
			return nil, ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenIssued >= cb.config.PermittedCallsInHalfOpen {
			cb.notPermitted++
			return nil, ErrCircuitOpen
		}
		cb.halfOpenIssued++
	}

	return &Permit{cb: cb, generation: cb.generation}, nil
}

// Execute runs fn if the circuit permits it and records the outcome fn reports.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (Outcome, error)) error {
	permit, err := cb.Acquire()
	if err != nil {
		return err
	}

	start := cb.now()
	outcome, err := fn(ctx)
	permit.Done(outcome, cb.now().Sub(start))
	return err
}

func (cb *CircuitBreaker) record(generation uint64, outcome Outcome, elapsed time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// The state changed since the permit was issued.
	if generation != cb.generation {
		return
	}

	if outcome == OutcomeIgnored {
		if cb.state == StateHalfOpen && cb.halfOpenIssued > 0 {
			cb.halfOpenIssued--
		}
		return
	}

	cb.push(call{
		failed: outcome == OutcomeFailure,
		slow:   elapsed > cb.config.SlowCallDuration,
	})

	switch cb.state {
	case StateClosed:
		if cb.count >= cb.config.MinimumCalls && cb.thresholdReached() {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		if cb.count >= cb.config.PermittedCallsInHalfOpen {
			if cb.thresholdReached() {
				cb.transitionTo(StateOpen)
			} else {
				cb.transitionTo(StateClosed)
			}
		}
	}
}

func (cb *CircuitBreaker) push(c call) {
	if cb.count == len(cb.window) {
		evicted := cb.window[cb.next]
		if evicted.failed {
			cb.failed--
		}
		if evicted.slow {
			cb.slow--
		}
	} else {
		cb.count++
	}

	cb.window[cb.next] = c
	cb.next = (cb.next + 1) % len(cb.window)

	if c.failed {
		cb.failed++
	}
	if c.slow {
		cb.slow++
	}
}

func (cb *CircuitBreaker) thresholdReached() bool {
	return cb.rate(cb.failed) >= cb.config.FailureRateThreshold ||
		cb.rate(cb.slow) >= cb.config.SlowCallRateThreshold
}

func (cb *CircuitBreaker) rate(n int) float64 {
	if cb.count == 0 {
		return 0
	}
	return float64(n) * 100 / float64(cb.count)
}

// transitionTo must be called with mu held.
func (cb *CircuitBreaker) transitionTo(newState State) {
	oldState := cb.state
	cb.state = newState
	cb.generation++
	cb.resetWindow()

	if newState == StateOpen {
		cb.openedAt = cb.now()
	}

	cb.logger.Info("circuit breaker state changed",
		observability.String("name", cb.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.name, oldState, newState)
	}
}

func (cb *CircuitBreaker) resetWindow() {
	for i := range cb.window {
		cb.window[i] = call{}
	}
	cb.next = 0
	cb.count = 0
	cb.failed = 0
	cb.slow = 0
	cb.halfOpenIssued = 0
}

// State returns the current state. An open circuit whose wait has elapsed
// still reports open until the next Acquire.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset returns the circuit breaker to the closed state with an empty window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.generation++
	cb.resetWindow()

	cb.logger.Info("circuit breaker reset", observability.String("name", cb.name))
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Metrics is a snapshot of a circuit breaker.
type Metrics struct {
	State State

	// FailureRate and SlowCallRate are percentages, or -1 while fewer calls
	// than required have been buffered.
	FailureRate  float64
	SlowCallRate float64

	BufferedCalls     int
	FailedCalls       int
	SlowCalls         int
	NotPermittedCalls int64
}

// Metrics returns a snapshot of the breaker's state and window.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	required := cb.config.MinimumCalls
	if cb.state == StateHalfOpen {
		required = cb.config.PermittedCallsInHalfOpen
	}

	m := Metrics{
		State:             cb.state,
		FailureRate:       -1,
		SlowCallRate:      -1,
		BufferedCalls:     cb.count,
		FailedCalls:       cb.failed,
		SlowCalls:         cb.slow,
		NotPermittedCalls: cb.notPermitted,
	}
	if cb.count >= required {
		m.FailureRate = cb.rate(cb.failed)
		m.SlowCallRate = cb.rate(cb.slow)
	}
	return m
}
