package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/placegw/internal/apierror"
	"github.com/vyrodovalexey/placegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// DefaultTimeout is the per-call timeout of a target without its own.
const DefaultTimeout = 30 * time.Second

// Outcome labels recorded with backend call metrics.
const (
	outcomeSuccess     = "success"
	outcomeClientError = "client_error"
	outcomeServerError = "server_error"
	outcomeTimeout     = "timeout"
	outcomeConnection  = "connection_error"
	outcomeRejected    = "rejected"
	outcomeCancelled   = "cancelled"
	outcomeInternal    = "internal_error"
)

// Target is an upstream service.
type Target struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

type target struct {
	Target
	baseURL *url.URL
	breaker *circuitbreaker.CircuitBreaker
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(f *Facade) {
		f.metrics = metrics
	}
}

// WithTracer sets the tracer used for client spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(f *Facade) {
		if tracer != nil {
			f.tracer = tracer
		}
	}
}

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Facade) {
		if client != nil {
			f.client = client
		}
	}
}

// WithClock sets the time source used to measure call duration.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		if now != nil {
			f.now = now
		}
	}
}

// Facade makes calls to named backends through their circuit breakers.
type Facade struct {
	targets map[string]*target
	client  *http.Client
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	now     func() time.Time
}

// NewFacade creates a facade for targets. Every target must have a breaker
// in registry.
func NewFacade(targets []Target, registry *circuitbreaker.Registry, opts ...Option) (*Facade, error) {
	if registry == nil {
		return nil, errors.New("circuit breaker registry is required")
	}

	f := &Facade{
		targets: make(map[string]*target, len(targets)),
		client:  NewClient(DefaultPoolConfig()),
		logger:  observability.NopLogger(),
		tracer:  observability.NopTracer(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, t := range targets {
		if t.Name == "" {
			return nil, errors.New("backend name is required")
		}
		if _, ok := f.targets[t.Name]; ok {
			return nil, fmt.Errorf("duplicate backend %q", t.Name)
		}

		u, err := url.Parse(t.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid base URL %q for backend %q", t.BaseURL, t.Name)
		}

		cb, ok := registry.Get(t.Name)
		if !ok {
			return nil, fmt.Errorf("no circuit breaker for backend %q", t.Name)
		}

		if t.Timeout <= 0 {
			t.Timeout = DefaultTimeout
		}
		f.targets[t.Name] = &target{Target: t, baseURL: u, breaker: cb}
	}

	return f, nil
}

// Do sends req to the named backend. The returned error is always an
// *apierror.Error, except for context.Canceled when the caller went away.
// A 4xx response is returned with a nil error.
func (f *Facade) Do(ctx context.Context, name string, req *http.Request) (resp *http.Response, err error) {
	t, ok := f.targets[name]
	if !ok {
		return nil, apierror.Newf(apierror.InternalServerError, "Unknown backend '%s'.", name)
	}

	logger := f.logger.WithContext(ctx).With(
		observability.String("backend", name),
		observability.String("method", req.Method),
		observability.String("path", req.URL.Path),
	)

	// Requests the transport would refuse never reach the backend.
	if invalid := validateHeaders(req.Header); invalid != nil {
		logger.Warn("backend request not sent", observability.Error(invalid))
		f.metrics.RecordBackendCall(name, outcomeInternal, 0)
		return nil, apierror.Wrap(apierror.InternalServerError, "", invalid).WithService(name)
	}

	permit, acquireErr := t.breaker.Acquire()
	if acquireErr != nil {
		logger.Warn("backend request rejected by circuit breaker")
		f.metrics.RecordBackendCall(name, outcomeRejected, 0)
		return nil, apierror.Wrap(apierror.ServiceUnavailable,
			fmt.Sprintf("Service '%s' is temporarily unavailable. Please try again later.", name),
			acquireErr,
		).WithService(name)
	}

	ctx, span := f.tracer.StartSpan(ctx, "backend "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("backend.name", name),
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", t.baseURL.Host),
		),
	)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	start := f.now()

	defer func() {
		if r := recover(); r != nil {
			cancel()
			elapsed := f.now().Sub(start)
			permit.Done(circuitbreaker.OutcomeFailure, elapsed)
			f.metrics.RecordBackendCall(name, outcomeInternal, elapsed)
			logger.Error("backend request panicked", observability.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			resp = nil
			err = apierror.New(apierror.InternalServerError, "").WithService(name)
		}
	}()

	logger.Debug("backend request started")

	resp, err = f.client.Do(req.WithContext(callCtx))
	elapsed := f.now().Sub(start)

	outcome, label, mapped := f.classify(ctx, callCtx, name, resp, err)
	permit.Done(outcome, elapsed)
	f.metrics.RecordBackendCall(name, label, elapsed)

	if resp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}

	if mapped != nil {
		cancel()
		if resp != nil {
			drainAndClose(resp.Body)
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, label)

		if label == outcomeCancelled {
			logger.Debug("backend request cancelled by caller", observability.Duration("duration", elapsed))
		} else {
			logger.Warn("backend request failed",
				observability.String("outcome", label),
				observability.Duration("duration", elapsed),
				observability.Error(err),
			)
		}
		return nil, mapped
	}

	logger.Debug("backend request succeeded",
		observability.Int("status", resp.StatusCode),
		observability.Duration("duration", elapsed),
	)

	// The call context must outlive Do so the caller can read the body.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// classify decides the breaker outcome, metric label and mapped error of a
// finished call. mapped is nil when resp should be returned to the caller.
func (f *Facade) classify(
	ctx, callCtx context.Context,
	name string,
	resp *http.Response,
	err error,
) (circuitbreaker.Outcome, string, error) {
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return circuitbreaker.OutcomeIgnored, outcomeCancelled, ctx.Err()
		case errors.Is(callCtx.Err(), context.DeadlineExceeded) || isTimeout(err):
			return circuitbreaker.OutcomeFailure, outcomeTimeout, apierror.Wrap(apierror.GatewayTimeout,
				fmt.Sprintf("Request to '%s' timed out.", name), err).WithService(name)
		default:
			return circuitbreaker.OutcomeFailure, outcomeConnection, apierror.Wrap(apierror.BadGateway,
				fmt.Sprintf("Failed to connect to '%s'.", name), err).WithService(name)
		}
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return circuitbreaker.OutcomeFailure, outcomeServerError, apierror.Newf(apierror.BadGateway,
			"Service '%s' returned an error.", name).WithService(name)
	case resp.StatusCode >= http.StatusBadRequest:
		return circuitbreaker.OutcomeIgnored, outcomeClientError, nil
	default:
		return circuitbreaker.OutcomeSuccess, outcomeSuccess, nil
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Forward relays inbound to the named backend, keeping its method, path,
// query, headers and body. Identity headers must already be rewritten.
func (f *Facade) Forward(ctx context.Context, name string, inbound *http.Request) (*http.Response, error) {
	t, ok := f.targets[name]
	if !ok {
		return nil, apierror.Newf(apierror.InternalServerError, "Unknown backend '%s'.", name)
	}

	out := *t.baseURL
	out.Path = joinPath(t.baseURL.Path, inbound.URL.Path)
	out.RawPath = ""
	out.RawQuery = inbound.URL.RawQuery

	body := inbound.Body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, inbound.Method, out.String(), body)
	if err != nil {
		return nil, apierror.Wrap(apierror.InternalServerError, "", err)
	}
	if body != http.NoBody {
		req.ContentLength = inbound.ContentLength
	}

	req.Header = inbound.Header.Clone()
	removeHopHeaders(req.Header)
	setForwardedHeaders(req.Header, inbound)

	return f.Do(ctx, name, req)
}

// LogMetrics logs the circuit state of the named backend.
func (f *Facade) LogMetrics(name string) {
	t, ok := f.targets[name]
	if !ok {
		return
	}

	m := t.breaker.Metrics()
	f.logger.Info("circuit state",
		observability.String("backend", name),
		observability.String("state", m.State.String()),
		observability.Float64("failure_rate", m.FailureRate),
		observability.Float64("slow_call_rate", m.SlowCallRate),
		observability.Int("buffered_calls", m.BufferedCalls),
	)
}

// Names returns the configured backend names.
func (f *Facade) Names() []string {
	names := make([]string, 0, len(f.targets))
	for name := range f.targets {
		names = append(names, name)
	}
	return names
}

func joinPath(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case path == "":
		return base
	default:
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
