package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/placegw/internal/apierror"
	"github.com/vyrodovalexey/placegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

func breakerConfig() *circuitbreaker.Config {
	return circuitbreaker.DefaultConfig().
		WithWindow(10, 5).
		WithFailureRateThreshold(50).
		WithWaitDurationInOpen(time.Minute)
}

func newTestFacade(t *testing.T, url string, timeout time.Duration, opts ...Option) (*Facade, *circuitbreaker.CircuitBreaker) {
	t.Helper()

	registry := circuitbreaker.NewRegistry([]string{"place-service"}, breakerConfig(), nil)
	opts = append([]Option{WithMetrics(observability.NewMetrics("test"))}, opts...)
	f, err := NewFacade([]Target{{Name: "place-service", BaseURL: url, Timeout: timeout}}, registry, opts...)
	require.NoError(t, err)

	cb, ok := registry.Get("place-service")
	require.True(t, ok)
	return f, cb
}

func get(t *testing.T, f *Facade, path string) (*http.Response, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return f.Forward(context.Background(), "place-service", req)
}

// ============================================================================
// Success and pass-through
// ============================================================================

func TestFacade_ForwardSuccess(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("X-Backend", "place")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	f, cb := newTestFacade(t, srv.URL+"/base", time.Second)

	inbound := httptest.NewRequest(http.MethodPost, "/api/places?page=2", strings.NewReader(`{"name":"x"}`))
	inbound.Header.Set("X-User-Id", "user-1")
	inbound.Header.Set("Connection", "X-Secret-Hop")
	inbound.Header.Set("X-Secret-Hop", "1")
	inbound.Header.Set("Keep-Alive", "timeout=5")

	resp, err := f.Forward(context.Background(), "place-service", inbound)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "place", resp.Header.Get("X-Backend"))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/base/api/places", got.URL.Path)
	assert.Equal(t, "page=2", got.URL.RawQuery)
	assert.Equal(t, "user-1", got.Header.Get("X-User-Id"))
	assert.Empty(t, got.Header.Get("X-Secret-Hop"))
	assert.Empty(t, got.Header.Get("Keep-Alive"))
	assert.Equal(t, "192.0.2.1", got.Header.Get("X-Forwarded-For"))
	assert.Equal(t, "http", got.Header.Get("X-Forwarded-Proto"))

	m := cb.Metrics()
	assert.Equal(t, 1, m.BufferedCalls)
	assert.Equal(t, 0, m.FailedCalls)
}

func TestFacade_ClientErrorPassesThroughUncounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"place not found"}`)
	}))
	defer srv.Close()

	f, cb := newTestFacade(t, srv.URL, time.Second)

	for i := 0; i < 10; i++ {
		resp, err := get(t, f, "/api/places/404")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, `{"error":"place not found"}`, string(body))
	}

	m := cb.Metrics()
	assert.Equal(t, circuitbreaker.StateClosed, m.State)
	assert.Equal(t, 0, m.BufferedCalls)
	assert.Equal(t, 0, m.FailedCalls)
}

// ============================================================================
// Failure mapping
// ============================================================================

func TestFacade_ServerErrorMapsToBadGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, cb := newTestFacade(t, srv.URL, time.Second)

	resp, err := get(t, f, "/api/places")
	assert.Nil(t, resp)
	require.Error(t, err)

	apiErr := apierror.As(err)
	assert.Equal(t, "G002", apiErr.Code.Code)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status())
	assert.Equal(t, "Service 'place-service' returned an error.", apiErr.Message)
	assert.Equal(t, "place-service", apiErr.Service)
	assert.Equal(t, 1, cb.Metrics().FailedCalls)
}

func TestFacade_TimeoutMapsToGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f, cb := newTestFacade(t, srv.URL, 50*time.Millisecond)

	_, err := get(t, f, "/api/places")
	require.Error(t, err)

	apiErr := apierror.As(err)
	assert.Equal(t, "G003", apiErr.Code.Code)
	assert.Equal(t, "Request to 'place-service' timed out.", apiErr.Message)
	assert.Equal(t, 1, cb.Metrics().FailedCalls)
}

func TestFacade_ConnectionFailureMapsToBadGateway(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f, cb := newTestFacade(t, url, time.Second)

	_, err := get(t, f, "/api/places")
	require.Error(t, err)

	apiErr := apierror.As(err)
	assert.Equal(t, "G002", apiErr.Code.Code)
	assert.Equal(t, "Failed to connect to 'place-service'.", apiErr.Message)
	assert.Equal(t, 1, cb.Metrics().FailedCalls)
}

func TestFacade_OpenBreakerRejectsWithoutNetworkCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, cb := newTestFacade(t, srv.URL, time.Second)

	for i := 0; i < 5; i++ {
		_, err := get(t, f, "/api/places")
		require.Error(t, err)
	}
	require.Equal(t, circuitbreaker.StateOpen, cb.State())
	require.Equal(t, int32(5), hits.Load())

	_, err := get(t, f, "/api/places")
	require.Error(t, err)

	apiErr := apierror.As(err)
	assert.Equal(t, "G001", apiErr.Code.Code)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status())
	assert.Equal(t, "Service 'place-service' is temporarily unavailable. Please try again later.", apiErr.Message)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(5), hits.Load())
}

func TestFacade_CallerCancellationIsNotCounted(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-r.Context().Done()
	}))
	defer srv.Close()

	f, cb := newTestFacade(t, srv.URL, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	req := httptest.NewRequest(http.MethodGet, "/api/places", nil)
	_, err := f.Forward(ctx, "place-service", req)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cb.Metrics().BufferedCalls)
}

func TestFacade_SlowCallRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(10 * time.Second)
		return now
	}

	f, cb := newTestFacade(t, srv.URL, time.Second, WithClock(clock))

	resp, err := get(t, f, "/api/places")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, 1, cb.Metrics().SlowCalls)
}

func TestFacade_UnknownBackend(t *testing.T) {
	f, _ := newTestFacade(t, "http://127.0.0.1:1", time.Second)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	_, err := f.Forward(context.Background(), "nope", req)
	assert.Equal(t, "C001", apierror.CodeOf(err))

	_, err = f.Do(context.Background(), "nope", req)
	assert.Equal(t, "C001", apierror.CodeOf(err))
}

func TestFacade_InvalidHeaderValueDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f, cb := newTestFacade(t, srv.URL, time.Second)

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/places", nil)
		req.Header.Set("X-Device-Id", "d\nX-Evil: 1")

		_, err := f.Forward(context.Background(), "place-service", req)
		require.Error(t, err)

		apiErr := apierror.As(err)
		require.NotNil(t, apiErr)
		assert.Equal(t, "C001", apiErr.Code.Code)
		assert.Equal(t, "place-service", apiErr.Service)
	}

	assert.Zero(t, hits.Load())
	m := cb.Metrics()
	assert.Equal(t, circuitbreaker.StateClosed, m.State)
	assert.Equal(t, 0, m.BufferedCalls)

	resp, err := get(t, f, "/api/places")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, int32(1), hits.Load())
}

func TestValidateHeaders(t *testing.T) {
	assert.NoError(t, validateHeaders(http.Header{"X-Place-Id": {"place-9"}, "X-Device-Id": {""}}))
	assert.Error(t, validateHeaders(http.Header{"X-Device-Id": {"d\r\nX-Evil: 1"}}))
	assert.Error(t, validateHeaders(http.Header{"Bad Name": {"v"}}))
}

// ============================================================================
// Construction
// ============================================================================

func TestNewFacade_Validation(t *testing.T) {
	registry := circuitbreaker.NewRegistry([]string{"place-service"}, nil, nil)

	tests := []struct {
		name    string
		targets []Target
		errText string
	}{
		{
			name:    "missing breaker",
			targets: []Target{{Name: "room-service", BaseURL: "http://room"}},
			errText: "no circuit breaker",
		},
		{
			name:    "invalid url",
			targets: []Target{{Name: "place-service", BaseURL: "place"}},
			errText: "invalid base URL",
		},
		{
			name: "duplicate",
			targets: []Target{
				{Name: "place-service", BaseURL: "http://a"},
				{Name: "place-service", BaseURL: "http://b"},
			},
			errText: "duplicate backend",
		},
		{
			name:    "empty name",
			targets: []Target{{BaseURL: "http://a"}},
			errText: "name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFacade(tt.targets, registry)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}

	_, err := NewFacade(nil, nil)
	assert.Error(t, err)
}

func TestNewFacade_DefaultTimeout(t *testing.T) {
	registry := circuitbreaker.NewRegistry([]string{"place-service"}, nil, nil)
	f, err := NewFacade([]Target{{Name: "place-service", BaseURL: "http://place:8080"}}, registry)
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, f.targets["place-service"].Timeout)
	assert.Equal(t, []string{"place-service"}, f.Names())
	f.LogMetrics("place-service")
	f.LogMetrics("unknown")
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/api/places", joinPath("", "/api/places"))
	assert.Equal(t, "/api/places", joinPath("/", "/api/places"))
	assert.Equal(t, "/v1/api/places", joinPath("/v1/", "/api/places"))
	assert.Equal(t, "/v1", joinPath("/v1", ""))
}
