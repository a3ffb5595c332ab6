package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/placegw/internal/auth"
	"github.com/vyrodovalexey/placegw/internal/config"
	"github.com/vyrodovalexey/placegw/internal/vault"
)

const testSecret = "gateway-test-secret"

func testConfig(t *testing.T, redisAddr, backendURL string) *config.GatewayConfig {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Auth.JWT.Secret = testSecret
	cfg.Redis.Address = redisAddr
	cfg.Redis.ConnectionRetries = 0
	cfg.Redis.DialTimeout = config.Duration(200 * time.Millisecond)
	for i := range cfg.Backends {
		cfg.Backends[i].URL = backendURL
	}
	return cfg
}

func signedToken(t *testing.T) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "owner-1",
		"role": "PLACE_OWNER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	cfg := config.DefaultConfig()
	_, err = New(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	mr := miniredis.RunT(t)
	cfg = testConfig(t, mr.Addr(), "http://127.0.0.1:1")
	failing := vault.Literal("")
	_, err = New(context.Background(), cfg, WithSecretSource(failing))
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrEmptySecret)
	assert.ErrorIs(t, err, ErrSigningSecret)
}

func TestGateway_ProxiesAuthenticatedRequests(t *testing.T) {
	var seenUser string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = r.Header.Get(auth.HeaderUserID)
		_, _ = io.WriteString(w, `{"places":[]}`)
	}))
	defer upstream.Close()

	mr := miniredis.RunT(t)
	gw, err := New(context.Background(), testConfig(t, mr.Addr(), upstream.URL))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, gw.State())
	assert.ElementsMatch(t, gw.Config().BackendNames(), gw.Breakers().Names())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/places", nil)
	req.Header.Set(auth.HeaderAppType, auth.DefaultAppType)
	req.Header.Set("Authorization", "Bearer "+signedToken(t))
	req.Header.Set(auth.HeaderUserID, "forged")
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"places":[]}`, w.Body.String())
	assert.Equal(t, "owner-1", seenUser)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "placegw_requests_total")
	assert.Contains(t, w.Body.String(), "placegw_build_info")
}

func TestGateway_RedisDownAtStartup(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	gw, err := New(context.Background(), testConfig(t, addr, upstream.URL))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set(auth.HeaderAppType, auth.DefaultAppType)
	req.Header.Set("Authorization", "Bearer "+signedToken(t))
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Remaining"))

	w = httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGateway_RateLimitDisabled(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr(), "http://127.0.0.1:1")
	cfg.RateLimit.Enabled = false

	gw, err := New(context.Background(), cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/places", nil)
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestGateway_StartStop(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr(), "http://127.0.0.1:1")
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	gw, err := New(context.Background(), cfg, WithShutdownTimeout(5*time.Second))
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, gw.Stop(ctx), ErrGatewayNotRunning)

	require.NoError(t, gw.Start(ctx))
	assert.True(t, gw.IsRunning())
	assert.ErrorIs(t, gw.Start(ctx), ErrGatewayNotStopped)

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Positive(t, gw.Uptime())

	require.NoError(t, gw.Stop(ctx))
	assert.Equal(t, StateStopped, gw.State())

	select {
	case err := <-gw.Errors():
		t.Fatalf("unexpected serve error: %v", err)
	default:
	}
}

func TestGateway_ServeErrorReported(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr(), "http://127.0.0.1:1")
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port

	gw, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, gw.Start(context.Background()))

	select {
	case err := <-gw.Errors():
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a serve error for a busy port")
	}

	err = gw.Stop(context.Background())
	if err != nil {
		assert.False(t, errors.Is(err, ErrGatewayNotRunning))
	}
}
