package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS_Preflight(t *testing.T) {
	engine := newEngine(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/places", nil)
	req.Header.Set("Origin", "https://owner.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, X-App-Type")
	w := serve(engine, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "https://owner.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "GET, POST, PUT, DELETE, PATCH, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, X-App-Type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}

func TestCORS_ActualRequest(t *testing.T) {
	engine := newEngine(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/places", nil)
	req.Header.Set("Origin", "https://owner.example.com")
	w := serve(engine, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "https://owner.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t,
		"X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After, Authorization",
		w.Header().Get("Access-Control-Expose-Headers"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name       string
		config     CORSConfig
		origin     string
		wantOrigin string
	}{
		{
			name:       "no origin header",
			config:     DefaultCORSConfig(),
			origin:     "",
			wantOrigin: "",
		},
		{
			name:       "wildcard without credentials",
			config:     CORSConfig{AllowOrigins: []string{"*"}},
			origin:     "https://a.example.com",
			wantOrigin: "*",
		},
		{
			name:       "listed origin",
			config:     CORSConfig{AllowOrigins: []string{"https://a.example.com"}},
			origin:     "https://a.example.com",
			wantOrigin: "https://a.example.com",
		},
		{
			name:       "unlisted origin",
			config:     CORSConfig{AllowOrigins: []string{"https://a.example.com"}},
			origin:     "https://evil.example.com",
			wantOrigin: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newEngine(CORS(tt.config))

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := serve(engine, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_PlainOptionsPassesThrough(t *testing.T) {
	engine := newEngine(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://owner.example.com")
	w := serve(engine, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
