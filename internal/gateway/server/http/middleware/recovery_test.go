package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/vyrodovalexey/placegw/internal/observability"
)

func TestRecovery(t *testing.T) {
	t.Run("panic becomes internal error envelope", func(t *testing.T) {
		engine := gin.New()
		engine.Use(Recovery(observability.NopLogger()))
		engine.GET("/boom", func(c *gin.Context) {
			panic("kaboom")
		})

		w := serve(engine, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "C001", env.Error.Code)
		assert.NotContains(t, w.Body.String(), "kaboom")
	})

	t.Run("written response is kept", func(t *testing.T) {
		engine := gin.New()
		engine.Use(Recovery(observability.NopLogger()))
		engine.GET("/late", func(c *gin.Context) {
			c.String(http.StatusAccepted, "partial")
			panic("after write")
		})

		w := serve(engine, httptest.NewRequest(http.MethodGet, "/late", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "partial", w.Body.String())
	})

	t.Run("no panic passes through", func(t *testing.T) {
		engine := newEngine(Recovery(nil))

		w := serve(engine, httptest.NewRequest(http.MethodGet, "/fine", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
