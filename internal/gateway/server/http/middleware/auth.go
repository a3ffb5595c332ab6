package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/placegw/internal/apierror"
	"github.com/vyrodovalexey/placegw/internal/auth"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// Auth returns a middleware that applies the gate's decision: rejections
// are written as error envelopes, and passing requests get their identity
// headers rewritten before any handler sees them.
func Auth(gate *auth.Gate, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := gate.Authenticate(c.Request)
		if err != nil {
			metrics.RecordAuthRejection(apierror.CodeOf(err))
			apierror.Abort(c, err)
			return
		}

		result.Apply(c.Request.Header)

		if result.Decision == auth.DecisionAuthenticated {
			c.Set(auth.IdentityKey, result.Identity)
			c.Request = c.Request.WithContext(auth.ContextWithIdentity(c.Request.Context(), result.Identity))
		}

		c.Next()
	}
}

// GetIdentity returns the verified identity stored by Auth.
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	if v, exists := c.Get(auth.IdentityKey); exists {
		if id, ok := v.(auth.Identity); ok {
			return id, true
		}
	}
	return auth.Identity{}, false
}
