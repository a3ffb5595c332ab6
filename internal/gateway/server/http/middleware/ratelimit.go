package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/placegw/internal/apierror"
	"github.com/vyrodovalexey/placegw/internal/observability"
	"github.com/vyrodovalexey/placegw/internal/ratelimit"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter to use.
	Limiter ratelimit.Limiter

	// Policies resolves the policy of a request path.
	Policies *ratelimit.PolicyTable

	// TrustIdentityHeader keys buckets by the unverified X-User-Id header.
	TrustIdentityHeader bool

	// SkipPrefixes are path prefixes that are never limited.
	SkipPrefixes []string

	Logger  observability.Logger
	Metrics *observability.Metrics
}

// RateLimit returns a middleware that admits or rejects requests by token
// bucket. Store failures admit the request.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if hasAnyPrefix(path, config.SkipPrefixes) {
			c.Next()
			return
		}

		policy, label := config.Policies.Resolve(path)
		key := ratelimit.KeyFromRequest(c.Request, config.TrustIdentityHeader)

		decision, err := config.Limiter.Allow(c.Request.Context(), key, policy)
		config.Metrics.RecordRateLimit(label, decision.Allowed, err != nil)

		c.Header(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		if decision.Remaining >= 0 {
			c.Header(HeaderRateLimitRemaining, strconv.FormatInt(decision.Remaining, 10))
		}

		if err != nil {
			config.Logger.WithContext(c.Request.Context()).Debug("rate limit check failed open",
				observability.String("key", key),
				observability.String("policy", label),
				observability.Error(err),
			)
		}

		if decision.Allowed {
			c.Next()
			return
		}

		if decision.ResetAfter > 0 {
			c.Header(HeaderRetryAfter, strconv.FormatInt(decision.ResetAfter, 10))
		}

		config.Logger.WithContext(c.Request.Context()).Info("rate limit exceeded",
			observability.String("key", key),
			observability.String("policy", label),
			observability.String("path", path),
			observability.Int64("retry_after", decision.ResetAfter),
		)

		rejection := apierror.FromCode(apierror.RateLimitExceeded)
		rejection.RetryAfter = decision.ResetAfter
		apierror.Abort(c, rejection)
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
