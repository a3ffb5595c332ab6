package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowOrigins is a list of origins that may access the resource.
	// Use "*" to allow all origins.
	AllowOrigins []string

	// AllowMethods is a list of methods allowed when accessing the resource.
	AllowMethods []string

	// AllowHeaders is a list of headers that can be used when making the
	// actual request. "*" echoes the headers a preflight asks for.
	AllowHeaders []string

	// ExposeHeaders is a list of headers that browsers are allowed to access.
	ExposeHeaders []string

	// AllowCredentials indicates whether the request can include user credentials.
	AllowCredentials bool

	// MaxAge indicates how long the results of a preflight request can be cached.
	MaxAge int
}

// DefaultCORSConfig returns a CORS config with default values.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Authorization"},
		AllowCredentials: true,
		MaxAge:           3600,
	}
}

// corsContext holds pre-computed values for CORS middleware.
type corsContext struct {
	config           CORSConfig
	allowOrigins     map[string]bool
	allowAllOrigins  bool
	allowAllHeaders  bool
	allowMethodsStr  string
	allowHeadersStr  string
	exposeHeadersStr string
	maxAgeStr        string
}

// newCORSContext creates and initializes the CORS context with pre-computed values.
func newCORSContext(config CORSConfig) *corsContext {
	defaults := DefaultCORSConfig()
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = defaults.AllowOrigins
	}
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = defaults.AllowMethods
	}
	if len(config.AllowHeaders) == 0 {
		config.AllowHeaders = defaults.AllowHeaders
	}

	ctx := &corsContext{
		config:           config,
		allowOrigins:     make(map[string]bool, len(config.AllowOrigins)),
		allowMethodsStr:  strings.Join(config.AllowMethods, ", "),
		allowHeadersStr:  strings.Join(config.AllowHeaders, ", "),
		exposeHeadersStr: strings.Join(config.ExposeHeaders, ", "),
		maxAgeStr:        strconv.Itoa(config.MaxAge),
	}
	for _, origin := range config.AllowOrigins {
		if origin == "*" {
			ctx.allowAllOrigins = true
		}
		ctx.allowOrigins[origin] = true
	}
	for _, header := range config.AllowHeaders {
		if header == "*" {
			ctx.allowAllHeaders = true
		}
	}
	return ctx
}

// setCommonCORSHeaders sets the common CORS headers for both preflight and actual requests.
// A wildcard origin with credentials echoes the request origin, since
// browsers reject "*" on credentialed requests.
func (ctx *corsContext) setCommonCORSHeaders(c *gin.Context, origin string) {
	if ctx.allowAllOrigins && !ctx.config.AllowCredentials {
		c.Header("Access-Control-Allow-Origin", "*")
	} else {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Add("Vary", "Origin")
	}

	if ctx.config.AllowCredentials {
		c.Header("Access-Control-Allow-Credentials", "true")
	}

	if ctx.exposeHeadersStr != "" {
		c.Header("Access-Control-Expose-Headers", ctx.exposeHeadersStr)
	}
}

// setPreflightHeaders sets headers specific to preflight (OPTIONS) requests.
func (ctx *corsContext) setPreflightHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Methods", ctx.allowMethodsStr)

	allowHeaders := ctx.allowHeadersStr
	if ctx.allowAllHeaders {
		if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
			allowHeaders = requested
		}
	}
	c.Header("Access-Control-Allow-Headers", allowHeaders)

	if ctx.config.MaxAge > 0 {
		c.Header("Access-Control-Max-Age", ctx.maxAgeStr)
	}
}

// CORS returns a CORS middleware. Preflight requests from allowed origins are
// answered with 204 and never reach the later stages.
func CORS(config CORSConfig) gin.HandlerFunc {
	ctx := newCORSContext(config)

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if !ctx.allowAllOrigins && !ctx.allowOrigins[origin] {
			c.Next()
			return
		}

		ctx.setCommonCORSHeaders(c, origin)

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			ctx.setPreflightHeaders(c)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
