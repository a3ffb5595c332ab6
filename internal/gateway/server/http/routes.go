package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/placegw/internal/apierror"
	"github.com/vyrodovalexey/placegw/internal/backend"
	"github.com/vyrodovalexey/placegw/internal/gateway/server/http/middleware"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// statusClientClosedRequest is recorded when the caller leaves before the
// backend answers. Nothing is written to the connection.
const statusClientClosedRequest = 499

// registerRoutes installs the gateway's own endpoints and the proxy
// fallback for everything else.
func registerRoutes(engine *gin.Engine, deps Dependencies) {
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	if deps.Health != nil {
		engine.GET("/health", deps.Health)
		engine.GET("/actuator/health", deps.Health)
	}
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	engine.Any("/fallback/:service", fallbackHandler)
	engine.NoRoute(proxyHandler(deps.Router, deps.Forwarder, deps.Logger))
}

// fallbackHandler answers for a backend that cannot be reached.
func fallbackHandler(c *gin.Context) {
	service := c.Param("service")
	apierror.Abort(c, apierror.Newf(apierror.ServiceUnavailable,
		"Service '%s' is temporarily unavailable. Please try again later.", service,
	).WithService(service))
}

// proxyHandler forwards requests to the backend owning the longest
// matching route prefix and streams the response back.
func proxyHandler(router *backend.Router, forwarder Forwarder, logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		route, ok := router.Match(path)
		if !ok {
			apierror.Abort(c, apierror.Newf(apierror.RouteNotFound, "No route for path '%s'.", path))
			return
		}
		c.Set(middleware.RouteKey, route.Prefix)

		ctx := c.Request.Context()
		resp, err := forwarder.Forward(ctx, route.Backend, c.Request)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				c.AbortWithStatus(statusClientClosedRequest)
				return
			}
			apierror.Abort(c, err)
			return
		}

		if err := backend.CopyResponse(c.Writer, resp); err != nil {
			_ = c.Error(err)
			logger.WithContext(ctx).Debug("copying backend response failed",
				observability.String("backend", route.Backend),
				observability.Error(err),
			)
		}
	}
}

var _ Forwarder = (*backend.Facade)(nil)
