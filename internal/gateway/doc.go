// Package gateway assembles the place-owner edge gateway from its
// configuration and manages its lifecycle.
//
// New wires the token validator, the authentication gate, the Redis rate
// limiter, the per-backend circuit breakers and the backend facade into a
// single HTTP server. The request pipeline runs, in order:
//
//	recovery, request id, logging, tracing, CORS, rate limiting, authentication
//
// Requests that pass are forwarded to the backend owning the longest
// matching route prefix.
//
// # Usage
//
//	gw, err := gateway.New(ctx, cfg, gateway.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := gw.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer gw.Stop(ctx)
package gateway
