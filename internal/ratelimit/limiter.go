// Package ratelimit provides distributed token bucket rate limiting backed by
// Redis. Limits are shared by every gateway instance using the same store.
package ratelimit

import (
	"context"
)

// Limiter decides whether a request identified by key is admitted under
// policy p.
type Limiter interface {
	// Allow consumes one token for key. A store failure yields an allowed
	// decision together with the error.
	Allow(ctx context.Context, key string, p Policy) (Decision, error)
}

// Decision is the result of a rate limit check.
type Decision struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Remaining is the number of whole tokens left, or -1 when unknown.
	Remaining int64

	// ResetAfter is the number of seconds until a denied key may retry.
	ResetAfter int64

	// Limit is the configured limit of the resolved policy.
	Limit int
}

// failOpen returns the decision used when the store cannot be consulted.
func failOpen(p Policy) Decision {
	return Decision{Allowed: true, Remaining: -1, Limit: p.Limit}
}
