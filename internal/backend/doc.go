// Package backend calls the gateway's upstream services.
//
// Every call goes through the Facade, which applies a per-backend circuit
// breaker and a per-call timeout, and maps failures onto the gateway error
// vocabulary:
//
//	breaker open        -> G001 service unavailable
//	call timed out      -> G003 gateway timeout
//	connection failure  -> G002 bad gateway
//	backend 5xx         -> G002 bad gateway
//	backend 4xx         -> passed through unchanged
//
// Client errors and caller cancellations are not counted against a backend.
package backend
