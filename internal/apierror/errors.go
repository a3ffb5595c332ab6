// Package apierror defines the gateway's error vocabulary and the JSON
// envelope every rejection is rendered with.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code with its HTTP status and
// default human-readable message.
type Code struct {
	Code    string
	Status  int
	Message string
}

// Common errors.
var (
	InternalServerError = Code{"C001", http.StatusInternalServerError, "Internal server error."}
	InvalidInput        = Code{"C002", http.StatusBadRequest, "Invalid request."}
	RouteNotFound       = Code{"C002", http.StatusNotFound, "No route for path."}
)

// Authentication errors.
var (
	Unauthorized = Code{"A001", http.StatusUnauthorized, "Unauthorized access."}
	InvalidToken = Code{"A002", http.StatusUnauthorized, "Invalid token."}
	ExpiredToken = Code{"A003", http.StatusUnauthorized, "Token has expired."}
)

// Authorization errors.
var (
	AccessDenied            = Code{"Z001", http.StatusForbidden, "Access denied."}
	InsufficientPermissions = Code{"Z002", http.StatusForbidden, "Insufficient role privileges."}
)

// Rate limit errors.
var (
	RateLimitExceeded = Code{"R001", http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."}
)

// Gateway and backend connectivity errors.
var (
	ServiceUnavailable = Code{"G001", http.StatusServiceUnavailable, "Service temporarily unavailable."}
	BadGateway         = Code{"G002", http.StatusBadGateway, "Bad gateway."}
	GatewayTimeout     = Code{"G003", http.StatusGatewayTimeout, "Gateway timeout."}
)

// Error is a gateway error carrying a Code and a request-specific message.
type Error struct {
	Code    Code
	Message string

	// Service names the backend involved, if any.
	Service string

	// RetryAfter is the number of seconds a client should wait, set on
	// rate limit rejections.
	RetryAfter int64

	cause error
}

// New creates an error with the given code and message. An empty message
// falls back to the code's default.
func New(code Code, message string) *Error {
	if message == "" {
		message = code.Message
	}
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an error carrying the code's default message.
func FromCode(code Code) *Error {
	return New(code, "")
}

// Wrap creates an error that keeps cause for errors.Is/As.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

// WithService sets the backend service name.
func (e *Error) WithService(name string) *Error {
	e.Service = name
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code.Code == t.Code.Code
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int {
	return e.Code.Status
}

// As converts any error into an *Error, mapping unknown errors to C001.
func As(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Wrap(InternalServerError, "", err)
}

// CodeOf returns the code string of err, or C001 when err is not an *Error.
func CodeOf(err error) string {
	return As(err).Code.Code
}
