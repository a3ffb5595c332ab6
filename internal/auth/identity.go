package auth

import (
	"context"
	"net/http"
)

// Identity headers forwarded to backends.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
	HeaderDeviceID = "X-Device-Id"
	HeaderPlaceID  = "X-Place-Id"
	HeaderAppType  = "X-App-Type"
)

// IdentityHeaders lists every header that asserts caller identity.
// Inbound values of these headers are never forwarded.
var IdentityHeaders = []string{
	HeaderUserID,
	HeaderUserRole,
	HeaderDeviceID,
	HeaderPlaceID,
	HeaderAppType,
}

// Identity is the verified caller identity.
type Identity struct {
	UserID   string
	Role     Role
	DeviceID string
	PlaceID  string
	AppType  string
}

// StripIdentityHeaders removes all identity headers from h.
func StripIdentityHeaders(h http.Header) {
	for _, name := range IdentityHeaders {
		h.Del(name)
	}
}

// Apply replaces the identity headers in h with the verified values.
// Absent claims are forwarded as empty strings.
func (id Identity) Apply(h http.Header) {
	StripIdentityHeaders(h)
	h.Set(HeaderUserID, id.UserID)
	h.Set(HeaderUserRole, id.Role.String())
	h.Set(HeaderDeviceID, id.DeviceID)
	h.Set(HeaderPlaceID, id.PlaceID)
	h.Set(HeaderAppType, id.AppType)
}

// IdentityKey is the gin context key of the verified Identity.
const IdentityKey = "identity"

type identityKey struct{}

// ContextWithIdentity returns a context carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored in ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
