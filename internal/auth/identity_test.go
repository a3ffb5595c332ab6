package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_ApplyWritesEmptyForAbsentClaims(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderDeviceID, "forged")

	Identity{UserID: "u", Role: RoleAdmin, AppType: DefaultAppType}.Apply(h)

	assert.Equal(t, "", h.Get(HeaderDeviceID))
	assert.Len(t, h.Values(HeaderDeviceID), 1)
	assert.Equal(t, "", h.Get(HeaderPlaceID))
	assert.Equal(t, "ADMIN", h.Get(HeaderUserRole))
}

func TestStripIdentityHeaders(t *testing.T) {
	h := http.Header{}
	for _, name := range IdentityHeaders {
		h.Add(name, "forged")
	}
	h.Set("Accept", "application/json")

	StripIdentityHeaders(h)

	for _, name := range IdentityHeaders {
		assert.Empty(t, h.Values(name), name)
	}
	assert.Equal(t, "application/json", h.Get("Accept"))
}

func TestResult_Apply(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   map[string]string
	}{
		{
			name:   "bypass leaves headers alone",
			result: Result{Decision: DecisionBypass},
			want:   map[string]string{HeaderUserID: "forged", HeaderAppType: "OTHER"},
		},
		{
			name:   "pre-auth keeps only the app type",
			result: Result{Decision: DecisionPreAuth, Identity: Identity{AppType: DefaultAppType}},
			want:   map[string]string{HeaderUserID: "", HeaderAppType: DefaultAppType},
		},
		{
			name: "authenticated writes the verified identity",
			result: Result{Decision: DecisionAuthenticated, Identity: Identity{
				UserID: "owner-1", Role: RolePlaceOwner, AppType: DefaultAppType,
			}},
			want: map[string]string{HeaderUserID: "owner-1", HeaderAppType: DefaultAppType},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			h.Set(HeaderUserID, "forged")
			h.Set(HeaderAppType, "OTHER")

			tt.result.Apply(h)

			for name, value := range tt.want {
				assert.Equal(t, value, h.Get(name), name)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		ok     bool
		access bool
	}{
		{"PLACE_OWNER", RolePlaceOwner, true, true},
		{"place_owner", RolePlaceOwner, true, true},
		{"Admin", RoleAdmin, true, true},
		{"user", RoleUser, true, false},
		{" ADMIN", "", false, false},
		{"guest", "", false, false},
		{"", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.access, got.CanAccessGateway())
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithIdentity(context.Background(), Identity{UserID: "u", Role: RoleAdmin})

	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", id.UserID)
	assert.Equal(t, RoleAdmin, id.Role)
}
