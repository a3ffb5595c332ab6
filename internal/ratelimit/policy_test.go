package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_RefillRate(t *testing.T) {
	p := Policy{Limit: 120, Window: time.Minute, Burst: 10}
	assert.InDelta(t, 2.0, p.RefillRate(), 1e-9)
	assert.Equal(t, int64(120), p.TTLSeconds())

	short := Policy{Limit: 1, Window: 100 * time.Millisecond, Burst: 1}
	assert.Equal(t, int64(1), short.TTLSeconds())
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	err := Policy{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
	assert.Contains(t, err.Error(), "window")
	assert.Contains(t, err.Error(), "burst")
}

func TestPolicyTable_Resolve(t *testing.T) {
	auth := Policy{Limit: 10, Window: time.Minute, Burst: 10}
	login := Policy{Limit: 5, Window: time.Minute, Burst: 5}
	places := Policy{Limit: 300, Window: time.Minute, Burst: 300}

	table, err := NewPolicyTable(DefaultPolicy(), map[string]Policy{
		"/api/auth":       auth,
		"/api/auth/login": login,
		"/api/places":     places,
	})
	require.NoError(t, err)

	tests := []struct {
		path       string
		wantPolicy Policy
		wantLabel  string
	}{
		{path: "/api/auth/login", wantPolicy: login, wantLabel: "/api/auth/login"},
		{path: "/api/auth/refresh", wantPolicy: auth, wantLabel: "/api/auth"},
		{path: "/api/places/1/rooms", wantPolicy: places, wantLabel: "/api/places"},
		{path: "/api/rooms", wantPolicy: DefaultPolicy(), wantLabel: DefaultPolicyLabel},
		{path: "/", wantPolicy: DefaultPolicy(), wantLabel: DefaultPolicyLabel},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, label := table.Resolve(tt.path)
			assert.Equal(t, tt.wantPolicy, p)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestNewPolicyTable_Invalid(t *testing.T) {
	_, err := NewPolicyTable(Policy{}, nil)
	assert.Error(t, err)

	_, err = NewPolicyTable(DefaultPolicy(), map[string]Policy{"": DefaultPolicy()})
	assert.Error(t, err)

	_, err = NewPolicyTable(DefaultPolicy(), map[string]Policy{"/api": {Limit: 1}})
	assert.Error(t, err)
}

func TestPolicyTable_Default(t *testing.T) {
	table, err := NewPolicyTable(DefaultPolicy(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), table.Default())
}
