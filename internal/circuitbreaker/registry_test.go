package circuitbreaker

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry([]string{"place-service", "room-service"}, testConfig(), nil)

	cb, ok := r.Get("place-service")
	require.True(t, ok)
	assert.Equal(t, "place-service", cb.Name())

	again, _ := r.Get("place-service")
	assert.Same(t, cb, again)

	_, ok = r.Get("payment-service")
	assert.False(t, ok)
}

func TestRegistry_BreakersAreIndependent(t *testing.T) {
	r := NewRegistry([]string{"place-service", "room-service"}, testConfig(), nil)
	place, _ := r.Get("place-service")
	room, _ := r.Get("room-service")

	for i := 0; i < 5; i++ {
		record(t, place, OutcomeFailure, 0)
	}

	assert.Equal(t, StateOpen, place.State())
	assert.Equal(t, StateClosed, room.State())
}

func TestRegistry_NamesSortedAndDeduplicated(t *testing.T) {
	r := NewRegistry([]string{"user-service", "place-service", "user-service", "room-service"}, nil, nil)

	names := r.Names()
	assert.Equal(t, []string{"place-service", "room-service", "user-service"}, names)

	names[0] = "mutated"
	assert.Equal(t, "place-service", r.Names()[0])
}

func TestRegistry_ResetAll(t *testing.T) {
	r := NewRegistry([]string{"place-service"}, testConfig(), nil)
	cb, _ := r.Get("place-service")
	openBreaker(t, cb)

	r.ResetAll()

	assert.Equal(t, StateClosed, cb.State())
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry([]string{"place-service", "room-service"}, testConfig(), nil)
	cb, _ := r.Get("place-service")
	openBreaker(t, cb)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, StateOpen, snapshot["place-service"].State)
	assert.Equal(t, StateClosed, snapshot["room-service"].State)
	assert.Equal(t, float64(-1), snapshot["room-service"].FailureRate)
}

func TestCollector(t *testing.T) {
	r := NewRegistry([]string{"place-service"}, testConfig(), nil)
	cb, _ := r.Get("place-service")
	openBreaker(t, cb)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(r)))

	expected := `
# HELP circuit_breaker_state Current state of the circuit breaker (0=closed, 1=open, 2=half-open)
# TYPE circuit_breaker_state gauge
circuit_breaker_state{name="place-service"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "circuit_breaker_state")
	assert.NoError(t, err)
	assert.Equal(t, 5, testutil.CollectAndCount(NewCollector(r)))
}
