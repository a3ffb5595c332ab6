package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	stateDesc = prometheus.NewDesc(
		"circuit_breaker_state",
		"Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
		[]string{"name"}, nil,
	)
	failureRateDesc = prometheus.NewDesc(
		"circuit_breaker_failure_rate",
		"Failure rate in percent over the sliding window, -1 until enough calls are buffered",
		[]string{"name"}, nil,
	)
	slowCallRateDesc = prometheus.NewDesc(
		"circuit_breaker_slow_call_rate",
		"Slow call rate in percent over the sliding window, -1 until enough calls are buffered",
		[]string{"name"}, nil,
	)
	bufferedCallsDesc = prometheus.NewDesc(
		"circuit_breaker_buffered_calls",
		"Number of calls in the sliding window",
		[]string{"name"}, nil,
	)
	notPermittedDesc = prometheus.NewDesc(
		"circuit_breaker_not_permitted_calls_total",
		"Total number of calls rejected by the circuit breaker",
		[]string{"name"}, nil,
	)
)

// Collector exports the registry's breakers to Prometheus. Values are read
// from the breakers at scrape time.
type Collector struct {
	registry *Registry
}

// NewCollector creates a collector for the registry.
func NewCollector(registry *Registry) *Collector {
	return &Collector{registry: registry}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- stateDesc
	ch <- failureRateDesc
	ch <- slowCallRateDesc
	ch <- bufferedCallsDesc
	ch <- notPermittedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, m := range c.registry.Snapshot() {
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(m.State), name)
		ch <- prometheus.MustNewConstMetric(failureRateDesc, prometheus.GaugeValue, m.FailureRate, name)
		ch <- prometheus.MustNewConstMetric(slowCallRateDesc, prometheus.GaugeValue, m.SlowCallRate, name)
		ch <- prometheus.MustNewConstMetric(bufferedCallsDesc, prometheus.GaugeValue, float64(m.BufferedCalls), name)
		ch <- prometheus.MustNewConstMetric(notPermittedDesc, prometheus.CounterValue, float64(m.NotPermittedCalls), name)
	}
}
