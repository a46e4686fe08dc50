// Package promexporter exposes client and pool statistics as Prometheus
// metrics.
package promexporter

import (
	"github.com/pior/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// StatsSource is implemented by *redis.Client.
type StatsSource interface {
	Stats() redis.ClientStats
	AllPoolStats() []redis.ServerPoolStats
}

// Collector is a prometheus.Collector reading a StatsSource on every scrape.
type Collector struct {
	source StatsSource

	requests     *prometheus.Desc
	errors       *prometheus.Desc
	remoteErrors *prometheus.Desc
	hits         *prometheus.Desc
	misses       *prometheus.Desc

	poolConnections  *prometheus.Desc
	poolAcquires     *prometheus.Desc
	poolAcquireWaits *prometheus.Desc
	poolWaitSeconds  *prometheus.Desc
	poolAcquireErrs  *prometheus.Desc
	poolCreated      *prometheus.Desc
	poolDestroyed    *prometheus.Desc

	circuitState    *prometheus.Desc
	circuitRequests *prometheus.Desc
	circuitFailures *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for source.
func NewCollector(source StatsSource) *Collector {
	server := []string{"server"}

	return &Collector{
		source: source,

		requests:     prometheus.NewDesc("redis_requests_total", "Total number of requests", nil, nil),
		errors:       prometheus.NewDesc("redis_errors_total", "Requests that failed without a reply", nil, nil),
		remoteErrors: prometheus.NewDesc("redis_remote_errors_total", "Requests answered with an error reply", nil, nil),
		hits:         prometheus.NewDesc("redis_hits_total", "Bulk replies holding a value", nil, nil),
		misses:       prometheus.NewDesc("redis_misses_total", "Null bulk replies", nil, nil),

		poolConnections:  prometheus.NewDesc("redis_pool_connections", "Connection pool statistics", []string{"server", "state"}, nil), // total, active, idle
		poolAcquires:     prometheus.NewDesc("redis_pool_acquires_total", "Total connection acquire attempts", server, nil),
		poolAcquireWaits: prometheus.NewDesc("redis_pool_acquire_waits_total", "Acquires that had to wait for a connection", server, nil),
		poolWaitSeconds:  prometheus.NewDesc("redis_pool_acquire_wait_seconds_total", "Total time spent waiting for a connection", server, nil),
		poolAcquireErrs:  prometheus.NewDesc("redis_pool_acquire_errors_total", "Failed connection acquires", server, nil),
		poolCreated:      prometheus.NewDesc("redis_pool_connections_created_total", "Total connections created", server, nil),
		poolDestroyed:    prometheus.NewDesc("redis_pool_connections_destroyed_total", "Total connections destroyed", server, nil),

		circuitState:    prometheus.NewDesc("redis_circuit_breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open)", server, nil),
		circuitRequests: prometheus.NewDesc("redis_circuit_breaker_requests", "Number of requests tracked by circuit breaker", server, nil),
		circuitFailures: prometheus.NewDesc("redis_circuit_breaker_failures", "Circuit breaker failure counts", []string{"server", "type"}, nil), // total, consecutive
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.requests, c.errors, c.remoteErrors, c.hits, c.misses,
		c.poolConnections, c.poolAcquires, c.poolAcquireWaits, c.poolWaitSeconds,
		c.poolAcquireErrs, c.poolCreated, c.poolDestroyed,
		c.circuitState, c.circuitRequests, c.circuitFailures,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(stats.Requests))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(stats.Errors))
	ch <- prometheus.MustNewConstMetric(c.remoteErrors, prometheus.CounterValue, float64(stats.RemoteErrors))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))

	for _, sp := range c.source.AllPoolStats() {
		ps := sp.PoolStats

		ch <- prometheus.MustNewConstMetric(c.poolConnections, prometheus.GaugeValue, float64(ps.TotalConns), sp.Addr, "total")
		ch <- prometheus.MustNewConstMetric(c.poolConnections, prometheus.GaugeValue, float64(ps.ActiveConns), sp.Addr, "active")
		ch <- prometheus.MustNewConstMetric(c.poolConnections, prometheus.GaugeValue, float64(ps.IdleConns), sp.Addr, "idle")
		ch <- prometheus.MustNewConstMetric(c.poolAcquires, prometheus.CounterValue, float64(ps.AcquireCount), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.poolAcquireWaits, prometheus.CounterValue, float64(ps.AcquireWaitCount), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.poolWaitSeconds, prometheus.CounterValue, float64(ps.AcquireWaitTimeNs)/1e9, sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.poolAcquireErrs, prometheus.CounterValue, float64(ps.AcquireErrors), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.poolCreated, prometheus.CounterValue, float64(ps.CreatedConns), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.poolDestroyed, prometheus.CounterValue, float64(ps.DestroyedConns), sp.Addr)

		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, circuitStateValue(sp.CircuitBreakerState), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.circuitRequests, prometheus.GaugeValue, float64(sp.CircuitBreakerCounts.Requests), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.circuitFailures, prometheus.GaugeValue, float64(sp.CircuitBreakerCounts.TotalFailures), sp.Addr, "total")
		ch <- prometheus.MustNewConstMetric(c.circuitFailures, prometheus.GaugeValue, float64(sp.CircuitBreakerCounts.ConsecutiveFailures), sp.Addr, "consecutive")
	}
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
