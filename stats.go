package redis

import (
	"sync/atomic"
	"time"

	"github.com/pior/redis/resp"
)

// PoolStats contains statistics about a connection pool.
//
// Exposed by promexporter as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: AcquireCount, AcquireWaitCount, CreatedConns, DestroyedConns, AcquireErrors, AcquireWaitTimeNs
type PoolStats struct {
	// Lifetime counters
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	// Current state gauges
	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// ClientStats contains statistics about client requests.
type ClientStats struct {
	Requests     uint64 // Requests executed
	Errors       uint64 // Requests that failed with a Go error
	RemoteErrors uint64 // Requests answered with an error reply
	Hits         uint64 // Bulk replies holding a value
	Misses       uint64 // Null bulk replies
}

// poolStatsCollector is updated by the pools. The zero value is ready to use.
type poolStatsCollector struct {
	acquireCount      atomic.Uint64
	acquireWaitCount  atomic.Uint64
	createdConns      atomic.Uint64
	destroyedConns    atomic.Uint64
	acquireErrors     atomic.Uint64
	acquireWaitTimeNs atomic.Uint64

	totalConns  atomic.Int32
	idleConns   atomic.Int32
	activeConns atomic.Int32
}

func (c *poolStatsCollector) recordAcquire() {
	c.acquireCount.Add(1)
}

func (c *poolStatsCollector) recordAcquireWait(d time.Duration) {
	c.acquireWaitCount.Add(1)
	c.acquireWaitTimeNs.Add(uint64(d.Nanoseconds()))
}

func (c *poolStatsCollector) recordCreate() {
	c.createdConns.Add(1)
	c.totalConns.Add(1)
}

func (c *poolStatsCollector) recordDestroy() {
	c.destroyedConns.Add(1)
	c.totalConns.Add(-1)
}

// recordIdleDestroy accounts for an idle connection closed by the pool.
func (c *poolStatsCollector) recordIdleDestroy() {
	c.idleConns.Add(-1)
	c.recordDestroy()
}

func (c *poolStatsCollector) recordAcquireError() {
	c.acquireErrors.Add(1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	c.idleConns.Add(-1)
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordActivate() {
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordDeactivate() {
	c.activeConns.Add(-1)
}

func (c *poolStatsCollector) recordRelease() {
	c.idleConns.Add(1)
	c.activeConns.Add(-1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		AcquireCount:      c.acquireCount.Load(),
		AcquireWaitCount:  c.acquireWaitCount.Load(),
		CreatedConns:      c.createdConns.Load(),
		DestroyedConns:    c.destroyedConns.Load(),
		AcquireErrors:     c.acquireErrors.Load(),
		AcquireWaitTimeNs: c.acquireWaitTimeNs.Load(),
		TotalConns:        c.totalConns.Load(),
		IdleConns:         c.idleConns.Load(),
		ActiveConns:       c.activeConns.Load(),
	}
}

type clientStatsCollector struct {
	requests     atomic.Uint64
	errors       atomic.Uint64
	remoteErrors atomic.Uint64
	hits         atomic.Uint64
	misses       atomic.Uint64
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Requests:     c.requests.Load(),
		Errors:       c.errors.Load(),
		RemoteErrors: c.remoteErrors.Load(),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
	}
}

func (c *clientStatsCollector) record(reply *resp.Reply, err error) {
	c.requests.Add(1)
	switch {
	case err != nil:
		c.errors.Add(1)
	case reply.HasError():
		c.remoteErrors.Add(1)
	case reply.Kind == resp.KindBulk && reply.IsNull():
		c.misses.Add(1)
	case reply.Kind == resp.KindBulk:
		c.hits.Add(1)
	}
}
