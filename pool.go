package redis

import (
	"context"
	"errors"
	"time"
)

var ErrPoolClosed = errors.New("redis: pool closed")

// Pool holds the connections to one server.
type Pool interface {
	// Acquire returns an idle connection, dials a new one when under the size
	// limit, or waits for a release until ctx is done.
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle acquires every idle connection, for health checks.
	AcquireAllIdle() []Resource

	Close()
	Stats() PoolStats
}

// Resource is a connection checked out of a Pool. Exactly one of Release,
// ReleaseUnused or Destroy must be called.
type Resource interface {
	Value() *Connection

	// Release returns the connection to the pool.
	Release()

	// ReleaseUnused returns the connection without marking it as used.
	ReleaseUnused()

	// Destroy closes the connection and removes it from the pool.
	Destroy()

	CreationTime() time.Time
	IdleDuration() time.Duration
}

// ConnectFunc opens a ready-to-use connection: dialed, authenticated and on
// the configured database.
type ConnectFunc func(ctx context.Context) (*Connection, error)

// NewPoolFunc creates the pool of one server holding at most maxSize
// connections opened with connect.
type NewPoolFunc func(connect ConnectFunc, maxSize int32) (Pool, error)
