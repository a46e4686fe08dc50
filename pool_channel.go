package redis

import (
	"context"
	"sync"
	"time"

	"github.com/pior/redis/internal/coarsetime"
)

// NewChannelPool returns the default Pool: idle connections wait in a
// buffered channel sized to maxSize, so releasing never blocks.
func NewChannelPool(connect ConnectFunc, maxSize int32) (Pool, error) {
	return &channelPool{
		connect: connect,
		maxSize: maxSize,
		idle:    make(chan *pooledConn, maxSize),
	}, nil
}

type channelPool struct {
	connect ConnectFunc
	maxSize int32
	idle    chan *pooledConn

	mu     sync.Mutex
	open   int32 // dialing, checked out or idle
	closed bool

	stats poolStatsCollector
}

// pooledConn is the Resource of channelPool.
type pooledConn struct {
	conn     *Connection
	pool     *channelPool
	created  time.Time
	lastUsed time.Time
}

func (c *pooledConn) Value() *Connection { return c.conn }

func (c *pooledConn) CreationTime() time.Time { return c.created }

func (c *pooledConn) IdleDuration() time.Duration { return coarsetime.Since(c.lastUsed) }

func (c *pooledConn) Release() {
	c.lastUsed = coarsetime.Now()
	c.pool.checkIn(c)
}

// ReleaseUnused keeps lastUsed, so health checks do not reset idle timers.
func (c *pooledConn) ReleaseUnused() {
	c.pool.checkIn(c)
}

func (c *pooledConn) Destroy() {
	_ = c.conn.Close()
	c.pool.stats.recordDeactivate()
	c.pool.forget()
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	if pc, ok, err := p.takeIdle(); ok || err != nil {
		return pc, err
	}

	reserved, err := p.reserve()
	if err != nil {
		p.stats.recordAcquireError()
		return nil, err
	}
	if reserved {
		return p.dial(ctx)
	}

	return p.waitIdle(ctx)
}

// takeIdle returns an idle connection without blocking.
func (p *channelPool) takeIdle() (Resource, bool, error) {
	select {
	case pc, ok := <-p.idle:
		if !ok {
			p.stats.recordAcquireError()
			return nil, false, ErrPoolClosed
		}
		p.stats.recordAcquireFromIdle()
		return pc, true, nil
	default:
		return nil, false, nil
	}
}

// reserve claims a slot for a new connection. It returns false when the
// pool is full.
func (p *channelPool) reserve() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, ErrPoolClosed
	}
	if p.open >= p.maxSize {
		return false, nil
	}
	p.open++
	return true, nil
}

func (p *channelPool) dial(ctx context.Context) (Resource, error) {
	conn, err := p.connect(ctx)
	if err != nil {
		p.mu.Lock()
		p.open--
		p.mu.Unlock()
		p.stats.recordAcquireError()
		return nil, err
	}

	p.stats.recordCreate()
	p.stats.recordActivate()

	now := coarsetime.Now()
	return &pooledConn{conn: conn, pool: p, created: now, lastUsed: now}, nil
}

func (p *channelPool) waitIdle(ctx context.Context) (Resource, error) {
	start := time.Now()

	select {
	case pc, ok := <-p.idle:
		if !ok {
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		p.stats.recordAcquireWait(time.Since(start))
		p.stats.recordAcquireFromIdle()
		return pc, nil
	case <-ctx.Done():
		p.stats.recordAcquireError()
		return nil, ctx.Err()
	}
}

func (p *channelPool) checkIn(pc *pooledConn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = pc.conn.Close()
		p.stats.recordDeactivate()
		p.open--
		p.stats.recordDestroy()
		return
	}

	p.idle <- pc
	p.stats.recordRelease()
}

func (p *channelPool) forget() {
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
	p.stats.recordDestroy()
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var out []Resource
	for {
		select {
		case pc, ok := <-p.idle:
			if !ok {
				return out
			}
			p.stats.recordAcquireFromIdle()
			out = append(out, pc)
		default:
			return out
		}
	}
}

func (p *channelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	close(p.idle)
	for pc := range p.idle {
		_ = pc.conn.Close()
		p.stats.recordIdleDestroy()
		p.open--
	}
}

func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
