package redis

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/puddle/v2"
)

// NewPuddlePool returns a Pool backed by puddle.
// Select it with Config.NewPool: redis.NewPuddlePool
func NewPuddlePool(connect ConnectFunc, maxSize int32) (Pool, error) {
	p := &puddlePool{}

	conns, err := puddle.NewPool(&puddle.Config[*Connection]{
		Constructor: p.opener(connect),
		Destructor:  p.closeConn,
		MaxSize:     maxSize,
	})
	if err != nil {
		return nil, err
	}
	p.conns = conns
	return p, nil
}

// puddlePool counts opened and closed connections itself: puddle does not
// report them.
type puddlePool struct {
	conns  *puddle.Pool[*Connection]
	opened atomic.Uint64
	closed atomic.Uint64
}

func (p *puddlePool) opener(connect ConnectFunc) puddle.Constructor[*Connection] {
	return func(ctx context.Context) (*Connection, error) {
		conn, err := connect(ctx)
		if err != nil {
			return nil, err
		}
		p.opened.Add(1)
		return conn, nil
	}
}

// closeConn may run on a puddle goroutine after Destroy returns.
func (p *puddlePool) closeConn(conn *Connection) {
	p.closed.Add(1)
	_ = conn.Close()
}

func (p *puddlePool) Acquire(ctx context.Context) (Resource, error) {
	res, err := p.conns.Acquire(ctx)
	switch {
	case errors.Is(err, puddle.ErrClosedPool):
		return nil, ErrPoolClosed
	case err != nil:
		return nil, err
	}
	return res, nil
}

func (p *puddlePool) AcquireAllIdle() []Resource {
	idle := p.conns.AcquireAllIdle()
	out := make([]Resource, 0, len(idle))
	for _, res := range idle {
		out = append(out, res)
	}
	return out
}

func (p *puddlePool) Close() {
	p.conns.Close()
}

// Stats reports AcquireErrors as the acquires canceled by their context.
func (p *puddlePool) Stats() PoolStats {
	st := p.conns.Stat()

	return PoolStats{
		AcquireCount:      uint64(st.AcquireCount()),
		AcquireWaitCount:  uint64(st.EmptyAcquireCount()),
		AcquireWaitTimeNs: uint64(st.EmptyAcquireWaitTime()),
		AcquireErrors:     uint64(st.CanceledAcquireCount()),
		CreatedConns:      p.opened.Load(),
		DestroyedConns:    p.closed.Load(),
		TotalConns:        st.TotalResources(),
		IdleConns:         st.IdleResources(),
		ActiveConns:       st.AcquiredResources(),
	}
}
