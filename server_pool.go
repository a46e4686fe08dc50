package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pior/redis/resp"
	"github.com/sony/gobreaker/v2"
)

// NewServerPool creates the connection pool of one server. config must have
// its defaults applied (see Config.withDefaults).
func NewServerPool(addr string, config Config) (*ServerPool, error) {
	pool, err := config.NewPool(config.connectFunc(addr), config.MaxSize)
	if err != nil {
		return nil, err
	}

	sp := &ServerPool{
		addr:   addr,
		pool:   pool,
		logger: config.Logger.With("server", addr),
	}
	if config.NewCircuitBreaker != nil {
		sp.circuitBreaker = config.NewCircuitBreaker(addr)
	}
	return sp, nil
}

// ServerPool wraps a pool, a circuit breaker with its server address.
type ServerPool struct {
	addr           string
	pool           Pool
	circuitBreaker *CircuitBreaker
	logger         *slog.Logger
}

func (sp *ServerPool) Address() string {
	return sp.addr
}

// ServerPoolStats contains stats for a single server pool
type ServerPoolStats struct {
	Addr                 string
	PoolStats            PoolStats
	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

func (sp *ServerPool) Stats() ServerPoolStats {
	stats := ServerPoolStats{
		Addr:      sp.addr,
		PoolStats: sp.pool.Stats(),
	}
	if sp.circuitBreaker != nil {
		stats.CircuitBreakerState = sp.circuitBreaker.State()
		stats.CircuitBreakerCounts = sp.circuitBreaker.Counts()
	}
	return stats
}

// Execute runs one request/reply cycle on a pooled connection.
// The connection is released afterwards, or destroyed when the error leaves
// it unusable. The request is wrapped with the server's circuit breaker.
func (sp *ServerPool) Execute(ctx context.Context, req *resp.Request, expect resp.Kind) (*resp.Reply, error) {
	if sp.circuitBreaker == nil {
		return sp.execRequestDirect(ctx, req, expect)
	}

	return sp.circuitBreaker.Execute(func() (*resp.Reply, error) {
		return sp.execRequestDirect(ctx, req, expect)
	})
}

func (sp *ServerPool) execRequestDirect(ctx context.Context, req *resp.Request, expect resp.Kind) (*resp.Reply, error) {
	resource, err := sp.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	reply, err := resource.Value().Execute(ctx, req, expect)
	if err != nil {
		if resp.ShouldCloseConnection(err) && !isContextError(err) {
			sp.logger.Debug("destroying connection", "command", req.Name, "error", err)
			resource.Destroy()
		} else {
			resource.Release()
		}
		return nil, err
	}

	resource.Release()
	return reply, nil
}

// isContextError reports an error returned before any I/O because ctx was
// already done. I/O cut short by the context deadline fails with a timeout.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// checkIdle destroys idle connections that are too old, idle for too long or
// failing a PING, and returns the others to the pool.
func (sp *ServerPool) checkIdle(config Config) {
	for _, res := range sp.pool.AcquireAllIdle() {
		if config.MaxConnLifetime > 0 && time.Since(res.CreationTime()) > config.MaxConnLifetime {
			res.Destroy()
			continue
		}

		if config.MaxConnIdleTime > 0 && res.IdleDuration() > config.MaxConnIdleTime {
			res.Destroy()
			continue
		}

		if err := ping(res.Value(), config.Timeout); err != nil {
			sp.logger.Warn("health check failed", "error", err)
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}

func ping(conn *Connection, timeout time.Duration) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply, err := conn.Execute(ctx, resp.NewKeylessRequest(CmdPing), resp.KindStatus)
	if err != nil {
		return err
	}
	if err := reply.Err(); err != nil {
		return err
	}
	if reply.Status() != "PONG" {
		return fmt.Errorf("unexpected PING reply: %q", reply.Status())
	}
	return nil
}
