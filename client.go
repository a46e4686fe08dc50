package redis

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pior/redis/resp"
)

var ErrClientClosed = errors.New("redis: client closed")

// Config holds configuration for the client and its connection pools.
// The zero value is usable: every field has a default.
type Config struct {
	// Host and Port of the server, used when NewClient is given no Servers.
	// Default: 127.0.0.1:6379.
	Host string
	Port int

	// Password is sent with AUTH on every new connection. Empty disables AUTH.
	Password string

	// DB is selected with SELECT on every new connection.
	DB int

	// Timeout bounds each send attempt and each receive.
	// Zero means DefaultTimeout; a negative value disables the deadline.
	Timeout time.Duration

	// DialTimeout bounds connection establishment when Dialer is nil.
	// Zero means Timeout.
	DialTimeout time.Duration

	// MaxSize is the maximum number of connections per server.
	// Zero means DefaultMaxSize.
	MaxSize int32

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are checked with PING
	// and the lifetime limits.
	// Zero disables health checks.
	HealthCheckInterval time.Duration

	// Dialer is the net.Dialer used to create new connections.
	Dialer *net.Dialer

	// NewPool creates the pool of a server.
	// If nil, uses the channel-based pool. Alternative: NewPuddlePool.
	NewPool NewPoolFunc

	// NewCircuitBreaker creates a circuit breaker for a server.
	// Called once per server address when the pool is created.
	// If nil, no circuit breaker is used. See NewCircuitBreakerConfig.
	NewCircuitBreaker func(serverAddr string) *CircuitBreaker

	// SelectServer picks which server to use for a key.
	// If nil, uses DefaultSelectServer.
	SelectServer SelectServerFunc

	// Encoding is the request format. Default: multi-bulk.
	Encoding resp.Encoding

	// BufferSize is the receive buffer capacity of each connection.
	// Zero selects resp.DefaultBufferSize.
	BufferSize int

	// StrictIntegers rejects non-numeric integer replies instead of parsing
	// them best-effort.
	StrictIntegers bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// for testing purposes only
	constructor ConnectFunc
}

// Addr returns Host:Port with defaults applied.
func (c Config) Addr() string {
	return JoinHostPort(c.Host, c.Port)
}

func (c Config) withDefaults() Config {
	switch {
	case c.Timeout == 0:
		c.Timeout = DefaultTimeout
	case c.Timeout < 0:
		c.Timeout = 0
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = c.Timeout
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{Timeout: c.DialTimeout}
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.NewPool == nil {
		c.NewPool = NewChannelPool
	}
	if c.SelectServer == nil {
		c.SelectServer = DefaultSelectServer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// connectFunc opens connections to addr, authenticated and on the
// configured database.
func (c Config) connectFunc(addr string) ConnectFunc {
	if c.constructor != nil {
		return c.constructor
	}
	return func(ctx context.Context) (*Connection, error) {
		conn, err := Dial(ctx, c.Dialer, addr, c.connectionOptions())
		if err != nil {
			return nil, err
		}
		if err := conn.setup(ctx, c.Password, c.DB); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func (c Config) connectionOptions() ConnectionOptions {
	return ConnectionOptions{
		Timeout:        c.Timeout,
		Encoding:       c.Encoding,
		BufferSize:     c.BufferSize,
		StrictIntegers: c.StrictIntegers,
		Logger:         c.Logger,
	}
}

// Client is a pooled client spreading keys over one or more servers.
// It is safe for concurrent use.
type Client struct {
	*Commands

	servers Servers
	config  Config

	mu     sync.RWMutex
	pools  map[string]*ServerPool
	closed bool

	stopHealthCheck chan struct{}
	closeOnce       sync.Once

	stats clientStatsCollector
}

var _ Executor = (*Client)(nil)

// NewClient creates a client. A nil servers connects to config.Addr().
// Connections are dialed lazily, on the first request to each server.
func NewClient(servers Servers, config Config) (*Client, error) {
	config = config.withDefaults()

	if servers == nil {
		servers = NewStaticServers(config.Addr())
	}
	if len(servers.List()) == 0 {
		return nil, ErrNoServers
	}

	client := &Client{
		servers:         servers,
		config:          config,
		pools:           make(map[string]*ServerPool),
		stopHealthCheck: make(chan struct{}),
	}
	client.Commands = NewCommands(client)

	if config.HealthCheckInterval > 0 {
		go client.healthCheckLoop()
	}

	return client, nil
}

// Close stops the health checks and closes all pools.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopHealthCheck)

		c.mu.Lock()
		defer c.mu.Unlock()

		c.closed = true
		for _, sp := range c.pools {
			sp.pool.Close()
		}
	})
}

// Execute routes req by its Key and runs it on that server's pool.
// The returned reply is owned by the caller.
func (c *Client) Execute(ctx context.Context, req *resp.Request, expect resp.Kind) (*resp.Reply, error) {
	sp, err := c.getPoolForKey(req.Key)
	if err != nil {
		c.stats.record(nil, err)
		return nil, err
	}

	reply, err := sp.Execute(ctx, req, expect)
	c.stats.record(reply, err)
	return reply, err
}

// Monitor streams the commands processed by the server of key to fn, on a
// dedicated connection outside the pools. See Connection.Monitor.
func (c *Client) Monitor(ctx context.Context, key string, fn func(line string) error) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClientClosed
	}

	addr, err := c.config.SelectServer(key, c.servers.List())
	if err != nil {
		return err
	}

	conn, err := c.config.connectFunc(addr)(ctx)
	if err != nil {
		return err
	}
	return conn.Monitor(ctx, fn)
}

func (c *Client) getPoolForKey(key string) (*ServerPool, error) {
	addr, err := c.config.SelectServer(key, c.servers.List())
	if err != nil {
		return nil, err
	}
	return c.getOrCreatePool(addr)
}

func (c *Client) getOrCreatePool(addr string) (*ServerPool, error) {
	c.mu.RLock()
	sp, exists := c.pools[addr]
	c.mu.RUnlock()
	if exists {
		return sp, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if sp, exists := c.pools[addr]; exists {
		return sp, nil
	}
	if c.closed {
		return nil, ErrClientClosed
	}

	sp, err := NewServerPool(addr, c.config)
	if err != nil {
		return nil, err
	}
	c.pools[addr] = sp
	return sp, nil
}

func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkAllPools()
		}
	}
}

func (c *Client) checkAllPools() {
	c.mu.RLock()
	pools := make([]*ServerPool, 0, len(c.pools))
	for _, sp := range c.pools {
		pools = append(pools, sp)
	}
	c.mu.RUnlock()

	for _, sp := range pools {
		sp.checkIdle(c.config)
	}
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// AllPoolStats returns stats for all server pools
func (c *Client) AllPoolStats() []ServerPoolStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]ServerPoolStats, 0, len(c.pools))
	for _, sp := range c.pools {
		stats = append(stats, sp.Stats())
	}
	return stats
}
