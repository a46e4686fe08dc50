package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pior/redis/resp"
)

var ErrConnectionClosed = errors.New("redis: connection closed")

// ConnectionOptions configures a Connection.
type ConnectionOptions struct {
	// Timeout bounds every send attempt and every receive. Zero disables
	// per-operation deadlines; a context deadline still applies.
	Timeout time.Duration

	// Encoding is the request format. Defaults to multi-bulk.
	Encoding resp.Encoding

	// BufferSize is the receive buffer capacity. Zero selects
	// resp.DefaultBufferSize.
	BufferSize int

	// StrictIntegers rejects non-numeric integer replies.
	StrictIntegers bool

	// Logger receives debug events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Connection is one connection to a server.
// It runs one request/reply cycle at a time; concurrent Execute calls are
// serialized.
type Connection struct {
	mu     sync.Mutex
	conn   net.Conn
	tr     *resp.Transport
	reader *resp.Reader
	enc    resp.Encoding
	wbuf   []byte
	logger *slog.Logger
	closed bool
}

// NewConnection wraps an established net.Conn.
func NewConnection(conn net.Conn, opts ConnectionOptions) *Connection {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tr := resp.NewTransport(conn, opts.Timeout)
	return &Connection{
		conn: conn,
		tr:   tr,
		reader: resp.NewReader(tr, resp.ReaderOptions{
			BufferSize:     opts.BufferSize,
			StrictIntegers: opts.StrictIntegers,
		}),
		enc:    opts.Encoding,
		wbuf:   make([]byte, 0, 256),
		logger: logger.With("addr", conn.RemoteAddr().String()),
	}
}

// Dial connects to addr with keep-alive and TCP_NODELAY enabled.
func Dial(ctx context.Context, dialer *net.Dialer, addr string, opts ConnectionOptions) (*Connection, error) {
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if tcp, ok := netConn.(*net.TCPConn); ok {
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetNoDelay(true)
	}

	return NewConnection(netConn, opts), nil
}

// Execute sends req and reads its reply, which must be of kind expect (or an
// error reply).
//
// The context deadline, if any, caps every I/O operation of the cycle. The
// returned reply is a copy owned by the caller.
//
// After an error for which resp.ShouldCloseConnection is true the connection
// must be closed.
func (c *Connection) Execute(ctx context.Context, req *resp.Request, expect resp.Kind) (*resp.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}

	deadline, _ := ctx.Deadline()
	c.tr.SetLimit(deadline)

	buf, err := resp.AppendRequest(c.wbuf[:0], req, c.enc)
	if err != nil {
		return nil, err
	}
	c.wbuf = buf

	if _, err := c.tr.Send(buf); err != nil {
		return nil, err
	}

	reply, err := c.reader.ReadReply(expect)
	if n := c.reader.Discarded(); n > 0 {
		c.logger.Debug("discarded stale reply bytes", "bytes", n, "command", req.Name)
	}
	if err != nil {
		return nil, err
	}

	return reply.Clone(), nil
}

// Monitor sends MONITOR and calls fn with every command the server then
// reports, until ctx is done or fn returns an error, which Monitor returns.
//
// A monitoring connection cannot run requests anymore: it is closed on
// return. Its per-operation timeout is disabled while waiting for commands.
func (c *Connection) Monitor(ctx context.Context, fn func(line string) error) error {
	defer c.Close()

	if err := c.expectOK(ctx, resp.NewKeylessRequest(CmdMonitor)); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	// Interrupts a blocked receive.
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	c.tr.SetTimeout(0)
	c.tr.SetLimit(time.Time{})

	for {
		reply, err := c.reader.ReadNext(resp.KindStatus)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := fn(reply.Status()); err != nil {
			return err
		}
	}
}

// setup authenticates and selects the database of a new connection.
func (c *Connection) setup(ctx context.Context, password string, db int) error {
	if password != "" {
		if err := c.expectOK(ctx, resp.NewKeylessRequest(CmdAuth, password)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if db != 0 {
		if err := c.expectOK(ctx, resp.NewKeylessRequest(CmdSelect, strconv.Itoa(db))); err != nil {
			return fmt.Errorf("select %d: %w", db, err)
		}
	}
	return nil
}

func (c *Connection) expectOK(ctx context.Context, req *resp.Request) error {
	reply, err := c.Execute(ctx, req, resp.KindStatus)
	if err != nil {
		return err
	}
	return reply.Err()
}

// Addr returns the remote address.
func (c *Connection) Addr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// JoinHostPort applies the default host and port to empty values.
func JoinHostPort(host string, port int) string {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
