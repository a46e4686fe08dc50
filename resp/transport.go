package resp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// maxConsecutiveEmptyReads bounds reads returning neither data nor error.
const maxConsecutiveEmptyReads = 100

// Conn is the part of net.Conn the Transport needs.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Transport sends and receives raw bytes over an already-connected stream,
// bounding every operation with a deadline. It knows nothing about the
// protocol.
//
// A Transport is not safe for concurrent use.
type Transport struct {
	conn    Conn
	timeout time.Duration
	limit   time.Time
}

// NewTransport returns a Transport over conn. Every send attempt and every
// receive gets timeout to complete. A zero timeout disables deadlines.
func NewTransport(conn Conn, timeout time.Duration) *Transport {
	return &Transport{
		conn:    conn,
		timeout: timeout,
	}
}

// Timeout returns the per-operation deadline budget.
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// SetTimeout replaces the per-operation deadline budget. Zero disables it.
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// SetLimit sets an absolute time after which no operation may block, in
// addition to the per-operation timeout. Typically a context deadline.
// The zero time removes the limit.
func (t *Transport) SetLimit(limit time.Time) {
	t.limit = limit
}

func (t *Transport) deadline() time.Time {
	var d time.Time
	if t.timeout > 0 {
		d = time.Now().Add(t.timeout)
	}
	if !t.limit.IsZero() && (d.IsZero() || t.limit.Before(d)) {
		d = t.limit
	}
	return d
}

func (t *Transport) limitReached() bool {
	return !t.limit.IsZero() && !time.Now().Before(t.limit)
}

// Send writes all of b.
//
// The deadline is re-armed after every attempt that made progress: Send only
// gives up when a full timeout window passes without a single byte being
// accepted. In that case it returns the count sent so far (less than len(b))
// and a ConnectionError wrapping ErrTimeout. Any other failure is returned as
// a ConnectionError.
func (t *Transport) Send(b []byte) (int, error) {
	sent := 0
	for sent < len(b) {
		if err := t.conn.SetWriteDeadline(t.deadline()); err != nil {
			return sent, &ConnectionError{Op: "send", Err: err}
		}

		n, err := t.conn.Write(b[sent:])
		sent += n
		if err == nil {
			continue
		}

		if isTimeout(err) {
			if n > 0 && !t.limitReached() {
				continue
			}
			return sent, &ConnectionError{Op: "send", Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
		}
		return sent, &ConnectionError{Op: "send", Err: err}
	}
	return sent, nil
}

// Receive reads at most len(b) bytes into b. It blocks until some data is
// available, the deadline elapses or the peer closes the connection.
//
// Returns:
//   - n > 0, nil: some data (not necessarily len(b) bytes)
//   - 0, ErrEndOfStream: the peer closed the connection
//   - 0, *ConnectionError wrapping ErrTimeout: the deadline elapsed
//   - 0, *ConnectionError: any other I/O failure
func (t *Transport) Receive(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	if err := t.conn.SetReadDeadline(t.deadline()); err != nil {
		return 0, &ConnectionError{Op: "receive", Err: err}
	}

	for range maxConsecutiveEmptyReads {
		n, err := t.conn.Read(b)
		if n > 0 {
			// A pending error, if any, is reported by the next call
			return n, nil
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return 0, ErrEndOfStream
		case isTimeout(err):
			return 0, &ConnectionError{Op: "receive", Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
		default:
			return 0, &ConnectionError{Op: "receive", Err: err}
		}
	}

	return 0, &ConnectionError{Op: "receive", Err: io.ErrNoProgress}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
