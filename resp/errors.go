package resp

import (
	"errors"
	"fmt"
)

// Error types for reply reading and request writing.
// They tell the caller whether the connection can still be used for the next
// request (see ShouldCloseConnection).

var (
	// ErrTimeout is wrapped by ConnectionError when a send or receive did not
	// complete before its deadline.
	ErrTimeout = errors.New("resp: deadline exceeded")

	// ErrEndOfStream is returned when the server closed the connection.
	ErrEndOfStream = errors.New("resp: connection closed by peer")
)

// RemoteError is an error reply (-<message>) sent by the server.
// The exchange itself was well formed: the connection can be REUSED.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// ShouldCloseConnection returns false - an error reply leaves the framing intact
func (e *RemoteError) ShouldCloseConnection() bool {
	return false
}

// ProtocolError is returned when a reply does not have the expected shape:
// unexpected tag, bad length or count, truncated bulk payload.
//
// Connection handling: the position in the byte stream is unknown, CLOSE the
// connection.
type ProtocolError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "protocol error: " + e.Message + ": " + e.Err.Error()
	}
	return "protocol error: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - framing state is indeterminate
func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps failures of the underlying socket.
// Op is "send" or "receive". Err wraps ErrTimeout when a deadline elapsed.
//
// Connection handling: CLOSE
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// Timeout reports whether the operation failed because its deadline elapsed.
func (e *ConnectionError) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout)
}

// InvalidArgumentError is returned when a request cannot be encoded.
// Nothing was written: the connection is still valid.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

func (e *InvalidArgumentError) ShouldCloseConnection() bool {
	return false
}

// ErrorWithConnectionState is implemented by every error of this package
// that knows whether the connection survived it.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
//
// Returns false for nil, RemoteError and InvalidArgumentError.
// Returns true for ProtocolError, ConnectionError, ErrEndOfStream and any
// error of unknown type.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	// Unknown error type (ErrEndOfStream included) - be conservative
	return true
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}
