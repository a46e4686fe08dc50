package testutils

import (
	"bytes"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
// Reads replay the configured server output, optionally a few bytes at a time.
type ConnectionMock struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	chunk    int
	hang     bool
	closed   bool
	reads    int

	ReadDeadline  time.Time
	WriteDeadline time.Time
}

// NewConnectionMock creates a new mock connection with pre-configured response data
func NewConnectionMock(responseData ...string) *ConnectionMock {
	readBuf := bytes.NewBufferString(strings.Join(responseData, ""))
	return &ConnectionMock{
		readBuf:  readBuf,
		writeBuf: &bytes.Buffer{},
	}
}

// WithChunkSize limits every Read to n bytes, simulating slow delivery.
func (m *ConnectionMock) WithChunkSize(n int) *ConnectionMock {
	m.chunk = n
	return m
}

// WithHang makes Read time out once the response data is drained, like a peer
// that keeps the socket open but stops sending. By default Read returns io.EOF.
func (m *ConnectionMock) WithHang() *ConnectionMock {
	m.hang = true
	return m
}

// Feed appends more response data.
func (m *ConnectionMock) Feed(data ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.WriteString(strings.Join(data, ""))
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	m.reads++

	if m.readBuf.Len() == 0 {
		if m.hang {
			return 0, os.ErrDeadlineExceeded
		}
		return 0, io.EOF
	}

	if m.chunk > 0 && len(b) > m.chunk {
		b = b[:m.chunk]
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed returns whether Close was called
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reads returns how many times Read was called
func (m *ConnectionMock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6379}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadDeadline, m.WriteDeadline = t, t
	return nil
}

func (m *ConnectionMock) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadDeadline = t
	return nil
}

func (m *ConnectionMock) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteDeadline = t
	return nil
}

// GetWrittenRequest returns the raw request bytes written to the mock connection
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}
