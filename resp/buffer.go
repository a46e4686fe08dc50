package resp

import (
	"bytes"
)

var crlfBytes = []byte(CRLF)

// Receiver is the source a LineBuffer refills from. Transport implements it.
type Receiver interface {
	Receive(b []byte) (int, error)
}

// LineBuffer is a fixed-capacity receive buffer with a read cursor.
//
// Bytes in [idx, end) are received but not yet consumed; bytes before idx are
// consumed and get overwritten by the next refill. The buffer never grows: an
// inline line longer than its capacity is a ProtocolError, while bulk payloads
// of any size are streamed through it with ReadPayload.
//
// A LineBuffer is not safe for concurrent use.
type LineBuffer struct {
	src Receiver
	buf []byte
	idx int
	end int
}

// NewLineBuffer returns a LineBuffer of the given capacity reading from src.
// A size of zero or less selects DefaultBufferSize; sizes below
// MinBufferSize are raised to it.
func NewLineBuffer(src Receiver, size int) *LineBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if size < MinBufferSize {
		size = MinBufferSize
	}
	return &LineBuffer{
		src: src,
		buf: make([]byte, size),
	}
}

// Cap returns the fixed capacity of the buffer.
func (b *LineBuffer) Cap() int {
	return len(b.buf)
}

// Buffered returns the number of received bytes not consumed yet.
func (b *LineBuffer) Buffered() int {
	return b.end - b.idx
}

// Reset discards all buffered bytes and returns how many were unconsumed.
func (b *LineBuffer) Reset() int {
	n := b.end - b.idx
	b.idx, b.end = 0, 0
	return n
}

// fill receives more data. An empty buffer is refilled wholesale; otherwise
// the unconsumed bytes are moved to the front first.
func (b *LineBuffer) fill() error {
	if b.idx >= b.end {
		b.idx, b.end = 0, 0
	} else if b.idx > 0 {
		b.end = copy(b.buf, b.buf[b.idx:b.end])
		b.idx = 0
	}

	if b.end == len(b.buf) {
		return protocolErrorf("line exceeds buffer capacity of %d bytes", len(b.buf))
	}

	n, err := b.src.Receive(b.buf[b.end:])
	if err != nil {
		return err
	}
	b.end += n
	return nil
}

// NextLine returns the next CRLF-terminated line, without the delimiter, and
// moves the cursor past the delimiter.
//
// The delimiter scan starts skip bytes after the cursor, so a caller that knows
// the length of a raw payload can step over CR or LF bytes inside it; the
// returned line still starts at the cursor.
//
// When no delimiter is buffered, NextLine receives more data until one shows
// up. The whole line must fit in the buffer.
//
// The returned slice aliases the buffer and is only valid until the next call
// on b.
func (b *LineBuffer) NextLine(skip int) ([]byte, error) {
	if skip < 0 {
		return nil, protocolErrorf("negative line skip %d", skip)
	}

	// off is the scan start, relative to idx (fill moves idx)
	off := skip
	for {
		if start := b.idx + off; start < b.end {
			if i := bytes.Index(b.buf[start:b.end], crlfBytes); i >= 0 {
				nl := start + i
				line := b.buf[b.idx:nl:nl]
				b.idx = nl + len(crlfBytes)
				return line, nil
			}
		}

		// The last buffered byte may be the CR of a split delimiter
		off = max(skip, b.end-b.idx-1)

		if err := b.fill(); err != nil {
			return nil, err
		}
	}
}

// ReadLine returns the next line. Same as NextLine(0).
func (b *LineBuffer) ReadLine() ([]byte, error) {
	return b.NextLine(0)
}

// ReadPayload appends exactly n raw bytes to dst, then consumes the CRLF that
// must follow them. Unlike NextLine the payload may be larger than the buffer.
func (b *LineBuffer) ReadPayload(dst []byte, n int) ([]byte, error) {
	for n > 0 {
		if b.idx >= b.end {
			if err := b.fill(); err != nil {
				return dst, err
			}
		}
		k := min(n, b.end-b.idx)
		dst = append(dst, b.buf[b.idx:b.idx+k]...)
		b.idx += k
		n -= k
	}

	for b.end-b.idx < len(crlfBytes) {
		if err := b.fill(); err != nil {
			return dst, err
		}
	}
	if !bytes.Equal(b.buf[b.idx:b.idx+len(crlfBytes)], crlfBytes) {
		return dst, protocolErrorf("payload not terminated by CRLF")
	}
	b.idx += len(crlfBytes)
	return dst, nil
}
