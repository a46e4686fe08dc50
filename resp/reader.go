package resp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ReaderOptions configures a Reader. The zero value is ready to use.
type ReaderOptions struct {
	// BufferSize is the LineBuffer capacity. Zero selects DefaultBufferSize.
	BufferSize int

	// StrictIntegers makes a non-numeric integer reply a ProtocolError.
	// By default the payload is parsed best-effort: the longest leading
	// decimal prefix is used and garbage parses as 0.
	StrictIntegers bool
}

// Reader parses replies from a Receiver.
//
// It owns the LineBuffer, a multi-bulk scratch array and a single Reply slot,
// all reused from one reply to the next. A Reader serves one request/reply
// cycle at a time and is not safe for concurrent use.
type Reader struct {
	buf    *LineBuffer
	strict bool

	reply Reply

	// scratch array for multi-bulk entries, grown in MultiBulkGrowth units
	bulks [][]byte

	// backing storage for multi-bulk entries and large bulk payloads
	arena []byte

	discarded int
}

// NewReader returns a Reader receiving from src.
func NewReader(src Receiver, opts ReaderOptions) *Reader {
	return &Reader{
		buf:    NewLineBuffer(src, opts.BufferSize),
		strict: opts.StrictIntegers,
		bulks:  make([][]byte, MultiBulkGrowth),
		arena:  make([]byte, 0, DefaultBufferSize),
	}
}

// Buffer returns the underlying LineBuffer.
func (r *Reader) Buffer() *LineBuffer {
	return r.buf
}

// Discarded returns the number of stale bytes dropped when the last
// ReadReply started.
func (r *Reader) Discarded() int {
	return r.discarded
}

// ScratchCap returns the current capacity of the multi-bulk scratch array.
func (r *Reader) ScratchCap() int {
	return len(r.bulks)
}

// ReadReply reads one complete reply.
//
// Any bytes still buffered from a previous reply are discarded first: a new
// reply is a resynchronisation point.
//
// expect is the kind the caller asked for. A reply of another kind is a
// ProtocolError, except an error reply which is always accepted: it is
// returned with a nil error and Reply.Err() set. KindAny accepts every kind.
//
// Errors:
//   - ErrEndOfStream: the server closed the connection
//   - *ConnectionError: I/O failure or timeout (see IsTimeout)
//   - *ProtocolError: malformed or unexpected reply
//
// The returned Reply is only valid until the next call to ReadReply or
// ReadNext.
func (r *Reader) ReadReply(expect Kind) (*Reply, error) {
	r.discarded = r.buf.Reset()
	return r.next(expect)
}

// ReadNext is ReadReply for servers streaming several replies to one
// request (MONITOR): buffered bytes are the start of the next reply and are
// kept.
func (r *Reader) ReadNext(expect Kind) (*Reply, error) {
	r.discarded = 0
	return r.next(expect)
}

func (r *Reader) next(expect Kind) (*Reply, error) {
	r.arena = r.arena[:0]
	r.reply = Reply{}

	line, err := r.buf.ReadLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, protocolErrorf("empty reply line")
	}

	tag, payload := Kind(line[0]), line[1:]
	if expect != KindAny && tag != expect && tag != KindError {
		return nil, protocolErrorf("unexpected %s reply, expected %s", tag, expect)
	}

	r.reply.Kind = tag

	switch tag {
	case KindError, KindStatus:
		r.reply.Line = payload

	case KindInteger:
		v, ok := parseInteger(payload)
		if !ok && r.strict {
			return nil, protocolErrorf("invalid integer %q", payload)
		}
		r.reply.Integer = v

	case KindBulk:
		n, err := parseLength(payload, MaxBulkSize)
		if err != nil {
			return nil, err
		}
		bulk, err := r.readBulk(n, false)
		if err != nil {
			return nil, wrapTruncated(err, "bulk payload truncated")
		}
		r.reply.Bulk = bulk
		r.reply.Null = bulk == nil

	case KindMultiBulk:
		n, err := parseLength(payload, MaxMultiBulkCount)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			r.reply.Null = true
			break
		}
		bulks, err := r.readMultiBulk(n)
		if err != nil {
			return nil, err
		}
		r.reply.Bulks = bulks

	default:
		return nil, protocolErrorf("unknown reply tag %q", byte(tag))
	}

	return &r.reply, nil
}

// readBulk reads the payload of a bulk whose length header was n.
// Returns nil for a null bulk, a non-nil slice otherwise (even when empty).
//
// Payloads that fit in the line buffer are read with NextLine(n) and returned
// in place, unless retain is set: the buffer is compacted and refilled by later
// reads of the same reply, so multi-bulk entries are copied to the arena.
func (r *Reader) readBulk(n int, retain bool) ([]byte, error) {
	if n == -1 {
		return nil, nil
	}

	if n+len(CRLF) <= r.buf.Cap() {
		line, err := r.buf.NextLine(n)
		if err != nil {
			return nil, err
		}
		if len(line) != n {
			return nil, protocolErrorf("bulk length mismatch: declared %d, got %d", n, len(line))
		}
		if !retain {
			return line, nil
		}
		return r.save(line), nil
	}

	start := len(r.arena)
	arena, err := r.buf.ReadPayload(r.arena, n)
	r.arena = arena
	if err != nil {
		return nil, err
	}
	return r.arena[start:len(r.arena):len(r.arena)], nil
}

// readMultiBulk assembles count bulk entries. Either all count entries are
// read or an error is returned.
func (r *Reader) readMultiBulk(count int) ([][]byte, error) {
	if count > len(r.bulks) {
		size := (count + MultiBulkGrowth - 1) / MultiBulkGrowth * MultiBulkGrowth
		r.bulks = make([][]byte, size)
	}

	entries := r.bulks[:count:count]
	for i := range count {
		line, err := r.buf.ReadLine()
		if err != nil {
			return nil, truncated(i, count, err)
		}
		if len(line) == 0 || Kind(line[0]) != KindBulk {
			return nil, protocolErrorf("multi-bulk entry %d of %d: expected bulk, got %q", i+1, count, line)
		}

		m, err := parseLength(line[1:], MaxBulkSize)
		if err != nil {
			return nil, err
		}

		entry, err := r.readBulk(m, true)
		if err != nil {
			return nil, truncated(i, count, err)
		}
		entries[i] = entry
	}

	return entries, nil
}

// save copies b to the arena. Earlier arena slices stay valid when append
// reallocates: the old backing array is never written again.
func (r *Reader) save(b []byte) []byte {
	start := len(r.arena)
	r.arena = append(r.arena, b...)
	return r.arena[start:len(r.arena):len(r.arena)]
}

func truncated(i, count int, err error) error {
	return wrapTruncated(err, fmt.Sprintf("multi-bulk truncated at entry %d of %d", i+1, count))
}

// wrapTruncated turns an I/O failure in the middle of a reply into a
// ProtocolError. The cause stays reachable with errors.Is.
func wrapTruncated(err error, msg string) error {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return err
	}
	return &ProtocolError{Message: msg, Err: err}
}

// parseLength parses a bulk length or multi-bulk count: a decimal in
// [-1, limit].
func parseLength(b []byte, limit int) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, &ProtocolError{Message: fmt.Sprintf("invalid length %q", b), Err: err}
	}
	if n < -1 || n > limit {
		return 0, protocolErrorf("length %d out of range", n)
	}
	return n, nil
}

// parseInteger parses an integer reply payload. It reports whether b was a
// valid integer; if not, the value of its longest leading decimal prefix is
// returned (0 when there is none), after optional whitespace and sign.
// Out of range prefixes saturate at math.MaxInt64 and math.MinInt64.
func parseInteger(b []byte) (int64, bool) {
	if v, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		return v, true
	}

	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}

	neg := false
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		neg = b[i] == '-'
		i++
	}

	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}

	var u uint64
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		d := uint64(b[i] - '0')
		if u > (limit-d)/10 {
			u = limit
			break
		}
		u = u*10 + d
	}

	if neg {
		if u == limit {
			return math.MinInt64, false
		}
		return -int64(u), false
	}
	return int64(u), false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
