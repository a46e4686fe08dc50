package resp

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

// loopReceiver serves the same reply forever.
type loopReceiver struct {
	data []byte
	off  int
}

func (l *loopReceiver) Receive(b []byte) (int, error) {
	n := copy(b, l.data[l.off:])
	l.off += n
	if l.off == len(l.data) {
		l.off = 0
	}
	return n, nil
}

func benchmarkReadReply(b *testing.B, wire string, expect Kind) {
	r := NewReader(&loopReceiver{data: []byte(wire)}, ReaderOptions{})
	b.SetBytes(int64(len(wire)))
	b.ReportAllocs()

	for b.Loop() {
		if _, err := r.ReadReply(expect); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadReply_Status(b *testing.B) {
	benchmarkReadReply(b, "+OK\r\n", KindStatus)
}

func BenchmarkReadReply_Integer(b *testing.B) {
	benchmarkReadReply(b, ":123456\r\n", KindInteger)
}

func BenchmarkReadReply_SmallBulk(b *testing.B) {
	benchmarkReadReply(b, "$5\r\nhello\r\n", KindBulk)
}

func BenchmarkReadReply_LargeBulk(b *testing.B) {
	data := strings.Repeat("x", 10*1024)
	benchmarkReadReply(b, fmt.Sprintf("$%d\r\n%s\r\n", len(data), data), KindBulk)
}

func BenchmarkReadReply_MultiBulk(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("*100\r\n")
	for i := range 100 {
		v := fmt.Sprintf("value-%d", i)
		fmt.Fprintf(&sb, "$%d\r\n%s\r\n", len(v), v)
	}
	benchmarkReadReply(b, sb.String(), KindMultiBulk)
}

func BenchmarkAppendRequest_Get(b *testing.B) {
	req := NewRequest("GET", "mykey", nil)
	buf := make([]byte, 0, 64)

	for b.Loop() {
		var err error
		buf, err = AppendRequest(buf[:0], req, EncodingMultiBulk)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAppendRequest_SetInline(b *testing.B) {
	req := NewRequest("SET", "mykey", bytes.Repeat([]byte("x"), 100))
	buf := make([]byte, 0, 256)

	for b.Loop() {
		var err error
		buf, err = AppendRequest(buf[:0], req, EncodingInline)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWriteRequest_LargeSet(b *testing.B) {
	req := NewRequest("SET", "mykey", bytes.Repeat([]byte("x"), 10*1024))

	for b.Loop() {
		if err := WriteRequest(io.Discard, req, EncodingMultiBulk); err != nil {
			b.Fatal(err)
		}
	}
}
