package resp

import (
	"io"
	"strconv"
	"strings"
)

// Request is one command sent to the server.
// It is a plain container; AppendRequest does the encoding.
type Request struct {
	// Name is the command name: GET, SET, LRANGE, ...
	Name string

	// Key is the key the command operates on, written as the first argument
	// when HasKey is set. An empty key is a valid key. Clients also use Key to
	// pick a server; keyless commands (PING, DBSIZE, ...) route by "".
	Key    string
	HasKey bool

	// Args are written after Key.
	Args []string

	// Payload is the value carried by the command (SET, GETSET, ...), written
	// last. nil means no payload; an empty non-nil slice is an empty value.
	Payload []byte
}

// NewRequest returns a request on key. key may be empty and payload nil.
func NewRequest(name, key string, payload []byte, args ...string) *Request {
	return &Request{
		Name:    name,
		Key:     key,
		HasKey:  true,
		Args:    args,
		Payload: payload,
	}
}

// NewKeylessRequest returns a request that carries no key.
func NewKeylessRequest(name string, args ...string) *Request {
	return &Request{
		Name: name,
		Args: args,
	}
}

// HasPayload returns true if the request carries a value.
func (r *Request) HasPayload() bool {
	return r.Payload != nil
}

// Argc returns the number of words of the request, name included.
func (r *Request) Argc() int {
	n := 1 + len(r.Args)
	if r.HasKey {
		n++
	}
	if r.Payload != nil {
		n++
	}
	return n
}

// String returns a human-readable form for logs. Payloads are elided.
func (r *Request) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	if r.HasKey {
		sb.WriteString(Space)
		if r.Key == "" {
			sb.WriteString(`""`)
		} else {
			sb.WriteString(r.Key)
		}
	}
	for _, a := range r.Args {
		sb.WriteString(Space)
		sb.WriteString(a)
	}
	if r.Payload != nil {
		sb.WriteString(" <")
		sb.WriteString(strconv.Itoa(len(r.Payload)))
		sb.WriteString(" bytes>")
	}
	return sb.String()
}

// AppendRequest encodes req with the given encoding and appends it to dst.
//
// EncodingMultiBulk:
//
//	*<argc>\r\n$<len>\r\n<name>\r\n$<len>\r\n<key>\r\n...
//
// EncodingInline:
//
//	<name> <key> <args>*\r\n
//	<name> <key> <args>* <len>\r\n<payload>\r\n   (with a payload)
//
// Inline words must be non-empty and free of whitespace, so an empty key
// needs the multi-bulk encoding. The payload may hold any bytes.
func AppendRequest(dst []byte, req *Request, enc Encoding) ([]byte, error) {
	if req.Name == "" {
		return dst, &InvalidArgumentError{Message: "empty command name"}
	}

	switch enc {
	case EncodingMultiBulk:
		return appendMultiBulk(dst, req), nil
	case EncodingInline:
		out, err := appendInline(dst, req)
		if err != nil {
			return dst, err
		}
		return out, nil
	default:
		return dst, &InvalidArgumentError{Message: "unknown request encoding"}
	}
}

// WriteRequest encodes req and writes it to w in a single Write.
func WriteRequest(w io.Writer, req *Request, enc Encoding) error {
	buf, err := AppendRequest(nil, req, enc)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func appendMultiBulk(dst []byte, req *Request) []byte {
	dst = append(dst, byte(KindMultiBulk))
	dst = strconv.AppendInt(dst, int64(req.Argc()), 10)
	dst = append(dst, CRLF...)

	dst = appendBulkString(dst, req.Name)
	if req.HasKey {
		dst = appendBulkString(dst, req.Key)
	}
	for _, a := range req.Args {
		dst = appendBulkString(dst, a)
	}
	if req.Payload != nil {
		dst = append(dst, byte(KindBulk))
		dst = strconv.AppendInt(dst, int64(len(req.Payload)), 10)
		dst = append(dst, CRLF...)
		dst = append(dst, req.Payload...)
		dst = append(dst, CRLF...)
	}
	return dst
}

func appendBulkString(dst []byte, s string) []byte {
	dst = append(dst, byte(KindBulk))
	dst = strconv.AppendInt(dst, int64(len(s)), 10)
	dst = append(dst, CRLF...)
	dst = append(dst, s...)
	return append(dst, CRLF...)
}

func appendInline(dst []byte, req *Request) ([]byte, error) {
	if err := validateWord(req.Name); err != nil {
		return dst, err
	}
	dst = append(dst, req.Name...)

	if req.HasKey {
		if err := validateWord(req.Key); err != nil {
			return dst, err
		}
		dst = append(dst, Space...)
		dst = append(dst, req.Key...)
	}

	for _, a := range req.Args {
		if err := validateWord(a); err != nil {
			return dst, err
		}
		dst = append(dst, Space...)
		dst = append(dst, a...)
	}

	if req.Payload != nil {
		dst = append(dst, Space...)
		dst = strconv.AppendInt(dst, int64(len(req.Payload)), 10)
		dst = append(dst, CRLF...)
		dst = append(dst, req.Payload...)
	}

	return append(dst, CRLF...), nil
}

func validateWord(w string) error {
	if w == "" {
		return &InvalidArgumentError{Message: "empty word in inline request"}
	}
	if strings.ContainsAny(w, " \t\r\n") {
		return &InvalidArgumentError{Message: "inline request word contains whitespace: " + strconv.Quote(w)}
	}
	return nil
}
