package resp

// Kind identifies a reply shape. Its value is the tag byte that starts the
// first line of the reply on the wire.
type Kind byte

// Reply tags
const (
	// KindAny is not a wire tag. Passed to ReadReply it accepts every reply kind.
	KindAny Kind = 0

	// KindError is a server error reply.
	//
	// Wire format: -<message>\r\n
	KindError Kind = '-'

	// KindStatus is a single inline text line.
	//
	// Wire format: +<text>\r\n
	KindStatus Kind = '+'

	// KindInteger is a signed decimal integer.
	//
	// Wire format: :<integer>\r\n
	KindInteger Kind = ':'

	// KindBulk is a length-prefixed byte string, or null.
	//
	// Wire format: $<length>\r\n<bytes>\r\n
	// Null:        $-1\r\n
	KindBulk Kind = '$'

	// KindMultiBulk is a count-prefixed sequence of bulk replies.
	//
	// Wire format: *<count>\r\n followed by <count> bulk replies
	// Null:        *-1\r\n
	KindMultiBulk Kind = '*'
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindError:
		return "error"
	case KindStatus:
		return "status"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindMultiBulk:
		return "multi-bulk"
	default:
		return "unknown(" + string(rune(k)) + ")"
	}
}

// Protocol delimiters
const (
	// CRLF terminates every line, request or reply.
	CRLF = "\r\n"

	// Space separates inline request tokens.
	Space = " "
)

// Sizing
const (
	// DefaultBufferSize is the capacity of a LineBuffer when none is given.
	// An inline reply line (status, error, length header) must fit in it.
	DefaultBufferSize = 4096

	// MinBufferSize is the smallest accepted LineBuffer capacity.
	MinBufferSize = 16

	// MultiBulkGrowth is the unit in which the multi-bulk scratch array grows.
	MultiBulkGrowth = 64

	// MaxBulkSize bounds a single bulk payload (matches the server's default
	// proto-max-bulk-len).
	MaxBulkSize = 512 * 1024 * 1024

	// MaxMultiBulkCount bounds the element count of a multi-bulk reply. The
	// scratch array is sized from the count before any entry is read.
	MaxMultiBulkCount = 1024 * 1024
)

// Encoding selects how WriteRequest formats a request.
type Encoding int

const (
	// EncodingMultiBulk sends every request as *<argc>\r\n followed by one
	// $<len>\r\n<arg>\r\n per argument. Binary safe.
	EncodingMultiBulk Encoding = iota

	// EncodingInline sends "NAME arg1 arg2\r\n". A request carrying a payload
	// is sent as "NAME args... <len>\r\n<payload>\r\n".
	// Arguments must not contain whitespace.
	EncodingInline
)

func (e Encoding) String() string {
	switch e {
	case EncodingMultiBulk:
		return "multibulk"
	case EncodingInline:
		return "inline"
	default:
		return "unknown"
	}
}

// ParseEncoding returns the Encoding for its String form.
func ParseEncoding(s string) (Encoding, bool) {
	switch s {
	case "multibulk", "multi-bulk", "":
		return EncodingMultiBulk, true
	case "inline":
		return EncodingInline, true
	default:
		return 0, false
	}
}
