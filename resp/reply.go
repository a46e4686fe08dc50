package resp

import (
	"strconv"
	"strings"
)

// Reply is one parsed server reply. Kind selects which fields are meaningful:
//
//   - KindError: Line holds the error message
//   - KindStatus: Line holds the status text
//   - KindInteger: Integer
//   - KindBulk: Bulk, or Null for $-1
//   - KindMultiBulk: Bulks, where a nil entry is a null bulk; Null for *-1
//
// A Reply returned by Reader.ReadReply is borrowed: it and its byte slices are
// overwritten by the next ReadReply on the same Reader. Use Clone to keep it.
type Reply struct {
	Kind    Kind
	Line    []byte
	Integer int64
	Bulk    []byte
	Bulks   [][]byte
	Null    bool
}

// Err returns a *RemoteError for an error reply, nil otherwise.
func (r *Reply) Err() error {
	if r.Kind == KindError {
		return &RemoteError{Message: string(r.Line)}
	}
	return nil
}

// HasError returns true for an error reply.
func (r *Reply) HasError() bool {
	return r.Kind == KindError
}

// IsNull returns true for a null bulk or a null multi-bulk.
func (r *Reply) IsNull() bool {
	return r.Null
}

// Status returns the status text of a status reply.
func (r *Reply) Status() string {
	return string(r.Line)
}

// Len returns the number of entries of a multi-bulk reply.
func (r *Reply) Len() int {
	return len(r.Bulks)
}

// Strings returns the multi-bulk entries as strings. Null entries become "".
func (r *Reply) Strings() []string {
	if r.Bulks == nil {
		return nil
	}
	s := make([]string, len(r.Bulks))
	for i, b := range r.Bulks {
		s[i] = string(b)
	}
	return s
}

// Clone returns a deep copy of r that does not share memory with the Reader.
func (r *Reply) Clone() *Reply {
	c := &Reply{
		Kind:    r.Kind,
		Integer: r.Integer,
		Null:    r.Null,
		Line:    cloneBytes(r.Line),
		Bulk:    cloneBytes(r.Bulk),
	}
	if r.Bulks != nil {
		c.Bulks = make([][]byte, len(r.Bulks))
		for i, b := range r.Bulks {
			c.Bulks[i] = cloneBytes(b)
		}
	}
	return c
}

// String renders the reply the way an interactive client prints it.
func (r *Reply) String() string {
	switch r.Kind {
	case KindError:
		return "(error) " + string(r.Line)
	case KindStatus:
		return string(r.Line)
	case KindInteger:
		return "(integer) " + strconv.FormatInt(r.Integer, 10)
	case KindBulk:
		if r.Null {
			return "(nil)"
		}
		return strconv.Quote(string(r.Bulk))
	case KindMultiBulk:
		if r.Null {
			return "(nil)"
		}
		if len(r.Bulks) == 0 {
			return "(empty list)"
		}
		var sb strings.Builder
		for i, b := range r.Bulks {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(strconv.Itoa(i + 1))
			sb.WriteString(") ")
			if b == nil {
				sb.WriteString("(nil)")
			} else {
				sb.WriteString(strconv.Quote(string(b)))
			}
		}
		return sb.String()
	default:
		return "(unknown)"
	}
}

// cloneBytes keeps nil and empty distinct.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
