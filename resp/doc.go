// Package resp implements the client side of a CRLF-delimited request/reply
// protocol for key-value stores: request encoding, deadline-bounded transport
// and a buffered reply reader.
//
// The package does not dial, pool or retry. It serves higher-level clients
// that own those decisions.
//
// # Replies
//
// The first byte of a reply is its tag:
//
//	-  error        -ERR unknown command\r\n
//	+  status       +OK\r\n
//	:  integer      :42\r\n
//	$  bulk         $5\r\nhello\r\n     ($-1\r\n is null)
//	*  multi-bulk   *2\r\n$3\r\nfoo\r\n$-1\r\n
//
// Reader.ReadReply reads exactly one reply and checks its tag against the kind
// the caller expects:
//
//	tr := resp.NewTransport(conn, time.Second)
//	r := resp.NewReader(tr, resp.ReaderOptions{})
//
//	buf, _ := resp.AppendRequest(nil, resp.NewRequest("GET", "mykey", nil), resp.EncodingMultiBulk)
//	if _, err := tr.Send(buf); err != nil {
//	    return err
//	}
//	reply, err := r.ReadReply(resp.KindBulk)
//	if err != nil {
//	    if resp.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//	if err := reply.Err(); err != nil {
//	    return err // the server answered with an error reply
//	}
//	if reply.IsNull() {
//	    // missing key
//	}
//
// # Buffering
//
// Replies are read through a LineBuffer: a fixed-capacity buffer refilled from
// the Transport whenever it holds no complete line. Status lines, error lines
// and single bulk payloads are returned in place, without copying. Multi-bulk
// entries are copied to storage owned by the Reader. Either way a Reply is
// borrowed: it is only valid until the next ReadReply. Reply.Clone returns an
// owned copy.
//
// # Errors
//
//   - RemoteError: error reply from the server, connection can be REUSED
//   - ProtocolError: unexpected reply shape, CLOSE connection
//   - ConnectionError: I/O failure or timeout (IsTimeout), CLOSE connection
//   - ErrEndOfStream: the server closed the connection
//   - InvalidArgumentError: the request could not be encoded, nothing was sent
//
// ShouldCloseConnection tells which is which.
package resp
