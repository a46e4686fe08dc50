package redis

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func createListener(t testing.TB, handler func(conn net.Conn)) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start test server: %v", err)
	}

	t.Cleanup(func() {
		listener.Close()
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go func(c net.Conn) {
				defer c.Close()

				if handler != nil {
					handler(c)
				}
			}(conn)
		}
	}()

	return listener.Addr().String()
}

// readCommand reads one request in either encoding.
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(line, "*") {
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return nil, err
		}
		args := make([]string, n)
		for i := range n {
			header, err := readLine(r)
			if err != nil {
				return nil, err
			}
			size, err := strconv.Atoi(strings.TrimPrefix(header, "$"))
			if err != nil {
				return nil, err
			}
			if args[i], err = readPayload(r, size); err != nil {
				return nil, err
			}
		}
		return args, nil
	}

	args := strings.Fields(line)
	if len(args) > 1 && inlinePayloadCommands[strings.ToUpper(args[0])] {
		size, err := strconv.Atoi(args[len(args)-1])
		if err != nil {
			return nil, err
		}
		if args[len(args)-1], err = readPayload(r, size); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// inlinePayloadCommands send their last argument as a payload in the inline
// encoding.
var inlinePayloadCommands = map[string]bool{
	"SET": true, "GETSET": true, "SETNX": true, "LPUSH": true, "RPUSH": true, "LSET": true, "LREM": true,
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\r\n"), nil
}

func readPayload(r *bufio.Reader, size int) (string, error) {
	buf := make([]byte, size+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf[:size]), nil
}

// fakeServer is a small in-memory server speaking the reply protocol.
type fakeServer struct {
	password string

	mu       sync.Mutex
	strings  map[string]string
	lists    map[string][]string
	requests [][]string
	conns    int
}

func newFakeServer(t testing.TB) (*fakeServer, string) {
	return newAuthFakeServer(t, "")
}

// newAuthFakeServer starts a fake server requiring AUTH password.
func newAuthFakeServer(t testing.TB, password string) (*fakeServer, string) {
	fs := &fakeServer{
		password: password,
		strings:  make(map[string]string),
		lists:    make(map[string][]string),
	}
	addr := createListener(t, fs.serve)
	return fs, addr
}

func (fs *fakeServer) serve(conn net.Conn) {
	fs.mu.Lock()
	fs.conns++
	fs.mu.Unlock()

	r := bufio.NewReader(conn)
	authenticated := fs.password == ""
	for {
		args, err := readCommand(r)
		if err != nil || len(args) == 0 {
			return
		}

		cmd := strings.ToUpper(args[0])
		var reply string
		switch {
		case cmd == "SHUTDOWN":
			return
		case cmd == "AUTH":
			if len(args) == 2 && args[1] == fs.password {
				authenticated = true
				reply = "+OK\r\n"
			} else {
				reply = "-ERR invalid password\r\n"
			}
		case !authenticated:
			reply = "-NOAUTH Authentication required.\r\n"
		default:
			reply = fs.handle(cmd, args[1:])
		}

		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func (fs *fakeServer) Requests() [][]string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return slices.Clone(fs.requests)
}

func (fs *fakeServer) Has(key string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.exists(key)
}

func (fs *fakeServer) Conns() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.conns
}

func (fs *fakeServer) handle(cmd string, args []string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.requests = append(fs.requests, append([]string{cmd}, args...))

	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch cmd {
	case "PING":
		return "+PONG\r\n"
	case "SELECT", "SLAVEOF", "SAVE":
		return "+OK\r\n"
	case "BGSAVE":
		return "+Background saving started\r\n"
	case "LASTSAVE":
		return ":1700000000\r\n"
	case "INFO":
		return bulkReply("# Server\r\nredis_version:1.0.0\r\nuptime_in_seconds:42\r\n")
	case "SET":
		fs.strings[arg(0)] = arg(1)
		return "+OK\r\n"
	case "GET":
		v, ok := fs.strings[arg(0)]
		if !ok {
			return "$-1\r\n"
		}
		return bulkReply(v)
	case "GETSET":
		old, ok := fs.strings[arg(0)]
		fs.strings[arg(0)] = arg(1)
		if !ok {
			return "$-1\r\n"
		}
		return bulkReply(old)
	case "SETNX":
		if fs.exists(arg(0)) {
			return ":0\r\n"
		}
		fs.strings[arg(0)] = arg(1)
		return ":1\r\n"
	case "MGET":
		values := make([]*string, len(args))
		for i, k := range args {
			if v, ok := fs.strings[k]; ok {
				values[i] = &v
			}
		}
		return multiBulkReply(values)
	case "INCR", "DECR", "INCRBY", "DECRBY":
		delta := int64(1)
		if len(args) > 1 {
			delta, _ = strconv.ParseInt(arg(1), 10, 64)
		}
		if strings.HasPrefix(cmd, "DECR") {
			delta = -delta
		}
		n, _ := strconv.ParseInt(fs.strings[arg(0)], 10, 64)
		n += delta
		fs.strings[arg(0)] = strconv.FormatInt(n, 10)
		return ":" + strconv.FormatInt(n, 10) + "\r\n"
	case "EXISTS":
		return boolReply(fs.exists(arg(0)))
	case "DEL":
		existed := fs.exists(arg(0))
		delete(fs.strings, arg(0))
		delete(fs.lists, arg(0))
		return boolReply(existed)
	case "TYPE":
		switch {
		case fs.lists[arg(0)] != nil:
			return "+list\r\n"
		case fs.exists(arg(0)):
			return "+string\r\n"
		default:
			return "+none\r\n"
		}
	case "KEYS":
		keys := fs.keys()
		values := make([]*string, 0, len(keys))
		for _, k := range keys {
			if ok, _ := matchPattern(arg(0), k); ok {
				values = append(values, &k)
			}
		}
		return multiBulkReply(values)
	case "RANDOMKEY":
		keys := fs.keys()
		if len(keys) == 0 {
			return "$-1\r\n"
		}
		return bulkReply(keys[0])
	case "RENAME", "RENAMENX":
		if !fs.exists(arg(0)) {
			return "-ERR no such key\r\n"
		}
		if cmd == "RENAMENX" && fs.exists(arg(1)) {
			return ":0\r\n"
		}
		if v, ok := fs.strings[arg(0)]; ok {
			delete(fs.strings, arg(0))
			fs.strings[arg(1)] = v
		} else {
			fs.lists[arg(1)] = fs.lists[arg(0)]
			delete(fs.lists, arg(0))
		}
		if cmd == "RENAMENX" {
			return ":1\r\n"
		}
		return "+OK\r\n"
	case "DBSIZE":
		return ":" + strconv.Itoa(len(fs.keys())) + "\r\n"
	case "EXPIRE", "MOVE":
		return boolReply(fs.exists(arg(0)))
	case "TTL":
		if !fs.exists(arg(0)) {
			return ":-2\r\n"
		}
		return ":-1\r\n"
	case "LPUSH":
		fs.lists[arg(0)] = append([]string{arg(1)}, fs.lists[arg(0)]...)
		return ":" + strconv.Itoa(len(fs.lists[arg(0)])) + "\r\n"
	case "RPUSH":
		fs.lists[arg(0)] = append(fs.lists[arg(0)], arg(1))
		return ":" + strconv.Itoa(len(fs.lists[arg(0)])) + "\r\n"
	case "LLEN":
		return ":" + strconv.Itoa(len(fs.lists[arg(0)])) + "\r\n"
	case "LRANGE":
		list := fs.lists[arg(0)]
		start, _ := strconv.Atoi(arg(1))
		stop, _ := strconv.Atoi(arg(2))
		start, stop = listRange(len(list), start, stop)
		values := make([]*string, 0)
		for i := start; i <= stop; i++ {
			values = append(values, &list[i])
		}
		return multiBulkReply(values)
	case "LINDEX":
		list := fs.lists[arg(0)]
		i, _ := strconv.Atoi(arg(1))
		if i < 0 {
			i += len(list)
		}
		if i < 0 || i >= len(list) {
			return "$-1\r\n"
		}
		return bulkReply(list[i])
	case "LSET":
		list := fs.lists[arg(0)]
		i, _ := strconv.Atoi(arg(1))
		if i < 0 || i >= len(list) {
			return "-ERR index out of range\r\n"
		}
		list[i] = arg(2)
		return "+OK\r\n"
	case "LREM":
		list := fs.lists[arg(0)]
		kept := list[:0]
		removed := 0
		for _, v := range list {
			if v == arg(2) {
				removed++
				continue
			}
			kept = append(kept, v)
		}
		fs.lists[arg(0)] = kept
		return ":" + strconv.Itoa(removed) + "\r\n"
	case "LPOP", "RPOP":
		list := fs.lists[arg(0)]
		if len(list) == 0 {
			return "$-1\r\n"
		}
		var v string
		if cmd == "LPOP" {
			v, fs.lists[arg(0)] = list[0], list[1:]
		} else {
			v, fs.lists[arg(0)] = list[len(list)-1], list[:len(list)-1]
		}
		return bulkReply(v)
	case "FLUSHDB", "FLUSHALL":
		fs.strings = make(map[string]string)
		fs.lists = make(map[string][]string)
		return "+OK\r\n"
	case "SORT":
		sorted := slices.Clone(fs.lists[arg(0)])
		if slices.Contains(args, "ALPHA") {
			sort.Strings(sorted)
		} else {
			sort.Slice(sorted, func(i, j int) bool {
				a, _ := strconv.ParseFloat(sorted[i], 64)
				b, _ := strconv.ParseFloat(sorted[j], 64)
				return a < b
			})
		}
		if slices.Contains(args, "DESC") {
			slices.Reverse(sorted)
		}
		values := make([]*string, len(sorted))
		for i := range sorted {
			values[i] = &sorted[i]
		}
		return multiBulkReply(values)
	default:
		return fmt.Sprintf("-ERR unknown command '%s'\r\n", strings.ToLower(cmd))
	}
}

func (fs *fakeServer) exists(key string) bool {
	_, isString := fs.strings[key]
	return isString || fs.lists[key] != nil
}

func (fs *fakeServer) keys() []string {
	var keys []string
	for k := range fs.strings {
		keys = append(keys, k)
	}
	for k := range fs.lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listRange(n, start, stop int) (int, int) {
	if start < 0 {
		start = max(0, n+start)
	}
	if stop < 0 {
		stop = n + stop
	}
	stop = min(stop, n-1)
	if start > stop {
		return 0, -1
	}
	return start, stop
}

func matchPattern(pattern, key string) (bool, error) {
	if pattern == "*" {
		return true, nil
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix), nil
	}
	return pattern == key, nil
}

func bulkReply(v string) string {
	return "$" + strconv.Itoa(len(v)) + "\r\n" + v + "\r\n"
}

func boolReply(b bool) string {
	if b {
		return ":1\r\n"
	}
	return ":0\r\n"
}

func multiBulkReply(values []*string) string {
	var sb strings.Builder
	sb.WriteString("*" + strconv.Itoa(len(values)) + "\r\n")
	for _, v := range values {
		if v == nil {
			sb.WriteString("$-1\r\n")
			continue
		}
		sb.WriteString(bulkReply(*v))
	}
	return sb.String()
}

// rawResponder answers every request with the same raw bytes.
func rawResponder(reply string) func(conn net.Conn) {
	return func(conn net.Conn) {
		r := bufio.NewReader(conn)
		for {
			if _, err := readCommand(r); err != nil {
				return
			}
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
	}
}

// silentResponder reads requests and never answers.
func silentResponder(conn net.Conn) {
	_, _ = io.Copy(io.Discard, conn)
}

// closingResponder closes the connection as soon as a request arrives.
func closingResponder(conn net.Conn) {
	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _ = conn.Read(buf)
}

// monitorResponder acknowledges MONITOR, reports lines and stays connected.
func monitorResponder(lines ...string) func(conn net.Conn) {
	return func(conn net.Conn) {
		r := bufio.NewReader(conn)
		args, err := readCommand(r)
		if err != nil || len(args) == 0 || args[0] != "MONITOR" {
			return
		}

		var sb strings.Builder
		sb.WriteString("+OK\r\n")
		for _, l := range lines {
			sb.WriteString("+" + l + "\r\n")
		}
		if _, err := conn.Write([]byte(sb.String())); err != nil {
			return
		}
		_, _ = io.Copy(io.Discard, r)
	}
}
