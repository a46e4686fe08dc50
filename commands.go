package redis

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/pior/redis/resp"
)

type Querier interface {
	Get(ctx context.Context, key string) (Item, error)
	Set(ctx context.Context, item Item) error
	Del(ctx context.Context, key string) (bool, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// Executor runs one request/reply cycle. The request is routed by its Key.
//
// An error reply from the server is returned as a reply, with a nil error.
// The returned reply must be owned by the caller.
//
// Implemented by Connection, ServerPool and Client.
type Executor interface {
	Execute(ctx context.Context, req *resp.Request, expect resp.Kind) (*resp.Reply, error)
}

// Commands provides typed command operations over an Executor.
// Error replies are returned as *resp.RemoteError.
//
// Commands can be used on its own, over a single Connection, or embedded in
// Client for pooling and server selection.
type Commands struct {
	executor Executor
}

var _ Querier = (*Commands)(nil)

// NewCommands creates a new Commands instance over executor.
func NewCommands(executor Executor) *Commands {
	return &Commands{
		executor: executor,
	}
}

// Do sends a raw request. Error replies are returned as a reply, not as an
// error; see resp.Reply.Err.
func (c *Commands) Do(ctx context.Context, req *resp.Request, expect resp.Kind) (*resp.Reply, error) {
	return c.executor.Execute(ctx, req, expect)
}

func (c *Commands) exec(ctx context.Context, expect resp.Kind, req *resp.Request) (*resp.Reply, error) {
	reply, err := c.executor.Execute(ctx, req, expect)
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Commands) status(ctx context.Context, req *resp.Request) error {
	_, err := c.exec(ctx, resp.KindStatus, req)
	return err
}

func (c *Commands) integer(ctx context.Context, req *resp.Request) (int64, error) {
	reply, err := c.exec(ctx, resp.KindInteger, req)
	if err != nil {
		return 0, err
	}
	return reply.Integer, nil
}

// boolean reads an integer reply where 1 means done and 0 means not done.
func (c *Commands) boolean(ctx context.Context, req *resp.Request) (bool, error) {
	n, err := c.integer(ctx, req)
	return n != 0, err
}

func (c *Commands) bulk(ctx context.Context, key string, req *resp.Request) (Item, error) {
	reply, err := c.exec(ctx, resp.KindBulk, req)
	if err != nil {
		return Item{}, err
	}
	if reply.IsNull() {
		return Item{Key: key, Found: false}, nil
	}
	return Item{Key: key, Value: reply.Bulk, Found: true}, nil
}

func (c *Commands) multiBulk(ctx context.Context, req *resp.Request) ([][]byte, error) {
	reply, err := c.exec(ctx, resp.KindMultiBulk, req)
	if err != nil {
		return nil, err
	}
	return reply.Bulks, nil
}

// Ping checks that the server answers.
func (c *Commands) Ping(ctx context.Context) error {
	reply, err := c.exec(ctx, resp.KindStatus, resp.NewKeylessRequest(CmdPing))
	if err != nil {
		return err
	}
	if reply.Status() != "PONG" {
		return &resp.ProtocolError{Message: "unexpected PING reply: " + strconv.Quote(reply.Status())}
	}
	return nil
}

// Auth authenticates the connection serving the empty key.
// To authenticate every pooled connection use Config.Password.
func (c *Commands) Auth(ctx context.Context, password string) error {
	return c.status(ctx, resp.NewKeylessRequest(CmdAuth, password))
}

// Get retrieves a single item.
func (c *Commands) Get(ctx context.Context, key string) (Item, error) {
	return c.bulk(ctx, key, resp.NewRequest(CmdGet, key, nil))
}

// Set stores an item.
func (c *Commands) Set(ctx context.Context, item Item) error {
	return c.status(ctx, resp.NewRequest(CmdSet, item.Key, value(item.Value)))
}

// GetSet stores item and returns the previous value of its key.
func (c *Commands) GetSet(ctx context.Context, item Item) (Item, error) {
	return c.bulk(ctx, item.Key, resp.NewRequest(CmdGetSet, item.Key, value(item.Value)))
}

// MGet retrieves several keys in one request. The items are in the order of
// keys; missing keys have Found false.
//
// The request is routed by the first key: on a multi-server client all keys
// must live on the same server.
func (c *Commands) MGet(ctx context.Context, keys ...string) ([]Item, error) {
	if len(keys) == 0 {
		return nil, &resp.InvalidArgumentError{Message: "MGET needs at least one key"}
	}

	values, err := c.multiBulk(ctx, resp.NewRequest(CmdMGet, keys[0], nil, keys[1:]...))
	if err != nil {
		return nil, err
	}
	if len(values) != len(keys) {
		return nil, &resp.ProtocolError{Message: "MGET reply has " + strconv.Itoa(len(values)) + " entries for " + strconv.Itoa(len(keys)) + " keys"}
	}

	items := make([]Item, len(keys))
	for i, key := range keys {
		items[i] = Item{Key: key, Value: values[i], Found: values[i] != nil}
	}
	return items, nil
}

// SetNX stores item only if its key does not exist. Returns false if the key
// already existed.
func (c *Commands) SetNX(ctx context.Context, item Item) (bool, error) {
	return c.boolean(ctx, resp.NewRequest(CmdSetNX, item.Key, value(item.Value)))
}

// Incr increments the counter at key by one and returns the new value.
func (c *Commands) Incr(ctx context.Context, key string) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdIncr, key, nil))
}

// Decr decrements the counter at key by one and returns the new value.
func (c *Commands) Decr(ctx context.Context, key string) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdDecr, key, nil))
}

// IncrBy adds delta to the counter at key and returns the new value.
func (c *Commands) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdIncrBy, key, nil, strconv.FormatInt(delta, 10)))
}

// DecrBy subtracts delta from the counter at key and returns the new value.
func (c *Commands) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdDecrBy, key, nil, strconv.FormatInt(delta, 10)))
}

// Exists reports whether key exists.
func (c *Commands) Exists(ctx context.Context, key string) (bool, error) {
	return c.boolean(ctx, resp.NewRequest(CmdExists, key, nil))
}

// Del removes key. Returns false if it did not exist.
func (c *Commands) Del(ctx context.Context, key string) (bool, error) {
	return c.boolean(ctx, resp.NewRequest(CmdDel, key, nil))
}

// Type returns the type of the value stored at key.
func (c *Commands) Type(ctx context.Context, key string) (KeyType, error) {
	reply, err := c.exec(ctx, resp.KindStatus, resp.NewRequest(CmdType, key, nil))
	if err != nil {
		return TypeNone, err
	}
	return ParseKeyType(reply.Status()), nil
}

// Keys returns the keys matching pattern.
// Servers that answer with a single space-separated bulk are supported.
func (c *Commands) Keys(ctx context.Context, pattern string) ([]string, error) {
	reply, err := c.exec(ctx, resp.KindAny, resp.NewKeylessRequest(CmdKeys, pattern))
	if err != nil {
		return nil, err
	}

	switch reply.Kind {
	case resp.KindMultiBulk:
		return reply.Strings(), nil
	case resp.KindBulk:
		var keys []string
		for _, k := range bytes.Fields(reply.Bulk) {
			keys = append(keys, string(k))
		}
		return keys, nil
	default:
		return nil, unexpectedKind(CmdKeys, reply.Kind)
	}
}

// RandomKey returns a random key. found is false when the database is empty.
// Both status and bulk replies are accepted.
func (c *Commands) RandomKey(ctx context.Context) (key string, found bool, err error) {
	reply, err := c.exec(ctx, resp.KindAny, resp.NewKeylessRequest(CmdRandomKey))
	if err != nil {
		return "", false, err
	}

	switch reply.Kind {
	case resp.KindStatus:
		return reply.Status(), reply.Status() != "", nil
	case resp.KindBulk:
		return string(reply.Bulk), !reply.IsNull(), nil
	default:
		return "", false, unexpectedKind(CmdRandomKey, reply.Kind)
	}
}

// Rename renames key to newKey, overwriting newKey.
func (c *Commands) Rename(ctx context.Context, key, newKey string) error {
	return c.status(ctx, resp.NewRequest(CmdRename, key, nil, newKey))
}

// RenameNX renames key to newKey unless newKey exists. Returns false when it
// does.
func (c *Commands) RenameNX(ctx context.Context, key, newKey string) (bool, error) {
	return c.boolean(ctx, resp.NewRequest(CmdRenameNX, key, nil, newKey))
}

// DBSize returns the number of keys in the selected database.
func (c *Commands) DBSize(ctx context.Context) (int64, error) {
	return c.integer(ctx, resp.NewKeylessRequest(CmdDBSize))
}

// Expire sets a timeout on key, rounded down to the second. Returns false if
// the key does not exist.
func (c *Commands) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.boolean(ctx, resp.NewRequest(CmdExpire, key, nil, strconv.FormatInt(int64(ttl/time.Second), 10)))
}

// TTL returns the remaining time to live of key in seconds, as reported by
// the server: negative for keys without expiry or missing keys.
func (c *Commands) TTL(ctx context.Context, key string) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdTTL, key, nil))
}

// LPush prepends v to the list at key and returns the new length.
func (c *Commands) LPush(ctx context.Context, key string, v []byte) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdLPush, key, value(v)))
}

// RPush appends v to the list at key and returns the new length.
func (c *Commands) RPush(ctx context.Context, key string, v []byte) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdRPush, key, value(v)))
}

// LLen returns the length of the list at key.
func (c *Commands) LLen(ctx context.Context, key string) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdLLen, key, nil))
}

// LRange returns the elements of the list at key between start and stop,
// inclusive. Negative indexes count from the end.
func (c *Commands) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	return c.multiBulk(ctx, resp.NewRequest(CmdLRange, key, nil, strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10)))
}

// LIndex returns the element at index of the list at key.
func (c *Commands) LIndex(ctx context.Context, key string, index int64) (Item, error) {
	return c.bulk(ctx, key, resp.NewRequest(CmdLIndex, key, nil, strconv.FormatInt(index, 10)))
}

// LSet replaces the element at index of the list at key.
func (c *Commands) LSet(ctx context.Context, key string, index int64, v []byte) error {
	return c.status(ctx, resp.NewRequest(CmdLSet, key, value(v), strconv.FormatInt(index, 10)))
}

// LRem removes count occurrences of v from the list at key (all of them when
// count is 0) and returns how many were removed.
func (c *Commands) LRem(ctx context.Context, key string, count int64, v []byte) (int64, error) {
	return c.integer(ctx, resp.NewRequest(CmdLRem, key, value(v), strconv.FormatInt(count, 10)))
}

// LPop removes and returns the first element of the list at key.
func (c *Commands) LPop(ctx context.Context, key string) (Item, error) {
	return c.bulk(ctx, key, resp.NewRequest(CmdLPop, key, nil))
}

// RPop removes and returns the last element of the list at key.
func (c *Commands) RPop(ctx context.Context, key string) (Item, error) {
	return c.bulk(ctx, key, resp.NewRequest(CmdRPop, key, nil))
}

// Select switches the connection serving the empty key to database db.
// To select a database on every pooled connection use Config.DB.
func (c *Commands) Select(ctx context.Context, db int) error {
	return c.status(ctx, resp.NewKeylessRequest(CmdSelect, strconv.Itoa(db)))
}

// Move moves key to database db. Returns false if nothing was moved.
func (c *Commands) Move(ctx context.Context, key string, db int) (bool, error) {
	return c.boolean(ctx, resp.NewRequest(CmdMove, key, nil, strconv.Itoa(db)))
}

// FlushDB removes all keys of the selected database.
func (c *Commands) FlushDB(ctx context.Context) error {
	return c.status(ctx, resp.NewKeylessRequest(CmdFlushDB))
}

// FlushAll removes all keys of all databases.
func (c *Commands) FlushAll(ctx context.Context) error {
	return c.status(ctx, resp.NewKeylessRequest(CmdFlushAll))
}

// Sort returns the sorted elements of the list or set at key. args are the
// SORT options: "DESC", "ALPHA", "LIMIT", "0", "10", ...
func (c *Commands) Sort(ctx context.Context, key string, args ...string) ([][]byte, error) {
	return c.multiBulk(ctx, resp.NewRequest(CmdSort, key, nil, args...))
}

// Save writes the dataset to disk synchronously.
func (c *Commands) Save(ctx context.Context) error {
	return c.status(ctx, resp.NewKeylessRequest(CmdSave))
}

// BgSave starts writing the dataset to disk in the background.
func (c *Commands) BgSave(ctx context.Context) error {
	return c.status(ctx, resp.NewKeylessRequest(CmdBgSave))
}

// LastSave returns the time of the last successful save.
func (c *Commands) LastSave(ctx context.Context) (time.Time, error) {
	n, err := c.integer(ctx, resp.NewKeylessRequest(CmdLastSave))
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0), nil
}

// Shutdown stops the server. The server closes the connection without a
// reply when it succeeds.
func (c *Commands) Shutdown(ctx context.Context) error {
	err := c.status(ctx, resp.NewKeylessRequest(CmdShutdown))
	if errors.Is(err, resp.ErrEndOfStream) {
		return nil
	}
	return err
}

// Info returns the raw INFO text. See ParseInfo.
func (c *Commands) Info(ctx context.Context) (string, error) {
	item, err := c.bulk(ctx, "", resp.NewKeylessRequest(CmdInfo))
	if err != nil {
		return "", err
	}
	return string(item.Value), nil
}

// SlaveOf makes the server a replica of host:port. An empty host turns
// replication off.
func (c *Commands) SlaveOf(ctx context.Context, host string, port int) error {
	if host == "" || port == 0 {
		return c.status(ctx, resp.NewKeylessRequest(CmdSlaveOf, "no", "one"))
	}
	return c.status(ctx, resp.NewKeylessRequest(CmdSlaveOf, host, strconv.Itoa(port)))
}

// value maps a nil value to an empty payload. A nil Payload would drop the
// argument.
func value(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

func unexpectedKind(cmd string, kind resp.Kind) error {
	return &resp.ProtocolError{Message: "unexpected " + kind.String() + " reply to " + cmd}
}
