package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pior/redis/resp"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, config Config, addrs ...string) *Client {
	t.Helper()

	client, err := NewClient(NewStaticServers(addrs...), config)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClient_EndToEnd(t *testing.T) {
	for _, enc := range []resp.Encoding{resp.EncodingMultiBulk, resp.EncodingInline} {
		for name, newPool := range map[string]NewPoolFunc{"channel": NewChannelPool, "puddle": NewPuddlePool} {
			t.Run(enc.String()+"/"+name, func(t *testing.T) {
				_, addr := newFakeServer(t)
				client := newTestClient(t, Config{Encoding: enc, NewPool: newPool}, addr)
				ctx := context.Background()

				require.NoError(t, client.Ping(ctx))

				require.NoError(t, client.Set(ctx, Item{Key: "greeting", Value: []byte("hello world")}))
				item, err := client.Get(ctx, "greeting")
				require.NoError(t, err)
				assert.True(t, item.Found)
				assert.Equal(t, "hello world", string(item.Value))

				item, err = client.Get(ctx, "missing")
				require.NoError(t, err)
				assert.False(t, item.Found)

				n, err := client.IncrBy(ctx, "counter", 10)
				require.NoError(t, err)
				assert.Equal(t, int64(10), n)
				n, err = client.Decr(ctx, "counter")
				require.NoError(t, err)
				assert.Equal(t, int64(9), n)

				for _, v := range []string{"3", "1", "2"} {
					_, err := client.RPush(ctx, "list", []byte(v))
					require.NoError(t, err)
				}
				values, err := client.LRange(ctx, "list", 0, -1)
				require.NoError(t, err)
				assert.Equal(t, [][]byte{[]byte("3"), []byte("1"), []byte("2")}, values)

				sorted, err := client.Sort(ctx, "list", "DESC")
				require.NoError(t, err)
				assert.Equal(t, [][]byte{[]byte("3"), []byte("2"), []byte("1")}, sorted)

				kind, err := client.Type(ctx, "list")
				require.NoError(t, err)
				assert.Equal(t, TypeList, kind)

				items, err := client.MGet(ctx, "greeting", "missing")
				require.NoError(t, err)
				assert.True(t, items[0].Found)
				assert.False(t, items[1].Found)

				keys, err := client.Keys(ctx, "*")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"greeting", "counter", "list"}, keys)

				size, err := client.DBSize(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(3), size)

				deleted, err := client.Del(ctx, "greeting")
				require.NoError(t, err)
				assert.True(t, deleted)

				info, err := client.Info(ctx)
				require.NoError(t, err)
				assert.Equal(t, "1.0.0", ParseInfo(info)["redis_version"])

				require.NoError(t, client.FlushDB(ctx))
				_, found, err := client.RandomKey(ctx)
				require.NoError(t, err)
				assert.False(t, found)
			})
		}
	}
}

func TestClient_BinaryValue(t *testing.T) {
	_, addr := newFakeServer(t)
	client := newTestClient(t, Config{BufferSize: resp.MinBufferSize}, addr)
	ctx := context.Background()

	value := []byte("line one\r\nline two\r\n\x00\xff")
	require.NoError(t, client.Set(ctx, Item{Key: "bin", Value: value}))

	item, err := client.Get(ctx, "bin")
	require.NoError(t, err)
	assert.Equal(t, value, item.Value)
}

func TestClient_RemoteError(t *testing.T) {
	_, addr := newFakeServer(t)
	client := newTestClient(t, Config{}, addr)

	reply, err := client.Do(context.Background(), resp.NewKeylessRequest("NOPE"), resp.KindAny)
	require.NoError(t, err)
	assert.True(t, reply.HasError())
	assert.Equal(t, "ERR unknown command 'nope'", string(reply.Line))

	err = client.LSet(context.Background(), "missing", 5, []byte("v"))
	var remote *resp.RemoteError
	require.ErrorAs(t, err, &remote)

	stats := client.Stats()
	assert.Equal(t, uint64(2), stats.Requests)
	assert.Equal(t, uint64(2), stats.RemoteErrors)
	assert.Equal(t, uint64(0), stats.Errors)

	pools := client.AllPoolStats()
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(1), pools[0].PoolStats.CreatedConns, "error replies keep the connection")
	assert.Equal(t, uint64(0), pools[0].PoolStats.DestroyedConns)
}

func TestClient_Stats(t *testing.T) {
	_, addr := newFakeServer(t)
	client := newTestClient(t, Config{}, addr)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v")}))
	_, err := client.Get(ctx, "k")
	require.NoError(t, err)
	_, err = client.Get(ctx, "missing")
	require.NoError(t, err)

	stats := client.Stats()
	assert.Equal(t, uint64(3), stats.Requests)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestClient_Password(t *testing.T) {
	_, addr := newAuthFakeServer(t, "secret")

	t.Run("accepted", func(t *testing.T) {
		client := newTestClient(t, Config{Password: "secret", DB: 1}, addr)
		require.NoError(t, client.Ping(context.Background()))
	})

	t.Run("rejected", func(t *testing.T) {
		client := newTestClient(t, Config{Password: "wrong"}, addr)

		err := client.Ping(context.Background())
		var remote *resp.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Contains(t, err.Error(), "auth")
	})

	t.Run("missing", func(t *testing.T) {
		client := newTestClient(t, Config{}, addr)

		err := client.Ping(context.Background())
		var remote *resp.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Contains(t, remote.Message, "NOAUTH")
	})
}

func TestClient_ProtocolErrorDestroysConnection(t *testing.T) {
	addr := createListener(t, rawResponder(":12\r\n"))
	client := newTestClient(t, Config{}, addr)

	_, err := client.Get(context.Background(), "foo")

	var protocolErr *resp.ProtocolError
	require.ErrorAs(t, err, &protocolErr)

	pools := client.AllPoolStats()
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(1), pools[0].PoolStats.DestroyedConns)
	assert.Equal(t, int32(0), pools[0].PoolStats.TotalConns)
	assert.Equal(t, uint64(1), client.Stats().Errors)
}

func TestClient_Timeout(t *testing.T) {
	addr := createListener(t, silentResponder)
	client := newTestClient(t, Config{Timeout: 50 * time.Millisecond}, addr)

	start := time.Now()
	err := client.Ping(context.Background())

	assert.True(t, resp.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_ContextDeadline(t *testing.T) {
	addr := createListener(t, silentResponder)
	client := newTestClient(t, Config{Timeout: time.Minute}, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx)

	assert.True(t, resp.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_DoneContextKeepsConnection(t *testing.T) {
	fs, addr := newFakeServer(t)
	client := newTestClient(t, Config{}, addr)

	require.NoError(t, client.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.Ping(ctx), context.Canceled)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.ErrorIs(t, client.Ping(expired), context.DeadlineExceeded)

	pools := client.AllPoolStats()
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(0), pools[0].PoolStats.DestroyedConns)
	assert.Equal(t, int32(1), pools[0].PoolStats.IdleConns)

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, 1, fs.Conns())
}

func TestClient_Monitor(t *testing.T) {
	addr := createListener(t, monitorResponder(`1700000000.1 "DEL" "a"`))
	client := newTestClient(t, Config{}, addr)

	errDone := errors.New("done")
	var lines []string
	err := client.Monitor(context.Background(), "", func(line string) error {
		lines = append(lines, line)
		return errDone
	})

	assert.ErrorIs(t, err, errDone)
	assert.Equal(t, []string{`1700000000.1 "DEL" "a"`}, lines)
	assert.Empty(t, client.AllPoolStats(), "monitoring does not use the pools")

	client.Close()
	assert.ErrorIs(t, client.Monitor(context.Background(), "", nil), ErrClientClosed)
}

func TestClient_ServerClosesConnection(t *testing.T) {
	addr := createListener(t, closingResponder)
	client := newTestClient(t, Config{}, addr)

	err := client.Ping(context.Background())
	assert.True(t, resp.ShouldCloseConnection(err))
	assert.True(t, errors.Is(err, resp.ErrEndOfStream) || errors.As(err, new(*resp.ConnectionError)), "got %v", err)
}

func TestClient_Shutdown(t *testing.T) {
	fs, addr := newFakeServer(t)
	client := newTestClient(t, Config{}, addr)

	require.NoError(t, client.Shutdown(context.Background()))
	assert.Equal(t, 1, fs.Conns())
}

func TestNewClient_NoServers(t *testing.T) {
	_, err := NewClient(NewStaticServers(), Config{})
	assert.ErrorIs(t, err, ErrNoServers)
}

func TestNewClient_DefaultAddress(t *testing.T) {
	client, err := NewClient(nil, Config{Host: "cache", Port: 6380})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, []string{"cache:6380"}, client.servers.List())
}

func TestClient_Closed(t *testing.T) {
	_, addr := newFakeServer(t)
	client := newTestClient(t, Config{}, addr)

	client.Close()
	client.Close()

	err := client.Ping(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_ClosedWithPool(t *testing.T) {
	_, addr := newFakeServer(t)
	client := newTestClient(t, Config{}, addr)
	require.NoError(t, client.Ping(context.Background()))

	client.Close()

	err := client.Ping(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestClient_MultipleServers(t *testing.T) {
	fs1, addr1 := newFakeServer(t)
	fs2, addr2 := newFakeServer(t)
	client := newTestClient(t, Config{}, addr1, addr2)
	ctx := context.Background()

	servers := []string{addr1, addr2}
	for i := range 50 {
		key := fmt.Sprintf("key-%d", i)
		require.NoError(t, client.Set(ctx, Item{Key: key, Value: []byte("v")}))

		want, err := DefaultSelectServer(key, servers)
		require.NoError(t, err)
		if want == addr1 {
			assert.True(t, fs1.Has(key), key)
			assert.False(t, fs2.Has(key), key)
		} else {
			assert.True(t, fs2.Has(key), key)
			assert.False(t, fs1.Has(key), key)
		}
	}

	assert.NotEmpty(t, fs1.Requests())
	assert.NotEmpty(t, fs2.Requests())
	assert.Len(t, client.AllPoolStats(), 2)
}

func TestClient_CustomSelectServer(t *testing.T) {
	fs1, addr1 := newFakeServer(t)
	fs2, addr2 := newFakeServer(t)

	client := newTestClient(t, Config{
		SelectServer: func(key string, servers []string) (string, error) {
			return servers[len(servers)-1], nil
		},
	}, addr1, addr2)

	require.NoError(t, client.Set(context.Background(), Item{Key: "k", Value: []byte("v")}))
	assert.Empty(t, fs1.Requests())
	assert.Len(t, fs2.Requests(), 1)
}

func TestClient_HealthCheck(t *testing.T) {
	fs, addr := newFakeServer(t)
	client := newTestClient(t, Config{
		HealthCheckInterval: 20 * time.Millisecond,
		MaxConnLifetime:     time.Millisecond,
	}, addr)

	require.NoError(t, client.Ping(context.Background()))

	require.Eventually(t, func() bool {
		pools := client.AllPoolStats()
		return len(pools) == 1 && pools[0].PoolStats.DestroyedConns == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, 2, fs.Conns())
}

func TestClient_HealthCheckPing(t *testing.T) {
	fs, addr := newFakeServer(t)
	client := newTestClient(t, Config{HealthCheckInterval: 20 * time.Millisecond}, addr)

	require.NoError(t, client.Set(context.Background(), Item{Key: "k", Value: []byte("v")}))

	require.Eventually(t, func() bool {
		for _, req := range fs.Requests() {
			if req[0] == CmdPing {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(0), client.AllPoolStats()[0].PoolStats.DestroyedConns)
}

func TestClient_CircuitBreaker(t *testing.T) {
	addr := createListener(t, closingResponder)
	client := newTestClient(t, Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	}, addr)
	ctx := context.Background()

	for range 3 {
		err := client.Ping(ctx)
		require.Error(t, err)
		require.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	err := client.Ping(ctx)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	pools := client.AllPoolStats()
	require.Len(t, pools, 1)
	assert.Equal(t, gobreaker.StateOpen, pools[0].CircuitBreakerState)
}

func TestClient_CircuitBreakerIgnoresRemoteErrors(t *testing.T) {
	_, addr := newFakeServer(t)
	client := newTestClient(t, Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	}, addr)

	for range 5 {
		_, err := client.Do(context.Background(), resp.NewKeylessRequest("NOPE"), resp.KindAny)
		require.NoError(t, err)
	}

	assert.Equal(t, gobreaker.StateClosed, client.AllPoolStats()[0].CircuitBreakerState)
}

func TestClient_Concurrent(t *testing.T) {
	_, addr := newFakeServer(t)
	client := newTestClient(t, Config{MaxSize: 4}, addr)
	ctx := context.Background()

	errs := make(chan error, 20)
	for i := range 20 {
		go func() {
			key := fmt.Sprintf("key-%d", i)
			if err := client.Set(ctx, Item{Key: key, Value: []byte(key)}); err != nil {
				errs <- err
				return
			}
			item, err := client.Get(ctx, key)
			if err == nil && string(item.Value) != key {
				err = fmt.Errorf("got %q for %s", item.Value, key)
			}
			errs <- err
		}()
	}

	for range 20 {
		require.NoError(t, <-errs)
	}

	stats := client.AllPoolStats()[0].PoolStats
	assert.LessOrEqual(t, stats.CreatedConns, uint64(4))
}
