package redis_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
)

func ExampleNewClient() {
	client, err := redis.NewClient(nil, redis.Config{
		Host:    "localhost",
		Port:    6379,
		Timeout: time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	if err := client.Set(ctx, redis.Item{Key: "user:123", Value: []byte("John")}); err != nil {
		log.Printf("Set failed: %v", err)
		return
	}

	item, err := client.Get(ctx, "user:123")
	if err != nil {
		log.Printf("Get failed: %v", err)
		return
	}
	if item.Found {
		fmt.Printf("Got value: %s\n", item.Value)
	}
}

// Example demonstrating how to spread keys over several servers with circuit
// breakers
func ExampleNewCircuitBreakerConfig() {
	servers := redis.NewStaticServers("localhost:6379", "localhost:6380")

	client, err := redis.NewClient(servers, redis.Config{
		MaxSize: 10,
		NewCircuitBreaker: redis.NewCircuitBreakerConfig(
			3,              // maxRequests in half-open state
			time.Minute,    // interval to reset failure counts
			10*time.Second, // timeout before transitioning to half-open
		),
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	_, _ = client.Incr(context.Background(), "visits")

	for _, serverStats := range client.AllPoolStats() {
		fmt.Printf("Server: %s, Circuit: %s\n", serverStats.Addr, serverStats.CircuitBreakerState)
	}
}

func ExampleCommands_Do() {
	client, err := redis.NewClient(nil, redis.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	reply, err := client.Do(context.Background(), resp.NewKeylessRequest("OBJECT", "ENCODING", "user:123"), resp.KindAny)
	if err != nil {
		log.Printf("Do failed: %v", err)
		return
	}
	if err := reply.Err(); err != nil {
		log.Printf("Server error: %v", err)
		return
	}
	fmt.Println(reply)
}

func ExampleParseInfo() {
	info := "# Server\r\nredis_version:1.3.17\r\nrole:master\r\n"

	fields := redis.ParseInfo(info)
	fmt.Println(fields["redis_version"], fields["role"])

	// Output: 1.3.17 master
}
