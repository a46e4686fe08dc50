package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pior/redis/resp"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the requests sent to one server.
type CircuitBreaker = gobreaker.CircuitBreaker[*resp.Reply]

// NewCircuitBreakerConfig returns a Config.NewCircuitBreaker function.
//
// The breaker opens once at least 3 requests were seen in the interval and
// 60% of them failed. Only failures that break the connection count: error
// replies, invalid arguments and canceled contexts do not.
// State changes are logged to slog.Default().
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *CircuitBreaker {
	return func(serverAddr string) *CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: isBreakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "server", name, "from", from.String(), "to", to.String())
			},
		}
		return gobreaker.NewCircuitBreaker[*resp.Reply](settings)
	}
}

func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return !resp.ShouldCloseConnection(err)
}
