// Package coarsetime is a clock refreshed every Resolution by a background
// goroutine. Reading it costs an atomic load instead of a time.Now call.
// It is meant for pool bookkeeping (idle and lifetime limits), not for
// deadlines.
package coarsetime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution is how often the clock is refreshed. Now lags the real time by
// at most this much.
const Resolution = 50 * time.Millisecond

var (
	now   atomic.Int64 // unix nanoseconds
	start sync.Once
)

func run() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the coarse current time. The first call starts the clock.
func Now() time.Time {
	start.Do(run)
	return time.Unix(0, now.Load())
}

// Since returns the coarse time elapsed since t.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
