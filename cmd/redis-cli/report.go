package main

import (
	"slices"
	"time"
)

type benchReport struct {
	count             int
	requestsPerSecond float64
	avg, p50, p99     time.Duration
	max               time.Duration
}

// summarize sorts latencies in place.
func summarize(latencies []time.Duration, elapsed time.Duration) benchReport {
	report := benchReport{count: len(latencies)}
	if len(latencies) == 0 {
		return report
	}

	slices.Sort(latencies)

	var total time.Duration
	for _, l := range latencies {
		total += l
	}

	report.avg = total / time.Duration(len(latencies))
	report.p50 = percentile(latencies, 50)
	report.p99 = percentile(latencies, 99)
	report.max = latencies[len(latencies)-1]
	if elapsed > 0 {
		// Two requests per round trip
		report.requestsPerSecond = float64(2*len(latencies)) / elapsed.Seconds()
	}
	return report
}

// percentile uses the nearest-rank method on sorted latencies.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	return sorted[max(rank, 1)-1]
}
