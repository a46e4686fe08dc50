package internal

import "github.com/zeebo/xxh3"

// Bucket maps a routing key to one of n buckets: the key is hashed with xxh3
// and placed with JumpHash. Adding a bucket moves about 1/n of the keys.
func Bucket(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return JumpHash(xxh3.HashString(key), n)
}

// JumpHash is Google's "Jump" consistent hash (https://arxiv.org/abs/1406.2294),
// after github.com/dgryski/go-jump.
// Returns 0 when numBuckets is not positive.
func JumpHash(key uint64, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}

	var b int64 = -1
	var j int64

	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(b)
}
