package redis

import "github.com/pior/redis/internal"

// SelectServerFunc picks the server for a routing key among servers.
// Keyless commands are routed with the empty key.
type SelectServerFunc func(key string, servers []string) (string, error)

// DefaultSelectServer hashes the key with xxh3 and picks the server with
// Jump Hash, which moves few keys when servers are added or removed.
func DefaultSelectServer(key string, servers []string) (string, error) {
	if len(servers) == 0 {
		return "", ErrNoServers
	}
	return servers[internal.Bucket(key, len(servers))], nil
}
