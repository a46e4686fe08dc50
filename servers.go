package redis

import "errors"

var ErrNoServers = errors.New("redis: no servers available")

// Servers provides the list of server addresses requests are spread over.
type Servers interface {
	List() []string
}

type staticServers struct {
	addrs []string
}

// NewStaticServers returns a fixed server list.
func NewStaticServers(addrs ...string) Servers {
	return &staticServers{addrs: addrs}
}

func (s *staticServers) List() []string {
	return s.addrs
}
