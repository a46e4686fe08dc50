package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticServers_List(t *testing.T) {
	servers := NewStaticServers("server1:6379", "server2:6379", "server3:6379")

	list := servers.List()

	assert.Len(t, list, 3)
	assert.Equal(t, "server1:6379", list[0])
	assert.Equal(t, "server2:6379", list[1])
	assert.Equal(t, "server3:6379", list[2])
}

func TestStaticServers_EmptyList(t *testing.T) {
	servers := NewStaticServers()

	assert.Len(t, servers.List(), 0)
}
