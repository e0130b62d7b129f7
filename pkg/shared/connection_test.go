package shared

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvertiseAddress(t *testing.T) {
	actual := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40123}

	tests := []struct {
		configured string
		expected   string
	}{
		{"node-a:7001", "node-a:7001"},
		{"10.0.0.5:7001", "10.0.0.5:7001"},
		{":7001", "127.0.0.1:40123"},
		{"127.0.0.1:0", "127.0.0.1:40123"},
		{"", "127.0.0.1:40123"},
		{"no-port", "127.0.0.1:40123"},
	}

	for _, tt := range tests {
		t.Run(tt.configured, func(t *testing.T) {
			assert.Equal(t, tt.expected, AdvertiseAddress(tt.configured, actual))
		})
	}
}

func TestConnectionPoolReusesConnections(t *testing.T) {
	pool := NewConnectionPool()
	defer pool.CloseAll()

	first, err := pool.GetConnection("127.0.0.1:7001")
	require.NoError(t, err)
	second, err := pool.GetConnection("127.0.0.1:7001")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = pool.GetConnection("127.0.0.1:7002")
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Size())

	pool.Remove("127.0.0.1:7001")
	assert.Equal(t, 1, pool.Size())

	third, err := pool.GetConnection("127.0.0.1:7001")
	require.NoError(t, err)
	assert.NotSame(t, first, third)

	pool.CloseAll()
	assert.Zero(t, pool.Size())
}
