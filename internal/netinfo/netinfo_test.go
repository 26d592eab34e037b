package netinfo

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareLink(t *testing.T) {
	assert.Equal(t, "ws://192.168.1.20:4021", ShareLink("192.168.1.20", 4021))
}

func TestLocalIPv4sExcludesLoopback(t *testing.T) {
	ips, err := LocalIPv4s()
	require.NoError(t, err)

	for _, s := range ips {
		ip := net.ParseIP(s)
		require.NotNil(t, ip, "not an IP address: %q", s)
		assert.False(t, ip.IsLoopback(), "loopback address leaked: %s", s)
		assert.NotNil(t, ip.To4(), "non-IPv4 address leaked: %s", s)
		assert.False(t, strings.Contains(s, ":"), "IPv6 leaked: %s", s)
	}
}
