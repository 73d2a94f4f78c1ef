package clientip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "cloudflare header wins",
			headers:    map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.9"},
			remoteAddr: "10.0.0.1:443",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded-for leftmost client",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1, 172.16.0.1"},
			remoteAddr: "10.0.0.1:443",
			want:       "203.0.113.7",
		},
		{
			name:       "private forwarded address distrusted",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.50"},
			remoteAddr: "198.51.100.9:58231",
			want:       "198.51.100.9",
		},
		{
			name:       "loopback forwarded address distrusted",
			headers:    map[string]string{"X-Real-IP": "127.0.0.1"},
			remoteAddr: "198.51.100.9:58231",
			want:       "198.51.100.9",
		},
		{
			name:       "x-real-ip fallback",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			remoteAddr: "10.0.0.1:443",
			want:       "203.0.113.7",
		},
		{
			name:       "client-ip lowest priority header",
			headers:    map[string]string{"Client-IP": "203.0.113.7"},
			remoteAddr: "10.0.0.1:443",
			want:       "203.0.113.7",
		},
		{
			name:       "case-insensitive header lookup",
			headers:    map[string]string{"x-forwarded-for": "203.0.113.7"},
			remoteAddr: "10.0.0.1:443",
			want:       "203.0.113.7",
		},
		{
			name:       "no headers peer address",
			headers:    nil,
			remoteAddr: "198.51.100.9:58231",
			want:       "198.51.100.9",
		},
		{
			name:       "garbage header falls through",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			remoteAddr: "198.51.100.9:58231",
			want:       "198.51.100.9",
		},
		{
			name:       "ipv6 peer with port",
			headers:    nil,
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "bare peer address without port",
			headers:    nil,
			remoteAddr: "198.51.100.9",
			want:       "198.51.100.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.headers, tt.remoteAddr))
		})
	}
}

func TestStripPort(t *testing.T) {
	assert.Equal(t, "1.2.3.4", StripPort("1.2.3.4:8080"))
	assert.Equal(t, "1.2.3.4", StripPort("1.2.3.4"))
	assert.Equal(t, "2001:db8::1", StripPort("[2001:db8::1]:443"))
}

func TestIsPublic(t *testing.T) {
	public := []string{"203.0.113.7", "8.8.8.8", "2001:4860:4860::8888"}
	for _, s := range public {
		assert.True(t, IsPublic(net.ParseIP(s)), s)
	}

	private := []string{"10.0.0.1", "172.16.0.1", "192.168.1.1", "127.0.0.1", "169.254.1.1", "224.0.0.1", "0.0.0.0", "::1"}
	for _, s := range private {
		assert.False(t, IsPublic(net.ParseIP(s)), s)
	}
	assert.False(t, IsPublic(nil))
}
