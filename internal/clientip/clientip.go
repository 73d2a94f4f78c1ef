// Package clientip resolves the real client address behind proxies and
// CDNs. Proxy headers are consulted in priority order but only trusted
// when they carry a valid public address; anything private, loopback or
// otherwise reserved falls through to the next source.
package clientip

import (
	"net"
	"strings"
)

// proxyHeaders in trust order. Cloudflare's header is authoritative when
// present; the generic forwarding headers are increasingly spoofable.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
	"Client-IP",
}

// Resolve returns the first valid public address found in the proxy
// headers, falling back to the peer address (with any port stripped).
// Header keys are matched case-insensitively.
func Resolve(headers map[string]string, remoteAddr string) string {
	for _, name := range proxyHeaders {
		v := headerValue(headers, name)
		if v == "" {
			continue
		}
		// X-Forwarded-For lists client, proxy1, proxy2...; the
		// left-most entry is the original client.
		candidate := strings.TrimSpace(strings.SplitN(v, ",", 2)[0])
		if ip := net.ParseIP(StripPort(candidate)); ip != nil && IsPublic(ip) {
			return ip.String()
		}
	}
	if ip := net.ParseIP(StripPort(remoteAddr)); ip != nil {
		return ip.String()
	}
	return StripPort(remoteAddr)
}

// StripPort removes a trailing :port from host:port or [v6]:port forms.
// Bare addresses pass through unchanged.
func StripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// IsPublic reports whether ip is a routable address we can trust from a
// forwarding header. Private, loopback, link-local, multicast and
// unspecified addresses are all rejected.
func IsPublic(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return false
	}
	return true
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	lower := strings.ToLower(name)
	for k, v := range headers {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return ""
}
