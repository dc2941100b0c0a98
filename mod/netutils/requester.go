package netutils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Headers set by CDNs in front of the proxy. They carry a single
// client address and take priority over X-Forwarded-For
var clientIPHeaders = []string{
	"X-Real-Ip",
	"CF-Connecting-IP",
	"Fastly-Client-IP",
}

// GetRequesterIP return the best guess of the client address, without port.
// X-Forwarded-For chains are reduced to their first hop
func GetRequesterIP(r *http.Request) string {
	raw := ""
	for _, name := range clientIPHeaders {
		if v := r.Header.Get(name); v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		raw = r.Header.Get("X-Forwarded-For")
	}
	if raw == "" {
		raw = r.RemoteAddr
	}
	return stripAddress(raw)
}

// stripAddress turn "1.2.3.4:80", "[::1]:80" or "a, b, c" into a bare IP
func stripAddress(raw string) string {
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	if host, _, err := net.SplitHostPort(first); err == nil {
		first = host
	}
	return strings.TrimSuffix(strings.TrimPrefix(first, "["), "]")
}

func parseLiteral(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, false
	}
	return addr, true
}

// IsIPv6 report if s is an IPv6 literal. Brackets are allowed
func IsIPv6(s string) bool {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	addr, ok := parseLiteral(s)
	return ok && addr.Is6()
}

// IsIPv4 report if s is a dotted IPv4 literal
func IsIPv4(s string) bool {
	addr, ok := parseLiteral(s)
	return ok && addr.Is4()
}
