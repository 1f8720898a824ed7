// Package safehttp provides an HTTP transport that refuses to reach private networks.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Blocked reports whether ip is loopback, private, link-local or unspecified.
func Blocked(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// NewTransport returns a transport whose connections fail when the remote
// address is Blocked. The check runs on the connected address, so DNS answers
// pointing at internal hosts are caught too.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			ip := net.ParseIP(host)
			if ip == nil {
				conn.Close()
				return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
			}
			if Blocked(ip) {
				conn.Close()
				return nil, fmt.Errorf("access to private IP %s is denied", ip)
			}
			return conn, nil
		},
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
}
