package clientip

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

var ErrInvalidPrefix = errors.New("clientip: invalid address or network")

// proxyHeaders are consulted in order when proxy headers are trusted.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Real-IP"}

// Resolve returns the caller address. With trustProxy set the first valid
// address of CF-Connecting-IP, X-Real-IP or X-Forwarded-For wins; otherwise
// only RemoteAddr is used.
func Resolve(r *http.Request, trustProxy bool) (netip.Addr, bool) {
	if trustProxy {
		for _, h := range proxyHeaders {
			if addr, ok := parse(r.Header.Get(h)); ok {
				return addr, true
			}
		}
		for part := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
			if addr, ok := parse(part); ok {
				return addr, true
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return parse(host)
}

func parse(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
