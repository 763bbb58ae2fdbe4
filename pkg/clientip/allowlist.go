package clientip

import (
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/dmitrymomot/creditgate/pkg/logger"
)

// Allowlist is a set of networks. The zero value allows everything.
type Allowlist struct {
	prefixes []netip.Prefix
}

// ParseAllowlist accepts addresses and CIDR networks. Blank entries are
// skipped, so an empty list allows every caller.
func ParseAllowlist(entries []string) (Allowlist, error) {
	var list Allowlist
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return Allowlist{}, errors.Join(ErrInvalidPrefix, err)
			}
			list.prefixes = append(list.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return Allowlist{}, errors.Join(ErrInvalidPrefix, err)
		}
		a = a.Unmap()
		list.prefixes = append(list.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return list, nil
}

// Empty reports whether the list restricts nothing.
func (l Allowlist) Empty() bool { return len(l.prefixes) == 0 }

// Contains reports whether addr is allowed.
func (l Allowlist) Contains(addr netip.Addr) bool {
	if l.Empty() {
		return true
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware rejects callers outside list with 403.
func Middleware(list Allowlist, trustProxy bool, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(next http.Handler) http.Handler {
		if list.Empty() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := Resolve(r, trustProxy)
			if !ok || !list.Contains(addr) {
				log.WarnContext(r.Context(), "request from address outside allowlist",
					logger.Component("clientip"), slog.String("remote", r.RemoteAddr), slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
