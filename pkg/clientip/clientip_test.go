package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/clientip"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		trust   bool
		want    string
	}{
		{"remote addr with port", "203.0.113.7:4431", nil, false, "203.0.113.7"},
		{"remote addr without port", "203.0.113.7", nil, false, "203.0.113.7"},
		{"ipv4 mapped ipv6", "[::ffff:203.0.113.7]:80", nil, false, "203.0.113.7"},
		{"headers ignored without trust", "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.2"}, false, "10.0.0.1"},
		{"cloudflare header", "10.0.0.1:80", map[string]string{"CF-Connecting-IP": "198.51.100.2", "X-Real-IP": "198.51.100.3"}, true, "198.51.100.2"},
		{"first valid forwarded", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "junk, 198.51.100.9, 10.0.0.2"}, true, "198.51.100.9"},
		{"invalid headers fall back", "10.0.0.1:80", map[string]string{"X-Real-IP": "nope"}, true, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			addr, ok := clientip.Resolve(r, tt.trust)
			require.True(t, ok)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestAllowlist(t *testing.T) {
	t.Parallel()

	list, err := clientip.ParseAllowlist([]string{" 144.76.201.30 ", "", "51.89.194.0/24", "2001:db8::/32"})
	require.NoError(t, err)
	assert.False(t, list.Empty())

	assert.True(t, list.Contains(netip.MustParseAddr("144.76.201.30")))
	assert.True(t, list.Contains(netip.MustParseAddr("51.89.194.21")))
	assert.True(t, list.Contains(netip.MustParseAddr("2001:db8::1")))
	assert.True(t, list.Contains(netip.MustParseAddr("::ffff:144.76.201.30")))
	assert.False(t, list.Contains(netip.MustParseAddr("144.76.201.31")))

	empty, err := clientip.ParseAllowlist(nil)
	require.NoError(t, err)
	assert.True(t, empty.Contains(netip.MustParseAddr("192.0.2.1")))

	_, err = clientip.ParseAllowlist([]string{"10.0.0.0/33"})
	assert.ErrorIs(t, err, clientip.ErrInvalidPrefix)
	_, err = clientip.ParseAllowlist([]string{"not-an-ip"})
	assert.ErrorIs(t, err, clientip.ErrInvalidPrefix)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	list, err := clientip.ParseAllowlist([]string{"144.76.201.30"})
	require.NoError(t, err)
	h := clientip.Middleware(list, true, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote, realIP string) int {
		r := httptest.NewRequest(http.MethodPost, "/webhook/nowpayments", nil)
		r.RemoteAddr = remote
		if realIP != "" {
			r.Header.Set("X-Real-IP", realIP)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("144.76.201.30:443", ""))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:443", "144.76.201.30"))
	assert.Equal(t, http.StatusForbidden, call("10.0.0.1:443", ""))
	assert.Equal(t, http.StatusForbidden, call("10.0.0.1:443", "198.51.100.1"))
}
