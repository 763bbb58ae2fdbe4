package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/identity"
)

func newService(t *testing.T, cfg identity.Config) *identity.Service {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "test-secret-with-enough-entropy"
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	svc, err := identity.New(cfg)
	require.NoError(t, err)
	return svc
}

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	svc := newService(t, identity.Config{Issuer: "https://auth.example", Audience: "authenticated"})

	token, err := svc.Issue(identity.Identity{UserID: "user-1", Email: "a@example.com", EmailVerified: true})
	require.NoError(t, err)

	id, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{UserID: "user-1", Email: "a@example.com", EmailVerified: true}, id)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	svc := newService(t, identity.Config{Issuer: "iss", Audience: "authenticated"})

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "iss",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
	}
	key := []byte("test-secret-with-enough-entropy")

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "garbage",
			token:   func(*testing.T) string { return "not.a.token" },
			wantErr: identity.ErrInvalidToken,
		},
		{
			name: "wrong key",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte("other"), valid())
			},
			wantErr: identity.ErrInvalidToken,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				c := valid()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
				return sign(t, jwt.SigningMethodHS256, key, c)
			},
			wantErr: identity.ErrInvalidToken,
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				c := valid()
				c.ExpiresAt = nil
				return sign(t, jwt.SigningMethodHS256, key, c)
			},
			wantErr: identity.ErrInvalidToken,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				c := valid()
				c.Audience = jwt.ClaimStrings{"anon"}
				return sign(t, jwt.SigningMethodHS256, key, c)
			},
			wantErr: identity.ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				c := valid()
				c.Issuer = "elsewhere"
				return sign(t, jwt.SigningMethodHS256, key, c)
			},
			wantErr: identity.ErrInvalidToken,
		},
		{
			name: "other algorithm",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, key, valid())
			},
			wantErr: identity.ErrInvalidToken,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				c := valid()
				c.Subject = ""
				return sign(t, jwt.SigningMethodHS256, key, c)
			},
			wantErr: identity.ErrMissingSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Parse(tt.token(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewRequiresSecret(t *testing.T) {
	t.Parallel()
	_, err := identity.New(identity.Config{})
	assert.ErrorIs(t, err, identity.ErrMissingSigningKey)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc := newService(t, identity.Config{})
	token, err := svc.Issue(identity.Identity{UserID: "user-42"})
	require.NoError(t, err)

	var gotErr error
	h := identity.Middleware(svc, func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity.FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id.UserID))
	}))

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.ErrorIs(t, gotErr, identity.ErrMissingToken)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestFromContextEmpty(t *testing.T) {
	t.Parallel()
	_, ok := identity.FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
