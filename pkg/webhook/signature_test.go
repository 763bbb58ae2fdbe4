package webhook_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/webhook"
)

const secret = "ipn_secret_123"

func rawHMAC(t *testing.T, data string) string {
	t.Helper()
	h := hmac.New(sha512.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{
			name: "sorts keys and strips whitespace",
			in:   `{ "payment_status": "finished", "invoice_id": 42, "actually_paid": 10.50 }`,
			want: `{"actually_paid":10.5,"invoice_id":42,"payment_status":"finished"}`,
		},
		{
			name: "sorts nested objects",
			in:   `{"b":{"z":1,"a":[{"y":true,"x":null}]},"a":"<&>"}`,
			want: `{"a":"<&>","b":{"a":[{"x":null,"y":true}],"z":1}}`,
		},
		{
			name: "keeps large integer ids exact",
			in:   `{"payment_id":5077125051}`,
			want: `{"payment_id":5077125051}`,
		},
		{
			name: "leaves line and paragraph separators unescaped",
			in:   "{\"order_description\":\"a\u2028b\u2029c\"}",
			want: "{\"order_description\":\"a\u2028b\u2029c\"}",
		},
		{
			name: "orders keys by utf-16 code units",
			in:   "{\"\uff5e\":1,\"\U0001F600\":2}",
			want: "{\"\U0001F600\":2,\"\uff5e\":1}",
		},
		{
			name: "formats exponents like JSON.stringify",
			in:   `{"n":1E21,"m":0.0000001}`,
			want: `{"m":1e-7,"n":1e+21}`,
		},
		{name: "empty body", in: "  ", wantErr: webhook.ErrInvalidPayload},
		{name: "broken json", in: `{"a":`, wantErr: webhook.ErrInvalidPayload},
		{name: "trailing garbage", in: `{"a":1} {"b":2}`, wantErr: webhook.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := webhook.Canonicalize([]byte(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"payment_status":"finished","invoice_id":"inv_1","payment_id":"p1"}`)
	pretty := []byte("{\n  \"payment_id\": \"p1\",\n  \"invoice_id\": \"inv_1\",\n  \"payment_status\": \"finished\"\n}")
	sig := rawHMAC(t, `{"invoice_id":"inv_1","payment_id":"p1","payment_status":"finished"}`)

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, webhook.VerifySignature(secret, body, sig))
	})

	t.Run("whitespace and key order do not matter", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, webhook.VerifySignature(secret, pretty, sig))
	})

	t.Run("uppercase hex accepted", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, webhook.VerifySignature(secret, body, strings.ToUpper(sig)))
	})

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		tampered := bytes.Replace(body, []byte("finished"), []byte("failed"), 1)
		assert.ErrorIs(t, webhook.VerifySignature(secret, tampered, sig), webhook.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.VerifySignature("other", body, sig), webhook.ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.VerifySignature(secret, body, ""), webhook.ErrInvalidSignature)
	})

	t.Run("non hex signature", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.VerifySignature(secret, body, "zz"), webhook.ErrInvalidSignature)
	})

	t.Run("undecodable body", func(t *testing.T) {
		t.Parallel()
		err := webhook.VerifySignature(secret, []byte("not json"), sig)
		assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
	})

	t.Run("empty secret", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.VerifySignature("", body, sig), webhook.ErrInvalidConfiguration)
	})
}

func TestSignRoundTrip(t *testing.T) {
	t.Parallel()

	body := []byte(`{"b":2,"a":1}`)
	sig, err := webhook.Sign(secret, body)
	require.NoError(t, err)
	assert.Equal(t, rawHMAC(t, `{"a":1,"b":2}`), sig)
	assert.NoError(t, webhook.VerifySignature(secret, body, sig))
}

func TestVerifier(t *testing.T) {
	t.Parallel()

	t.Run("requires secret", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.NewVerifier("")
		assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)
	})

	t.Run("insecure mode accepts anything and warns", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		v, err := webhook.NewVerifier("", webhook.WithInsecureSkip(),
			webhook.WithLogger(slog.New(slog.NewTextHandler(buf, nil))))
		require.NoError(t, err)
		assert.True(t, v.Insecure())

		assert.NoError(t, v.Verify([]byte(`{}`), ""))
		assert.Contains(t, buf.String(), "verification skipped")
	})

	t.Run("secret overrides insecure flag", func(t *testing.T) {
		t.Parallel()
		v, err := webhook.NewVerifier(secret, webhook.WithInsecureSkip())
		require.NoError(t, err)
		assert.False(t, v.Insecure())
		assert.ErrorIs(t, v.Verify([]byte(`{}`), "00"), webhook.ErrInvalidSignature)
	})
}
