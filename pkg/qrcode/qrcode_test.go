package qrcode_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/qrcode"
)

const invoiceURL = "https://nowpayments.io/payment/?iid=5077125051"

func TestPNG(t *testing.T) {
	t.Parallel()

	data, err := qrcode.PNG(invoiceURL, qrcode.WithSize(128))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestPNGErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		link string
		opts []qrcode.Option
		err  error
	}{
		{"empty", "  ", nil, qrcode.ErrEmptyContent},
		{"relative", "/payment/1", nil, qrcode.ErrInvalidLink},
		{"other scheme", "javascript:alert(1)", nil, qrcode.ErrInvalidLink},
		{"too small", invoiceURL, []qrcode.Option{qrcode.WithSize(10)}, qrcode.ErrInvalidSize},
		{"too large", invoiceURL, []qrcode.Option{qrcode.WithSize(4096)}, qrcode.ErrInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := qrcode.PNG(tt.link, tt.opts...)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDataURI(t *testing.T) {
	t.Parallel()

	uri, err := qrcode.DataURI(invoiceURL, qrcode.WithLevel(qrcode.High))
	require.NoError(t, err)

	payload, ok := strings.CutPrefix(uri, "data:image/png;base64,")
	require.True(t, ok)
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)
}
