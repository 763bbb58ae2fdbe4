package qrcode

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent = errors.New("qr content is empty")
	ErrInvalidLink  = errors.New("qr content is not an absolute http(s) link")
	ErrInvalidSize  = errors.New("qr size out of range")
	ErrRenderFailed = errors.New("failed to render qr code")
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// Level is the error correction level.
type Level = skipqrcode.RecoveryLevel

const (
	Low     Level = skipqrcode.Low
	Medium  Level = skipqrcode.Medium
	High    Level = skipqrcode.High
	Highest Level = skipqrcode.Highest
)

type options struct {
	size  int
	level Level
}

// Option tunes rendering.
type Option func(*options)

// WithSize sets the image side in pixels. Zero keeps DefaultSize.
func WithSize(px int) Option {
	return func(o *options) {
		if px != 0 {
			o.size = px
		}
	}
}

// WithLevel sets the error correction level.
func WithLevel(l Level) Option {
	return func(o *options) { o.level = l }
}

// PNG renders link as a square PNG image.
func PNG(link string, opts ...Option) ([]byte, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, ErrEmptyContent
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, ErrInvalidLink
	}

	o := options{size: DefaultSize, level: Medium}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size < MinSize || o.size > MaxSize {
		return nil, ErrInvalidSize
	}

	png, err := skipqrcode.Encode(link, o.level, o.size)
	if err != nil {
		return nil, errors.Join(ErrRenderFailed, err)
	}
	return png, nil
}

// DataURI renders link as a base64 "data:image/png" URI.
func DataURI(link string, opts ...Option) (string, error) {
	png, err := PNG(link, opts...)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
