package api

import "time"

// Config tunes the HTTP surface.
type Config struct {
	// SignatureHeader carries the provider HMAC. Usually copied from the
	// NowPayments configuration.
	SignatureHeader string `env:"NOWPAYMENTS_SIGNATURE_HEADER" envDefault:"x-nowpayments-sig"`
	// WebhookAllowlist restricts webhook callers to these addresses or
	// networks. Empty accepts every caller.
	WebhookAllowlist []string      `env:"NOWPAYMENTS_ALLOWED_IPS" envSeparator:","`
	TrustProxy       bool          `env:"HTTP_TRUST_PROXY" envDefault:"false"`
	WebhookTimeout   time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"30s"`
	ReadyTimeout     time.Duration `env:"HTTP_READY_TIMEOUT" envDefault:"3s"`
	MaxWebhookBody   int64         `env:"WEBHOOK_MAX_BODY" envDefault:"65536"`
}

func (c Config) withDefaults() Config {
	if c.SignatureHeader == "" {
		c.SignatureHeader = "x-nowpayments-sig"
	}
	if c.WebhookTimeout <= 0 {
		c.WebhookTimeout = 30 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 3 * time.Second
	}
	if c.MaxWebhookBody <= 0 {
		c.MaxWebhookBody = 64 << 10
	}
	return c
}
