package ratelimit

import "time"

// Config holds the budgets of the throttled endpoints: AI queries and
// invoice creation.
type Config struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	QueryLimit     int           `env:"RATE_LIMIT_QUERY_LIMIT" envDefault:"30"`
	QueryWindow    time.Duration `env:"RATE_LIMIT_QUERY_WINDOW" envDefault:"1m"`
	CheckoutLimit  int           `env:"RATE_LIMIT_CHECKOUT_LIMIT" envDefault:"10"`
	CheckoutWindow time.Duration `env:"RATE_LIMIT_CHECKOUT_WINDOW" envDefault:"10m"`
}
