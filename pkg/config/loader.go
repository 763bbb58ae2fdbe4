package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

type options struct {
	prefix   string
	envFiles []string
}

// Option tweaks a single Load call.
type Option func(*options)

// WithPrefix scopes every env tag of the target struct under prefix,
// e.g. WithPrefix("BILLING_") maps `env:"API_KEY"` to BILLING_API_KEY.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithEnvFile loads additional dotenv files before parsing. Variables that
// are already present in the process environment are never overwritten.
func WithEnvFile(paths ...string) Option {
	return func(o *options) {
		o.envFiles = append(o.envFiles, paths...)
	}
}

// Load populates the configuration struct from environment variables.
//
// The default .env file in the working directory is read once per process,
// if present. Struct fields are described with caarlos0/env tags:
//
//	type Config struct {
//		APIKey  string        `env:"NOWPAYMENTS_API_KEY"`
//		Timeout time.Duration `env:"NOWPAYMENTS_TIMEOUT" envDefault:"30s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	dotenvOnce.Do(func() {
		// The default .env file is optional.
		_ = godotenv.Load()
	})

	if len(o.envFiles) > 0 {
		if err := godotenv.Load(o.envFiles...); err != nil {
			return errors.Join(ErrEnvFile, err)
		}
	}

	if err := env.ParseWithOptions(v, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
