// Package config loads application configuration from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
//
//   - The default `.env` file in the working directory is loaded once per
//     process when present; extra files can be requested with WithEnvFile.
//   - Any Go struct is populated from field tags, optionally under a shared
//     prefix (WithPrefix) so one struct type can serve several components.
//   - MustLoad panics on failure for configuration the process cannot start
//     without.
//
// # Usage
//
//	type StoreConfig struct {
//	    Driver string `env:"STORE_DRIVER" envDefault:"postgres"`
//	}
//
//	var cfg StoreConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("parsing env: %v", err)
//	}
//
// # Error Handling
//
// Sentinel errors can be compared with `errors.Is`:
//
//   - `ErrParsingConfig` – failed to parse env vars into struct.
//   - `ErrEnvFile`       – an explicitly requested env file could not be read.
//   - `ErrNilPointer`    – nil pointer passed to `Load`/`MustLoad`.
package config
