package identity

import "time"

type Config struct {
	Secret   string        `env:"JWT_SECRET"`                              // Secret is the HS256 key shared with the identity provider.
	Issuer   string        `env:"JWT_ISSUER"`                              // Issuer, when set, must match the "iss" claim.
	Audience string        `env:"JWT_AUDIENCE" envDefault:"authenticated"` // Audience, when set, must be present in the "aud" claim.
	TTL      time.Duration `env:"JWT_TTL" envDefault:"1h"`                 // TTL of tokens minted by Issue.
	Leeway   time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`             // Leeway tolerated on exp/nbf/iat.
}
