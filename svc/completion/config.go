package completion

import "time"

// Config configures the OpenAI-compatible chat completion client (Groq by default).
type Config struct {
	APIKey      string        `env:"GROQ_API_KEY"`
	BaseURL     string        `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Model       string        `env:"GROQ_MODEL" envDefault:"llama-3.1-8b-instant"`
	MaxTokens   int           `env:"GROQ_MAX_TOKENS" envDefault:"2048"`
	Temperature float64       `env:"GROQ_TEMPERATURE" envDefault:"0.7"`
	Timeout     time.Duration `env:"GROQ_TIMEOUT" envDefault:"60s"`
	Retries     int           `env:"GROQ_RETRIES" envDefault:"2"` // extra attempts after a retryable failure
}

// Enabled reports whether an API key is configured.
func (c Config) Enabled() bool { return c.APIKey != "" }
