package logger

import (
	"cmp"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Redacted replaces the value of every attribute whose key is in the
// redaction list.
const Redacted = "[REDACTED]"

// defaultRedactedKeys are masked in every logger built by New.
var defaultRedactedKeys = []string{
	"api_key",
	"authorization",
	"ipn_secret",
	"jwt_secret",
	"signature",
	"token",
	"x-api-key",
	"x-nowpayments-sig",
}

// Option configures New.
type Option func(*options)

type options struct {
	level      slog.Level
	json       bool
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
	redact     []string
}

// WithLevel overrides the level picked by WithEnvironment.
func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithOutput sets the destination. Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithEnvironment selects JSON at info level for production-like
// environments and text at debug level otherwise. The service name and the
// environment are attached to every record.
func WithEnvironment(env, service string) Option {
	return func(o *options) {
		if IsProduction(env) {
			o.level, o.json = slog.LevelInfo, true
		} else {
			env = cmp.Or(env, "development")
			o.level, o.json = slog.LevelDebug, false
		}
		if service != "" {
			o.attrs = append(o.attrs, slog.String("service", service))
		}
		o.attrs = append(o.attrs, slog.String("env", strings.ToLower(env)))
	}
}

// WithContextExtractors registers functions that add attributes taken from
// the record's context, such as the request id.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) {
		for _, ex := range extractors {
			if ex != nil {
				o.extractors = append(o.extractors, ex)
			}
		}
	}
}

// WithRedactedKeys adds attribute keys whose values are masked. Matching is
// case-insensitive.
func WithRedactedKeys(keys ...string) Option {
	return func(o *options) {
		for _, k := range keys {
			if k != "" {
				o.redact = append(o.redact, strings.ToLower(k))
			}
		}
	}
}

// IsProduction reports whether env names a deployed environment.
func IsProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level,
// falling back to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// New builds a logger. Without options it writes JSON at info level to
// stdout. Secrets listed in the redaction set are always masked.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		json:   true,
		output: os.Stdout,
		redact: slices.Clone(defaultRedactedKeys),
	}
	for _, opt := range opts {
		opt(o)
	}

	hopts := &slog.HandlerOptions{
		Level:       o.level,
		ReplaceAttr: redactor(o.redact),
	}
	var h slog.Handler
	if o.json {
		h = slog.NewJSONHandler(o.output, hopts)
	} else {
		h = slog.NewTextHandler(o.output, hopts)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	if len(o.extractors) > 0 {
		h = &contextHandler{next: h, extractors: o.extractors}
	}
	return slog.New(h)
}

// Discard returns a logger that drops every record, the default for optional
// logger dependencies.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func redactor(keys []string) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if slices.Contains(keys, strings.ToLower(a.Key)) {
			return slog.String(a.Key, Redacted)
		}
		return a
	}
}

