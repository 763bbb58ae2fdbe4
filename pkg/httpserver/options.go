package httpserver

import (
	"log/slog"
	"net"
)

// Option configures the HTTP server.
type Option func(*Server)

// WithLogger supplies the server logger. Nil keeps the discarding default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithListener serves on an already bound listener instead of Config.Addr.
func WithListener(ln net.Listener) Option {
	return func(s *Server) { s.listener = ln }
}

// WithShutdownHook registers a callback that runs after the server drained
// in-flight requests, e.g. to close database pools.
func WithShutdownHook(h func()) Option {
	return func(s *Server) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}
