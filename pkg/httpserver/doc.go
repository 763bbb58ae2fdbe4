// Package httpserver runs an http.Handler with graceful shutdown on context
// cancellation or SIGINT/SIGTERM, and provides JSON liveness and readiness
// handlers driven by named dependency checks.
//
// The core type is Server, built from a Config and functional options:
//
//   - Graceful Shutdown: Run blocks until ctx is cancelled or a signal
//     arrives, then drains in-flight requests within ShutdownTimeout.
//   - Options: WithLogger, WithListener and WithShutdownHook adjust a
//     Server without growing the Config.
//   - Health Checks: LivenessHandler always answers 200, ReadinessHandler
//     runs every Check under one timeout and answers 503 when any fails.
//
// # Architecture
//
// Config carries the listen address and the http.Server timeouts and is
// populated from HTTP_* environment variables. Run listens (or uses the
// listener supplied with WithListener, which tests use to bind port 0),
// serves in its own goroutine and waits for ctx or a signal. Shutdown hooks
// run once http.Server.Shutdown has returned, whether or not it succeeded.
//
// # Usage
//
//	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
//
//	r := chi.NewRouter()
//	r.Get("/health/live", httpserver.LivenessHandler())
//	r.Get("/health/ready", httpserver.ReadinessHandler(log, 2*time.Second,
//		httpserver.Check{Name: "store", Probe: store.Ping},
//		httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)},
//	))
//
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// # Errors
//
// Run joins listen failures with ErrStart and shutdown failures with
// ErrShutdown. Use errors.Is to tell them apart.
package httpserver
