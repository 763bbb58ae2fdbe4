// Package logger builds *slog.Logger instances for the service.
//
// WithEnvironment picks JSON or text output and the level. Extractors add
// request-scoped values such as the request id from the record's context.
// Attributes that carry credentials (API keys, signatures, tokens) are
// replaced with Redacted before they reach the output. Helpers in attr.go
// keep keys consistent across the payment pipeline.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "creditgate"),
//	    logger.WithContextExtractors(requestIDExtractor),
//	)
//	log.InfoContext(ctx, "payment settled", logger.InvoiceID(id))
package logger
