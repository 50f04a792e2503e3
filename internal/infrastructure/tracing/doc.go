/*
Package tracing attaches trace and span ids to HTTP requests and viewer
commands and logs every finished span.

Spans are collected on a buffered channel and logged at debug level, or at
warn level when they carry an error. Nothing is exported.

# Usage

	tracer := tracing.New(logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracing.Run(tracing.WithTraceID(ctx, "req_01H..."), tracer, "command navigate", func(ctx context.Context) error {
		return nil
	})

# Trace Format

- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation
*/
package tracing
