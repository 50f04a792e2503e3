package tracing

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	traceHeader = "X-Trace-ID"
	spanHeader  = "X-Span-ID"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing. Incoming
// X-Trace-ID and X-Span-ID headers continue an existing trace.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(traceHeader); traceID != "" {
			ctx = WithTraceID(ctx, TraceID(traceID))
		}
		if parentID := c.GetHeader(spanHeader); parentID != "" {
			ctx = context.WithValue(ctx, spanIDKey, SpanID(parentID))
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		c.Request = c.Request.WithContext(ctx)

		c.Header(traceHeader, string(span.TraceID))
		c.Header(spanHeader, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}

// Run wraps fn in a span named name.
func Run(ctx context.Context, tracer *Tracer, name string, fn func(context.Context) error) error {
	if tracer == nil {
		return fn(ctx)
	}
	span, ctx := tracer.StartSpan(ctx, name)
	err := fn(ctx)
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
	tracer.Submit(span)
	return err
}
