// Package tracing records lightweight spans for worker calls.
//
// A trace starts when a bridge connects: the HTTP middleware takes the
// X-Trace-ID header (or mints one) and stores it on the request context.
// Every call served over that connection becomes a child span, so all the
// log lines of one connection share a trace ID.
//
// Finished spans are handed to a collector goroutine through a bounded
// buffer and logged at debug level. When the buffer is full spans are
// dropped rather than slowing the call path.
//
// Usage:
//
//	tracer := tracing.New(logger)
//	defer tracer.Close()
//
//	span, ctx := tracer.StartSpan(ctx, "worker.stat")
//	defer tracer.End(span, err)
package tracing
