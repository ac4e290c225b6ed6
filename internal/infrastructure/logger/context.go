package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	supplierKey
	runIDKey
)

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx enriched with the active
// span, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	l, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}
	return WithTraceContext(ctx, l)
}

// WithRequestID tags ctx and logger with the id of an HTTP request.
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	if requestID == "" {
		return WithContext(ctx, logger), logger
	}
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	l := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, l), l
}

// WithSupplier scopes ctx and logger to one supplier import run.
func WithSupplier(ctx context.Context, logger *zap.Logger, supplier, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, supplierKey, supplier)
	ctx = context.WithValue(ctx, runIDKey, runID)
	l := logger.With(zap.String("supplier", supplier), zap.String("run_id", runID))
	return WithContext(ctx, l), l
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func GetSupplier(ctx context.Context) string {
	v, _ := ctx.Value(supplierKey).(string)
	return v
}

func GetRunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// WithTraceContext adds trace_id and span_id of the span in ctx, if any.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
