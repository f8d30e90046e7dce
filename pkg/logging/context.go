package logging

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// WithLogger returns a copy of ctx carrying logger. Handlers and probes
// retrieve it with FromContext so one configured logger flows through a run.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithRequestID returns a copy of ctx carrying the monitor request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the monitor request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext returns the logger stored in ctx, stamped with correlation
// fields. Trace and span IDs are read from the OpenTelemetry span recorded in
// ctx, so log lines line up with the run and service spans the tracer emits.
// When ctx carries no logger a default JSON logger is used.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerKey).(*Logger)
	if !ok {
		logger = New(defaultLogConfig())
	}
	return correlate(ctx, logger)
}

// Ctx is shorthand for FromContext(ctx).GetZerolog().
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx).GetZerolog()
}

func correlate(ctx context.Context, logger *Logger) *Logger {
	zctx := logger.zlog.With()
	stamped := false

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		zctx = zctx.
			Str(TraceID, sc.TraceID().String()).
			Str(SpanID, sc.SpanID().String())
		stamped = true
	}
	if id := GetRequestID(ctx); id != "" {
		zctx = zctx.Str(RequestID, id)
		stamped = true
	}
	if !stamped {
		return logger
	}
	return &Logger{zlog: zctx.Logger(), cfg: logger.cfg}
}
