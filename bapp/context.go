package bapp

import (
	"context"
	"net/http"

	"github.com/advdv/broute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const ctxKeyLogger ctxKey = iota

// withLogger puts a logger carrying the request method and path into the context of every request.
func withLogger(logger *zap.Logger) broute.Stage {
	return broute.StageFunc(func(w broute.ResponseWriter, r *http.Request, next broute.BareHandler) error {
		rl := logger.With(zap.String("method", r.Method), zap.String("path", r.URL.Path))
		return next.ServeBareBHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyLogger, rl)))
	})
}

// Log returns the request logger, correlated with the current trace and, once the request resolved to a route,
// labeled with the route pattern. It panics outside of a request served by the app.
func Log(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(ctxKeyLogger).(*zap.Logger)
	if !ok {
		panic("bapp: no logger in context; is the request served by the app?")
	}

	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
	}

	if rc, ok := broute.FromContext(ctx); ok && rc.Route != nil {
		fields = append(fields, zap.String("route", rc.Route.Pattern()))
	}

	return logger.With(fields...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
