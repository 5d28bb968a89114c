// Package example implements example stages in an outside package.
package example

import (
	"context"
	"net/http"

	"github.com/advdv/broute"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ctxKey type scopes stage values.
type ctxKey string

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID is an example stage that makes sure every request has an id, and echoes it on successful responses. It adds
// a logger with the id to the context.
func RequestID(logs *zap.Logger) broute.Stage {
	return broute.StageFunc(func(w broute.ResponseWriter, r *http.Request, next broute.BareHandler) error {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		logs := logs.With(zap.String("request_id", id), zap.String("method", r.Method))
		r = r.WithContext(context.WithValue(r.Context(), ctxKey("zap"), logs))

		w.Header().Set(RequestIDHeader, id)

		return next.ServeBareBHTTP(w, r)
	})
}

// Log returns the logger added by [RequestID], or a no-op logger.
func Log(ctx context.Context) *zap.Logger {
	if v, ok := ctx.Value(ctxKey("zap")).(*zap.Logger); ok {
		return v
	}

	return zap.NewNop()
}
