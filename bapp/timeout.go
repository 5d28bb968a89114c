package bapp

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/broute"
)

// DefaultDeadlineBuffer is the default time reserved before the request timeout for error responses and cleanup.
const DefaultDeadlineBuffer = 500 * time.Millisecond

// TimeoutConfig holds timeout configuration for the HTTP server.
type TimeoutConfig struct {
	// RequestTimeout is the longest a single request may take, from BR_REQUEST_TIMEOUT.
	RequestTimeout time.Duration

	// DeadlineBuffer is subtracted from the request timeout to leave time for an error response. Defaults to
	// DefaultDeadlineBuffer.
	DeadlineBuffer time.Duration
}

// effective returns the request timeout minus the buffer, or the full timeout if the buffer does not fit.
func (tc TimeoutConfig) effective() time.Duration {
	buffer := tc.DeadlineBuffer
	if buffer <= 0 {
		buffer = DefaultDeadlineBuffer
	}

	timeout := tc.RequestTimeout - buffer
	if timeout <= 0 {
		timeout = tc.RequestTimeout
	}

	return timeout
}

// ServerTimeouts returns the http.Server timeout values. The write timeout is the full request timeout so that a
// request cancelled by [WithRequestDeadline] still has time to write its error response.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	timeout := tc.effective()

	readHeaderTimeout = min(timeout, 5*time.Second)
	readTimeout = timeout
	writeTimeout = tc.RequestTimeout
	idleTimeout = timeout

	return
}

// WithRequestDeadline returns a stage that bounds the request context by the configured timeout minus the deadline
// buffer. A zero timeout leaves the context unchanged.
func WithRequestDeadline(tc TimeoutConfig) broute.Stage {
	return broute.StageFunc(func(w broute.ResponseWriter, r *http.Request, next broute.BareHandler) error {
		if tc.RequestTimeout <= 0 {
			return next.ServeBareBHTTP(w, r)
		}

		ctx, cancel := context.WithTimeout(r.Context(), tc.effective())
		defer cancel()

		return next.ServeBareBHTTP(w, r.WithContext(ctx))
	})
}

// RequestDeadline reports the deadline set by [WithRequestDeadline], or by the caller.
func RequestDeadline(ctx context.Context) (time.Time, bool) {
	return ctx.Deadline()
}

// RequestRemainingTime is the time left before the request deadline, never negative. It is zero without a
// deadline.
func RequestRemainingTime(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return max(time.Until(deadline), 0)
	}

	return 0
}
