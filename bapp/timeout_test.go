package bapp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advdv/broute"
	"github.com/advdv/broute/bapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutConfig_ServerTimeouts(t *testing.T) {
	defaultBuffer := bapp.DefaultDeadlineBuffer // 500ms

	tests := []struct {
		name                  string
		requestTimeout        time.Duration
		deadlineBuffer        time.Duration
		wantReadHeaderTimeout time.Duration
		wantReadTimeout       time.Duration
		wantWriteTimeout      time.Duration
		wantIdleTimeout       time.Duration
	}{
		{
			name:                  "short timeout (3s) uses default buffer",
			requestTimeout:        3 * time.Second,
			wantReadHeaderTimeout: 2500 * time.Millisecond,
			wantReadTimeout:       2500 * time.Millisecond,
			wantWriteTimeout:      3 * time.Second,
			wantIdleTimeout:       2500 * time.Millisecond,
		},
		{
			name:                  "typical timeout (30s) caps read header timeout",
			requestTimeout:        30 * time.Second,
			wantReadHeaderTimeout: 5 * time.Second,
			wantReadTimeout:       30*time.Second - defaultBuffer,
			wantWriteTimeout:      30 * time.Second,
			wantIdleTimeout:       30*time.Second - defaultBuffer,
		},
		{
			name:                  "custom buffer (1s)",
			requestTimeout:        30 * time.Second,
			deadlineBuffer:        time.Second,
			wantReadHeaderTimeout: 5 * time.Second,
			wantReadTimeout:       29 * time.Second,
			wantWriteTimeout:      30 * time.Second,
			wantIdleTimeout:       29 * time.Second,
		},
		{
			name:                  "buffer equals timeout falls back to full timeout",
			requestTimeout:        500 * time.Millisecond,
			deadlineBuffer:        500 * time.Millisecond,
			wantReadHeaderTimeout: 500 * time.Millisecond,
			wantReadTimeout:       500 * time.Millisecond,
			wantWriteTimeout:      500 * time.Millisecond,
			wantIdleTimeout:       500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := bapp.TimeoutConfig{
				RequestTimeout: tt.requestTimeout,
				DeadlineBuffer: tt.deadlineBuffer,
			}

			readHeader, read, write, idle := tc.ServerTimeouts()
			assert.Equal(t, tt.wantReadHeaderTimeout, readHeader)
			assert.Equal(t, tt.wantReadTimeout, read)
			assert.Equal(t, tt.wantWriteTimeout, write)
			assert.Equal(t, tt.wantIdleTimeout, idle)
		})
	}
}

func TestWithRequestDeadline(t *testing.T) {
	run := func(tc bapp.TimeoutConfig) (ctx context.Context) {
		next := broute.BareHandlerFunc(func(_ broute.ResponseWriter, r *http.Request) error {
			ctx = r.Context()
			return nil
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, bapp.WithRequestDeadline(tc).Process(broute.NewResponse(-1), req, next))

		return ctx
	}

	t.Run("sets deadline minus buffer", func(t *testing.T) {
		ctx := run(bapp.TimeoutConfig{RequestTimeout: 10 * time.Second})

		_, ok := bapp.RequestDeadline(ctx)
		require.True(t, ok)

		remaining := bapp.RequestRemainingTime(ctx)
		assert.Greater(t, remaining, 9*time.Second)
		assert.LessOrEqual(t, remaining, 10*time.Second-bapp.DefaultDeadlineBuffer)

		// the deadline ends with the stage
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("zero timeout leaves context unchanged", func(t *testing.T) {
		ctx := run(bapp.TimeoutConfig{})

		_, ok := bapp.RequestDeadline(ctx)
		assert.False(t, ok)
		assert.Zero(t, bapp.RequestRemainingTime(ctx))
		assert.NoError(t, ctx.Err())
	})
}

func TestRequestRemainingTime_Expired(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	assert.Zero(t, bapp.RequestRemainingTime(ctx))
}
