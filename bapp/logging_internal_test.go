package bapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advdv/broute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEnv struct {
	level   zapcore.Level
	otelExp string
}

func (e testEnv) port() int                     { return 8080 }
func (e testEnv) serviceName() string           { return "test" }
func (e testEnv) healthPath() string            { return "/health" }
func (e testEnv) metricsPath() string           { return "/metrics" }
func (e testEnv) logLevel() zapcore.Level       { return e.level }
func (e testEnv) debug() bool                   { return false }
func (e testEnv) basePath() string              { return "" }
func (e testEnv) bufferLimit() int              { return -1 }
func (e testEnv) requestTimeout() time.Duration { return 30 * time.Second }
func (e testEnv) routeCacheSize() int           { return 16 }
func (e testEnv) otelExporter() string {
	if e.otelExp == "" {
		return "none"
	}
	return e.otelExp
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		t.Run(lvl.String(), func(t *testing.T) {
			logger, err := NewLogger(testEnv{level: lvl})
			require.NoError(t, err)

			assert.True(t, logger.Core().Enabled(lvl))
			if lvl > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(lvl-1))
			}
		})
	}
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	rt := broute.NewRouter()
	rt.Get("/items/{id}", broute.Func(func(ctx context.Context, _ broute.ResponseWriter, _ *http.Request) (any, error) {
		Log(ctx).Info("fetching item")
		return nil, nil
	}))

	d := broute.NewDispatcher(rt).Add(withLogger(zap.New(core)))

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	defer span.End()

	d.Dispatch(httptest.NewRequest(http.MethodGet, "/items/1", nil).WithContext(ctx))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, http.MethodGet, fields["method"])
	assert.Equal(t, "/items/1", fields["path"])
	assert.Equal(t, "/items/{id}", fields["route"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestLog_WithoutTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	stage := withLogger(zap.New(core))
	err := stage.Process(broute.NewResponse(-1), httptest.NewRequest(http.MethodPost, "/", nil),
		broute.BareHandlerFunc(func(_ broute.ResponseWriter, r *http.Request) error {
			Log(r.Context()).Info("no route")
			return nil
		}))
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, http.MethodPost, fields["method"])
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "route")
}

func TestLog_WithoutStage(t *testing.T) {
	assert.PanicsWithValue(t, "bapp: no logger in context; is the request served by the app?", func() {
		Log(context.Background())
	})
}
