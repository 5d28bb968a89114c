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
)

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(http.DefaultTransport, testEnv{})
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.Equal(t, http.DefaultTransport, client.Transport)
}

func TestRuntime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("traceparent")))
	}))
	defer srv.Close()

	rt := broute.NewRouter()
	rt.Get("/items/{id}", broute.Func(noop)).Name("item")

	tp := sdktrace.NewTracerProvider()
	env := testEnv{}
	run := NewRuntime(env, rt, NewHTTPClient(NewHTTPTransport(tp, NewPropagator()), env))

	assert.Equal(t, env, run.Env())

	u, err := run.URLFor("item", map[string]string{"id": "7"}, map[string]string{"full": "1"})
	require.NoError(t, err)
	assert.Equal(t, "/items/7?full=1", u)

	ctx, span := tp.Tracer("test").Start(context.Background(), "outer")
	defer span.End()

	var got string
	require.NoError(t, run.NewRequest(srv.URL).ToString(&got).Fetch(ctx))
	assert.Contains(t, got, span.SpanContext().TraceID().String())
}
