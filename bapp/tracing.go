package bapp

import (
	"context"
	"net/http"

	"github.com/advdv/broute"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// NewTracerProvider creates the OpenTelemetry TracerProvider. BR_OTEL_EXPORTER selects "stdout" or "none"; with
// "none" spans are still recorded, so trace ids reach the logs, but nothing is exported. It is shut down with the
// app.
func NewTracerProvider(lc fx.Lifecycle, env Environment) (trace.TracerProvider, error) {
	exporter, err := newExporter(env.otelExporter())
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(newResource(env.serviceName()))}
	if exporter != nil {
		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	lc.Append(fx.StopHook(func(ctx context.Context) error { return tp.Shutdown(ctx) }))

	return tp, nil
}

// NewPropagator creates the W3C TraceContext + Baggage composite propagator.
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

func newExporter(kind string) (sdktrace.SpanExporter, error) {
	switch kind {
	case "stdout", "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil, nil
	default:
		return nil, errors.Errorf("unsupported BR_OTEL_EXPORTER: %q (supported: stdout, none)", kind)
	}
}

func newResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
}

// withTracing wraps the dispatcher in an otelhttp handler. Spans are named after the method and the pattern of
// the route the request resolves to, so that span names stay low in cardinality. Requests for the routes named in
// untraced create no spans.
func withTracing(
	tp trace.TracerProvider,
	prop propagation.TextMapPropagator,
	serviceName string,
	rt *broute.Router,
	untraced ...string,
) func(http.Handler) http.Handler {
	route := func(r *http.Request) *broute.Route {
		return rt.Resolve(r.Method, r.URL.EscapedPath(), r.Host).Route
	}

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithPropagators(prop),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if rr := route(r); rr != nil {
					return r.Method + " " + rr.Pattern()
				}

				return r.Method
			}),
			otelhttp.WithFilter(func(r *http.Request) bool {
				rr := route(r)
				return rr == nil || !lo.Contains(untraced, rr.GetName())
			}),
		)
	}
}
