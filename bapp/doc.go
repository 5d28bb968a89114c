// Package bapp provides a batteries-included application around a [broute.Dispatcher].
//
// # Overview
//
// bapp handles the boilerplate of running a broute service: environment parsing, structured logging,
// OpenTelemetry tracing, prometheus metrics, request deadlines and graceful shutdown. A complete application can be
// created in a single call:
//
//	bapp.NewApp[Env](func(rt *broute.Router, h *Handlers) {
//	    rt.Get("/items", broute.Func(h.ListItems))
//	    rt.Get("/items/{id:[0-9]+}", broute.Func(h.GetItem)).Name("get-item")
//	},
//	    bapp.WithFx(fx.Provide(NewHandlers)),
//	).Run()
//
// # Environment Configuration
//
// Define your environment by embedding [BaseEnvironment]:
//
//	type Env struct {
//	    bapp.BaseEnvironment
//	    DatabaseURL string `env:"DATABASE_URL,required"`
//	}
//
// BaseEnvironment provides the following environment variables:
//
//	| Variable            | Required | Default  | Description                                      |
//	|---------------------|----------|----------|--------------------------------------------------|
//	| BR_PORT             | Yes      | -        | Port the HTTP server listens on                  |
//	| BR_SERVICE_NAME     | Yes      | -        | Service name for logging, tracing and metrics    |
//	| BR_HEALTH_PATH      | No       | /health  | Health check route, "-" disables it              |
//	| BR_METRICS_PATH     | No       | /metrics | Prometheus route, "-" disables it                |
//	| BR_LOG_LEVEL        | No       | info     | Log level (debug, info, warn, error)             |
//	| BR_DEBUG            | No       | false    | Add error details to error responses             |
//	| BR_BASE_PATH        | No       | -        | Prefix of every route                            |
//	| BR_BUFFER_LIMIT     | No       | -1       | Max buffered response size, -1 is unlimited      |
//	| BR_OTEL_EXPORTER    | No       | stdout   | Trace exporter: "stdout" or "none"               |
//	| BR_REQUEST_TIMEOUT  | No       | 30s      | Deadline of the request context                  |
//	| BR_ROUTE_CACHE_SIZE | No       | 1024     | Number of cached route resolutions, 0 disables   |
//
// # Runtime
//
// [Runtime] provides access to app-scoped dependencies and should be injected into handler constructors via fx:
//
//   - [Runtime.Env] returns the typed environment configuration
//   - [Runtime.URLFor] generates URLs for named routes
//   - [Runtime.NewRequest] starts a traced outbound request
//
// # Context
//
// Handlers receive a standard context.Context. Use the package-level functions to access request-scoped values:
//
//	func (h *Handlers) GetItem(ctx context.Context, w broute.ResponseWriter, r *http.Request) (any, error) {
//	    bapp.Log(ctx).Info("fetching item")
//	    bapp.Span(ctx).AddEvent("fetching item")
//	    // ...
//	}
//
//   - [Log] - trace-correlated zap logger
//   - [Span] - current OpenTelemetry span for custom instrumentation
//   - [RequestRemainingTime] - time left before the request deadline
//
// # Metrics
//
// The dispatcher records outcomes, durations and error kinds on a prometheus registry that also carries the Go
// runtime and process collectors. It is served on BR_METRICS_PATH and can be injected as *prometheus.Registry to
// register application metrics.
package bapp
