package bapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/advdv/broute"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Names of the routes the server registers itself.
const (
	HealthRouteName  = "bapp.health"
	MetricsRouteName = "bapp.metrics"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler     func(http.ResponseWriter, *http.Request)
	DispatcherOptions []broute.DispatcherOption
}

// NewRouter creates the router with the base path and cache size from the environment.
func NewRouter(env Environment) *broute.Router {
	return broute.NewRouter(
		broute.WithBasePath(env.basePath()),
		broute.WithCacheSize(env.routeCacheSize()),
	)
}

// NewResponder creates the responder, with error details when BR_DEBUG is set.
func NewResponder(env Environment) *broute.Responder {
	return broute.NewResponder(broute.WithDebug(env.debug()))
}

// DispatcherParams holds the dependencies for creating the dispatcher.
type DispatcherParams struct {
	fx.In

	Env             Environment
	Router          *broute.Router
	Responder       *broute.Responder
	Logger          *zap.Logger
	Metrics         *broute.Metrics
	Services        *broute.ServiceRegistry
	ErrorResponders *broute.ErrorResponders `optional:"true"`
}

// NewDispatcher creates the dispatcher for the app's router. Options from [ServerConfig] are applied last.
func NewDispatcher(params DispatcherParams, cfg ServerConfig) *broute.Dispatcher {
	opts := []broute.DispatcherOption{
		broute.WithResponder(params.Responder),
		broute.WithLogger(broute.NewZapLogger(params.Logger)),
		broute.WithServices(params.Services),
		broute.WithMetrics(params.Metrics),
		broute.WithBufferLimit(params.Env.bufferLimit()),
	}
	if params.ErrorResponders != nil {
		opts = append(opts, broute.WithErrorResponders(params.ErrorResponders))
	}

	return broute.NewDispatcher(params.Router, append(opts, cfg.DispatcherOptions...)...)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Dispatcher *broute.Dispatcher
	Registry   *prometheus.Registry
	Logger     *zap.Logger
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates an HTTP server with all stages and routing configured.
func NewServer(params ServerParams, cfg ServerConfig) *http.Server {
	tc := TimeoutConfig{RequestTimeout: params.Env.requestTimeout()}

	params.Dispatcher.Add(
		withLogger(params.Logger),
		WithRequestDeadline(tc),
	)

	rt := params.Dispatcher.Router()

	// Health and metrics are not traced to avoid noisy traces from probes and scrapers.
	var untraced []string
	if healthPath := params.Env.healthPath(); enabled(healthPath) {
		healthHandler := cfg.HealthHandler
		if healthHandler == nil {
			healthHandler = defaultHealthHandler
		}

		rt.Get(healthPath, broute.Func(func(_ context.Context, w broute.ResponseWriter, r *http.Request) (any, error) {
			healthHandler(w, r)
			return nil, nil
		})).Name(HealthRouteName)
		untraced = append(untraced, HealthRouteName)
	}

	if metricsPath := params.Env.metricsPath(); enabled(metricsPath) {
		rt.Mount(metricsPath, promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{Registry: params.Registry})).
			Name(MetricsRouteName)
		untraced = append(untraced, MetricsRouteName)
	}

	handler := withTracing(params.TracerProv, params.Propagator, params.Env.serviceName(), rt, untraced...)(params.Dispatcher)

	readHeaderTimeout, readTimeout, writeTimeout, idleTimeout := tc.ServerTimeouts()

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Env.port()),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// startServerHook registers lifecycle hooks for the HTTP server.
func startServerHook(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

// enabled reports whether a configured path is in use. "-" disables it, since an empty value takes the default.
func enabled(path string) bool {
	return path != "" && path != "-"
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
