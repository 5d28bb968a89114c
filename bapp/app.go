package bapp

import (
	"context"
	"net/http"

	"github.com/advdv/broute"
	"go.uber.org/fx"
)

// App is a dispatcher served over HTTP, with its dependencies resolved by fx.
type App struct {
	app *fx.App
}

// AppConfig is assembled from the [Option] values passed to [NewApp].
type AppConfig struct {
	ServerConfig
	FxOptions []fx.Option
}

// Option changes the [AppConfig].
type Option func(*AppConfig)

// WithFx appends fx options, typically providers for handlers and services.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler replaces the handler of the health route, which answers 200 by default.
func WithHealthHandler(h func(http.ResponseWriter, *http.Request)) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// WithDispatcherOptions configures the dispatcher beyond what the environment sets, for example the middleware
// order or a route found hook.
func WithDispatcherOptions(opts ...broute.DispatcherOption) Option {
	return func(c *AppConfig) {
		c.DispatcherOptions = append(c.DispatcherOptions, opts...)
	}
}

// FxOptions returns the options that make up the DI graph of [NewApp]. Options given with [WithFx] come last, so
// they can decorate anything provided here.
func FxOptions[E Environment](routing any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return append([]fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E](), func(e E) Environment { return e }),
		telemetryModule,
		routingModule,
		fx.Supply(cfg.ServerConfig),
		fx.Provide(NewServer, NewRuntime[E]),
		fx.Invoke(startServerHook),
		fx.Invoke(routing),
	}, cfg.FxOptions...)
}

// telemetryModule provides logging, tracing and metrics.
var telemetryModule = fx.Module("telemetry",
	fx.Provide(
		NewLogger,
		NewTracerProvider,
		NewPropagator,
		NewHTTPTransport,
		NewHTTPClient,
		NewRegistry,
		NewMetrics,
	),
)

// routingModule provides the router and everything the dispatcher needs.
var routingModule = fx.Module("routing",
	fx.Provide(
		NewRouter,
		NewResponder,
		broute.NewServiceRegistry,
		NewDispatcher,
	),
)

// NewApp builds the app. The routing function is invoked by fx, so its parameters may be any provided type. It
// usually takes the *broute.Router and the handlers:
//
//	bapp.NewApp[Env](func(rt *broute.Router, h *Handlers) {
//	    rt.Get("/items/{id}", broute.Func(h.GetItem)).Name("get-item")
//	},
//	    bapp.WithFx(fx.Provide(NewHandlers)),
//	).Run()
func NewApp[E Environment](routing any, opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions[E](routing, opts...)...),
	}
}

// Run serves until the process receives SIGINT or SIGTERM.
func (a *App) Run() {
	a.app.Run()
}

// Start serves until ctx is done, then shuts down within the fx stop timeout.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}
