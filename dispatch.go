package broute

import (
	"fmt"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// MiddlewareOrder decides how the stages of one level are ordered in the chain.
type MiddlewareOrder int

const (
	// OrderRegistration runs every level in the order stages were registered.
	OrderRegistration MiddlewareOrder = iota
	// OrderStack runs application and route stages last-registered-first, group stages in registration order.
	OrderStack
)

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithResponder sets the responder that renders outputs and errors.
func WithResponder(rs *Responder) DispatcherOption {
	return func(d *Dispatcher) { d.responder = rs }
}

// WithLogger configures the logger for internal errors.
func WithLogger(l Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logs = l }
}

// WithServices sets the resolver for service targets.
func WithServices(sr ServiceResolver) DispatcherOption {
	return func(d *Dispatcher) { d.services = sr }
}

// WithMiddlewareOrder sets how stages are ordered within a level.
func WithMiddlewareOrder(o MiddlewareOrder) DispatcherOption {
	return func(d *Dispatcher) { d.order = o }
}

// WithErrorResponders overrides the default responses for errors.
func WithErrorResponders(m *ErrorResponders) DispatcherOption {
	return func(d *Dispatcher) { d.errs = m }
}

// WithMetrics records every dispatch.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithBufferLimit limits the size of buffered response bodies. Zero or less means unlimited.
func WithBufferLimit(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if d.bufLimit = n; n <= 0 {
			d.bufLimit = -1
		}
	}
}

// WithRouteFoundHook calls fn for every request that resolved to a route, before the chain runs.
func WithRouteFoundHook(fn func(rc *RouteContext, r *http.Request)) DispatcherOption {
	return func(d *Dispatcher) { d.onFound = fn }
}

// WithBeginHook calls fn with every request before it is resolved. The request fn returns is dispatched instead,
// so fn may rewrite it.
func WithBeginHook(fn func(r *http.Request) *http.Request) DispatcherOption {
	return func(d *Dispatcher) { d.onBegin = fn }
}

// WithEndHook calls fn once the response is complete, errors included, before it is finalized. The response may
// still be changed.
func WithEndHook(fn func(w ResponseWriter, r *http.Request)) DispatcherOption {
	return func(d *Dispatcher) { d.onEnd = fn }
}

// WithFlushHook calls fn right before [Dispatcher.ServeHTTP] flushes the finalized response to the client. Headers
// may still be changed, the body should not. Detached responses from [Dispatcher.Dispatch] are never flushed by the
// dispatcher.
func WithFlushHook(fn func(w ResponseWriter, r *http.Request)) DispatcherOption {
	return func(d *Dispatcher) { d.onFlush = fn }
}

// Dispatcher turns requests into responses. It resolves the request through the router, runs the stages of the
// application, the route's groups and the route, invokes the target and renders its result. Every error that
// reaches it is rendered by the responder that is closest to the error.
type Dispatcher struct {
	router    *Router
	responder *Responder
	errs      *ErrorResponders
	services  ServiceResolver
	logs      Logger
	metrics   *Metrics
	order     MiddlewareOrder
	bufLimit  int
	onFound   func(rc *RouteContext, r *http.Request)
	onBegin   func(r *http.Request) *http.Request
	onEnd     func(w ResponseWriter, r *http.Request)
	onFlush   func(w ResponseWriter, r *http.Request)

	stages   []Stage
	started  atomic.Bool
	prepare  sync.Once
	handlers map[*Route]HandlerFunc
}

// NewDispatcher inits a dispatcher for the routes of rt.
func NewDispatcher(rt *Router, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{router: rt, logs: NewStdLogger(nil), bufLimit: -1}
	for _, opt := range opts {
		opt(d)
	}

	if d.responder == nil {
		d.responder = NewResponder()
	}

	return d
}

// Router returns the router the dispatcher resolves with.
func (d *Dispatcher) Router() *Router { return d.router }

// Responder returns the responder that renders outputs and errors.
func (d *Dispatcher) Responder() *Responder { return d.responder }

// Add registers application-level stages. They run for every request, also those that resolved to no route.
func (d *Dispatcher) Add(stages ...Stage) *Dispatcher {
	if d.started.Load() {
		panic("broute: cannot add stages after the first dispatch")
	}

	d.stages = append(d.stages, stages...)

	return d
}

// Use registers application-level middleware.
func (d *Dispatcher) Use(mws ...Middleware) *Dispatcher {
	for _, mw := range mws {
		d.Add(FromMiddleware(mw))
	}

	return d
}

// Prepare freezes the router and resolves every target. It runs once, on the first dispatch, unless called
// earlier. Targets that cannot be resolved panic.
func (d *Dispatcher) Prepare() {
	d.prepare.Do(func() {
		d.started.Store(true)
		d.router.Freeze()

		d.handlers = make(map[*Route]HandlerFunc, len(d.router.Routes()))
		for _, r := range d.router.Routes() {
			fn, err := r.Target().resolve(d.services)
			if err != nil {
				panic(fmt.Sprintf("broute: route %s: %v", r.Pattern(), err))
			}

			d.handlers[r] = fn
		}
	})
}

// Dispatch serves r into a detached response.
func (d *Dispatcher) Dispatch(r *http.Request) *Response {
	resp := NewResponse(d.bufLimit)
	r = d.serve(resp, r)
	resp.finalize(r)

	return resp
}

// ServeHTTP implements [http.Handler].
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, d.bufLimit)
	defer resp.Free()

	r = d.serve(resp, r)
	resp.finalize(r)

	if d.onFlush != nil {
		d.onFlush(resp, r)
	}

	if err := resp.FlushBuffer(); err != nil {
		d.logs.LogImplicitFlushError(err)
	}
}

// serve runs the request through the chain into w. It returns the request as seen by the begin hook.
func (d *Dispatcher) serve(w *Response, r *http.Request) *http.Request {
	d.Prepare()
	start := time.Now()

	if d.onBegin != nil {
		r = d.onBegin(r)
	}

	base := r

	out := d.router.Resolve(r.Method, r.URL.EscapedPath(), r.Host)

	var (
		terminal BareHandler
		label    string
	)

	switch out.Status {
	case Found:
		rc := &RouteContext{
			Route:    out.Route,
			Params:   maps.Clone(out.Params),
			Services: d.services,
			router:   d.router,
		}

		label = out.Route.Pattern()
		trace.SpanFromContext(r.Context()).SetAttributes(semconv.HTTPRoute(label))

		r = withRouteContext(r, rc)
		if d.onFound != nil {
			d.onFound(rc, r)
		}

		terminal = d.invoke(d.handlers[out.Route])
	case MethodNotAllowed:
		terminal = fail(NewMethodNotAllowedError(out.Allowed))
	default:
		terminal = fail(NewPageNotFoundError(homeURL(r, d.router.BasePath())))
	}

	if err := d.run(d.chain(out.Route, terminal), w, r); err != nil {
		d.respondError(w, r, err)
	}

	if d.onEnd != nil {
		d.onEnd(w, r)
	}

	d.metrics.observe(out.Status, label, w.StatusCode(), time.Since(start))

	return base
}

// invoke adapts a target into the terminal of the chain.
func (d *Dispatcher) invoke(fn HandlerFunc) BareHandler {
	return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
		v, err := fn(r.Context(), w, r)
		if err != nil {
			return err
		}

		if v == nil {
			return nil
		}

		return d.responder.RespondPayload(w, r, v)
	})
}

func fail(err error) BareHandler {
	return BareHandlerFunc(func(ResponseWriter, *http.Request) error { return err })
}

// chain composes the stages of the application, the groups of route and route itself.
func (d *Dispatcher) chain(route *Route, terminal BareHandler) *Chain {
	var groups, own []Stage
	if route != nil {
		for _, g := range route.Groups() {
			groups = append(groups, g.Stages()...)
		}

		own = route.Stages()
	}

	c := NewChain(terminal)
	switch d.order {
	case OrderStack:
		c.AddMany(reversed(d.stages)...).AddMany(groups...).AddMany(reversed(own)...)
	default:
		c.AddMany(d.stages...).AddMany(groups...).AddMany(own...)
	}

	return c
}

func reversed(ss []Stage) []Stage {
	out := make([]Stage, len(ss))
	for i, s := range ss {
		out[len(ss)-1-i] = s
	}

	return out
}

// run serves the chain and turns panics into errors.
func (d *Dispatcher) run(c *Chain, w ResponseWriter, r *http.Request) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}

		if v == http.ErrAbortHandler { //nolint:errorlint
			panic(v)
		}

		if perr, ok := v.(error); ok {
			err = errors.WithStack(errors.Wrap(perr, "panic"))
		} else {
			err = errors.Newf("panic: %v", v)
		}
	}()

	return c.ServeBareBHTTP(w, r)
}

// respondError renders err. Internal errors and errors outside the taxonomy are logged.
func (d *Dispatcher) respondError(w *Response, r *http.Request, err error) {
	kind := KindOf(err)
	d.metrics.observeError(kind)

	if kind == KindUnknown || kind == KindInternal {
		d.logs.LogInternalError(err, chainMessages(err))
		trace.SpanFromContext(r.Context()).RecordError(err)
	}

	if w.flushed {
		return
	}

	w.Reset()

	if rerr := d.errorResponder(err).RespondError(d.responder, w, r, err); rerr != nil {
		d.logs.LogInternalError(rerr, chainMessages(rerr))

		w.Reset()
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (d *Dispatcher) errorResponder(err error) ErrorResponder {
	if er, ok := d.errs.lookup(err); ok {
		return er
	}

	return DefaultErrorResponder(KindOf(err))
}

// homeURL returns the root of the site the request was made to.
func homeURL(r *http.Request, basePath string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return scheme + "://" + r.Host + basePath
}
