// Package broute routes HTTP requests to error-returning handlers and renders their results, and their errors,
// in the format the client asked for.
//
// # Overview
//
// A [Router] maps method, path pattern and optionally a host pattern to a [Target]. A [Dispatcher] resolves each
// request through the router, runs the middleware stages of the application, the route's groups and the route
// itself, invokes the target and lets the [Responder] render the result. All output is buffered, so anything that
// goes wrong before the response is flushed can still be turned into a clean error response.
//
// A minimal example:
//
//	rt := broute.NewRouter()
//	rt.Get("/items/{id:[0-9]+}", broute.Func(func(ctx context.Context, w broute.ResponseWriter, r *http.Request) (any, error) {
//	    item, err := db.GetItem(ctx, broute.Param(r, "id"))
//	    if err != nil {
//	        return nil, broute.NewPageNotFoundError("/")
//	    }
//	    return item, nil
//	})).Name("item")
//
//	http.ListenAndServe(":8080", broute.NewDispatcher(rt))
//
// # Patterns
//
// Placeholders are written as {name} or {name:regex}. The default regex matches one path segment. Optional trailing
// parts are enclosed in brackets and can nest: "/archive[/{year}[/{month}]]". Patterns are matched against the
// escaped path and placeholder values are unescaped once before they reach the handler.
//
// Static routes are matched before dynamic ones, and among equals the route registered first wins. Routes registered
// inside [Router.Domain] only match requests for their host pattern and take precedence over routes without one.
// HEAD requests fall back to GET routes. A path that matches routes of other methods only resolves to
// [MethodNotAllowed] with the union of their methods.
//
// Standard library handlers can be mounted below a prefix with [Router.Mount].
//
// # Outputs
//
// Handlers return a value and an error. A non-nil value is rendered as the "data" of an [Output] with code 0, an
// [*Output] is rendered as-is and a nil value leaves the response to the handler. Codes follow a simple convention:
// zero or positive for success, negative for failures. See [Success], [Fail] and [Message].
//
// The media type is negotiated from the Accept header. JSON, XML and HTML resolvers are registered by default,
// others can be added with [WithResolver], for example [PlainTextResolver]. [Display] writes plain text and
// [Download] serves a file as an attachment, with support for Range requests.
//
// # Errors
//
// Errors of the taxonomy carry a [Kind]. Kinds form a chain from specific to general, for example
// [KindUnauthorizedBasic] specializes [KindUnauthorized] which specializes [KindBadRequest]. Each kind has a
// default response, and [ErrorResponders] can override responses per kind, per error value or per error type. The
// most specific override wins.
//
// Errors outside the taxonomy, and panics, are rendered as a 500 with the generic message "Error" and logged with
// their chain of causes. With [WithDebug] the message, location, trace and causes are rendered too.
//
// # Middleware
//
// A [Stage] receives the next handler in the chain and decides whether and when to call it. Classic wrapping
// [Middleware] is accepted wherever stages are. A [ConditionalStage] runs only once its predicate holds: until
// then it is deferred while the rest of the chain proceeds. By default stages run in registration order; see
// [OrderStack] for the alternative.
//
// # Hooks
//
// [WithBeginHook], [WithRouteFoundHook], [WithEndHook] and [WithFlushHook] observe a request as it moves through
// the dispatcher, in that order.
package broute
