package broute

import (
	"context"
	"net/http"
)

type ctxKey int

const ctxKeyRoute ctxKey = iota

// RouteContext is the resolved identity of a request. It is attached to the request context before the chain runs
// and must be treated as read-only.
type RouteContext struct {
	Route    *Route
	Params   map[string]string
	Services ServiceResolver
	router   *Router
}

// URLFor builds a url through the router that resolved the request.
func (rc *RouteContext) URLFor(name string, params, query map[string]string) (string, error) {
	return rc.router.URLFor(name, params, query)
}

// FromContext returns the route context of a dispatched request.
func FromContext(ctx context.Context) (*RouteContext, bool) {
	rc, ok := ctx.Value(ctxKeyRoute).(*RouteContext)
	return rc, ok
}

// Param returns a decoded path parameter of the dispatched request, or an empty string.
func Param(r *http.Request, name string) string {
	if rc, ok := FromContext(r.Context()); ok {
		return rc.Params[name]
	}

	return ""
}

// withRouteContext returns a copy of r that carries rc. Parameters are also exposed through r.PathValue.
func withRouteContext(r *http.Request, rc *RouteContext) *http.Request {
	r = r.WithContext(context.WithValue(r.Context(), ctxKeyRoute, rc))
	for k, v := range rc.Params {
		r.SetPathValue(k, v)
	}

	return r
}
