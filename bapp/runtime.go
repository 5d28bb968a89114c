package bapp

import (
	"net/http"

	"github.com/advdv/broute"
	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPTransport creates a RoundTripper that starts a client span for every outbound request and propagates the
// trace to the server.
func NewHTTPTransport(tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp), otelhttp.WithPropagators(prop))
}

// NewHTTPClient creates a client on the traced transport. Its timeout is the request timeout, so an outbound call
// never outlives the request that made it.
func NewHTTPClient(t http.RoundTripper, env Environment) *http.Client {
	return &http.Client{Transport: t, Timeout: env.requestTimeout()}
}

// Runtime gives handlers the app-scoped dependencies. Inject it into handler constructors:
//
//	type Handlers struct {
//	    rt *bapp.Runtime[Env]
//	}
//
//	func (h *Handlers) GetItem(ctx context.Context, w broute.ResponseWriter, r *http.Request) (any, error) {
//	    self, err := h.rt.URLFor("get-item", map[string]string{"id": broute.Param(r, "id")}, nil)
//	    // ...
//	}
type Runtime[E Environment] struct {
	env    E
	router *broute.Router
	client *http.Client
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, rt *broute.Router, client *http.Client) *Runtime[E] {
	return &Runtime[E]{env: env, router: rt, client: client}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E { return r.env }

// URLFor returns the URL of a named route, see [broute.Router.URLFor].
func (r *Runtime[E]) URLFor(name string, params, query map[string]string) (string, error) {
	return r.router.URLFor(name, params, query)
}

// NewRequest starts an outbound request to url on the app's traced client.
//
//	var item Item
//	err := h.rt.NewRequest("https://api.example.com/items/1").ToJSON(&item).Fetch(ctx)
func (r *Runtime[E]) NewRequest(url string) *requests.Builder {
	return requests.URL(url).Client(r.client)
}
