package broute

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// HandlerFunc is the signature of route targets. A non-nil result is rendered by the responder as the "data" of a
// successful output, an [*Output] result is rendered as-is. A nil result means the handler wrote the response
// itself.
type HandlerFunc func(ctx context.Context, w ResponseWriter, r *http.Request) (any, error)

// BareHandler describes how middleware stages serve HTTP requests.
type BareHandler interface {
	ServeBareBHTTP(w ResponseWriter, r *http.Request) error
}

// BareHandlerFunc allow casting a function to an implementation of [BareHandler].
type BareHandlerFunc func(ResponseWriter, *http.Request) error

// ServeBareBHTTP implements the [BareHandler] interface.
func (f BareHandlerFunc) ServeBareBHTTP(w ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// Target identifies what a route invokes: either a function or a method of a named service.
type Target struct {
	fn     HandlerFunc
	token  string
	method string
}

// Func targets a function directly.
func Func(fn HandlerFunc) Target {
	if fn == nil {
		panic("broute: nil handler function")
	}

	return Target{fn: fn}
}

// Service targets the method of the service registered under token.
func Service(token, method string) Target {
	if token == "" || method == "" {
		panic("broute: service target requires a token and a method, got: " + token + ":" + method)
	}

	return Target{token: token, method: method}
}

// ParseTarget parses the "Identifier:method" notation into a service target.
func ParseTarget(s string) (Target, error) {
	token, method, ok := strings.Cut(s, ":")
	if !ok || token == "" || method == "" || strings.Contains(method, ":") {
		return Target{}, errors.Errorf("invalid target %q, expected \"Identifier:method\"", s)
	}

	return Target{token: token, method: method}, nil
}

// MustParseTarget is like [ParseTarget] but panics on error.
func MustParseTarget(s string) Target {
	t, err := ParseTarget(s)
	if err != nil {
		panic("broute: " + err.Error())
	}

	return t
}

// IsService reports whether the target names a service method.
func (t Target) IsService() bool { return t.fn == nil }

// String returns the target as "token:method" for services, or "func".
func (t Target) String() string {
	if t.IsService() {
		return t.token + ":" + t.method
	}

	return "func"
}

// resolve returns the callable for the target.
func (t Target) resolve(services ServiceResolver) (HandlerFunc, error) {
	if !t.IsService() {
		return t.fn, nil
	}

	if services == nil {
		return nil, errors.Errorf("no service resolver configured for target %q", t)
	}

	fn, err := services.ResolveService(t.token, t.method)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve target %q", t)
	}

	return fn, nil
}

// ServiceResolver resolves a named service method into a handler function.
type ServiceResolver interface {
	ResolveService(token, method string) (HandlerFunc, error)
}

// ServiceRegistry is a [ServiceResolver] that looks up methods on registered values.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewServiceRegistry inits an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: map[string]any{}}
}

// Register makes svc available under token.
func (sr *ServiceRegistry) Register(token string, svc any) *ServiceRegistry {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.services[token] = svc

	return sr
}

var handlerFuncType = reflect.TypeOf((*func(context.Context, ResponseWriter, *http.Request) (any, error))(nil)).Elem()

// ResolveService implements [ServiceResolver].
func (sr *ServiceRegistry) ResolveService(token, method string) (HandlerFunc, error) {
	sr.mu.RLock()
	svc, ok := sr.services[token]
	sr.mu.RUnlock()

	if !ok {
		return nil, errors.Errorf("no service registered as %q", token)
	}

	m := reflect.ValueOf(svc).MethodByName(method)
	if !m.IsValid() {
		return nil, errors.Errorf("service %q (%T) has no method %q", token, svc, method)
	}

	if !m.Type().ConvertibleTo(handlerFuncType) {
		return nil, errors.Errorf("method %q of service %q has signature %s", method, token, m.Type())
	}

	fn, _ := m.Convert(handlerFuncType).Interface().(func(context.Context, ResponseWriter, *http.Request) (any, error))

	return fn, nil
}
