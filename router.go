package broute

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/advdv/broute/internal/routepattern"
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru"
	"github.com/samber/lo"
)

// DefaultCacheSize is the number of resolved outcomes the router keeps by default.
const DefaultCacheSize = 1024

// ErrRouteNotFound is returned when reversing a route name that is not registered.
var ErrRouteNotFound = errors.New("route not found")

// AnyMethods are the methods registered by [Router.Any].
var AnyMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// OutcomeStatus tags the result of resolving a request.
type OutcomeStatus int

const (
	NotFound OutcomeStatus = iota
	Found
	MethodNotAllowed
)

// String returns the status in snake case.
func (s OutcomeStatus) String() string {
	switch s {
	case Found:
		return "found"
	case MethodNotAllowed:
		return "method_not_allowed"
	default:
		return "not_found"
	}
}

// Outcome is the result of resolving a request. Route and Params are set when Found, Allowed is set when
// MethodNotAllowed. Outcomes may be shared between requests and must not be modified.
type Outcome struct {
	Status  OutcomeStatus
	Route   *Route
	Params  map[string]string
	Allowed []string
}

// RouterOption configures a [Router].
type RouterOption func(*table)

// WithBasePath prefixes every registered pattern and every generated path.
func WithBasePath(p string) RouterOption {
	return func(t *table) {
		if p = normalize(p); p != "/" {
			t.basePath = p
		}
	}
}

// WithCacheSize sets the number of resolved outcomes that are cached. Zero disables the cache.
func WithCacheSize(n int) RouterOption {
	return func(t *table) { t.cacheSize = n }
}

// table is the state shared by a router and the sub-routers of its groups and domains.
type table struct {
	basePath  string
	cacheSize int
	routes    []*Route
	named     map[string]*Route

	freezeOnce sync.Once
	frozen     atomic.Bool
	cache      *lru.Cache
	hasDomains bool
	domain     scope
	plain      scope
}

// scope holds the routes of one tier, split in static and dynamic routes.
type scope struct {
	static  map[string][]*Route
	dynamic []*Route
}

func (t *table) ensureNotFrozen() {
	if t.frozen.Load() {
		panic("broute: cannot register routes after the router is frozen")
	}
}

// Router registers routes and resolves requests to them. Sub-routers passed to [Router.Group] and [Router.Domain]
// callbacks share the route table of the router that created them.
type Router struct {
	tbl    *table
	prefix string
	domain string
	groups []*Group
}

// NewRouter inits an empty router.
func NewRouter(opts ...RouterOption) *Router {
	tbl := &table{cacheSize: DefaultCacheSize, named: map[string]*Route{}}
	for _, opt := range opts {
		opt(tbl)
	}

	return &Router{tbl: tbl, prefix: tbl.basePath}
}

// BasePath returns the path prefix shared by all routes.
func (rt *Router) BasePath() string { return rt.tbl.basePath }

// Map registers target for the methods on pattern. Malformed patterns panic.
func (rt *Router) Map(methods []string, pattern string, target Target) *Route {
	rt.tbl.ensureNotFrozen()

	if len(methods) == 0 {
		panic("broute: route " + pattern + " has no methods")
	}

	r := &Route{
		tbl:     rt.tbl,
		methods: lo.Uniq(lo.Map(methods, func(m string, _ int) string { return strings.ToUpper(m) })),
		pattern: join(rt.prefix, pattern),
		domain:  rt.domain,
		target:  target,
		groups:  append([]*Group(nil), rt.groups...),
	}

	var err error
	if r.path, err = compilePattern(r.pattern); err != nil {
		panic("broute: " + err.Error())
	}

	if r.domain != "" {
		if r.host, err = compileHostPattern(r.domain); err != nil {
			panic("broute: " + err.Error())
		}

		if dup := lo.Intersect(r.path.Pattern().Names(), r.host.Pattern().Names()); len(dup) > 0 {
			panic("broute: placeholder " + dup[0] + " appears in both domain and path of " + r.pattern)
		}
	}

	rt.tbl.routes = append(rt.tbl.routes, r)

	return r
}

func compilePattern(s string) (*routepattern.Matcher, error) {
	pat, err := routepattern.Parse(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse pattern")
	}

	return routepattern.Compile(pat)
}

// compileHostPattern compiles a domain pattern against lower-cased hosts. Only the literal text is folded.
func compileHostPattern(s string) (*routepattern.Matcher, error) {
	pat, err := routepattern.Parse(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse domain pattern")
	}

	return routepattern.Compile(pat.LowerLiterals())
}

// Get registers target for GET requests on pattern.
func (rt *Router) Get(pattern string, target Target) *Route {
	return rt.Map([]string{http.MethodGet}, pattern, target)
}

// Post registers target for POST requests on pattern.
func (rt *Router) Post(pattern string, target Target) *Route {
	return rt.Map([]string{http.MethodPost}, pattern, target)
}

// Put registers target for PUT requests on pattern.
func (rt *Router) Put(pattern string, target Target) *Route {
	return rt.Map([]string{http.MethodPut}, pattern, target)
}

// Patch registers target for PATCH requests on pattern.
func (rt *Router) Patch(pattern string, target Target) *Route {
	return rt.Map([]string{http.MethodPatch}, pattern, target)
}

// Delete registers target for DELETE requests on pattern.
func (rt *Router) Delete(pattern string, target Target) *Route {
	return rt.Map([]string{http.MethodDelete}, pattern, target)
}

// Options registers target for OPTIONS requests on pattern.
func (rt *Router) Options(pattern string, target Target) *Route {
	return rt.Map([]string{http.MethodOptions}, pattern, target)
}

// Any registers target for all of [AnyMethods].
func (rt *Router) Any(pattern string, target Target) *Route {
	return rt.Map(AnyMethods, pattern, target)
}

// Redirect registers a GET route that redirects to the given location.
func (rt *Router) Redirect(from, to string, status int) *Route {
	return rt.Get(from, Func(func(_ context.Context, w ResponseWriter, _ *http.Request) (any, error) {
		w.Header().Set("Location", to)
		w.WriteHeader(status)

		return nil, nil
	}))
}

// Group registers the routes added by fn under prefix. The callback runs once, immediately.
func (rt *Router) Group(prefix string, fn func(r *Router)) *Group {
	rt.tbl.ensureNotFrozen()

	g := &Group{tbl: rt.tbl, prefix: join(rt.prefix, prefix)}
	fn(&Router{
		tbl:    rt.tbl,
		prefix: g.prefix,
		domain: rt.domain,
		groups: append(append([]*Group(nil), rt.groups...), g),
	})

	return g
}

// Domain scopes the routes added by fn to hosts matching the pattern, e.g. "{tenant}.example.com".
func (rt *Router) Domain(host string, fn func(r *Router)) {
	rt.tbl.ensureNotFrozen()

	fn(&Router{
		tbl:    rt.tbl,
		prefix: rt.prefix,
		domain: host,
		groups: rt.groups,
	})
}

// Routes returns all routes in registration order.
func (rt *Router) Routes() []*Route { return rt.tbl.routes }

// Route returns the route with the given name.
func (rt *Router) Route(name string) (*Route, bool) {
	r, ok := rt.tbl.named[name]
	return r, ok
}

// Freeze builds the lookup structures. It is called by the first [Router.Resolve], registering routes afterwards
// panics.
func (rt *Router) Freeze() {
	rt.tbl.freeze()
}

func (t *table) freeze() {
	t.freezeOnce.Do(func() {
		t.frozen.Store(true)

		if t.cacheSize > 0 {
			t.cache, _ = lru.New(t.cacheSize)
		}

		t.domain.static, t.plain.static = map[string][]*Route{}, map[string][]*Route{}
		for _, r := range t.routes {
			sc := &t.plain
			if r.host != nil {
				sc, t.hasDomains = &t.domain, true
			}

			if pat := r.path.Pattern(); pat.IsStatic() {
				sc.static[pat.String()] = append(sc.static[pat.String()], r)
			} else {
				sc.dynamic = append(sc.dynamic, r)
			}
		}
	})
}

// Resolve resolves the request triple into an outcome. The path is expected in its escaped form; placeholder values
// are unescaped. Domain-scoped routes take precedence over others, static routes over dynamic ones, and earlier
// registrations over later ones. HEAD requests fall back to GET routes.
func (rt *Router) Resolve(method, path, host string) Outcome {
	t := rt.tbl
	t.freeze()

	method = strings.ToUpper(method)
	path = "/" + strings.Trim(path, "/")
	host = normalizeHost(host)
	if !t.hasDomains {
		host = ""
	}

	key := method + " " + host + path
	if t.cache != nil {
		if v, ok := t.cache.Get(key); ok {
			return v.(Outcome) //nolint:forcetypeassert
		}
	}

	out := t.match(method, host, path)
	if t.cache != nil {
		t.cache.Add(key, out)
	}

	return out
}

func (t *table) match(method, host, path string) Outcome {
	methods := []string{method}
	if method == http.MethodHead {
		methods = append(methods, http.MethodGet)
	}

	var allowed [2][]string
	for i, m := range methods {
		for j, sc := range []*scope{&t.domain, &t.plain} {
			r, vals, al := sc.match(m, host, path)
			if r != nil {
				return Outcome{Status: Found, Route: r, Params: unescapeAll(vals)}
			}

			if i == 0 {
				allowed[j] = al
			}
		}
	}

	for _, al := range allowed {
		if len(al) > 0 {
			return Outcome{Status: MethodNotAllowed, Allowed: lo.Uniq(al)}
		}
	}

	return Outcome{Status: NotFound}
}

// match returns the first route accepting the method, or the methods of all routes that matched the path.
func (sc *scope) match(method, host, path string) (*Route, map[string]string, []string) {
	var allowed []string
	for _, routes := range [][]*Route{sc.static[path], sc.dynamic} {
		for _, r := range routes {
			vals, ok := r.match(host, path)
			if !ok {
				continue
			}

			if r.accepts(method) {
				return r, vals, nil
			}

			allowed = append(allowed, r.methods...)
		}
	}

	return nil, nil, allowed
}

func unescapeAll(vals map[string]string) map[string]string {
	for k, v := range vals {
		if uv, err := url.PathUnescape(v); err == nil {
			vals[k] = uv
		}
	}

	return vals
}

// normalizeHost lower-cases the host and strips the port.
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	return strings.ToLower(host)
}

// URLFor builds the url of a named route. The most specific expansion of optional segments for which params holds
// every placeholder is used. Domain-scoped routes render as "//host/path". The query is appended sorted by key.
func (rt *Router) URLFor(name string, params, query map[string]string) (string, error) {
	r, ok := rt.tbl.named[name]
	if !ok {
		return "", errors.Wrapf(ErrRouteNotFound, "no route named %q, got: %v", name, lo.Keys(rt.tbl.named))
	}

	s, err := r.buildPath(params)
	if err != nil {
		return "", err
	}

	if r.host != nil {
		host, err := routepattern.Build(r.host.Pattern(), params)
		if err != nil {
			return "", errors.Wrapf(err, "failed to build domain of %q", name)
		}

		s = "//" + host + s
	}

	return s + encodeQuery(query), nil
}

// PathFor builds the path of a named route, base path included, without the domain.
func (rt *Router) PathFor(name string, params, query map[string]string) (string, error) {
	r, ok := rt.tbl.named[name]
	if !ok {
		return "", errors.Wrapf(ErrRouteNotFound, "no route named %q", name)
	}

	s, err := r.buildPath(params)
	if err != nil {
		return "", err
	}

	return s + encodeQuery(query), nil
}

// RelativePathFor builds the path of a named route relative to the base path.
func (rt *Router) RelativePathFor(name string, params, query map[string]string) (string, error) {
	s, err := rt.PathFor(name, params, query)
	if err != nil {
		return "", err
	}

	if bp := rt.tbl.basePath; bp != "" {
		s = strings.TrimPrefix(s, bp)
		if s == "" || strings.HasPrefix(s, "?") {
			s = "/" + s
		}
	}

	return s, nil
}

func (r *Route) buildPath(params map[string]string) (string, error) {
	escaped := make(map[string]string, len(params))
	for k, v := range params {
		escaped[k] = url.PathEscape(v)
	}

	s, err := routepattern.Build(r.path.Pattern(), escaped)
	if err != nil {
		return "", errors.Wrapf(err, "failed to build %q", r.name)
	}

	return s, nil
}

func encodeQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}

	vals := url.Values{}
	for k, v := range query {
		vals.Set(k, v)
	}

	return "?" + vals.Encode()
}
