package broute

import (
	"strings"

	"github.com/advdv/broute/internal/routepattern"
	"github.com/samber/lo"
)

// Route binds methods and a pattern to a target. Routes are created through the [Router] and are read-only once
// the router is frozen.
type Route struct {
	tbl     *table
	methods []string
	pattern string
	domain  string
	target  Target
	name    string
	stages  []Stage
	groups  []*Group

	path *routepattern.Matcher
	host *routepattern.Matcher
}

// Methods returns the upper-cased methods the route accepts.
func (r *Route) Methods() []string { return r.methods }

// Pattern returns the full path pattern, group prefixes and base path included.
func (r *Route) Pattern() string { return r.pattern }

// Domain returns the host pattern, or an empty string.
func (r *Route) Domain() string { return r.domain }

// Target returns what the route invokes.
func (r *Route) Target() Target { return r.target }

// GetName returns the name of the route, or an empty string.
func (r *Route) GetName() string { return r.name }

// Groups returns the enclosing groups, outermost first.
func (r *Route) Groups() []*Group { return r.groups }

// Stages returns the route-scoped stages in registration order.
func (r *Route) Stages() []Stage { return r.stages }

// Name names the route for reverse routing. Names must be unique.
func (r *Route) Name(name string) *Route {
	r.tbl.ensureNotFrozen()

	if _, exists := r.tbl.named[name]; exists {
		panic("broute: route with name " + name + " already exists")
	}

	r.name = name
	r.tbl.named[name] = r

	return r
}

// Add appends route-scoped stages. They run closest to the target.
func (r *Route) Add(stages ...Stage) *Route {
	r.tbl.ensureNotFrozen()
	r.stages = append(r.stages, stages...)

	return r
}

// Use appends classic wrapping middleware as route-scoped stages.
func (r *Route) Use(mws ...Middleware) *Route {
	return r.Add(lo.Map(mws, func(mw Middleware, _ int) Stage { return FromMiddleware(mw) })...)
}

func (r *Route) accepts(method string) bool {
	return lo.Contains(r.methods, method)
}

// match matches the host and path, returning the raw placeholder values.
func (r *Route) match(host, path string) (map[string]string, bool) {
	vals, ok := r.path.Match(path)
	if !ok {
		return nil, false
	}

	if r.host == nil {
		return vals, true
	}

	hvals, ok := r.host.Match(host)
	if !ok {
		return nil, false
	}

	for k, v := range hvals {
		vals[k] = v
	}

	return vals, true
}

// Group is a set of routes sharing a path prefix and stages.
type Group struct {
	tbl    *table
	prefix string
	stages []Stage
}

// Prefix returns the full prefix of the group.
func (g *Group) Prefix() string { return g.prefix }

// Stages returns the group-scoped stages in registration order.
func (g *Group) Stages() []Stage { return g.stages }

// Add appends stages that run for every route in the group.
func (g *Group) Add(stages ...Stage) *Group {
	g.tbl.ensureNotFrozen()
	g.stages = append(g.stages, stages...)

	return g
}

// Use appends classic wrapping middleware as group-scoped stages.
func (g *Group) Use(mws ...Middleware) *Group {
	return g.Add(lo.Map(mws, func(mw Middleware, _ int) Stage { return FromMiddleware(mw) })...)
}

// normalize gives a pattern a leading slash and strips trailing slashes. The root pattern stays "/".
func normalize(p string) string {
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return p
}

// join concatenates a normalized prefix and a pattern.
func join(prefix, p string) string {
	p = normalize(p)
	if prefix == "" || prefix == "/" {
		return p
	}

	if p == "/" {
		return prefix
	}

	return prefix + p
}
