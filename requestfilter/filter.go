// Package requestfilter provides stages that run a resolver, for example authentication, only for requests
// selected by a set of rules.
package requestfilter

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/advdv/broute"
	"github.com/samber/lo"
)

// Rule decides whether a request should be filtered.
type Rule interface {
	Check(r *http.Request) bool
}

// RuleFunc allows casting a function to a [Rule].
type RuleFunc func(r *http.Request) bool

// Check implements [Rule].
func (f RuleFunc) Check(r *http.Request) bool { return f(r) }

// Resolver inspects a request that was selected by the rules. It may return a derived request for the rest of the
// chain, or an error to abort it.
type Resolver interface {
	Resolve(r *http.Request) (*http.Request, error)
}

// ResolverFunc allows casting a function to a [Resolver].
type ResolverFunc func(r *http.Request) (*http.Request, error)

// Resolve implements [Resolver].
func (f ResolverFunc) Resolve(r *http.Request) (*http.Request, error) { return f(r) }

// Filter is a stage that runs its resolver for every request that passes all rules.
type Filter struct {
	rules    []Rule
	resolver Resolver
	prepare  func(r *http.Request)
}

// New inits a filter. Without rules every request is resolved.
func New(res Resolver, rules ...Rule) *Filter {
	return &Filter{resolver: res, rules: rules}
}

// AddRule adds a rule. All rules must pass for a request to be resolved.
func (f *Filter) AddRule(rule Rule) *Filter {
	f.rules = append(f.rules, rule)
	return f
}

// Prepare registers a function that is called with every request before the rules are checked.
func (f *Filter) Prepare(fn func(r *http.Request)) *Filter {
	f.prepare = fn
	return f
}

// Should reports whether r passes all rules.
func (f *Filter) Should(r *http.Request) bool {
	return lo.EveryBy(f.rules, func(rule Rule) bool { return rule.Check(r) })
}

// Process implements [broute.Stage].
func (f *Filter) Process(w broute.ResponseWriter, r *http.Request, next broute.BareHandler) error {
	if f.prepare != nil {
		f.prepare(r)
	}

	if !f.Should(r) {
		return next.ServeBareBHTTP(w, r)
	}

	r, err := f.resolver.Resolve(r)
	if err != nil {
		return err
	}

	return next.ServeBareBHTTP(w, r)
}

// MethodRule passes requests whose method is not excluded.
type MethodRule struct {
	excludes []string
}

// NewMethodRule excludes the given methods. Without arguments OPTIONS is excluded, so preflight requests are never
// filtered.
func NewMethodRule(excludes ...string) *MethodRule {
	if len(excludes) == 0 {
		excludes = []string{http.MethodOptions}
	}

	return &MethodRule{excludes: lo.Map(excludes, func(m string, _ int) string { return strings.ToUpper(m) })}
}

// Check implements [Rule].
func (mr *MethodRule) Check(r *http.Request) bool {
	return !lo.Contains(mr.excludes, r.Method)
}

// PathRule passes requests below one of the included paths, unless they are below an excluded path. A path covers
// itself and everything below it, so "/admin" covers "/admin" and "/admin/users" but not "/administrator".
type PathRule struct {
	includes []string
	excludes []string
}

// NewPathRule inits a rule for the included and excluded path prefixes.
func NewPathRule(includes, excludes []string) *PathRule {
	return &PathRule{includes: includes, excludes: excludes}
}

var slashes = regexp.MustCompile(`/+`)

// Check implements [Rule].
func (pr *PathRule) Check(r *http.Request) bool {
	p := slashes.ReplaceAllString(r.URL.Path, "/")

	if lo.SomeBy(pr.excludes, func(prefix string) bool { return covers(prefix, p) }) {
		return false
	}

	return lo.SomeBy(pr.includes, func(prefix string) bool { return covers(prefix, p) })
}

func covers(prefix, p string) bool {
	prefix = strings.TrimRight(prefix, "/")

	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

var (
	_ broute.Stage = &Filter{}
	_ Rule         = &MethodRule{}
	_ Rule         = &PathRule{}
)
