package requestfilter

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/advdv/broute"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

// DefaultRealm is the realm of a [BasicAuthenticator] created without one.
const DefaultRealm = "Protected"

type ctxKey int

const ctxKeyUser ctxKey = iota

// UserFromContext returns the name of the user authenticated by a [BasicAuthenticator].
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(ctxKeyUser).(string)
	return u, ok
}

var bcryptHash = regexp.MustCompile(`^\$(2|2a|2b|2y)\$\d{2}\$`)

// BasicAuthenticator is a [Resolver] that checks basic credentials against a fixed set of users. Passwords may be
// stored in plain text or as bcrypt hashes.
type BasicAuthenticator struct {
	realm string
	users map[string]string
}

// NewBasicAuthenticator inits an authenticator for users, mapping names to passwords or bcrypt hashes.
func NewBasicAuthenticator(realm string, users map[string]string) *BasicAuthenticator {
	if realm == "" {
		realm = DefaultRealm
	}

	return &BasicAuthenticator{realm: realm, users: users}
}

// Verify reports whether password is valid for user.
func (ba *BasicAuthenticator) Verify(user, password string) bool {
	if user == "" {
		return false
	}

	ref, ok := ba.users[user]
	if !ok {
		return false
	}

	if len(ref) >= 60 && bcryptHash.MatchString(ref) {
		return bcrypt.CompareHashAndPassword([]byte(ref), []byte(password)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(ref), []byte(password)) == 1
}

// Resolve implements [Resolver]. The authenticated user is added to the context of the returned request.
func (ba *BasicAuthenticator) Resolve(r *http.Request) (*http.Request, error) {
	user, password, ok := r.BasicAuth()
	if !ok || !ba.Verify(user, password) {
		return nil, broute.NewUnauthorizedBasicError(ba.realm, "Unauthorized")
	}

	return r.WithContext(context.WithValue(r.Context(), ctxKeyUser, user)), nil
}

// RelaxForwarded can be listed as a relaxed host to accept plain HTTP requests that were forwarded by a proxy
// terminating TLS on port 443.
const RelaxForwarded = "headers"

// Authentication is a filter that refuses to resolve requests that did not arrive over HTTPS, except for relaxed
// hosts.
type Authentication struct {
	*Filter
	secure  bool
	relaxed []string
}

// AuthOption configures an [Authentication].
type AuthOption func(*Authentication)

// WithInsecure allows authentication over plain HTTP from any host.
func WithInsecure() AuthOption {
	return func(a *Authentication) { a.secure = false }
}

// WithRelaxed replaces the hosts for which plain HTTP is accepted. [RelaxForwarded] may be included.
func WithRelaxed(hosts ...string) AuthOption {
	return func(a *Authentication) { a.relaxed = hosts }
}

// WithRules adds rules that select the requests to authenticate.
func WithRules(rules ...Rule) AuthOption {
	return func(a *Authentication) { a.rules = append(a.rules, rules...) }
}

// NewAuthentication inits an authentication filter. It is secure by default, with plain HTTP relaxed for
// localhost and 127.0.0.1.
func NewAuthentication(res Resolver, opts ...AuthOption) *Authentication {
	a := &Authentication{
		Filter:  New(res),
		secure:  true,
		relaxed: []string{"localhost", "127.0.0.1"},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Process implements [broute.Stage].
func (a *Authentication) Process(w broute.ResponseWriter, r *http.Request, next broute.BareHandler) error {
	if !a.Should(r) {
		return next.ServeBareBHTTP(w, r)
	}

	if a.secure && r.TLS == nil && !a.allowInsecure(r) {
		return broute.NewInternalError("insecure use of middleware over HTTP denied by configuration")
	}

	r, err := a.resolver.Resolve(r)
	if err != nil {
		return err
	}

	return next.ServeBareBHTTP(w, r)
}

func (a *Authentication) allowInsecure(r *http.Request) bool {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	if lo.Contains(a.relaxed, strings.ToLower(host)) {
		return true
	}

	return lo.Contains(a.relaxed, RelaxForwarded) &&
		r.Header.Get("X-Forwarded-Proto") == "https" &&
		r.Header.Get("X-Forwarded-Port") == "443"
}

var (
	_ Resolver     = &BasicAuthenticator{}
	_ broute.Stage = &Authentication{}
)
