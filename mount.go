package broute

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Mount registers a standard library handler for every method on prefix and everything below it. The handler
// receives requests with the full prefix, base path included, stripped from the path. Stages see the original
// path. Whatever the handler writes is the response; it cannot return errors to the responder.
func (rt *Router) Mount(prefix string, h http.Handler) *Route {
	full := strings.TrimRight(join(rt.prefix, prefix), "/")

	pattern := normalize(prefix) + "[/{mounted:.*}]"
	if normalize(prefix) == "/" {
		pattern = "/[{mounted:.*}]"
	}

	return rt.Any(pattern, Func(func(_ context.Context, w ResponseWriter, r *http.Request) (any, error) {
		h.ServeHTTP(w, stripPrefix(full, r))
		return nil, nil
	}))
}

func stripPrefix(prefix string, r *http.Request) *http.Request {
	p := strings.TrimPrefix(r.URL.Path, prefix)
	if p == "" {
		p = "/"
	}

	rp := ""
	if r.URL.RawPath != "" {
		rp = strings.TrimPrefix(r.URL.RawPath, prefix)
		if rp == "" {
			rp = "/"
		}
	}

	r2 := new(http.Request)
	*r2 = *r
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = p
	r2.URL.RawPath = rp

	return r2
}
