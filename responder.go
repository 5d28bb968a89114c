package broute

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Media types registered by default.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeHTML    = "text/html"
	MediaTypeXML     = "application/xml"
	MediaTypeTextXML = "text/xml"
	MediaTypePlain   = "text/plain"
)

// Responder selects a resolver through content negotiation and writes outputs with it.
type Responder struct {
	types     []string
	resolvers map[string]Resolver
	debug     bool
}

// ResponderOption configures a [Responder].
type ResponderOption func(*Responder)

// WithResolver registers (or replaces) the resolver for a media type. A nil resolver panics.
func WithResolver(mediaType string, res Resolver) ResponderOption {
	return func(rs *Responder) {
		rs.register(mediaType, res)
	}
}

// WithDebug controls whether error outputs carry diagnostics.
func WithDebug(debug bool) ResponderOption {
	return func(rs *Responder) { rs.debug = debug }
}

// NewResponder inits a responder with JSON, HTML and XML resolvers.
func NewResponder(opts ...ResponderOption) *Responder {
	rs := &Responder{resolvers: map[string]Resolver{}}
	rs.register(MediaTypeJSON, JSONResolver{})
	rs.register(MediaTypeHTML, HTMLResolver{})
	rs.register(MediaTypeXML, XMLResolver{})
	rs.register(MediaTypeTextXML, XMLResolver{})

	for _, opt := range opts {
		opt(rs)
	}

	return rs
}

func (rs *Responder) register(mediaType string, res Resolver) {
	if res == nil {
		panic("broute: nil resolver for media type " + mediaType)
	}

	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if _, exists := rs.resolvers[mediaType]; !exists {
		rs.types = append(rs.types, mediaType)
	}

	rs.resolvers[mediaType] = res
}

// Debug reports whether error outputs carry diagnostics.
func (rs *Responder) Debug() bool { return rs.debug }

// MediaTypes returns the registered media types in registration order.
func (rs *Responder) MediaTypes() []string { return rs.types }

// Negotiate selects the media type for an Accept header. The first listed type that is registered wins, quality
// parameters are ignored. Without a match, the first type with a "+json" or "+xml" suffix selects JSON or XML if
// registered. The fallback is HTML.
func (rs *Responder) Negotiate(accept string) string {
	var wanted []string
	for _, part := range strings.Split(accept, ",") {
		mt, _, _ := strings.Cut(part, ";")
		if mt = strings.ToLower(strings.TrimSpace(mt)); mt != "" {
			wanted = append(wanted, mt)
		}
	}

	for _, mt := range wanted {
		if _, ok := rs.resolvers[mt]; ok {
			return mt
		}
	}

	for _, mt := range wanted {
		var suffixed string
		switch {
		case strings.HasSuffix(mt, "+json"):
			suffixed = MediaTypeJSON
		case strings.HasSuffix(mt, "+xml"):
			suffixed = MediaTypeXML
		default:
			continue
		}

		if _, ok := rs.resolvers[suffixed]; ok {
			return suffixed
		}
	}

	return MediaTypeHTML
}

// Render negotiates the media type for r and writes out. Extra headers are set after the resolver has run, and the
// status is written last. A zero status keeps the status that was already written, or 200.
func (rs *Responder) Render(w ResponseWriter, r *http.Request, status int, out *Output, headers http.Header) error {
	mediaType := rs.Negotiate(acceptOf(r))

	res, ok := rs.resolvers[mediaType]
	if !ok {
		panic("broute: no resolver registered for negotiated media type " + mediaType)
	}

	body, err := res.Resolve(out)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", mediaType)
	}

	w.Header().Set("Content-Type", mediaType+";charset=utf-8")
	if dec, ok := res.(Decorator); ok {
		dec.Decorate(w.Header())
	}

	for k, v := range headers {
		w.Header()[k] = v
	}

	if status == 0 {
		status = w.Status()
	}

	if status != 0 {
		w.WriteHeader(status)
	}

	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "write body")
	}

	return nil
}

// RespondPayload writes a successful result. An [*Output] is written as-is, any other value becomes the data of an
// output with code 0.
func (rs *Responder) RespondPayload(w ResponseWriter, r *http.Request, v any) error {
	out, ok := v.(*Output)
	if !ok {
		out = &Output{Data: v}
	}

	return rs.Render(w, r, 0, out, nil)
}

// acceptOf joins every Accept header line of r into one list.
func acceptOf(r *http.Request) string {
	return strings.Join(r.Header.Values("Accept"), ",")
}
