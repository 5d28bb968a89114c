package broute

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorResponder writes the response for an error.
type ErrorResponder interface {
	RespondError(rs *Responder, w ResponseWriter, r *http.Request, err error) error
}

// ErrorResponderFunc allows casting a function to an [ErrorResponder].
type ErrorResponderFunc func(rs *Responder, w ResponseWriter, r *http.Request, err error) error

// RespondError implements [ErrorResponder].
func (f ErrorResponderFunc) RespondError(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	return f(rs, w, r, err)
}

type errorEntry struct {
	kind  Kind
	match func(error) bool
	resp  ErrorResponder
}

// ErrorResponders maps errors to the responders that override the default of their kind. When several entries
// match, the one closest to the error wins: entries registered with [ErrorResponders.OnError] or [OnType] match at
// distance zero, kind entries at the number of parent steps from the error's kind. Ties go to the entry that was
// registered first.
type ErrorResponders struct {
	entries []errorEntry
}

// NewErrorResponders inits an empty map.
func NewErrorResponders() *ErrorResponders {
	return &ErrorResponders{}
}

// OnKind responds to errors of kind k, or of kinds specializing k, with er.
func (m *ErrorResponders) OnKind(k Kind, er ErrorResponder) *ErrorResponders {
	m.entries = append(m.entries, errorEntry{kind: k, resp: er})
	return m
}

// OnError responds to errors matching target (errors.Is) with er.
func (m *ErrorResponders) OnError(target error, er ErrorResponder) *ErrorResponders {
	m.entries = append(m.entries, errorEntry{match: func(err error) bool { return errors.Is(err, target) }, resp: er})
	return m
}

// OnType responds to errors with an instance of T in their chain (errors.As) with er.
func OnType[T error](m *ErrorResponders, er ErrorResponder) *ErrorResponders {
	m.entries = append(m.entries, errorEntry{match: func(err error) bool {
		var target T
		return errors.As(err, &target)
	}, resp: er})

	return m
}

// lookup returns the closest matching responder.
func (m *ErrorResponders) lookup(err error) (ErrorResponder, bool) {
	if m == nil {
		return nil, false
	}

	kind := KindOf(err)
	best, bestDist := ErrorResponder(nil), math.MaxInt
	for _, e := range m.entries {
		dist := 0
		if e.match != nil {
			if !e.match(err) {
				continue
			}
		} else {
			d, ok := kind.distance(e.kind)
			if !ok {
				continue
			}
			dist = d
		}

		if dist < bestDist {
			best, bestDist = e.resp, dist
		}
	}

	return best, best != nil
}

// DefaultErrorResponder returns the responder the taxonomy declares for kind k. Unknown kinds get the internal
// error responder.
func DefaultErrorResponder(k Kind) ErrorResponder {
	switch k {
	case KindUnexpected:
		return ErrorResponderFunc(respondUnexpected)
	case KindUnexpectedValue:
		return ErrorResponderFunc(respondUnexpectedValue)
	case KindBadRequest:
		return ErrorResponderFunc(respondBadRequest)
	case KindNotFound:
		return ErrorResponderFunc(respondNotFound)
	case KindMethodNotAllowed:
		return ErrorResponderFunc(respondMethodNotAllowed)
	case KindUnauthorized:
		return ErrorResponderFunc(respondUnauthorized)
	case KindUnauthorizedBasic:
		return ErrorResponderFunc(respondUnauthorizedBasic)
	default:
		return InternalErrorResponder()
	}
}

// InternalErrorResponder renders any error as a 500 with the generic message "Error". With debugging enabled the
// actual message and the diagnostics of the error and its causes are included.
func InternalErrorResponder() ErrorResponder {
	return ErrorResponderFunc(respondInternal)
}

func respondInternal(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	out := &Output{Code: min(CodeOf(err), -1), Message: "Error"}
	if rs.Debug() {
		out.Message = err.Error()
		out.Debug = newDebug(err)
	}

	return rs.Render(w, r, http.StatusInternalServerError, out, nil)
}

// taxonomyOutput returns the base output of a taxonomy error, or nil when err holds none.
func taxonomyOutput(err error) (*Error, *Output) {
	e, ok := asError(err)
	if !ok {
		return nil, nil
	}

	return e, &Output{Code: e.Code(), Message: e.Message()}
}

func respondUnexpected(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	e, out := taxonomyOutput(err)
	if e == nil {
		return respondInternal(rs, w, r, err)
	}

	if len(e.Context()) > 0 {
		out.Data = e.Context()
	}

	return rs.Render(w, r, e.Status(), out, nil)
}

func respondUnexpectedValue(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	e, out := taxonomyOutput(err)
	if e == nil {
		return respondInternal(rs, w, r, err)
	}

	out.Field = e.Field()

	page := "<p>Field: <strong>" + template.HTMLEscapeString(e.Field()) + "</strong></p>"
	if len(e.Context()) > 0 {
		out.Data = e.Context()
		page += "<p>Context:</p><ul>"
		for _, k := range sortedKeys(e.Context()) {
			page += "<li>" + template.HTMLEscapeString(k) + ": " +
				template.HTMLEscapeString(fmt.Sprint(e.Context()[k])) + "</li>"
		}
		page += "</ul>"
	}

	out.Page = template.HTML(page) //nolint:gosec

	return rs.Render(w, r, e.Status(), out, nil)
}

func respondBadRequest(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	e, out := taxonomyOutput(err)
	if e == nil {
		return respondInternal(rs, w, r, err)
	}

	return rs.Render(w, r, e.Status(), out, nil)
}

func respondNotFound(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	e, out := taxonomyOutput(err)
	if e == nil {
		return respondInternal(rs, w, r, err)
	}

	out.Data = e.Context()
	if home, ok := e.Context()["home"].(string); ok {
		out.Page = template.HTML(`<p><a href="` + template.HTMLEscapeString(home) + //nolint:gosec
			`">Go to the home page</a></p>`)
	}

	return rs.Render(w, r, e.Status(), out, nil)
}

func respondMethodNotAllowed(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	e, out := taxonomyOutput(err)
	if e == nil {
		return respondInternal(rs, w, r, err)
	}

	allowed := strings.Join(e.Allowed(), ", ")
	out.Data = map[string]any{"allowed": e.Allowed()}
	out.Page = template.HTML("<p>Must be one of: <strong>" + //nolint:gosec
		template.HTMLEscapeString(allowed) + "</strong></p>")

	return rs.Render(w, r, e.Status(), out, http.Header{"Allow": {allowed}})
}

func respondUnauthorized(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	e, out := taxonomyOutput(err)
	if e == nil {
		return respondInternal(rs, w, r, err)
	}

	if e.LoginURL() != "" && rs.Negotiate(acceptOf(r)) == MediaTypeHTML {
		w.Header().Set("Location", e.LoginURL())
		w.WriteHeader(http.StatusFound)

		return nil
	}

	return rs.Render(w, r, e.Status(), out, nil)
}

func respondUnauthorizedBasic(rs *Responder, w ResponseWriter, r *http.Request, err error) error {
	e, out := taxonomyOutput(err)
	if e == nil {
		return respondInternal(rs, w, r, err)
	}

	return rs.Render(w, r, e.Status(), out, http.Header{
		"Www-Authenticate": {fmt.Sprintf("Basic realm=%q", e.Realm())},
	})
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
