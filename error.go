package broute

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Kind identifies a class of errors in the error taxonomy. Kinds form a single-inheritance chain that is queried
// through [Kind.Parent].
type Kind int

const (
	KindUnknown           Kind = iota
	KindInternal               // uncaught faults and internal exceptions
	KindUnexpected             // server-caused failures surfaced to the caller
	KindUnexpectedValue        // a field-level validation failure
	KindBadRequest             // base for client-input errors
	KindNotFound               // no route matched the request
	KindMethodNotAllowed       // a route matched, the method did not
	KindUnauthorized           // authentication required
	KindUnauthorizedBasic      // basic authentication required
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindInternal:          "internal",
	KindUnexpected:        "unexpected",
	KindUnexpectedValue:   "unexpected_value",
	KindBadRequest:        "bad_request",
	KindNotFound:          "not_found",
	KindMethodNotAllowed:  "method_not_allowed",
	KindUnauthorized:      "unauthorized",
	KindUnauthorizedBasic: "unauthorized_basic",
}

// String returns the snake case name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "unknown"
}

// Parent returns the kind this kind specializes, or [KindUnknown] for the root of the taxonomy.
func (k Kind) Parent() Kind {
	switch k {
	case KindUnexpected:
		return KindInternal
	case KindUnexpectedValue, KindBadRequest:
		return KindUnexpected
	case KindNotFound, KindMethodNotAllowed, KindUnauthorized:
		return KindBadRequest
	case KindUnauthorizedBasic:
		return KindUnauthorized
	default:
		return KindUnknown
	}
}

// Is reports whether k equals other or specializes it.
func (k Kind) Is(other Kind) bool {
	_, ok := k.distance(other)
	return ok
}

// distance returns the number of parent steps from k to ancestor.
func (k Kind) distance(ancestor Kind) (int, bool) {
	if ancestor == KindUnknown {
		return 0, false
	}

	for n := 0; k != KindUnknown; n++ {
		if k == ancestor {
			return n, true
		}
		k = k.Parent()
	}

	return 0, false
}

// code is the default error code of the kind.
func (k Kind) code() int {
	switch k {
	case KindInternal:
		return -http.StatusInternalServerError
	case KindBadRequest:
		return -http.StatusBadRequest
	case KindNotFound:
		return -http.StatusNotFound
	case KindMethodNotAllowed:
		return -http.StatusMethodNotAllowed
	case KindUnauthorized, KindUnauthorizedBasic:
		return -http.StatusUnauthorized
	default:
		return -1
	}
}

// Error is a structured error of the taxonomy. It carries a negative code, a message, an optional context map and
// an optional cause.
type Error struct {
	kind    Kind
	code    int
	msg     string
	context map[string]any
	field   string
	allowed []string
	realm   string
	login   string
	cause   error
}

// ErrorOption configures an [Error] at construction.
type ErrorOption func(*Error)

// WithCode overwrites the default code of the error kind.
func WithCode(code int) ErrorOption {
	return func(e *Error) { e.code = code }
}

// WithContext merges structured context into the error.
func WithContext(ctx map[string]any) ErrorOption {
	return func(e *Error) {
		if e.context == nil {
			e.context = make(map[string]any, len(ctx))
		}
		for k, v := range ctx {
			e.context[k] = v
		}
	}
}

// WithCause sets the underlying error.
func WithCause(err error) ErrorOption {
	return func(e *Error) { e.cause = err }
}

// NewError inits an error of the given kind.
func NewError(kind Kind, msg string, opts ...ErrorOption) *Error {
	e := &Error{kind: kind, code: kind.code(), msg: msg}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewInternalError inits an error that is rendered without detail unless debugging is enabled.
func NewInternalError(msg string, opts ...ErrorOption) *Error {
	return NewError(KindInternal, msg, opts...)
}

// NewUnexpectedError inits an error whose message is shown to the caller. A code between -400 and -599 doubles as
// the response status.
func NewUnexpectedError(msg string, opts ...ErrorOption) *Error {
	return NewError(KindUnexpected, msg, opts...)
}

// NewUnexpectedValueError inits a validation error for the named field.
func NewUnexpectedValueError(field, msg string, opts ...ErrorOption) *Error {
	e := NewError(KindUnexpectedValue, msg, opts...)
	e.field = field

	return e
}

// NewBadRequestError inits a generic client error.
func NewBadRequestError(msg string, opts ...ErrorOption) *Error {
	return NewError(KindBadRequest, msg, opts...)
}

// NewPageNotFoundError inits the error for requests that match no route. The home url is kept in the context.
func NewPageNotFoundError(home string, opts ...ErrorOption) *Error {
	return NewError(KindNotFound, "Page not found", append([]ErrorOption{
		WithContext(map[string]any{"home": home}),
	}, opts...)...)
}

// NewMethodNotAllowedError inits the error for requests whose method is not accepted by any matching route.
func NewMethodNotAllowedError(allowed []string, opts ...ErrorOption) *Error {
	e := NewError(KindMethodNotAllowed, "Method not allowed", opts...)
	e.allowed = append([]string(nil), allowed...)

	return e
}

// NewUnauthorizedError inits an authentication error. HTML clients are redirected to the login url when it is not
// empty.
func NewUnauthorizedError(msg, loginURL string, opts ...ErrorOption) *Error {
	e := NewError(KindUnauthorized, msg, opts...)
	e.login = loginURL

	return e
}

// NewUnauthorizedBasicError inits an error that challenges the client for basic authentication.
func NewUnauthorizedBasicError(realm, msg string, opts ...ErrorOption) *Error {
	e := NewError(KindUnauthorizedBasic, msg, opts...)
	e.realm = realm

	return e
}

// Kind returns the kind of the error in the taxonomy.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the negative error code.
func (e *Error) Code() int { return e.code }

// Message returns the message shown to the caller.
func (e *Error) Message() string { return e.msg }

// Context returns the extra values the error was created with.
func (e *Error) Context() map[string]any { return e.context }

// Field returns the field that failed validation. Only set on [KindUnexpectedValue] errors.
func (e *Error) Field() string { return e.field }

// Allowed returns the methods a route does accept. Only set on [KindMethodNotAllowed] errors.
func (e *Error) Allowed() []string { return e.allowed }

// Realm returns the basic authentication realm.
func (e *Error) Realm() string { return e.realm }

// LoginURL returns where an unauthorized caller may log in, possibly empty.
func (e *Error) LoginURL() string { return e.login }

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.cause }

// Error implements the error interface. Without a message the cause's message is used.
func (e *Error) Error() string {
	if e.msg == "" && e.cause != nil {
		return e.cause.Error()
	}

	return e.msg
}

// Status returns the http status the error kind is rendered with.
func (e *Error) Status() int {
	switch e.kind {
	case KindUnexpected:
		if s := -e.code; s >= 400 && s <= 599 {
			return s
		}
		return http.StatusInternalServerError
	case KindUnexpectedValue, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindUnauthorized, KindUnauthorizedBasic:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of the first [*Error] in err's chain, or [KindUnknown].
func KindOf(err error) Kind {
	if e, ok := asError(err); ok {
		return e.Kind()
	}

	return KindUnknown
}

// CodeOf returns the code of the first [*Error] in err's chain, or zero.
func CodeOf(err error) int {
	if e, ok := asError(err); ok {
		return e.Code()
	}

	return 0
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)

	return e, ok
}
