package broute

import (
	"html/template"
)

// Output is the structured form of every response body before it is serialized by a [Resolver].
type Output struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Data    any    `json:"data,omitempty"`

	// Debug holds diagnostics. It is only set when debugging is enabled.
	*Debug

	// Page is an optional HTML fragment that the HTML resolver renders below the heading.
	Page template.HTML `json:"-"`
}

// Debug describes the error behind an output and its chain of causes.
type Debug struct {
	Type     string        `json:"type"`
	File     string        `json:"file"`
	Line     int           `json:"line"`
	Trace    []string      `json:"trace"`
	Previous []ErrorDetail `json:"previous"`
}

// ErrorDetail describes one cause in an error chain.
type ErrorDetail struct {
	Type    string   `json:"type"`
	Code    int      `json:"code"`
	Message string   `json:"message"`
	File    string   `json:"file"`
	Line    int      `json:"line"`
	Trace   []string `json:"trace"`
}

// Success returns an output for a successful result. It panics on a negative code.
func Success(data any, code ...int) *Output {
	out := &Output{Data: data}
	if len(code) > 0 {
		out.Code = code[0]
	}

	if out.Code < 0 {
		panic("broute: success output requires a code >= 0")
	}

	return out
}

// Fail returns an output describing a failure. It panics on a non-negative code.
func Fail(msg string, code int, data ...any) *Output {
	if code >= 0 {
		panic("broute: failure output requires a code < 0")
	}

	return Message(msg, code, data...)
}

// Message returns an output with a message, a code and optional data.
func Message(msg string, code int, data ...any) *Output {
	out := &Output{Code: code, Message: msg}
	if len(data) > 0 {
		out.Data = data[0]
	}

	return out
}
