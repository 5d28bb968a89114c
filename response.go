package broute

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBufferFull is returned when the write would exceed the buffer limit.
var ErrBufferFull = errors.New("buffer is full")

// ErrDetached is returned when flushing a response that has no underlying writer.
var ErrDetached = errors.New("response is not attached to a writer")

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ResponseWriter implements the http.ResponseWriter but the underlying bytes are buffered. This allows
// middleware to reset the writer and formulate a completely new response.
type ResponseWriter interface {
	http.ResponseWriter
	Reset()
	Free()
	FlushBuffer() error
	Status() int
}

// Response is a buffered response. It is either attached to an underlying http.ResponseWriter that receives the
// bytes when the buffer is flushed, or detached and read back through its accessors.
type Response struct {
	resp    http.ResponseWriter
	header  http.Header
	status  int
	buf     *bytes.Buffer
	limit   int
	flushed bool
}

// NewResponseWriter returns a buffered writer that flushes into resp. A negative limit disables the limit.
func NewResponseWriter(resp http.ResponseWriter, limit int) *Response {
	r := NewResponse(limit)
	r.resp = resp

	return r
}

// NewResponse returns a detached response. A negative limit disables the limit.
func NewResponse(limit int) *Response {
	buf, _ := bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	return &Response{header: http.Header{}, buf: buf, limit: limit}
}

// Header returns the headers that will be sent with the response.
func (r *Response) Header() http.Header { return r.header }

// Write buffers p. Nothing is written when p would exceed the limit.
func (r *Response) Write(p []byte) (int, error) {
	if r.limit >= 0 && r.buf.Len()+len(p) > r.limit {
		return 0, ErrBufferFull
	}

	return r.buf.Write(p)
}

// WriteHeader records the status code. It is sent when the buffer is flushed.
func (r *Response) WriteHeader(statusCode int) {
	r.status = statusCode
}

// Status returns the recorded status, or zero when no status was written yet.
func (r *Response) Status() int { return r.status }

// StatusCode returns the status the response is sent with.
func (r *Response) StatusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

// Body returns the buffered bytes.
func (r *Response) Body() []byte { return r.buf.Bytes() }

// IsEmpty reports whether the status forbids a response body.
func (r *Response) IsEmpty() bool {
	s := r.StatusCode()

	return (s >= 100 && s < 200) ||
		s == http.StatusNoContent ||
		s == http.StatusResetContent ||
		s == http.StatusNotModified
}

// Reset discards the buffered body, headers and status. It panics when part of the response was already flushed.
func (r *Response) Reset() {
	if r.flushed {
		panic("broute: cannot reset, response already flushed")
	}

	r.buf.Reset()
	r.status = 0
	clear(r.header)
}

// Free returns the buffer to the pool. The response must not be used afterwards.
func (r *Response) Free() {
	if r.buf == nil {
		return
	}

	bufPool.Put(r.buf)
	r.buf = nil
}

// Unwrap returns the underlying writer so http.ResponseController can reach it.
func (r *Response) Unwrap() http.ResponseWriter { return r.resp }

// FlushBuffer writes the headers (once) and the buffered body to the underlying writer.
func (r *Response) FlushBuffer() error {
	if r.resp == nil {
		return ErrDetached
	}

	if !r.flushed {
		dst := r.resp.Header()
		for k, v := range r.header {
			dst[k] = v
		}

		r.resp.WriteHeader(r.StatusCode())
		r.flushed = true
	}

	if _, err := r.buf.WriteTo(r.resp); err != nil {
		return errors.Wrap(err, "write buffer")
	}

	return nil
}

// FlushError flushes the buffer and the underlying writer. It is used by http.ResponseController.
func (r *Response) FlushError() error {
	if err := r.FlushBuffer(); err != nil {
		return err
	}

	if err := http.NewResponseController(r.resp).Flush(); err != nil {
		return errors.Wrap(err, "flush underlying writer")
	}

	return nil
}

// Flush implements http.Flusher.
func (r *Response) Flush() {
	_ = r.FlushError()
}

// finalize prepares the response for sending: empty statuses lose their body and content headers, other
// responses get a Content-Length and HEAD requests lose their body.
func (r *Response) finalize(req *http.Request) {
	if r.flushed {
		return
	}

	if r.IsEmpty() {
		r.buf.Reset()
		r.header.Del("Content-Type")
		r.header.Del("Content-Length")

		return
	}

	r.header.Set("Content-Length", strconv.Itoa(r.buf.Len()))
	if req.Method == http.MethodHead {
		r.buf.Reset()
	}
}

// Send copies a detached response onto w.
func (r *Response) Send(w http.ResponseWriter) error {
	for k, v := range r.header {
		w.Header()[k] = v
	}

	w.WriteHeader(r.StatusCode())
	if _, err := w.Write(r.buf.Bytes()); err != nil {
		return errors.Wrap(err, "write body")
	}

	return nil
}

var (
	_ ResponseWriter = &Response{}
	_ http.Flusher   = &Response{}
)
