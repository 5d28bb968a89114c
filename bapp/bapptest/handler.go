package bapptest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/broute"
	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
)

// CallHandler invokes a [broute.HandlerFunc] with a buffered response writer and
// returns the recorded response. A non-nil result is rendered by a default responder,
// like the dispatcher does.
func CallHandler(handler broute.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	w := broute.NewResponseWriter(rec, -1)

	v, err := handler(req.Context(), w, req)
	if err != nil {
		panic("bapptest: handler returned error: " + err.Error())
	}

	if v != nil {
		if err := broute.NewResponder().RespondPayload(w, req, v); err != nil {
			panic("bapptest: RespondPayload failed: " + err.Error())
		}
	}

	if err := w.FlushBuffer(); err != nil {
		panic("bapptest: FlushBuffer failed: " + err.Error())
	}

	return rec
}

// FetchJSON performs a request against a running app, asking for JSON. It returns the status code and the parsed
// body regardless of the status.
func FetchJSON(tb testing.TB, method, url string) (int, gjson.Result) {
	tb.Helper()

	var (
		status int
		body   string
	)

	err := requests.URL(url).
		Method(method).
		Accept("application/json").
		AddValidator(func(res *http.Response) error {
			status = res.StatusCode
			return nil
		}).
		ToString(&body).
		Fetch(context.Background())
	if err != nil {
		tb.Fatalf("bapptest: %s %s failed: %v", method, url, err)
	}

	return status, gjson.Parse(body)
}
