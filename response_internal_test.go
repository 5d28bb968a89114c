package broute

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func BenchmarkResponse(b *testing.B) {
	for _, dat := range [][]byte{
		make([]byte, 1024),    // 1KiB
		make([]byte, 1024*64), // 64KiB
	} {
		b.Run("buffered-"+strconv.Itoa(len(dat)), func(b *testing.B) {
			b.ReportAllocs()

			for range b.N {
				resp := NewResponseWriter(httptest.NewRecorder(), -1)
				written, err := resp.Write(dat)
				require.NoError(b, err)
				require.NotZero(b, written)
				require.NoError(b, resp.FlushBuffer())

				resp.Free()
			}
		})
	}
}

// Compares what a client observes from a plain handler with the same handler behind a buffered writer.
func TestResponseMatchesUnbuffered(t *testing.T) {
	tests := []struct {
		name    string
		handler func(http.ResponseWriter, *http.Request)
		check   func(t *testing.T, r1 *http.Response, b1 *bytes.Buffer)
	}{
		{
			name:    "implicit 200",
			handler: func(http.ResponseWriter, *http.Request) {},
			check: func(t *testing.T, r1 *http.Response, _ *bytes.Buffer) {
				require.Equal(t, 200, r1.StatusCode)
			},
		},
		{
			name: "implicit header writing",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Rab", "bar")
				fmt.Fprintf(w, "foo")
			},
			check: func(t *testing.T, r1 *http.Response, b1 *bytes.Buffer) {
				require.Equal(t, 200, r1.StatusCode)
				require.Equal(t, "foo", b1.String())
			},
		},
		{
			name: "explicit 201",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			check: func(t *testing.T, r1 *http.Response, _ *bytes.Buffer) {
				require.Equal(t, 201, r1.StatusCode)
			},
		},
		{
			name: "headers after explicit Flush",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				rc := http.NewResponseController(w)
				w.Header().Set("Rab", "dar")
				fmt.Fprintf(w, "aaa")
				assert.NoError(t, rc.Flush())
				fmt.Fprintf(w, "bbb")
			},
			check: func(t *testing.T, r1 *http.Response, b1 *bytes.Buffer) {
				require.Equal(t, 200, r1.StatusCode)
				require.Equal(t, "dar", r1.Header.Get("Rab"))
				require.Equal(t, "aaabbb", b1.String())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ln1, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			ln2, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			srv1 := &httptest.Server{
				Listener: ln1,
				Config: &http.Server{
					Handler:           http.HandlerFunc(tt.handler),
					ErrorLog:          log.New(io.Discard, "", 0),
					ReadHeaderTimeout: time.Second,
				},
			}
			srv1.Start()
			defer srv1.Close()

			srv2 := &httptest.Server{
				Listener: ln2,
				Config: &http.Server{
					ReadHeaderTimeout: time.Second,
					Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						wr := NewResponseWriter(w, 10)
						defer wr.Free()

						tt.handler(wr, r)
						assert.NoError(t, wr.FlushBuffer())
					}),
					ErrorLog: log.New(io.Discard, "", 0),
				},
			}
			srv2.Start()
			defer srv2.Close()

			req1, _ := http.NewRequest(http.MethodGet, srv1.URL, nil) //nolint:noctx
			req2, _ := http.NewRequest(http.MethodGet, srv2.URL, nil) //nolint:noctx

			resp1, err := http.DefaultClient.Do(req1)
			require.NoError(t, err)
			defer resp1.Body.Close()

			resp2, err := http.DefaultClient.Do(req2)
			require.NoError(t, err)
			defer resp2.Body.Close()

			require.Equal(t, resp1.StatusCode, resp2.StatusCode)
			require.Equal(t, resp1.Header.Get("Rab"), resp2.Header.Get("Rab"))

			b1, b2 := bytes.NewBuffer(nil), bytes.NewBuffer(nil)
			_, err = io.Copy(b1, resp1.Body)
			require.NoError(t, err)
			_, err = io.Copy(b2, resp2.Body)
			require.NoError(t, err)

			require.Equal(t, b1.String(), b2.String())
			tt.check(t, resp1, b1)
		})
	}
}

func TestResponseLimit(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrt := NewResponseWriter(rec, 1)
		n, err := wrt.Write([]byte{0x01})
		require.NoError(t, err)
		require.Equal(t, 1, n)

		n, err = wrt.Write([]byte{0x02})
		require.Equal(t, 0, n)
		require.ErrorIs(t, err, ErrBufferFull)
		assert.Equal(t, 0, rec.Body.Len())
	})

	t.Run("past", func(t *testing.T) {
		wrt := NewResponse(1)
		n, err := wrt.Write([]byte{0x01, 0x02})
		require.Equal(t, 0, n)
		require.ErrorIs(t, err, ErrBufferFull)
		require.Empty(t, wrt.Body())
	})

	t.Run("unlimited", func(t *testing.T) {
		wrt := NewResponse(-1)
		n, err := wrt.Write(make([]byte, 1<<16))
		require.NoError(t, err)
		require.Equal(t, 1<<16, n)
	})

	t.Run("limit applies per flush", func(t *testing.T) {
		rec := httptest.NewRecorder()
		fwr := NewResponseWriter(rec, 2)

		for range 3 {
			n, err := fwr.Write([]byte{0x01, 0x02})
			require.NoError(t, err)
			require.Equal(t, 2, n)
			require.NoError(t, fwr.FlushError())
		}

		assert.Equal(t, []byte{0x01, 0x02, 0x01, 0x02, 0x01, 0x02}, rec.Body.Bytes())
	})
}

type failingResponseWriter struct {
	http.ResponseWriter
}

func (f failingResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("write fail")
}

func TestResponseFlushing(t *testing.T) {
	t.Run("unwrap", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.Equal(t, rec, NewResponseWriter(rec, 0).Unwrap())
	})

	t.Run("pass on write errors", func(t *testing.T) {
		fwr := NewResponseWriter(failingResponseWriter{httptest.NewRecorder()}, -1)
		_, _ = fmt.Fprint(fwr, "foo")
		require.ErrorContains(t, fwr.FlushError(), "write fail")
	})

	t.Run("detached", func(t *testing.T) {
		resp := NewResponse(-1)
		require.ErrorIs(t, resp.FlushBuffer(), ErrDetached)

		resp.Header().Set("X-Foo", "bar")
		resp.WriteHeader(http.StatusAccepted)
		fmt.Fprint(resp, "body")

		rec := httptest.NewRecorder()
		require.NoError(t, resp.Send(rec))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "bar", rec.Header().Get("X-Foo"))
		assert.Equal(t, "body", rec.Body.String())
	})
}

func TestResponseReset(t *testing.T) {
	t.Run("rewrite body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		resp := NewResponseWriter(rec, -1)
		fmt.Fprintf(resp, "foo")
		resp.Reset()
		fmt.Fprintf(resp, "bar")

		require.NoError(t, resp.FlushError())
		assert.Equal(t, "bar", rec.Body.String())
	})

	t.Run("rewrite headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		resp := NewResponseWriter(rec, -1)
		resp.Header().Set("X-Before", "before")
		resp.Reset()
		resp.Header().Set("X-After", "after")

		require.NoError(t, resp.FlushError())
		assert.Equal(t, "after", rec.Header().Get("X-After"))
		assert.Empty(t, rec.Header().Values("X-Before"))
	})

	t.Run("rewrite status", func(t *testing.T) {
		resp := NewResponse(-1)
		resp.WriteHeader(http.StatusCreated)
		resp.WriteHeader(http.StatusAccepted)
		require.Equal(t, http.StatusAccepted, resp.Status())

		resp.Reset()
		require.Equal(t, 0, resp.Status())
		require.Equal(t, http.StatusOK, resp.StatusCode())
	})

	t.Run("not after flush", func(t *testing.T) {
		resp := NewResponseWriter(httptest.NewRecorder(), -1)
		require.NoError(t, http.NewResponseController(resp).Flush())

		require.PanicsWithValue(t, "broute: cannot reset, response already flushed", resp.Reset)
	})

	t.Run("limit restarts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		resp := NewResponseWriter(rec, 2)

		for range 3 {
			resp.Reset()
			n, err := resp.Write([]byte("fo"))
			require.NoError(t, err)
			require.Equal(t, 2, n)
		}

		require.NoError(t, resp.FlushError())
		assert.Equal(t, "fo", rec.Body.String())
	})
}

func TestResponseFinalize(t *testing.T) {
	for _, tt := range []struct {
		name       string
		method     string
		status     int
		expBody    string
		expLength  string
		expCType   string
		headerType string
	}{
		{"get", http.MethodGet, 200, "hello", "5", "text/plain", "text/plain"},
		{"head", http.MethodHead, 200, "", "5", "text/plain", "text/plain"},
		{"no content", http.MethodGet, 204, "", "", "", "text/plain"},
		{"not modified", http.MethodGet, 304, "", "", "", "text/plain"},
		{"informational", http.MethodGet, 103, "", "", "", "text/plain"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewResponse(-1)
			resp.Header().Set("Content-Type", tt.headerType)
			resp.WriteHeader(tt.status)
			fmt.Fprint(resp, "hello")

			resp.finalize(httptest.NewRequest(tt.method, "/", nil))
			require.Equal(t, tt.expBody, string(resp.Body()))
			require.Equal(t, tt.expLength, resp.Header().Get("Content-Length"))
			require.Equal(t, tt.expCType, resp.Header().Get("Content-Type"))
		})
	}
}
