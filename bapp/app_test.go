package bapp_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advdv/broute"
	"github.com/advdv/broute/bapp"
	"github.com/advdv/broute/bapp/bapptest"
	"github.com/carlmjohnson/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

// TestEnv is a test environment with app-specific fields beyond BaseEnvironment.
type TestEnv struct {
	bapp.BaseEnvironment
	Greeting string `env:"GREETING" envDefault:"hello"`
}

type Handlers struct {
	rt *bapp.Runtime[TestEnv]
}

func NewHandlers(rt *bapp.Runtime[TestEnv]) *Handlers {
	return &Handlers{rt: rt}
}

func (h *Handlers) Greet(ctx context.Context, _ broute.ResponseWriter, r *http.Request) (any, error) {
	bapp.Log(ctx).Info("greeting")

	name := broute.Param(r, "name")
	self, err := h.rt.URLFor("greet", map[string]string{"name": name}, nil)
	if err != nil {
		return nil, err
	}

	_, hasDeadline := bapp.RequestDeadline(ctx)

	return map[string]any{
		"greeting": h.rt.Env().Greeting + " " + name,
		"self":     self,
		"deadline": hasDeadline,
	}, nil
}

func (h *Handlers) Fail(context.Context, broute.ResponseWriter, *http.Request) (any, error) {
	return nil, broute.NewBadRequestError("no greeting for you")
}

type itemService struct{}

func (itemService) Show(_ context.Context, _ broute.ResponseWriter, r *http.Request) (any, error) {
	return "item-" + broute.Param(r, "id"), nil
}

func routing(rt *broute.Router, reg *broute.ServiceRegistry, h *Handlers) {
	reg.Register("items", itemService{})

	rt.Get("/greet/{name}", broute.Func(h.Greet)).Name("greet")
	rt.Get("/fail", broute.Func(h.Fail))
	rt.Get("/items/{id:[0-9]+}", broute.Service("items", "Show"))
}

func waitForServer(t *testing.T, port int) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", fmt.Sprintf("localhost:%d", port))
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestApp_EndToEnd(t *testing.T) {
	bapptest.SetBaseEnv(t, 18181).BasePath("/app")

	app := bapptest.New[TestEnv](t, routing, bapp.WithFx(fx.Provide(NewHandlers)))
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	waitForServer(t, 18181)

	baseURL := "http://localhost:18181"

	t.Run("route with runtime", func(t *testing.T) {
		status, body := bapptest.FetchJSON(t, http.MethodGet, baseURL+"/app/greet/world")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(0), body.Get("code").Int())
		assert.Equal(t, "hello world", body.Get("data.greeting").String())
		assert.Equal(t, "/app/greet/world", body.Get("data.self").String())
		assert.True(t, body.Get("data.deadline").Bool())
	})

	t.Run("service target", func(t *testing.T) {
		status, body := bapptest.FetchJSON(t, http.MethodGet, baseURL+"/app/items/7")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "item-7", body.Get("data").String())
	})

	t.Run("error kinds", func(t *testing.T) {
		status, body := bapptest.FetchJSON(t, http.MethodGet, baseURL+"/app/fail")
		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, int64(-400), body.Get("code").Int())
		assert.Equal(t, "no greeting for you", body.Get("message").String())

		status, body = bapptest.FetchJSON(t, http.MethodGet, baseURL+"/app/nope")
		require.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, int64(-404), body.Get("code").Int())

		status, body = bapptest.FetchJSON(t, http.MethodPost, baseURL+"/app/fail")
		require.Equal(t, http.StatusMethodNotAllowed, status)
		assert.Equal(t, "GET", body.Get("data.allowed.0").String())
	})

	t.Run("health", func(t *testing.T) {
		status, _ := bapptest.FetchJSON(t, http.MethodGet, baseURL+"/app/health")
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("metrics", func(t *testing.T) {
		var exposition string
		err := requests.URL(baseURL + "/app/metrics").ToString(&exposition).Fetch(context.Background())
		require.NoError(t, err)

		assert.Contains(t, exposition, "broute_dispatches_total{")
		assert.Contains(t, exposition, `service="test"`)
		assert.Contains(t, exposition, "broute_dispatch_errors_total{")
		assert.Contains(t, exposition, "go_goroutines")
	})
}

func TestApp_Options(t *testing.T) {
	bapptest.SetBaseEnv(t, 18182).HealthPath("/ready").MetricsPath("-")

	var (
		srv   *http.Server
		found []string
	)

	bapptest.New[TestEnv](t, routing,
		bapp.WithFx(
			fx.Provide(NewHandlers),
			fx.Provide(func() *broute.ErrorResponders {
				return broute.NewErrorResponders().OnKind(broute.KindNotFound,
					broute.ErrorResponderFunc(func(_ *broute.Responder, w broute.ResponseWriter, _ *http.Request, _ error) error {
						w.WriteHeader(http.StatusTeapot)
						return nil
					}))
			}),
			fx.Populate(&srv),
		),
		bapp.WithHealthHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
		bapp.WithDispatcherOptions(broute.WithRouteFoundHook(func(rc *broute.RouteContext, _ *http.Request) {
			found = append(found, rc.Route.Pattern())
		})),
	)

	serve := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Accept", "application/json")
		srv.Handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, ":18182", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)

	assert.Equal(t, http.StatusAccepted, serve("/ready").Code)
	assert.Equal(t, http.StatusTeapot, serve("/nope").Code)
	assert.Equal(t, http.StatusTeapot, serve("/metrics").Code)
	assert.Equal(t, []string{"/ready"}, found)
}

func TestCallHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")

	rec := bapptest.CallHandler(func(_ context.Context, w broute.ResponseWriter, _ *http.Request) (any, error) {
		w.Header().Set("X-Handler", "called")
		return map[string]int{"n": 1}, nil
	}, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "called", rec.Header().Get("X-Handler"))
	assert.JSONEq(t, `{"code":0,"data":{"n":1}}`, rec.Body.String())
}
