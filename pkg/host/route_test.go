package host

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tskau/routekit/pkg/middleware"
)

type headerSchema string

func (s headerSchema) Validate(r *http.Request) (*http.Request, error) {
	if r.Header.Get(string(s)) == "" {
		return nil, errors.New("missing header " + string(s))
	}
	return r, nil
}

type forbiddenSchema struct{}

func (forbiddenSchema) Validate(r *http.Request) (*http.Request, error) {
	return nil, NewHTTPError(http.StatusForbidden, "Forbidden")
}

func TestRouteValidation(t *testing.T) {
	h, _ := newTestHost(t, Config{})

	tests := []struct {
		name string
		opts RouteOptions
		want error
	}{
		{"unsupported method", RouteOptions{Method: "TRACE", URL: "/x", Handler: okHandler("")}, ErrUnsupportedMethod},
		{"empty url", RouteOptions{Method: MethodGet, URL: "", Handler: okHandler("")}, ErrInvalidURL},
		{"relative url", RouteOptions{Method: MethodGet, URL: "x", Handler: okHandler("")}, ErrInvalidURL},
		{"nil handler", RouteOptions{Method: MethodGet, URL: "/x"}, ErrNilHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.Route(tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(h.Routes()) != 0 {
		t.Errorf("Expected no routes to be registered, got %v", h.Routes())
	}
}

func TestRouteDuplicate(t *testing.T) {
	h, _ := newTestHost(t, Config{})

	if err := h.Route(RouteOptions{Method: MethodGet, URL: "/dup", Handler: okHandler("")}); err != nil {
		t.Fatalf("Route() returned error: %v", err)
	}
	if err := h.Route(RouteOptions{Method: "get", URL: "/dup", Handler: okHandler("")}); !errors.Is(err, ErrRouteExists) {
		t.Errorf("Expected ErrRouteExists, got %v", err)
	}
	if err := h.Route(RouteOptions{Method: MethodPost, URL: "/dup", Handler: okHandler("")}); err != nil {
		t.Errorf("Expected another method on the same URL to succeed, got %v", err)
	}
}

func TestRouteConflict(t *testing.T) {
	h, _ := newTestHost(t, Config{})

	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/users/:id", Handler: okHandler("")})
	err := h.Route(RouteOptions{Method: MethodGet, URL: "/users/:name", Handler: okHandler("")})
	if !errors.Is(err, ErrRouteConflict) {
		t.Errorf("Expected ErrRouteConflict, got %v", err)
	}
}

func TestRouteAll(t *testing.T) {
	h, _ := newTestHost(t, Config{})

	if err := h.Route(RouteOptions{Method: MethodAll, URL: "/any", Handler: okHandler("any")}); err != nil {
		t.Fatalf("Route() returned error: %v", err)
	}
	if got := len(h.Routes()); got != len(SupportedMethods()) {
		t.Errorf("Expected %d routes, got %d", len(SupportedMethods()), got)
	}
	_ = h.Ready(context.Background())

	for _, m := range []string{"GET", "POST", "DELETE", "PATCH"} {
		if rr := serve(h, m, "/any"); rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", m, rr.Code)
		}
	}
}

func TestRouteAllRejectedAsWhole(t *testing.T) {
	h, _ := newTestHost(t, Config{})

	_ = h.Route(RouteOptions{Method: MethodPut, URL: "/any", Handler: okHandler("")})
	if err := h.Route(RouteOptions{Method: MethodAll, URL: "/any", Handler: okHandler("")}); !errors.Is(err, ErrRouteExists) {
		t.Fatalf("Expected ErrRouteExists, got %v", err)
	}
	if h.HasRoute(MethodGet, "/any") {
		t.Error("Expected no GET route after the rejected ALL registration")
	}
}

func TestRouteAfterReady(t *testing.T) {
	h, _ := newTestHost(t, Config{})
	_ = h.Ready(context.Background())

	if err := h.Route(RouteOptions{Method: MethodGet, URL: "/late", Handler: okHandler("")}); !errors.Is(err, ErrHostReady) {
		t.Errorf("Expected ErrHostReady, got %v", err)
	}
}

func TestRouteSchema(t *testing.T) {
	h, _ := newTestHost(t, Config{})

	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/guarded", Handler: okHandler("in"), Schema: headerSchema("X-Token")})
	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/forbidden", Handler: okHandler("in"), Schema: forbiddenSchema{}})
	_ = h.Ready(context.Background())

	rr := serve(h, "GET", "/guarded")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "missing header X-Token") {
		t.Errorf("Expected the validation reason in the body, got %q", rr.Body.String())
	}

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("X-Token", "t")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "in" {
		t.Errorf("Expected 200 in, got %d %q", rr.Code, rr.Body.String())
	}

	if rr := serve(h, "GET", "/forbidden"); rr.Code != http.StatusForbidden {
		t.Errorf("Expected HTTPError status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestRouteMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h, _ := newTestHost(t, Config{Middlewares: []middleware.Middleware{tag("global")}})
	_ = h.Route(RouteOptions{
		Method:      MethodGet,
		URL:         "/ordered",
		Middlewares: []middleware.Middleware{tag("route")},
		Handler: func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		},
	})
	_ = h.Ready(context.Background())
	serve(h, "GET", "/ordered")

	if strings.Join(order, ",") != "global,route,handler" {
		t.Errorf("Expected global,route,handler, got %v", order)
	}
}

func TestRoutePanicRecovered(t *testing.T) {
	h, logs := newTestHost(t, Config{})

	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/panic", Handler: func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}})
	_ = h.Ready(context.Background())

	if rr := serve(h, "GET", "/panic"); rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Error("Expected the panic to be logged")
	}
}

func TestRouteTimeoutAndBodyLimit(t *testing.T) {
	h, _ := newTestHost(t, Config{GlobalTimeout: time.Second, GlobalMaxBodySize: 8})

	release := make(chan struct{})
	defer close(release)
	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/slow", Timeout: 10 * time.Millisecond, Handler: func(w http.ResponseWriter, r *http.Request) {
		<-release
	}})
	_ = h.Route(RouteOptions{Method: MethodPost, URL: "/upload", Handler: func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for {
			_, err := r.Body.Read(buf)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
				}
				return
			}
		}
	}})
	_ = h.Ready(context.Background())

	if rr := serve(h, "GET", "/slow"); rr.Code != http.StatusRequestTimeout {
		t.Errorf("Expected route timeout %d, got %d", http.StatusRequestTimeout, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/upload", strings.NewReader("more than eight bytes")))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
}

func TestRouteRateLimit(t *testing.T) {
	h, _ := newTestHost(t, Config{GlobalRateLimit: &middleware.RateLimitConfig{
		BucketName: "global",
		Limit:      1,
		Window:     time.Minute,
		Strategy:   middleware.StrategyGlobal,
	}})
	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/limited", Handler: okHandler("")})
	_ = h.Ready(context.Background())

	if rr := serve(h, "GET", "/limited"); rr.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", rr.Code)
	}
	if rr := serve(h, "GET", "/limited"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
}

func TestRoutesSorted(t *testing.T) {
	h, _ := newTestHost(t, Config{})
	_ = h.Route(RouteOptions{Method: MethodPost, URL: "/b", Handler: okHandler("")})
	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/b", Handler: okHandler(""), Schema: headerSchema("X")})
	_ = h.Route(RouteOptions{Method: MethodGet, URL: "/a", Handler: okHandler("")})

	routes := h.Routes()
	want := []RouteInfo{{MethodGet, "/a", false}, {MethodGet, "/b", true}, {MethodPost, "/b", false}}
	if len(routes) != len(want) {
		t.Fatalf("Expected %d routes, got %v", len(want), routes)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Errorf("Route %d: expected %+v, got %+v", i, want[i], routes[i])
		}
	}
}
