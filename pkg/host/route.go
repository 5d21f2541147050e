package host

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tskau/routekit/pkg/common"
	"github.com/tskau/routekit/pkg/middleware"
	"go.uber.org/zap"
)

// Route registers a route. MethodAll registers every supported method and is
// rejected as a whole if any of them is already taken.
func (h *Host) Route(opts RouteOptions) error {
	methods, err := opts.Method.expand()
	if err != nil {
		return fmt.Errorf("%w: %q", err, opts.Method)
	}
	if opts.URL == "" || !strings.HasPrefix(opts.URL, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, opts.URL)
	}
	if opts.Handler == nil {
		return fmt.Errorf("%s %s: %w", opts.Method, opts.URL, ErrNilHandler)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ready {
		return ErrHostReady
	}
	for _, m := range methods {
		if _, exists := h.routes[routeKey{m, opts.URL}]; exists {
			return fmt.Errorf("%w: %s %s", ErrRouteExists, m, opts.URL)
		}
	}

	handler := h.wrapHandler(opts)
	for _, m := range methods {
		if err := h.handle(m, opts.URL, handler); err != nil {
			return err
		}
		h.routes[routeKey{m, opts.URL}] = RouteInfo{Method: m, URL: opts.URL, HasSchema: opts.Schema != nil}
		if h.metrics != nil {
			h.metrics.ObserveRoute(string(m))
		}
		h.logger.Debug("Route registered",
			zap.String("method", string(m)),
			zap.String("url", opts.URL),
			zap.Bool("schema", opts.Schema != nil),
		)
	}
	return nil
}

// handle registers with httprouter, turning its panics on overlapping
// patterns into ErrRouteConflict.
func (h *Host) handle(method Method, url string, handler http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s %s: %v", ErrRouteConflict, method, url, rec)
		}
	}()
	h.router.Handler(string(method), url, handler)
	return nil
}

// Routes returns the registered routes sorted by URL and method.
func (h *Host) Routes() []RouteInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	routes := make([]RouteInfo, 0, len(h.routes))
	for _, r := range h.routes {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].URL != routes[j].URL {
			return routes[i].URL < routes[j].URL
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

// HasRoute reports whether method and url are registered.
func (h *Host) HasRoute(method Method, url string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.routes[routeKey{Method(strings.ToUpper(string(method))), url}]
	return ok
}

// wrapHandler builds the request pipeline for a route: recovery, global
// middlewares, metrics, route middlewares, rate limit, body limit, timeout,
// schema validation and finally the handler.
func (h *Host) wrapHandler(opts RouteOptions) http.Handler {
	route := opts.Handler
	schema := opts.Schema

	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if schema != nil {
			validated, err := schema.Validate(req)
			if err != nil {
				h.handleError(w, req, err, http.StatusBadRequest, "Request validation failed")
				return
			}
			req = validated
		}
		route(w, req)
	})

	chain := common.NewMiddlewareChain(h.trackInFlight, middleware.Recovery(h.logger)).
		Append(h.middlewares...)
	if h.metrics != nil {
		chain = chain.Append(h.metrics.Middleware(opts.URL))
	}
	chain = chain.Append(opts.Middlewares...)
	if rateLimit := h.effectiveRateLimit(opts.RateLimit); rateLimit != nil {
		chain = chain.Append(middleware.RateLimit(rateLimit, h.rateLimiter, h.logger))
	}
	if maxBodySize := h.effectiveMaxBodySize(opts.MaxBodySize); maxBodySize > 0 {
		chain = chain.Append(middleware.MaxBodySize(maxBodySize))
	}
	if timeout := h.effectiveTimeout(opts.Timeout); timeout > 0 {
		chain = chain.Append(middleware.Timeout(timeout))
	}

	return chain.Then(inner)
}

// trackInFlight counts requests for Shutdown and refuses new ones once it has begun.
func (h *Host) trackInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Add before checking so Shutdown cannot miss a request that passes the check.
		h.wg.Add(1)
		defer h.wg.Done()

		// ServeHTTP checks too; this catches requests that passed it before Shutdown began.
		if h.isShutdown() {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (h *Host) effectiveTimeout(routeTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	return h.config.GlobalTimeout
}

func (h *Host) effectiveMaxBodySize(routeMaxBodySize int64) int64 {
	if routeMaxBodySize > 0 {
		return routeMaxBodySize
	}
	return h.config.GlobalMaxBodySize
}

func (h *Host) effectiveRateLimit(routeRateLimit *middleware.RateLimitConfig) *middleware.RateLimitConfig {
	if routeRateLimit != nil {
		return routeRateLimit
	}
	return h.config.GlobalRateLimit
}
