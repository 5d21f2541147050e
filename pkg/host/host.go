package host

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/tskau/routekit/pkg/common"
	"github.com/tskau/routekit/pkg/metrics"
	"github.com/tskau/routekit/pkg/middleware"
	"go.uber.org/zap"
)

// Host is the live server instance plugins register into. It implements
// http.Handler. Registration calls are safe for concurrent use until Ready
// completes; after that the route table is frozen and requests are served.
type Host struct {
	config      Config
	router      *httprouter.Router
	logger      *zap.Logger
	middlewares []common.Middleware
	rateLimiter middleware.RateLimiter
	metrics     *metrics.Collector

	mu          sync.RWMutex
	routes      map[routeKey]RouteInfo
	decorations map[string]any
	plugins     []string
	queue       []Plugin
	ready       bool
	readyErr    error

	// startMu serializes Ready so a second caller waits for the first drain.
	startMu sync.Mutex

	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

type routeKey struct {
	method Method
	url    string
}

// New creates a Host with the given configuration.
func New(config Config) *Host {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	hr := httprouter.New()
	hr.HandleMethodNotAllowed = true

	h := &Host{
		config:      config,
		router:      hr,
		logger:      logger,
		rateLimiter: middleware.NewUberRateLimiter(),
		routes:      make(map[routeKey]RouteInfo),
		decorations: make(map[string]any),
	}

	// Trace and client IP run first so everything after them can log both.
	if config.EnableTraceID {
		h.middlewares = append(h.middlewares, middleware.TraceMiddleware())
	}
	h.middlewares = append(h.middlewares, middleware.ClientIPMiddleware(config.IPConfig))
	if config.EnableRequestLogging {
		h.middlewares = append(h.middlewares, middleware.Logging(logger))
	}
	h.middlewares = append(h.middlewares, config.Middlewares...)

	if config.EnableMetrics {
		collector, err := metrics.NewCollector(config.MetricsRegisterer, config.MetricsConfig)
		if err != nil {
			logger.Error("Failed to register metrics, continuing without them", zap.Error(err))
		} else {
			h.metrics = collector
		}
	}

	return h
}

// Logger returns the host's logger so plugins can log in the same stream.
func (h *Host) Logger() *zap.Logger {
	return h.logger
}

// Enqueue queues plugins to run, in order, when Ready is called.
func (h *Host) Enqueue(plugins ...Plugin) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ready {
		return ErrHostReady
	}
	for _, p := range plugins {
		if p == nil {
			return ErrNilPlugin
		}
	}
	h.queue = append(h.queue, plugins...)
	return nil
}

// Ready runs the queued plugins in order and then freezes the host. It stops at
// the first failing plugin and keeps returning that error on later calls.
// Once Ready succeeds, further calls return nil. Concurrent calls wait for the
// first one and return its result.
func (h *Host) Ready(ctx context.Context) error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	h.mu.Lock()
	if h.ready || h.readyErr != nil {
		err := h.readyErr
		h.mu.Unlock()
		return err
	}
	h.mu.Unlock()

	// Plugins may Enqueue more plugins while running; drain until nothing is left.
	for {
		h.mu.Lock()
		queue := h.queue
		h.queue = nil
		if len(queue) == 0 {
			h.ready = true
			h.mu.Unlock()
			break
		}
		h.mu.Unlock()

		for _, p := range queue {
			if err := h.Register(ctx, p); err != nil {
				h.mu.Lock()
				h.readyErr = err
				h.queue = nil
				h.mu.Unlock()
				return err
			}
		}
	}

	h.mu.RLock()
	routes, decorations, plugins := len(h.routes), len(h.decorations), len(h.plugins)
	h.mu.RUnlock()

	h.logger.Info("Host ready",
		zap.Int("routes", routes),
		zap.Int("plugins", plugins),
		zap.Int("decorations", decorations),
	)
	return nil
}

// IsReady reports whether Ready has completed successfully.
func (h *Host) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// ServeHTTP implements the http.Handler interface. Requests are refused with
// 503 until Ready has completed and after Shutdown has begun.
func (h *Host) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !h.IsReady() || h.isShutdown() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	h.router.ServeHTTP(w, req)
}

func (h *Host) isShutdown() bool {
	h.shutdownMu.RLock()
	defer h.shutdownMu.RUnlock()
	return h.shutdown
}

// Shutdown gracefully shuts down the host.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (h *Host) Shutdown(ctx context.Context) error {
	h.shutdownMu.Lock()
	h.shutdown = true
	h.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Host shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the route parameters from the request context.
func GetParams(r *http.Request) httprouter.Params {
	return httprouter.ParamsFromContext(r.Context())
}

// GetParam retrieves a specific route parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

// handleError logs err and writes an error response. A *HTTPError anywhere in
// the chain overrides statusCode and message; for other client errors the
// error text is appended so callers learn what was wrong with the request.
func (h *Host) handleError(w http.ResponseWriter, req *http.Request, err error, statusCode int, message string) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
		message = httpErr.Message
	} else if statusCode < http.StatusInternalServerError {
		message = message + ": " + err.Error()
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", statusCode),
	}
	if traceID := middleware.GetTraceID(req); h.config.EnableTraceID && traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}

	if statusCode >= http.StatusInternalServerError {
		h.logger.Error(message, fields...)
	} else {
		h.logger.Warn(message, fields...)
	}

	http.Error(w, message, statusCode)
}
