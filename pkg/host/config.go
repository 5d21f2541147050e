// Package host provides the server instance that routekit plugins register into.
// A Host is an http.Handler backed by httprouter with three registration calls:
// Register for plugins, Route for routes and Decorate for named values.
package host

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tskau/routekit/pkg/common"
	"github.com/tskau/routekit/pkg/metrics"
	"github.com/tskau/routekit/pkg/middleware"
	"go.uber.org/zap"
)

// Config defines the global configuration for the host.
type Config struct {
	Logger               *zap.Logger                 // Logger for all host operations
	GlobalTimeout        time.Duration               // Default response timeout for all routes
	GlobalMaxBodySize    int64                       // Default maximum request body size in bytes
	GlobalRateLimit      *middleware.RateLimitConfig // Default rate limit for all routes
	IPConfig             *middleware.IPConfig        // Configuration for client IP extraction
	EnableMetrics        bool                        // Enable Prometheus metrics collection
	MetricsRegisterer    prometheus.Registerer       // Registry for metrics; defaults to the global registerer
	MetricsConfig        metrics.Config              // Metric naming
	EnableTraceID        bool                        // Assign trace IDs and include them in logs
	EnableRequestLogging bool                        // Log every request through middleware.Logging
	Middlewares          []common.Middleware         // Global middlewares applied to all routes
}

// Method is an HTTP method accepted by Route.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodPatch   Method = http.MethodPatch
	MethodOptions Method = http.MethodOptions
	MethodHead    Method = http.MethodHead

	// MethodAll registers the route for every supported method.
	MethodAll Method = "ALL"
)

// SupportedMethods returns the concrete methods a route can be registered for.
func SupportedMethods() []Method {
	return []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodOptions, MethodHead}
}

// expand resolves m to the concrete methods it stands for. Method names are
// case-insensitive.
func (m Method) expand() ([]Method, error) {
	norm := Method(strings.ToUpper(string(m)))
	if norm == MethodAll {
		return SupportedMethods(), nil
	}
	for _, s := range SupportedMethods() {
		if s == norm {
			return []Method{norm}, nil
		}
	}
	return nil, ErrUnsupportedMethod
}

// Schema validates a request before its handler runs. The returned request
// replaces the original, so a schema can attach decoded data to the context.
// A returned *HTTPError controls the response; any other error answers 400.
type Schema interface {
	Validate(r *http.Request) (*http.Request, error)
}

// RouteOptions describes a single route registration.
type RouteOptions struct {
	Method      Method
	URL         string
	Handler     http.HandlerFunc
	Schema      Schema                      // Optional request validation
	Middlewares []common.Middleware         // Applied after the global middlewares
	Timeout     time.Duration               // Overrides GlobalTimeout
	MaxBodySize int64                       // Overrides GlobalMaxBodySize
	RateLimit   *middleware.RateLimitConfig // Overrides GlobalRateLimit
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method    Method
	URL       string
	HasSchema bool
}
