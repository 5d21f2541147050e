package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitStrategy identifies how a request is mapped to a rate limit key.
type RateLimitStrategy string

const (
	// StrategyIP keys on the client IP.
	StrategyIP RateLimitStrategy = "ip"
	// StrategyGlobal shares one bucket between all clients.
	StrategyGlobal RateLimitStrategy = "global"
	// StrategyCustom keys on RateLimitConfig.KeyExtractor.
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Routes sharing a BucketName share the same counters.
	BucketName string `yaml:"bucket" envconfig:"BUCKET"`

	// Limit requests are admitted per Window.
	Limit  int           `yaml:"limit" envconfig:"LIMIT"`
	Window time.Duration `yaml:"window" envconfig:"WINDOW"`

	Strategy RateLimitStrategy `yaml:"strategy" envconfig:"STRATEGY"`

	// Pace spreads admitted requests evenly across the window instead of
	// letting them through in a burst.
	Pace bool `yaml:"pace" envconfig:"PACE"`

	KeyExtractor func(*http.Request) (string, error) `yaml:"-" ignored:"true"`

	// ExceededHandler answers rejected requests. Defaults to a plain 429.
	ExceededHandler http.Handler `yaml:"-" ignored:"true"`
}

// RateLimiter decides whether a request identified by key is admitted.
type RateLimiter interface {
	// Allow reports whether the request is admitted, how many requests remain in
	// the current window and how long until the window resets.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// Pacer is implemented by limiters that can smooth admitted traffic.
type Pacer interface {
	Pace(key string, limit int, window time.Duration)
}

type fixedWindow struct {
	start time.Time
	count int
}

// UberRateLimiter admits requests with fixed-window counters and paces them
// with Uber's leaky-bucket limiter.
type UberRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	pacers  sync.Map // map[string]ratelimit.Limiter
	now     func() time.Time
}

// NewUberRateLimiter creates a new rate limiter using Uber's ratelimit library
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

func normalize(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return limit, window
}

// Allow implements RateLimiter.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	limit, window = normalize(limit, window)
	now := u.now()

	u.mu.Lock()
	defer u.mu.Unlock()

	w, ok := u.windows[key]
	if !ok || now.Sub(w.start) >= window {
		w = &fixedWindow{start: now}
		u.windows[key] = w
	}

	reset := window - now.Sub(w.start)
	if w.count >= limit {
		return false, 0, reset
	}
	w.count++
	return true, limit - w.count, reset
}

// Pace blocks until the leaky bucket for key releases the next permit.
func (u *UberRateLimiter) Pace(key string, limit int, window time.Duration) {
	limit, window = normalize(limit, window)
	pacerKey := key + "|" + strconv.Itoa(limit) + "/" + window.String()

	limiter, ok := u.pacers.Load(pacerKey)
	if !ok {
		limiter, _ = u.pacers.LoadOrStore(pacerKey, ratelimit.New(limit, ratelimit.Per(window)))
	}
	limiter.(ratelimit.Limiter).Take()
}

func rateLimitKey(r *http.Request, config *RateLimitConfig) (string, error) {
	switch config.Strategy {
	case StrategyGlobal:
		return "*", nil
	case StrategyCustom:
		if config.KeyExtractor != nil {
			return config.KeyExtractor(r)
		}
	}

	if ip := ClientIP(r); ip != "" {
		return ip, nil
	}
	return stripPort(r.RemoteAddr), nil
}

// RateLimit creates a middleware that enforces config using limiter.
// A nil config disables the middleware.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if config == nil || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := rateLimitKey(r, config)
			if err != nil {
				logger.Error("Failed to extract rate limit key",
					zap.Error(err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			bucketKey := config.BucketName + ":" + key
			allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

			if !allowed {
				retryAfter := int64(reset.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				logger.Warn("Rate limit exceeded",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("key", key),
					zap.Int("limit", config.Limit),
				)

				if config.ExceededHandler != nil {
					config.ExceededHandler.ServeHTTP(w, r)
				} else {
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				}
				return
			}

			if config.Pace {
				if p, ok := limiter.(Pacer); ok {
					p.Pace(bucketKey, config.Limit, config.Window)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
