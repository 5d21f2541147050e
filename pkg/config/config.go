// Package config loads host configuration from a YAML file and environment
// variables prefixed with ROUTEKIT.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tskau/routekit/pkg/host"
	"github.com/tskau/routekit/pkg/logging"
	"github.com/tskau/routekit/pkg/metrics"
	"github.com/tskau/routekit/pkg/middleware"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable Load reads.
const EnvPrefix = "ROUTEKIT"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Logging   logging.Config      `yaml:"logging" envconfig:"LOGGING"`
	Request   RequestConfig       `yaml:"request" envconfig:"REQUEST"`
	RateLimit RateLimitConfig     `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	IP        middleware.IPConfig `yaml:"ip" envconfig:"IP"`
	Metrics   MetricsConfig       `yaml:"metrics" envconfig:"METRICS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host              string        `yaml:"host" envconfig:"HOST"`
	Port              int           `yaml:"port" envconfig:"PORT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// RequestConfig contains the per-request defaults applied to every route.
type RequestConfig struct {
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxBodySize int64         `yaml:"max_body_size" envconfig:"MAX_BODY_SIZE"`
	TraceID     bool          `yaml:"trace_id" envconfig:"TRACE_ID"`
	Logging     bool          `yaml:"logging" envconfig:"LOGGING"`
	CORS        CORSConfig    `yaml:"cors" envconfig:"CORS"`
}

// CORSConfig enables the CORS middleware when Origins is not empty.
type CORSConfig struct {
	Origins []string `yaml:"origins" envconfig:"ORIGINS"`
	Methods []string `yaml:"methods" envconfig:"METHODS"`
	Headers []string `yaml:"headers" envconfig:"HEADERS"`
}

// RateLimitConfig is the global rate limit, applied only when Enabled.
type RateLimitConfig struct {
	Enabled                    bool `yaml:"enabled" envconfig:"ENABLED"`
	middleware.RateLimitConfig `yaml:",inline"`
}

// MetricsConfig controls Prometheus collection and the path it is served on.
// Path is read from ROUTEKIT_METRICS_HTTP_PATH: envconfig falls back to the
// bare tag name, and a bare PATH is always set.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"ENABLED"`
	Path           string `yaml:"path" envconfig:"HTTP_PATH"`
	metrics.Config `yaml:",inline"`
}

// Load loads configuration from file and environment variables. A missing
// file is not an error; defaults and the environment still apply.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment variables take priority over the file.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		Request: RequestConfig{
			Timeout:     30 * time.Second,
			MaxBodySize: 1 << 20,
			TraceID:     true,
			Logging:     true,
		},
		RateLimit: RateLimitConfig{
			RateLimitConfig: middleware.RateLimitConfig{
				BucketName: "global",
				Limit:      100,
				Window:     time.Minute,
				Strategy:   middleware.StrategyIP,
			},
		},
		IP: middleware.IPConfig{Source: middleware.IPSourceRemoteAddr},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Config:  metrics.Config{Namespace: "routekit"},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", c.Server.ShutdownTimeout)
	}

	if err := c.Logging.Validate(); err != nil {
		return err
	}

	if c.Request.Timeout < 0 {
		return fmt.Errorf("invalid request timeout: %s", c.Request.Timeout)
	}
	if c.Request.MaxBodySize < 0 {
		return fmt.Errorf("invalid max body size: %d", c.Request.MaxBodySize)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Limit < 1 {
			return fmt.Errorf("invalid rate limit: %d", c.RateLimit.Limit)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("invalid rate limit window: %s", c.RateLimit.Window)
		}
		// Custom strategies need a key extractor, which only code can supply.
		switch c.RateLimit.Strategy {
		case middleware.StrategyIP, middleware.StrategyGlobal:
		default:
			return fmt.Errorf("invalid rate limit strategy: %s (must be ip or global)", c.RateLimit.Strategy)
		}
	}

	switch c.IP.Source {
	case middleware.IPSourceRemoteAddr, middleware.IPSourceXForwardedFor, middleware.IPSourceXRealIP:
	case middleware.IPSourceCustomHeader:
		if c.IP.CustomHeader == "" {
			return fmt.Errorf("ip custom_header is required when source is %s", c.IP.Source)
		}
	default:
		return fmt.Errorf("invalid ip source: %s", c.IP.Source)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q", c.Metrics.Path)
	}
	return nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HostConfig maps the configuration onto a host.Config using logger.
func (c *Config) HostConfig(logger *zap.Logger) host.Config {
	ip := c.IP
	hc := host.Config{
		Logger:               logger,
		GlobalTimeout:        c.Request.Timeout,
		GlobalMaxBodySize:    c.Request.MaxBodySize,
		IPConfig:             &ip,
		EnableMetrics:        c.Metrics.Enabled,
		MetricsConfig:        c.Metrics.Config,
		EnableTraceID:        c.Request.TraceID,
		EnableRequestLogging: c.Request.Logging,
	}
	if c.RateLimit.Enabled {
		rl := c.RateLimit.RateLimitConfig
		hc.GlobalRateLimit = &rl
	}
	if cors := c.Request.CORS; len(cors.Origins) > 0 {
		hc.Middlewares = append(hc.Middlewares, middleware.CORS(cors.Origins, cors.Methods, cors.Headers))
	}
	return hc
}
