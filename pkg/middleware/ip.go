package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the leftmost X-Forwarded-For entry
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses the header named by IPConfig.CustomHeader
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	Source       IPSourceType `yaml:"source" envconfig:"SOURCE"`
	CustomHeader string       `yaml:"custom_header" envconfig:"CUSTOM_HEADER"`
	// TrustProxy must be set for any header source to be honored.
	TrustProxy bool `yaml:"trust_proxy" envconfig:"TRUST_PROXY"`
}

// DefaultIPConfig returns the default IP configuration, which only trusts RemoteAddr.
func DefaultIPConfig() *IPConfig {
	return &IPConfig{Source: IPSourceRemoteAddr}
}

type clientIPKey struct{}

// ClientIP returns the client IP stored by ClientIPMiddleware, or "".
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware resolves the client IP once per request and stores it in the context.
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, extractClientIP(r, config))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string
	if config.TrustProxy {
		switch config.Source {
		case IPSourceXForwardedFor:
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip = strings.TrimSpace(strings.Split(xff, ",")[0])
			}
		case IPSourceXRealIP:
			ip = strings.TrimSpace(r.Header.Get("X-Real-IP"))
		case IPSourceCustomHeader:
			ip = strings.TrimSpace(r.Header.Get(config.CustomHeader))
		}
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return stripPort(ip)
}

// stripPort removes a trailing port from host:port and [v6]:port forms.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
